package crypto

import (
	"bytes"
	"testing"
)

func testKeyAndSecret() ([32]byte, []byte) {
	var key [32]byte
	secret := make([]byte, MasterSecretBytes)
	for i := 0; i < 32; i++ {
		key[i] = byte(i)
		secret[i] = byte(0xA0 + i)
	}
	return key, secret
}

func TestXOR_SelfInverseRoundTrip(t *testing.T) {
	key, secret := testKeyAndSecret()
	s := XOR()

	sealed, err := s.Seal(key, secret)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if len(sealed) != MasterSecretBytes {
		t.Fatalf("sealed length %d, want %d", len(sealed), MasterSecretBytes)
	}
	if bytes.Equal(sealed, secret) {
		t.Fatalf("sealed output equals plaintext")
	}

	opened, err := s.Open(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, secret) {
		t.Fatalf("round trip mismatch")
	}

	// wrap(unwrap(c)) == c as well: XOR is its own inverse.
	resealed, err := s.Seal(key, opened)
	if err != nil {
		t.Fatalf("reseal: %v", err)
	}
	if !bytes.Equal(resealed, sealed) {
		t.Fatalf("reseal mismatch")
	}
}

func TestXOR_RejectsBadLengths(t *testing.T) {
	key, _ := testKeyAndSecret()
	if _, err := XOR().Seal(key, make([]byte, 31)); err == nil {
		t.Fatalf("expected error for short secret")
	}
	if _, err := XOR().Open(key, make([]byte, 33)); err == nil {
		t.Fatalf("expected error for long sealed blob")
	}
}

func TestAESKW_RoundTrip(t *testing.T) {
	key, secret := testKeyAndSecret()
	s := AESKW()

	sealed, err := s.Seal(key, secret)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if len(sealed) != 8+MasterSecretBytes {
		t.Fatalf("sealed length %d, want %d", len(sealed), 8+MasterSecretBytes)
	}
	opened, err := s.Open(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, secret) {
		t.Fatalf("round trip mismatch")
	}
}

func TestAESKW_IntegrityCheck(t *testing.T) {
	key, secret := testKeyAndSecret()
	s := AESKW()

	sealed, err := s.Seal(key, secret)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[3] ^= 0x01
	if _, err := s.Open(key, sealed); err == nil {
		t.Fatalf("expected integrity failure for tampered blob")
	}

	sealed[3] ^= 0x01
	var wrongKey [32]byte
	wrongKey[0] = 0xEE
	if _, err := s.Open(wrongKey, sealed); err == nil {
		t.Fatalf("expected integrity failure for wrong key")
	}
}

func TestAEAD_RoundTripAndTamper(t *testing.T) {
	key, secret := testKeyAndSecret()
	s := AEAD()

	sealed, err := s.Seal(key, secret)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if len(sealed) != 12+MasterSecretBytes+16 {
		t.Fatalf("sealed length %d", len(sealed))
	}
	opened, err := s.Open(key, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(opened, secret) {
		t.Fatalf("round trip mismatch")
	}

	sealed[len(sealed)-1] ^= 0x01
	if _, err := s.Open(key, sealed); err == nil {
		t.Fatalf("expected authentication failure for tampered blob")
	}
	if _, err := s.Open(key, sealed[:10]); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
}

func TestSealerByName(t *testing.T) {
	for _, name := range []string{"xor", "aeskw", "aead"} {
		s, err := SealerByName(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if s.Name() != name {
			t.Fatalf("name mismatch: %s != %s", s.Name(), name)
		}
	}
	if _, err := SealerByName("rot13"); err == nil {
		t.Fatalf("expected error for unknown sealer")
	}
}
