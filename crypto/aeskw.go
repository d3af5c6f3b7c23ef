package crypto

import (
	"crypto/aes"
	"encoding/binary"
	"errors"
	"fmt"
)

// AES-256 Key Wrap (RFC 3394 / NIST SP 800-38F), specialized to the
// 32-byte master secret. Deterministic (no nonce), so sealed blobs are
// reproducible across runs, and the unwrap side is integrity-checked
// through the RFC 3394 IV comparison. Sealed output is 40 bytes.

var kwDefaultIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

type aeskwSealer struct{}

// AESKW returns the RFC 3394 AES-256 key-wrap sealer.
func AESKW() SecretSealer { return aeskwSealer{} }

func (aeskwSealer) Name() string { return "aeskw" }

func (aeskwSealer) Seal(key [32]byte, secret []byte) ([]byte, error) {
	if len(secret) != MasterSecretBytes {
		return nil, fmt.Errorf("aeskw: secret must be %d bytes (got %d)", MasterSecretBytes, len(secret))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	const n = MasterSecretBytes / 8
	var r [n][8]byte
	for i := 0; i < n; i++ {
		copy(r[i][:], secret[i*8:(i+1)*8])
	}
	a := kwDefaultIV

	var b [16]byte
	for j := 0; j < 6; j++ {
		for i := 0; i < n; i++ {
			copy(b[0:8], a[:])
			copy(b[8:16], r[i][:])
			block.Encrypt(b[:], b[:])
			t := uint64(n*j + i + 1)
			for k := 0; k < 8; k++ {
				a[k] = b[k] ^ byte(t>>(56-8*k))
			}
			copy(r[i][:], b[8:16])
		}
	}

	out := make([]byte, 0, 8+MasterSecretBytes)
	out = append(out, a[:]...)
	for i := 0; i < n; i++ {
		out = append(out, r[i][:]...)
	}
	return out, nil
}

func (aeskwSealer) Open(key [32]byte, sealed []byte) ([]byte, error) {
	if len(sealed) != 8+MasterSecretBytes {
		return nil, fmt.Errorf("aeskw: sealed blob must be %d bytes (got %d)", 8+MasterSecretBytes, len(sealed))
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	const n = MasterSecretBytes / 8
	var a [8]byte
	copy(a[:], sealed[0:8])
	var r [n][8]byte
	for i := 0; i < n; i++ {
		copy(r[i][:], sealed[(i+1)*8:(i+2)*8])
	}

	var b [16]byte
	for j := 5; j >= 0; j-- {
		for i := n - 1; i >= 0; i-- {
			t := uint64(n*j + i + 1)
			var ax [8]byte
			binary.BigEndian.PutUint64(ax[:], binary.BigEndian.Uint64(a[:])^t)
			copy(b[0:8], ax[:])
			copy(b[8:16], r[i][:])
			block.Decrypt(b[:], b[:])
			copy(a[:], b[0:8])
			copy(r[i][:], b[8:16])
		}
	}

	// RFC 3394 integrity check. The register is secret-derived, so the
	// comparison runs in constant time.
	if !ConstantTimeEq(a[:], kwDefaultIV[:]) {
		return nil, errors.New("aeskw: integrity check failed")
	}

	out := make([]byte, 0, MasterSecretBytes)
	for i := 0; i < n; i++ {
		out = append(out, r[i][:]...)
	}
	return out, nil
}
