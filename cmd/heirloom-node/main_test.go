package main

import (
	"strings"
	"testing"
)

func TestDecode32(t *testing.T) {
	hexID := strings.Repeat("ab", 32)
	got, err := decode32(hexID, "id")
	if err != nil {
		t.Fatalf("decode32: %v", err)
	}
	if got[0] != 0xAB || got[31] != 0xAB {
		t.Fatalf("decoded bytes mismatch")
	}
	if _, err := decode32("0x"+hexID, "id"); err != nil {
		t.Fatalf("0x prefix rejected: %v", err)
	}

	if _, err := decode32("abcd", "id"); err == nil {
		t.Fatalf("expected error for short input")
	}
	if _, err := decode32("", "id"); err == nil {
		t.Fatalf("expected error for empty input")
	}
	if _, err := decode32(strings.Repeat("zz", 32), "id"); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
}

func TestDecodeHexStrict(t *testing.T) {
	b, err := decodeHexStrict(" 0xdeadbeef ")
	if err != nil {
		t.Fatalf("decodeHexStrict: %v", err)
	}
	if len(b) != 4 || b[0] != 0xDE {
		t.Fatalf("decoded bytes mismatch")
	}
	if _, err := decodeHexStrict(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestDecodeProof(t *testing.T) {
	proof, err := decodeProof("")
	if err != nil || proof != nil {
		t.Fatalf("empty proof: %v %v", proof, err)
	}

	a := strings.Repeat("11", 32)
	b := strings.Repeat("22", 32)
	proof, err = decodeProof(a + "," + b)
	if err != nil {
		t.Fatalf("decodeProof: %v", err)
	}
	if len(proof) != 2 || proof[0][0] != 0x11 || proof[1][0] != 0x22 {
		t.Fatalf("proof mismatch")
	}

	if _, err := decodeProof(a + ",xyz"); err == nil {
		t.Fatalf("expected error for malformed sibling")
	}
}

func TestRun_Dispatch(t *testing.T) {
	if code := run(nil); code != 2 {
		t.Fatalf("no args: code=%d, want 2", code)
	}
	if code := run([]string{"no-such-command"}); code != 2 {
		t.Fatalf("unknown command: code=%d, want 2", code)
	}
}

func TestRun_Demo(t *testing.T) {
	if code := run([]string{"demo"}); code != 0 {
		t.Fatalf("demo: code=%d, want 0", code)
	}
}
