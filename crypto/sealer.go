package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// MasterSecretBytes is the fixed size of the plaintext master secret
// every sealer operates on.
const MasterSecretBytes = 32

// SecretSealer wraps and unwraps a 32-byte master secret under a
// 32-byte derived key. The sealed layout is implementation-defined but
// must fit the vault's 64-byte encrypted-blob cap.
type SecretSealer interface {
	Name() string
	Seal(key [32]byte, secret []byte) ([]byte, error)
	Open(key [32]byte, sealed []byte) ([]byte, error)
}

// SealerByName resolves a configured seal mode.
func SealerByName(name string) (SecretSealer, error) {
	switch name {
	case "xor":
		return XOR(), nil
	case "aeskw":
		return AESKW(), nil
	case "aead":
		return AEAD(), nil
	default:
		return nil, fmt.Errorf("unknown seal_mode: %q", name)
	}
}

type xorSealer struct{}

// XOR returns the byte-wise XOR sealer: self-inverse, deterministic,
// unauthenticated. Recovery tooling for existing vaults depends on
// this layout; new deployments should configure aeskw or aead.
func XOR() SecretSealer { return xorSealer{} }

func (xorSealer) Name() string { return "xor" }

func (xorSealer) Seal(key [32]byte, secret []byte) ([]byte, error) {
	if len(secret) != MasterSecretBytes {
		return nil, fmt.Errorf("xor: secret must be %d bytes (got %d)", MasterSecretBytes, len(secret))
	}
	out := make([]byte, MasterSecretBytes)
	for i := range out {
		out[i] = secret[i] ^ key[i]
	}
	return out, nil
}

func (x xorSealer) Open(key [32]byte, sealed []byte) ([]byte, error) {
	// XOR is its own inverse.
	return x.Seal(key, sealed)
}

type aeadSealer struct{}

// AEAD returns the ChaCha20-Poly1305 sealer. Sealed layout:
// nonce(12) || ciphertext(32) || tag(16).
func AEAD() SecretSealer { return aeadSealer{} }

func (aeadSealer) Name() string { return "aead" }

func (aeadSealer) Seal(key [32]byte, secret []byte) ([]byte, error) {
	if len(secret) != MasterSecretBytes {
		return nil, fmt.Errorf("aead: secret must be %d bytes (got %d)", MasterSecretBytes, len(secret))
	}
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize, chacha20poly1305.NonceSize+MasterSecretBytes+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("aead: nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, secret, nil), nil
}

func (aeadSealer) Open(key [32]byte, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	if len(sealed) < chacha20poly1305.NonceSize+aead.Overhead() {
		return nil, errors.New("aead: sealed blob truncated")
	}
	nonce, ct := sealed[:chacha20poly1305.NonceSize], sealed[chacha20poly1305.NonceSize:]
	secret, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, errors.New("aead: authentication failed")
	}
	return secret, nil
}
