// Package crypto provides the pluggable primitives the vault core is
// built on: a fixed-output hash provider, constant-time comparison,
// and the secret sealers used by the key-wrap protocol.
package crypto

import "fmt"

// HashProvider is the narrow hash interface used by vault code, both
// as the Merkle compression function and as the key-derivation
// primitive. The backend is fixed per deployment: wrap-key derivation
// must stay reproducible by the beneficiary for the life of a vault.
type HashProvider interface {
	Name() string
	Sum256(input []byte) [32]byte
}

// ProviderByName resolves a configured hash backend.
func ProviderByName(name string) (HashProvider, error) {
	switch name {
	case "sha3":
		return SHA3(), nil
	case "blake3":
		return BLAKE3(), nil
	default:
		return nil, fmt.Errorf("unknown hash_alg: %q", name)
	}
}
