package crypto

import (
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

type sha3Provider struct{}

func (sha3Provider) Name() string { return "sha3" }

func (sha3Provider) Sum256(input []byte) [32]byte {
	return sha3.Sum256(input)
}

// SHA3 returns the default SHA3-256 hash provider.
func SHA3() HashProvider { return sha3Provider{} }

type blake3Provider struct{}

func (blake3Provider) Name() string { return "blake3" }

func (blake3Provider) Sum256(input []byte) [32]byte {
	return blake3.Sum256(input)
}

// BLAKE3 returns the BLAKE3-256 hash provider.
func BLAKE3() HashProvider { return blake3Provider{} }
