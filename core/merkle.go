package core

import (
	"bytes"

	"heirloom.dev/vault/crypto"
)

// VerifyInclusion checks that leaf is included under root given the
// ordered list of sibling hashes. Pair ordering is canonical: the two
// 32-byte values are compared as big-endian integers and the smaller
// one is hashed first, so proofs carry no left/right direction bits.
// Provers must produce proofs consistent with this convention.
func VerifyInclusion(h crypto.HashProvider, root, leaf [32]byte, proof [][32]byte) bool {
	current := leaf
	var preimage [64]byte
	for _, sibling := range proof {
		if bytes.Compare(current[:], sibling[:]) <= 0 {
			copy(preimage[0:32], current[:])
			copy(preimage[32:64], sibling[:])
		} else {
			copy(preimage[0:32], sibling[:])
			copy(preimage[32:64], current[:])
		}
		current = h.Sum256(preimage[:])
	}
	return crypto.ConstantTimeEq(current[:], root[:])
}
