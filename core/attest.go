package core

import (
	"encoding/binary"

	"heirloom.dev/vault/crypto"
)

// AttestationClient is the narrow interface the vault core consumes
// from the external liveness-attestation service. The service's
// internal design is out of scope; the core only needs its currently
// published root and inclusion verification over (root, leaf, proof)
// triples. Callers obtain the pairs out-of-band — the core never
// fetches them itself.
type AttestationClient interface {
	CurrentRoot() ([32]byte, error)
	VerifyInclusion(root, leaf [32]byte, proof [][32]byte) bool
}

// LivenessLeaf computes the attestation-tree leaf for a testator's
// liveness record: h(testator || last_ping u64le).
func LivenessLeaf(h crypto.HashProvider, testator [32]byte, lastPing uint64) [32]byte {
	var preimage [40]byte
	copy(preimage[0:32], testator[:])
	binary.LittleEndian.PutUint64(preimage[32:40], lastPing)
	return h.Sum256(preimage[:])
}
