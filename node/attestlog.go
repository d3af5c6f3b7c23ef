package node

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"heirloom.dev/vault/core"
	"heirloom.dev/vault/crypto"
)

// MemoryAttestationLog is an in-memory liveness-attestation log: it
// appends liveness leaves, maintains the sorted-pair Merkle root over
// them, and produces inclusion proofs. It stands in for the external
// attestation service in tests and the CLI demo; the real service is
// out of scope and only its proof format matters here.
type MemoryAttestationLog struct {
	mu     sync.Mutex
	hash   crypto.HashProvider
	leaves [][32]byte
}

func NewMemoryAttestationLog(h crypto.HashProvider) *MemoryAttestationLog {
	return &MemoryAttestationLog{hash: h}
}

// AppendLiveness records a liveness check-in for testator at lastPing
// and returns the leaf index for later proof requests.
func (l *MemoryAttestationLog) AppendLiveness(testator [32]byte, lastPing uint64) int {
	return l.Append(core.LivenessLeaf(l.hash, testator, lastPing))
}

func (l *MemoryAttestationLog) Append(leaf [32]byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.leaves = append(l.leaves, leaf)
	return len(l.leaves) - 1
}

func (l *MemoryAttestationLog) CurrentRoot() ([32]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.leaves) == 0 {
		return [32]byte{}, errors.New("attestation log is empty")
	}
	level := append([][32]byte(nil), l.leaves...)
	for len(level) > 1 {
		level = l.levelUp(level)
	}
	return level[0], nil
}

// Proof returns the sibling path for the leaf at index, ordered leaf
// to root, consistent with the sorted-pair convention.
func (l *MemoryAttestationLog) Proof(index int) ([][32]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.leaves) {
		return nil, fmt.Errorf("leaf index %d out of range", index)
	}
	var proof [][32]byte
	level := append([][32]byte(nil), l.leaves...)
	idx := index
	for len(level) > 1 {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		level = l.levelUp(level)
		idx /= 2
	}
	return proof, nil
}

func (l *MemoryAttestationLog) VerifyInclusion(root, leaf [32]byte, proof [][32]byte) bool {
	return core.VerifyInclusion(l.hash, root, leaf, proof)
}

func (l *MemoryAttestationLog) levelUp(level [][32]byte) [][32]byte {
	next := make([][32]byte, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i == len(level)-1 {
			// Odd promotion rule: carry forward unchanged.
			next = append(next, level[i])
			continue
		}
		next = append(next, l.combine(level[i], level[i+1]))
	}
	return next
}

func (l *MemoryAttestationLog) combine(a, b [32]byte) [32]byte {
	var preimage [64]byte
	if bytes.Compare(a[:], b[:]) <= 0 {
		copy(preimage[0:32], a[:])
		copy(preimage[32:64], b[:])
	} else {
		copy(preimage[0:32], b[:])
		copy(preimage[32:64], a[:])
	}
	return l.hash.Sum256(preimage[:])
}

// StaticAttestationClient serves one fixed published root, for
// operator tooling where the current root arrives out-of-band.
type StaticAttestationClient struct {
	Hash crypto.HashProvider
	Root [32]byte
}

func (c StaticAttestationClient) CurrentRoot() ([32]byte, error) {
	return c.Root, nil
}

func (c StaticAttestationClient) VerifyInclusion(root, leaf [32]byte, proof [][32]byte) bool {
	return core.VerifyInclusion(c.Hash, root, leaf, proof)
}
