package node

import (
	"encoding/binary"
	"fmt"

	"heirloom.dev/vault/core"
)

// Event kinds appended to the store's event bucket for off-system
// consumption.
const (
	EventKindInheritanceExecuted byte = 0x01
	EventKindBeneficiaryVerified byte = 0x02
)

// InheritanceExecuted is emitted once, when a vault reaches its
// terminal state and releases the wrapped secret material.
type InheritanceExecuted struct {
	VaultID     [32]byte
	Beneficiary [32]byte
	Testator    [32]byte

	EncryptedPassword []byte

	ContentRef          [32]byte
	ContentRefValidator [32]byte

	BeneficiaryIdentityHash   [32]byte
	BeneficiaryEmailHash      [32]byte
	BeneficiaryDocumentIDHash [32]byte
}

// BeneficiaryVerified is emitted by every successful identity check.
type BeneficiaryVerified struct {
	VaultID          [32]byte
	IdentityVerified bool
	Claimable        bool
	Executed         bool
}

const (
	bvFlagVerified  = 1 << 0
	bvFlagClaimable = 1 << 1
	bvFlagExecuted  = 1 << 2
)

func encodeInheritanceExecuted(e *InheritanceExecuted) []byte {
	out := make([]byte, 0, 8*32+2+len(e.EncryptedPassword))
	for _, h := range [][32]byte{
		e.VaultID, e.Beneficiary, e.Testator,
		e.ContentRef, e.ContentRefValidator,
		e.BeneficiaryIdentityHash, e.BeneficiaryEmailHash, e.BeneficiaryDocumentIDHash,
	} {
		out = append(out, h[:]...)
	}
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(e.EncryptedPassword))) // #nosec G115 -- password capped at MAX_SECRET_BLOB_BYTES before emission.
	out = append(out, tmp2[:]...)
	return append(out, e.EncryptedPassword...)
}

func DecodeInheritanceExecuted(b []byte) (*InheritanceExecuted, error) {
	if len(b) < 8*32+2 {
		return nil, fmt.Errorf("inheritance_executed: truncated")
	}
	e := &InheritanceExecuted{}
	off := 0
	for _, dst := range []*[32]byte{
		&e.VaultID, &e.Beneficiary, &e.Testator,
		&e.ContentRef, &e.ContentRefValidator,
		&e.BeneficiaryIdentityHash, &e.BeneficiaryEmailHash, &e.BeneficiaryDocumentIDHash,
	} {
		copy(dst[:], b[off:off+32])
		off += 32
	}
	n := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if off+n != len(b) {
		return nil, fmt.Errorf("inheritance_executed: bad password length")
	}
	e.EncryptedPassword = append([]byte(nil), b[off:]...)
	return e, nil
}

func encodeBeneficiaryVerified(e *BeneficiaryVerified) []byte {
	out := make([]byte, 33)
	copy(out[0:32], e.VaultID[:])
	if e.IdentityVerified {
		out[32] |= bvFlagVerified
	}
	if e.Claimable {
		out[32] |= bvFlagClaimable
	}
	if e.Executed {
		out[32] |= bvFlagExecuted
	}
	return out
}

func DecodeBeneficiaryVerified(b []byte) (*BeneficiaryVerified, error) {
	if len(b) != 33 {
		return nil, fmt.Errorf("beneficiary_verified: expected 33 bytes, got %d", len(b))
	}
	e := &BeneficiaryVerified{}
	copy(e.VaultID[:], b[0:32])
	e.IdentityVerified = b[32]&bvFlagVerified != 0
	e.Claimable = b[32]&bvFlagClaimable != 0
	e.Executed = b[32]&bvFlagExecuted != 0
	return e, nil
}

func releasedToEvent(rs *core.ReleasedSecret) *InheritanceExecuted {
	return &InheritanceExecuted{
		VaultID:     rs.VaultID,
		Beneficiary: rs.Beneficiary,
		Testator:    rs.Testator,

		EncryptedPassword: rs.EncryptedPassword,

		ContentRef:          rs.ContentRef,
		ContentRefValidator: rs.ContentRefValidator,

		BeneficiaryIdentityHash:   rs.BeneficiaryIdentityHash,
		BeneficiaryEmailHash:      rs.BeneficiaryEmailHash,
		BeneficiaryDocumentIDHash: rs.BeneficiaryDocumentIDHash,
	}
}
