// Package core implements the inheritance-vault state machine and the
// cryptographic protocol around it: liveness-gated state transitions,
// Merkle inclusion verification of attestation proofs, and wrapping of
// the master secret under an attestation-derived key. The host ledger,
// clock, and attestation service are consumed as injected capabilities.
package core

import "heirloom.dev/vault/crypto"

const (
	// MAX_SECRET_BLOB_BYTES caps the two length-prefixed secret blobs a
	// vault carries. Oversized caller data is rejected, never truncated.
	MAX_SECRET_BLOB_BYTES = 64

	MASTER_SECRET_BYTES = crypto.MasterSecretBytes

	vaultIDDomainTag = 0x76
)

type VaultState uint8

const (
	StateActive VaultState = iota
	StateWarning
	StateClaimable
	StateExecuted
)

func (s VaultState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StateWarning:
		return "WARNING"
	case StateClaimable:
		return "CLAIMABLE"
	case StateExecuted:
		return "EXECUTED"
	default:
		return "UNKNOWN"
	}
}

// Vault is the per-testator/beneficiary escrow record. The runtime
// layer owns it; core operations mutate it in place and must leave it
// byte-identical on every failure path.
type Vault struct {
	ID          [32]byte
	Testator    [32]byte
	Beneficiary [32]byte
	Verifier    [32]byte

	BeneficiaryIdentityHash   [32]byte
	BeneficiaryEmailHash      [32]byte
	BeneficiaryDocumentIDHash [32]byte

	ContentRef          [32]byte
	ContentRefValidator [32]byte

	LastPing  uint64
	CreatedAt uint64

	WarningTimeoutSecs uint64
	TimeoutSecs        uint64

	Executed      bool
	CustodyAmount uint64

	EncryptedPassword []byte

	// EncryptedKey and UnwrappedKey are mutually exclusive after the
	// first successful liveness update: wrapping the master secret
	// destroys the plaintext in the same transition.
	EncryptedKey []byte
	UnwrappedKey []byte

	// AttestationRoot is captured at the first successful liveness
	// update and never re-derived on later pings.
	AttestationRoot *[32]byte

	DebugMode             bool
	HasCompressedLiveness bool
	DerivationNonce       byte
}

// State computes the vault's lifecycle state from stored fields and the
// host clock. There is no persisted state field: recomputing on every
// read keeps the executed flag and the time-derived state from ever
// disagreeing. Boundaries are exclusive; elapsed equal to a timeout
// maps to the lower state.
func (v *Vault) State(now uint64) VaultState {
	if v.Executed {
		return StateExecuted
	}
	var elapsed uint64
	if now > v.LastPing {
		elapsed = now - v.LastPing
	}
	switch {
	case elapsed > v.TimeoutSecs:
		return StateClaimable
	case elapsed > v.WarningTimeoutSecs:
		return StateWarning
	default:
		return StateActive
	}
}

// DeriveVaultID computes the deterministic vault address from its
// owning identities: h(tag || testator || beneficiary || nonce). The
// nonce only disambiguates the address; it feeds no key derivation.
func DeriveVaultID(h crypto.HashProvider, testator, beneficiary [32]byte, nonce byte) [32]byte {
	var preimage [66]byte
	preimage[0] = vaultIDDomainTag
	copy(preimage[1:33], testator[:])
	copy(preimage[33:65], beneficiary[:])
	preimage[65] = nonce
	return h.Sum256(preimage[:])
}
