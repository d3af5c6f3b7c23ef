package core

import "heirloom.dev/vault/crypto"

// Machine validates and applies every vault transition. It holds the
// injected host capabilities; each call also takes the clock reading
// so that every operation is a pure function of (record, inputs, now).
// Concurrency is the host's problem: the surrounding transactional
// runtime serializes mutating calls per vault.
type Machine struct {
	hash    crypto.HashProvider
	sealer  crypto.SecretSealer
	custody CustodyGateway
	attest  AttestationClient
}

func NewMachine(h crypto.HashProvider, sealer crypto.SecretSealer, custody CustodyGateway, attest AttestationClient) *Machine {
	return &Machine{hash: h, sealer: sealer, custody: custody, attest: attest}
}

// CreateParams carries every creation-time input. The testator is the
// payer of the custody amount.
type CreateParams struct {
	Testator    [32]byte
	Beneficiary [32]byte
	Verifier    [32]byte

	BeneficiaryIdentityHash   [32]byte
	BeneficiaryEmailHash      [32]byte
	BeneficiaryDocumentIDHash [32]byte

	ContentRef          [32]byte
	ContentRefValidator [32]byte

	WarningTimeoutSecs uint64
	TimeoutSecs        uint64

	CustodyAmount     uint64
	EncryptedPassword []byte
	MasterSecret      []byte

	DebugMode       bool
	DerivationNonce byte
}

// Create validates params, funds the vault address from the testator
// through the custody gateway, and returns the new record. The caller
// persists it; if the funding transfer fails nothing is persisted.
//
// Role distinctness is deliberately not enforced: nothing rejects
// testator == beneficiary == verifier.
func (m *Machine) Create(p CreateParams, now uint64) (*Vault, error) {
	if len(p.EncryptedPassword) == 0 {
		return nil, vaulterr(VAULT_ERR_INVALID_INPUT, "encrypted_password required")
	}
	if len(p.EncryptedPassword) > MAX_SECRET_BLOB_BYTES {
		return nil, vaulterr(VAULT_ERR_INVALID_INPUT, "encrypted_password exceeds blob cap")
	}
	if p.WarningTimeoutSecs >= p.TimeoutSecs {
		return nil, vaulterr(VAULT_ERR_INVALID_INPUT, "warning_timeout_secs must be below timeout_secs")
	}
	if len(p.MasterSecret) != MASTER_SECRET_BYTES {
		return nil, vaulterr(VAULT_ERR_INVALID_INPUT, "master_secret must be 32 bytes")
	}

	id := DeriveVaultID(m.hash, p.Testator, p.Beneficiary, p.DerivationNonce)
	if err := m.custody.Transfer(p.Testator, id, p.CustodyAmount); err != nil {
		return nil, err
	}

	return &Vault{
		ID:          id,
		Testator:    p.Testator,
		Beneficiary: p.Beneficiary,
		Verifier:    p.Verifier,

		BeneficiaryIdentityHash:   p.BeneficiaryIdentityHash,
		BeneficiaryEmailHash:      p.BeneficiaryEmailHash,
		BeneficiaryDocumentIDHash: p.BeneficiaryDocumentIDHash,

		ContentRef:          p.ContentRef,
		ContentRefValidator: p.ContentRefValidator,

		LastPing:  now,
		CreatedAt: now,

		WarningTimeoutSecs: p.WarningTimeoutSecs,
		TimeoutSecs:        p.TimeoutSecs,

		CustodyAmount:     p.CustodyAmount,
		EncryptedPassword: append([]byte(nil), p.EncryptedPassword...),
		UnwrappedKey:      append([]byte(nil), p.MasterSecret...),

		DebugMode:       p.DebugMode,
		DerivationNonce: p.DerivationNonce,
	}, nil
}

// CreateAttestationRecord marks that an external attestation record
// exists for this vault's testator. Idempotent; only the testator may
// register it.
func (m *Machine) CreateAttestationRecord(v *Vault, callerTestator [32]byte) error {
	if callerTestator != v.Testator {
		return vaulterr(VAULT_ERR_UNAUTHORIZED, "caller is not the vault testator")
	}
	if v.Executed {
		return vaulterr(VAULT_ERR_ALREADY_EXECUTED, "vault already executed")
	}
	v.HasCompressedLiveness = true
	return nil
}

// livenessPolicy is the strict/permissive split over attestation-proof
// validation. The variant is fixed by the vault's immutable DebugMode
// flag at creation, which keeps the test-only bypass auditable instead
// of scattered through the operations.
type livenessPolicy interface {
	verify(v *Vault, root [32]byte, proof [][32]byte) error
}

type strictLiveness struct {
	hash   crypto.HashProvider
	attest AttestationClient
}

func (s strictLiveness) verify(v *Vault, root [32]byte, proof [][32]byte) error {
	current, err := s.attest.CurrentRoot()
	if err != nil {
		return vaulterr(VAULT_ERR_ATTESTATION_ROOT, err.Error())
	}
	if !crypto.ConstantTimeEq(root[:], current[:]) {
		return vaulterr(VAULT_ERR_ATTESTATION_ROOT, "root does not match attestation log")
	}
	// The proof attests to the previous liveness record, so the leaf is
	// built over the pre-update LastPing.
	leaf := LivenessLeaf(s.hash, v.Testator, v.LastPing)
	if !s.attest.VerifyInclusion(root, leaf, proof) {
		return vaulterr(VAULT_ERR_ATTESTATION_PROOF, "inclusion proof rejected")
	}
	return nil
}

type permissiveLiveness struct{}

func (permissiveLiveness) verify(*Vault, [32]byte, [][32]byte) error { return nil }

func (m *Machine) policyFor(v *Vault) livenessPolicy {
	if v.DebugMode {
		return permissiveLiveness{}
	}
	return strictLiveness{hash: m.hash, attest: m.attest}
}

// UpdateLiveness verifies the caller's attestation proof, wraps the
// master secret on the first successful update, and refreshes the
// liveness timestamp. LastPing is written last, after all validation:
// a rejected call leaves the record untouched.
func (m *Machine) UpdateLiveness(v *Vault, callerTestator, root [32]byte, proof [][32]byte, now uint64) error {
	if callerTestator != v.Testator {
		return vaulterr(VAULT_ERR_UNAUTHORIZED, "caller is not the vault testator")
	}
	if v.Executed {
		return vaulterr(VAULT_ERR_ALREADY_EXECUTED, "vault already executed")
	}
	if err := m.policyFor(v).verify(v, root, proof); err != nil {
		return err
	}

	if v.EncryptedKey == nil {
		if v.UnwrappedKey == nil {
			return vaulterr(VAULT_ERR_NO_SECRET, "no master secret available to wrap")
		}
		key := DeriveWrapKey(m.hash, root, v.ID, v.Beneficiary)
		sealed, err := m.sealer.Seal(key, v.UnwrappedKey)
		if err != nil {
			return vaulterr(VAULT_ERR_INVALID_INPUT, err.Error())
		}
		if len(sealed) > MAX_SECRET_BLOB_BYTES {
			return vaulterr(VAULT_ERR_INVALID_INPUT, "sealed key exceeds blob cap")
		}
		rootCopy := root
		v.EncryptedKey = sealed
		v.AttestationRoot = &rootCopy
		zeroize(v.UnwrappedKey)
		v.UnwrappedKey = nil
	}

	v.LastPing = now
	return nil
}

// ReleasedSecret is the execute payload handed to the beneficiary:
// everything needed to recover the master secret off-system once the
// attestation root is public, plus the identity commitments for
// off-system matching.
type ReleasedSecret struct {
	VaultID     [32]byte
	Testator    [32]byte
	Beneficiary [32]byte

	EncryptedPassword []byte
	EncryptedKey      []byte
	AttestationRoot   *[32]byte

	ContentRef          [32]byte
	ContentRefValidator [32]byte

	BeneficiaryIdentityHash   [32]byte
	BeneficiaryEmailHash      [32]byte
	BeneficiaryDocumentIDHash [32]byte
}

// Execute performs the terminal claim transition. Validation runs
// fully before any field is written; the custody transfer and the
// state mutation are all-or-nothing. A second call after success fails
// fast with VAULT_ERR_ALREADY_EXECUTED and performs no transfer.
func (m *Machine) Execute(v *Vault, callerVerifier [32]byte, now uint64, releaseFunds bool) (*ReleasedSecret, error) {
	switch v.State(now) {
	case StateExecuted:
		return nil, vaulterr(VAULT_ERR_ALREADY_EXECUTED, "vault already executed")
	case StateClaimable:
	default:
		return nil, vaulterr(VAULT_ERR_NOT_CLAIMABLE, "liveness timeout has not lapsed")
	}
	if callerVerifier != v.Verifier {
		return nil, vaulterr(VAULT_ERR_UNAUTHORIZED, "caller is not the vault verifier")
	}
	if !v.DebugMode && v.AttestationRoot == nil {
		return nil, vaulterr(VAULT_ERR_MISSING_ATTESTATION, "no attestation root captured")
	}

	if releaseFunds {
		if v.CustodyAmount == 0 {
			return nil, vaulterr(VAULT_ERR_NO_ASSETS, "vault holds no assets")
		}
		balance := m.custody.BalanceOf(v.ID)
		floor := m.custody.MinRetainedBalance(v.ID)
		if balance < v.CustodyAmount || balance-v.CustodyAmount < floor {
			return nil, vaulterr(VAULT_ERR_INSUFFICIENT_RESERVE, "transfer would breach the custody floor")
		}
		if err := m.custody.Transfer(v.ID, v.Beneficiary, v.CustodyAmount); err != nil {
			return nil, err
		}
		v.CustodyAmount = 0
	}

	v.Executed = true

	out := &ReleasedSecret{
		VaultID:     v.ID,
		Testator:    v.Testator,
		Beneficiary: v.Beneficiary,

		EncryptedPassword: append([]byte(nil), v.EncryptedPassword...),
		EncryptedKey:      append([]byte(nil), v.EncryptedKey...),

		ContentRef:          v.ContentRef,
		ContentRefValidator: v.ContentRefValidator,

		BeneficiaryIdentityHash:   v.BeneficiaryIdentityHash,
		BeneficiaryEmailHash:      v.BeneficiaryEmailHash,
		BeneficiaryDocumentIDHash: v.BeneficiaryDocumentIDHash,
	}
	if v.AttestationRoot != nil {
		rootCopy := *v.AttestationRoot
		out.AttestationRoot = &rootCopy
	}
	return out, nil
}

// IdentityVerificationResult reports the outcome of a beneficiary
// identity check together with the vault's computed state.
type IdentityVerificationResult struct {
	VaultID   [32]byte
	Verified  bool
	State     VaultState
	Claimable bool
	Executed  bool
}

// VerifyBeneficiaryIdentity is a pure read; it never mutates the vault.
func (m *Machine) VerifyBeneficiaryIdentity(v *Vault, claimedHash [32]byte, now uint64) (*IdentityVerificationResult, error) {
	if !crypto.ConstantTimeEq(claimedHash[:], v.BeneficiaryIdentityHash[:]) {
		return nil, vaulterr(VAULT_ERR_IDENTITY_MISMATCH, "claimed identity hash does not match")
	}
	state := v.State(now)
	return &IdentityVerificationResult{
		VaultID:   v.ID,
		Verified:  true,
		State:     state,
		Claimable: state == StateClaimable,
		Executed:  v.Executed,
	}, nil
}

// Cancel returns the full custody balance to the testator. The caller
// removes the stored record afterwards; cancellation is terminal.
func (m *Machine) Cancel(v *Vault, callerTestator [32]byte) error {
	if callerTestator != v.Testator {
		return vaulterr(VAULT_ERR_UNAUTHORIZED, "caller is not the vault testator")
	}
	if v.Executed {
		return vaulterr(VAULT_ERR_ALREADY_EXECUTED, "vault already executed")
	}
	if balance := m.custody.BalanceOf(v.ID); balance > 0 {
		if err := m.custody.Transfer(v.ID, v.Testator, balance); err != nil {
			return err
		}
	}
	v.CustodyAmount = 0
	zeroize(v.UnwrappedKey)
	v.UnwrappedKey = nil
	return nil
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
