package node

import (
	"encoding/hex"
	"log/slog"

	"heirloom.dev/vault/core"
	"heirloom.dev/vault/crypto"
	"heirloom.dev/vault/node/store"
)

// Service binds the vault state machine to persistence and emits the
// observable records the host expects. Each mutating operation runs
// inside one store transaction: the vault record, the custody
// movement, and any event record commit together, and error paths
// leave the store byte-identical.
type Service struct {
	store  *store.DB
	hash   crypto.HashProvider
	sealer crypto.SecretSealer
	attest core.AttestationClient
	clock  core.Clock
	logger *slog.Logger
}

func NewService(db *store.DB, hash crypto.HashProvider, sealer crypto.SecretSealer, attest core.AttestationClient, clock core.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: db, hash: hash, sealer: sealer, attest: attest, clock: clock, logger: logger}
}

// machine binds the core state machine to a custody gateway, normally
// the transaction-scoped ledger of the operation in flight.
func (s *Service) machine(custody core.CustodyGateway) *core.Machine {
	return core.NewMachine(s.hash, s.sealer, custody, s.attest)
}

func (s *Service) Create(p core.CreateParams) (*core.Vault, error) {
	now := s.clock.Now()
	var v *core.Vault
	err := s.store.Atomic(func(ts *store.TxStore) error {
		created, err := s.machine(ts.Ledger()).Create(p, now)
		if err != nil {
			return err
		}
		if err := ts.PutVault(created); err != nil {
			return err
		}
		v = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("vault created",
		"vault_id", hex32(v.ID),
		"custody_amount", v.CustodyAmount,
		"timeout_secs", v.TimeoutSecs,
		"debug_mode", v.DebugMode,
	)
	return v, nil
}

// Vault returns the stored record, or VAULT_ERR_INVALID_INPUT for an
// unknown id.
func (s *Service) Vault(id [32]byte) (*core.Vault, error) {
	return s.loadVault(id)
}

func (s *Service) State(id [32]byte) (core.VaultState, error) {
	v, err := s.loadVault(id)
	if err != nil {
		return 0, err
	}
	return v.State(s.clock.Now()), nil
}

func (s *Service) CreateAttestationRecord(vaultID, callerTestator [32]byte) error {
	now := s.clock.Now()
	err := s.store.Atomic(func(ts *store.TxStore) error {
		v, err := loadVaultTx(ts, vaultID)
		if err != nil {
			return err
		}
		if err := s.machine(ts.Ledger()).CreateAttestationRecord(v, callerTestator); err != nil {
			return err
		}
		if err := ts.PutVault(v); err != nil {
			return err
		}
		return ts.PutAttestationRecord(v.Testator, v.ID, now)
	})
	if err != nil {
		return err
	}
	s.logger.Info("attestation record registered", "vault_id", hex32(vaultID))
	return nil
}

func (s *Service) UpdateLiveness(vaultID, callerTestator, root [32]byte, proof [][32]byte) error {
	now := s.clock.Now()
	var lastPing uint64
	var wrapped bool
	err := s.store.Atomic(func(ts *store.TxStore) error {
		v, err := loadVaultTx(ts, vaultID)
		if err != nil {
			return err
		}
		hadKey := v.EncryptedKey != nil
		if err := s.machine(ts.Ledger()).UpdateLiveness(v, callerTestator, root, proof, now); err != nil {
			return err
		}
		if err := ts.PutVault(v); err != nil {
			return err
		}
		lastPing = v.LastPing
		wrapped = !hadKey && v.EncryptedKey != nil
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("liveness updated",
		"vault_id", hex32(vaultID),
		"last_ping", lastPing,
		"secret_wrapped", wrapped,
	)
	return nil
}

func (s *Service) Execute(vaultID, callerVerifier [32]byte, releaseFunds bool) (*core.ReleasedSecret, error) {
	now := s.clock.Now()
	var released *core.ReleasedSecret
	var seq uint64
	err := s.store.Atomic(func(ts *store.TxStore) error {
		v, err := loadVaultTx(ts, vaultID)
		if err != nil {
			return err
		}
		released, err = s.machine(ts.Ledger()).Execute(v, callerVerifier, now, releaseFunds)
		if err != nil {
			return err
		}
		if err := ts.PutVault(v); err != nil {
			return err
		}
		seq, err = ts.AppendEvent(EventKindInheritanceExecuted, encodeInheritanceExecuted(releasedToEvent(released)))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("inheritance executed",
		"vault_id", hex32(vaultID),
		"beneficiary", hex32(released.Beneficiary),
		"released_funds", releaseFunds,
		"event_seq", seq,
	)
	return released, nil
}

func (s *Service) VerifyBeneficiaryIdentity(vaultID, claimedHash [32]byte) (*core.IdentityVerificationResult, error) {
	now := s.clock.Now()
	var res *core.IdentityVerificationResult
	err := s.store.Atomic(func(ts *store.TxStore) error {
		v, err := loadVaultTx(ts, vaultID)
		if err != nil {
			return err
		}
		res, err = s.machine(ts.Ledger()).VerifyBeneficiaryIdentity(v, claimedHash, now)
		if err != nil {
			return err
		}
		_, err = ts.AppendEvent(EventKindBeneficiaryVerified, encodeBeneficiaryVerified(&BeneficiaryVerified{
			VaultID:          res.VaultID,
			IdentityVerified: res.Verified,
			Claimable:        res.Claimable,
			Executed:         res.Executed,
		}))
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("beneficiary verified",
		"vault_id", hex32(vaultID),
		"state", res.State.String(),
	)
	return res, nil
}

func (s *Service) Cancel(vaultID, callerTestator [32]byte) error {
	err := s.store.Atomic(func(ts *store.TxStore) error {
		v, err := loadVaultTx(ts, vaultID)
		if err != nil {
			return err
		}
		if err := s.machine(ts.Ledger()).Cancel(v, callerTestator); err != nil {
			return err
		}
		return ts.DeleteVault(v.ID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("vault cancelled", "vault_id", hex32(vaultID))
	return nil
}

func (s *Service) Events() ([]store.EventRecord, error) {
	return s.store.Events()
}

func (s *Service) loadVault(id [32]byte) (*core.Vault, error) {
	v, ok, err := s.store.GetVault(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &core.VaultError{Code: core.VAULT_ERR_INVALID_INPUT, Msg: "unknown vault"}
	}
	return v, nil
}

func loadVaultTx(ts *store.TxStore, id [32]byte) (*core.Vault, error) {
	v, ok, err := ts.GetVault(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &core.VaultError{Code: core.VAULT_ERR_INVALID_INPUT, Msg: "unknown vault"}
	}
	return v, nil
}

func hex32(b [32]byte) string {
	return hex.EncodeToString(b[:])
}
