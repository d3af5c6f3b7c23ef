package core

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	VAULT_ERR_INVALID_INPUT        ErrorCode = "VAULT_ERR_INVALID_INPUT"
	VAULT_ERR_UNAUTHORIZED         ErrorCode = "VAULT_ERR_UNAUTHORIZED"
	VAULT_ERR_ALREADY_EXECUTED     ErrorCode = "VAULT_ERR_ALREADY_EXECUTED"
	VAULT_ERR_NOT_CLAIMABLE        ErrorCode = "VAULT_ERR_NOT_CLAIMABLE"
	VAULT_ERR_MISSING_ATTESTATION  ErrorCode = "VAULT_ERR_MISSING_ATTESTATION"
	VAULT_ERR_ATTESTATION_ROOT     ErrorCode = "VAULT_ERR_ATTESTATION_ROOT"
	VAULT_ERR_ATTESTATION_PROOF    ErrorCode = "VAULT_ERR_ATTESTATION_PROOF"
	VAULT_ERR_NO_SECRET            ErrorCode = "VAULT_ERR_NO_SECRET"
	VAULT_ERR_NO_ASSETS            ErrorCode = "VAULT_ERR_NO_ASSETS"
	VAULT_ERR_INSUFFICIENT_RESERVE ErrorCode = "VAULT_ERR_INSUFFICIENT_RESERVE"
	VAULT_ERR_IDENTITY_MISMATCH    ErrorCode = "VAULT_ERR_IDENTITY_MISMATCH"

	CUSTODY_ERR_INSUFFICIENT_FUNDS ErrorCode = "CUSTODY_ERR_INSUFFICIENT_FUNDS"
)

// VaultError carries one taxonomy code plus a short operator-facing
// message. Every error reflects a precondition the caller must fix
// before retrying; none are transient and none are retried internally.
type VaultError struct {
	Code ErrorCode
	Msg  string
}

func (e *VaultError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func vaulterr(code ErrorCode, msg string) error {
	return &VaultError{Code: code, Msg: msg}
}

// CodeOf extracts the taxonomy code from err, or "" if err carries none.
func CodeOf(err error) ErrorCode {
	var ve *VaultError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}
