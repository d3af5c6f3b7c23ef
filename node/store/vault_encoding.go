package store

import (
	"encoding/binary"
	"fmt"

	"heirloom.dev/vault/core"
)

const (
	flagExecuted              = 1 << 0
	flagDebugMode             = 1 << 1
	flagHasCompressedLiveness = 1 << 2
)

// Vault record layout (little-endian, fixed head + bounded tail):
//
//	id 32 | testator 32 | beneficiary 32 | verifier 32 |
//	identity_hash 32 | email_hash 32 | document_hash 32 |
//	content_ref 32 | content_ref_validator 32 |
//	last_ping u64 | created_at u64 |
//	warning_timeout_secs u64 | timeout_secs u64 | custody_amount u64 |
//	flags u8 | derivation_nonce u8 |
//	encrypted_password u16-prefixed (1..64) |
//	encrypted_key u8 option + u16-prefixed (..64) |
//	unwrapped_key u8 option + 32 |
//	attestation_root u8 option + 32
const vaultHeadBytes = 9*32 + 5*8 + 2

func encodeVault(v *core.Vault) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("vault: nil")
	}
	if len(v.EncryptedPassword) == 0 || len(v.EncryptedPassword) > core.MAX_SECRET_BLOB_BYTES {
		return nil, fmt.Errorf("vault: encrypted_password length %d out of range", len(v.EncryptedPassword))
	}
	if len(v.EncryptedKey) > core.MAX_SECRET_BLOB_BYTES {
		return nil, fmt.Errorf("vault: encrypted_key length %d exceeds cap", len(v.EncryptedKey))
	}
	if v.UnwrappedKey != nil && len(v.UnwrappedKey) != core.MASTER_SECRET_BYTES {
		return nil, fmt.Errorf("vault: unwrapped_key must be %d bytes", core.MASTER_SECRET_BYTES)
	}

	out := make([]byte, 0, vaultHeadBytes+3+len(v.EncryptedPassword)+3+len(v.EncryptedKey)+33+33)
	for _, h := range [][32]byte{
		v.ID, v.Testator, v.Beneficiary, v.Verifier,
		v.BeneficiaryIdentityHash, v.BeneficiaryEmailHash, v.BeneficiaryDocumentIDHash,
		v.ContentRef, v.ContentRefValidator,
	} {
		out = append(out, h[:]...)
	}
	var tmp8 [8]byte
	for _, u := range []uint64{v.LastPing, v.CreatedAt, v.WarningTimeoutSecs, v.TimeoutSecs, v.CustodyAmount} {
		binary.LittleEndian.PutUint64(tmp8[:], u)
		out = append(out, tmp8[:]...)
	}

	var flags byte
	if v.Executed {
		flags |= flagExecuted
	}
	if v.DebugMode {
		flags |= flagDebugMode
	}
	if v.HasCompressedLiveness {
		flags |= flagHasCompressedLiveness
	}
	out = append(out, flags, v.DerivationNonce)

	out = appendBlob16(out, v.EncryptedPassword)

	if v.EncryptedKey == nil {
		out = append(out, 0x00)
	} else {
		out = append(out, 0x01)
		out = appendBlob16(out, v.EncryptedKey)
	}
	if v.UnwrappedKey == nil {
		out = append(out, 0x00)
	} else {
		out = append(out, 0x01)
		out = append(out, v.UnwrappedKey...)
	}
	if v.AttestationRoot == nil {
		out = append(out, 0x00)
	} else {
		out = append(out, 0x01)
		out = append(out, v.AttestationRoot[:]...)
	}
	return out, nil
}

func decodeVault(b []byte) (*core.Vault, error) {
	if len(b) < vaultHeadBytes {
		return nil, fmt.Errorf("vault: truncated head")
	}
	v := &core.Vault{}
	off := 0
	for _, dst := range []*[32]byte{
		&v.ID, &v.Testator, &v.Beneficiary, &v.Verifier,
		&v.BeneficiaryIdentityHash, &v.BeneficiaryEmailHash, &v.BeneficiaryDocumentIDHash,
		&v.ContentRef, &v.ContentRefValidator,
	} {
		copy(dst[:], b[off:off+32])
		off += 32
	}
	for _, dst := range []*uint64{&v.LastPing, &v.CreatedAt, &v.WarningTimeoutSecs, &v.TimeoutSecs, &v.CustodyAmount} {
		*dst = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
	}
	flags := b[off]
	v.Executed = flags&flagExecuted != 0
	v.DebugMode = flags&flagDebugMode != 0
	v.HasCompressedLiveness = flags&flagHasCompressedLiveness != 0
	v.DerivationNonce = b[off+1]
	off += 2

	password, off, err := readBlob16(b, off, "encrypted_password")
	if err != nil {
		return nil, err
	}
	if len(password) == 0 || len(password) > core.MAX_SECRET_BLOB_BYTES {
		return nil, fmt.Errorf("vault: encrypted_password length %d out of range", len(password))
	}
	v.EncryptedPassword = password

	present, off, err := readOption(b, off, "encrypted_key")
	if err != nil {
		return nil, err
	}
	if present {
		key, n, err := readBlob16(b, off, "encrypted_key")
		if err != nil {
			return nil, err
		}
		if len(key) > core.MAX_SECRET_BLOB_BYTES {
			return nil, fmt.Errorf("vault: encrypted_key length %d exceeds cap", len(key))
		}
		v.EncryptedKey = key
		off = n
	}

	present, off, err = readOption(b, off, "unwrapped_key")
	if err != nil {
		return nil, err
	}
	if present {
		if off+core.MASTER_SECRET_BYTES > len(b) {
			return nil, fmt.Errorf("vault: unwrapped_key truncated")
		}
		v.UnwrappedKey = append([]byte(nil), b[off:off+core.MASTER_SECRET_BYTES]...)
		off += core.MASTER_SECRET_BYTES
	}

	present, off, err = readOption(b, off, "attestation_root")
	if err != nil {
		return nil, err
	}
	if present {
		if off+32 > len(b) {
			return nil, fmt.Errorf("vault: attestation_root truncated")
		}
		var root [32]byte
		copy(root[:], b[off:off+32])
		v.AttestationRoot = &root
		off += 32
	}

	if off != len(b) {
		return nil, fmt.Errorf("vault: %d trailing bytes", len(b)-off)
	}
	return v, nil
}

func appendBlob16(out, blob []byte) []byte {
	var tmp2 [2]byte
	binary.LittleEndian.PutUint16(tmp2[:], uint16(len(blob))) // #nosec G115 -- blob length checked against MAX_SECRET_BLOB_BYTES by callers.
	out = append(out, tmp2[:]...)
	return append(out, blob...)
}

func readBlob16(b []byte, off int, name string) ([]byte, int, error) {
	if off+2 > len(b) {
		return nil, 0, fmt.Errorf("vault: %s length truncated", name)
	}
	n := int(binary.LittleEndian.Uint16(b[off : off+2]))
	off += 2
	if off+n > len(b) {
		return nil, 0, fmt.Errorf("vault: %s truncated", name)
	}
	return append([]byte(nil), b[off:off+n]...), off + n, nil
}

func readOption(b []byte, off int, name string) (bool, int, error) {
	if off >= len(b) {
		return false, 0, fmt.Errorf("vault: %s option truncated", name)
	}
	switch b[off] {
	case 0x00:
		return false, off + 1, nil
	case 0x01:
		return true, off + 1, nil
	default:
		return false, 0, fmt.Errorf("vault: %s invalid option byte 0x%02x", name, b[off])
	}
}
