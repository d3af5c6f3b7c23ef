package store

import (
	"bytes"
	"testing"

	"heirloom.dev/vault/core"
)

func fill32(b byte) (out [32]byte) {
	for i := range out {
		out[i] = b
	}
	return out
}

func sampleVault() *core.Vault {
	root := fill32(0xAA)
	return &core.Vault{
		ID:          fill32(0x01),
		Testator:    fill32(0x02),
		Beneficiary: fill32(0x03),
		Verifier:    fill32(0x04),

		BeneficiaryIdentityHash:   fill32(0x05),
		BeneficiaryEmailHash:      fill32(0x06),
		BeneficiaryDocumentIDHash: fill32(0x07),

		ContentRef:          fill32(0x08),
		ContentRefValidator: fill32(0x09),

		LastPing:  1_700_000_000,
		CreatedAt: 1_699_999_000,

		WarningTimeoutSecs: 1_800,
		TimeoutSecs:        3_600,

		CustodyAmount:     500,
		EncryptedPassword: []byte("password-ciphertext"),
		EncryptedKey:      bytes.Repeat([]byte{0xC3}, 40),
		AttestationRoot:   &root,

		Executed:              true,
		DebugMode:             true,
		HasCompressedLiveness: true,
		DerivationNonce:       7,
	}
}

func TestVaultEncoding_RoundTrip(t *testing.T) {
	v := sampleVault()
	enc, err := encodeVault(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := decodeVault(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if dec.ID != v.ID || dec.Testator != v.Testator || dec.Beneficiary != v.Beneficiary || dec.Verifier != v.Verifier {
		t.Fatalf("identity fields mismatch")
	}
	if dec.LastPing != v.LastPing || dec.CreatedAt != v.CreatedAt ||
		dec.WarningTimeoutSecs != v.WarningTimeoutSecs || dec.TimeoutSecs != v.TimeoutSecs ||
		dec.CustodyAmount != v.CustodyAmount {
		t.Fatalf("numeric fields mismatch")
	}
	if !dec.Executed || !dec.DebugMode || !dec.HasCompressedLiveness || dec.DerivationNonce != 7 {
		t.Fatalf("flags mismatch")
	}
	if !bytes.Equal(dec.EncryptedPassword, v.EncryptedPassword) {
		t.Fatalf("encrypted_password mismatch")
	}
	if !bytes.Equal(dec.EncryptedKey, v.EncryptedKey) {
		t.Fatalf("encrypted_key mismatch")
	}
	if dec.UnwrappedKey != nil {
		t.Fatalf("unwrapped_key should be absent")
	}
	if dec.AttestationRoot == nil || *dec.AttestationRoot != *v.AttestationRoot {
		t.Fatalf("attestation_root mismatch")
	}
}

func TestVaultEncoding_UnwrappedKey(t *testing.T) {
	v := sampleVault()
	v.EncryptedKey = nil
	v.AttestationRoot = nil
	v.UnwrappedKey = bytes.Repeat([]byte{0x5E}, core.MASTER_SECRET_BYTES)

	enc, err := encodeVault(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec, err := decodeVault(enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.EncryptedKey != nil || dec.AttestationRoot != nil {
		t.Fatalf("absent fields decoded as present")
	}
	if !bytes.Equal(dec.UnwrappedKey, v.UnwrappedKey) {
		t.Fatalf("unwrapped_key mismatch")
	}
}

func TestVaultEncoding_Rejections(t *testing.T) {
	v := sampleVault()
	v.EncryptedPassword = nil
	if _, err := encodeVault(v); err == nil {
		t.Fatalf("expected error for empty encrypted_password")
	}

	v = sampleVault()
	v.EncryptedPassword = make([]byte, core.MAX_SECRET_BLOB_BYTES+1)
	if _, err := encodeVault(v); err == nil {
		t.Fatalf("expected error for oversized encrypted_password")
	}

	v = sampleVault()
	v.UnwrappedKey = make([]byte, 16)
	if _, err := encodeVault(v); err == nil {
		t.Fatalf("expected error for short unwrapped_key")
	}
}

func TestVaultDecoding_Malformed(t *testing.T) {
	enc, err := encodeVault(sampleVault())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := decodeVault(enc[:vaultHeadBytes-1]); err == nil {
		t.Fatalf("expected error for truncated head")
	}
	if _, err := decodeVault(enc[:len(enc)-5]); err == nil {
		t.Fatalf("expected error for truncated tail")
	}
	if _, err := decodeVault(append(append([]byte(nil), enc...), 0xFF)); err == nil {
		t.Fatalf("expected error for trailing bytes")
	}

	bad := append([]byte(nil), enc...)
	bad[len(bad)-33] = 0x7F // attestation_root option byte
	if _, err := decodeVault(bad); err == nil {
		t.Fatalf("expected error for invalid option byte")
	}
}
