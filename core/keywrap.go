package core

import "heirloom.dev/vault/crypto"

// DeriveWrapKey derives the per-vault wrapping key from an attestation
// root and the vault and beneficiary identities: byte-wise XOR of the
// three inputs, then one pass through the hash provider.
//
// All three inputs are public once the root is published. The secrecy
// of the wrapped secret rests on the root being unattested until a
// liveness event actually occurred, not on this key staying private.
// The beneficiary's recovery path depends on re-deriving this key from
// public values.
func DeriveWrapKey(h crypto.HashProvider, root, vaultID, beneficiary [32]byte) [32]byte {
	var mixed [32]byte
	for i := range mixed {
		mixed[i] = root[i] ^ vaultID[i] ^ beneficiary[i]
	}
	return h.Sum256(mixed[:])
}

// RecoverMasterSecret is the beneficiary's off-system unwrap path:
// re-derive the wrap key from the now-public attestation root and open
// the sealed blob released by Execute.
func RecoverMasterSecret(h crypto.HashProvider, sealer crypto.SecretSealer, root, vaultID, beneficiary [32]byte, encryptedKey []byte) ([]byte, error) {
	if len(encryptedKey) == 0 {
		return nil, vaulterr(VAULT_ERR_NO_SECRET, "no wrapped key present")
	}
	key := DeriveWrapKey(h, root, vaultID, beneficiary)
	return sealer.Open(key, encryptedKey)
}
