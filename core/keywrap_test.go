package core

import (
	"bytes"
	"testing"

	"heirloom.dev/vault/crypto"
)

func TestDeriveWrapKey_Deterministic(t *testing.T) {
	h := crypto.SHA3()
	root := h.Sum256([]byte("root"))
	vaultID := h.Sum256([]byte("vault"))
	beneficiary := h.Sum256([]byte("beneficiary"))

	k1 := DeriveWrapKey(h, root, vaultID, beneficiary)
	k2 := DeriveWrapKey(h, root, vaultID, beneficiary)
	if k1 != k2 {
		t.Fatalf("derivation not deterministic")
	}

	if DeriveWrapKey(h, h.Sum256([]byte("root2")), vaultID, beneficiary) == k1 {
		t.Fatalf("root change did not change key")
	}
	if DeriveWrapKey(h, root, h.Sum256([]byte("vault2")), beneficiary) == k1 {
		t.Fatalf("vault change did not change key")
	}
	if DeriveWrapKey(h, root, vaultID, h.Sum256([]byte("beneficiary2"))) == k1 {
		t.Fatalf("beneficiary change did not change key")
	}
}

func TestRecoverMasterSecret_RoundTrip(t *testing.T) {
	h := crypto.SHA3()
	root := h.Sum256([]byte("published-root"))
	vaultID := h.Sum256([]byte("vault-id"))
	beneficiary := h.Sum256([]byte("beneficiary-id"))
	secret := h.Sum256([]byte("master-secret"))

	for _, sealer := range []crypto.SecretSealer{crypto.XOR(), crypto.AESKW(), crypto.AEAD()} {
		key := DeriveWrapKey(h, root, vaultID, beneficiary)
		sealed, err := sealer.Seal(key, secret[:])
		if err != nil {
			t.Fatalf("%s: seal: %v", sealer.Name(), err)
		}
		recovered, err := RecoverMasterSecret(h, sealer, root, vaultID, beneficiary, sealed)
		if err != nil {
			t.Fatalf("%s: recover: %v", sealer.Name(), err)
		}
		if !bytes.Equal(recovered, secret[:]) {
			t.Fatalf("%s: recovered secret mismatch", sealer.Name())
		}
	}
}

func TestRecoverMasterSecret_NoBlob(t *testing.T) {
	h := crypto.SHA3()
	_, err := RecoverMasterSecret(h, crypto.XOR(), [32]byte{}, [32]byte{}, [32]byte{}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := CodeOf(err); got != VAULT_ERR_NO_SECRET {
		t.Fatalf("code=%s, want %s", got, VAULT_ERR_NO_SECRET)
	}
}
