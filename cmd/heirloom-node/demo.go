package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"

	"heirloom.dev/vault/core"
	"heirloom.dev/vault/crypto"
	"heirloom.dev/vault/node"
)

// cmdDemo runs the whole lifecycle in memory with a scripted clock:
// create -> liveness ping (wraps the secret) -> timeout lapse ->
// execute -> off-system recovery. Useful as an executable walkthrough
// of the protocol; nothing touches disk.
func cmdDemo(argv []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	hashAlg := fs.String("hash-alg", "sha3", "hash backend: sha3|blake3")
	sealMode := fs.String("seal-mode", "xor", "secret sealer: xor|aeskw|aead")
	_ = fs.Parse(argv)

	h, err := crypto.ProviderByName(*hashAlg)
	if err != nil {
		return err
	}
	sealer, err := crypto.SealerByName(*sealMode)
	if err != nil {
		return err
	}

	testator := h.Sum256([]byte("demo/testator"))
	beneficiary := h.Sum256([]byte("demo/beneficiary"))
	verifier := h.Sum256([]byte("demo/verifier"))
	identityHash := h.Sum256([]byte("demo/beneficiary-identity"))
	masterSecret := h.Sum256([]byte("demo/master-secret"))

	ledger := node.NewMemoryLedger()
	ledger.Credit(testator, 1_000)
	attestLog := node.NewMemoryAttestationLog(h)
	machine := core.NewMachine(h, sealer, ledger, attestLog)

	const createdAt = uint64(1_700_000_000)
	v, err := machine.Create(core.CreateParams{
		Testator:                testator,
		Beneficiary:             beneficiary,
		Verifier:                verifier,
		BeneficiaryIdentityHash: identityHash,
		WarningTimeoutSecs:      1_800,
		TimeoutSecs:             3_600,
		CustodyAmount:           500,
		EncryptedPassword:       []byte("demo-password-ciphertext"),
		MasterSecret:            masterSecret[:],
	}, createdAt)
	if err != nil {
		return err
	}
	fmt.Printf("created: vault=%x state=%s custody=%d\n", v.ID, v.State(createdAt), v.CustodyAmount)

	idx := attestLog.AppendLiveness(testator, v.LastPing)
	root, err := attestLog.CurrentRoot()
	if err != nil {
		return err
	}
	proof, err := attestLog.Proof(idx)
	if err != nil {
		return err
	}
	if err := machine.UpdateLiveness(v, testator, root, proof, createdAt+10); err != nil {
		return err
	}
	fmt.Printf("ping: root=%x secret_wrapped=%v\n", root, v.EncryptedKey != nil)

	deadline := createdAt + 10 + 3_601
	fmt.Printf("clock: now=%d state=%s\n", deadline, v.State(deadline))

	released, err := machine.Execute(v, verifier, deadline, true)
	if err != nil {
		return err
	}
	fmt.Printf("executed: beneficiary_balance=%d encrypted_key=%s\n",
		ledger.BalanceOf(beneficiary), hex.EncodeToString(released.EncryptedKey))

	recovered, err := core.RecoverMasterSecret(h, sealer, *released.AttestationRoot, released.VaultID, released.Beneficiary, released.EncryptedKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(recovered, masterSecret[:]) {
		return fmt.Errorf("recovered secret does not match")
	}
	fmt.Println("recovered: master secret matches")
	return nil
}
