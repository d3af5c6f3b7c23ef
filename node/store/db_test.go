package store

import (
	"bytes"
	"errors"
	"testing"

	"heirloom.dev/vault/core"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(t.TempDir(), "sha3", "xor")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDB_VaultRoundTrip(t *testing.T) {
	d := openTestDB(t)
	v := sampleVault()

	if _, ok, err := d.GetVault(v.ID); err != nil || ok {
		t.Fatalf("get before put: ok=%v err=%v", ok, err)
	}
	if err := d.PutVault(v); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := d.GetVault(v.ID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.ID != v.ID || !bytes.Equal(got.EncryptedPassword, v.EncryptedPassword) {
		t.Fatalf("stored vault mismatch")
	}

	if err := d.DeleteVault(v.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := d.GetVault(v.ID); err != nil || ok {
		t.Fatalf("get after delete: ok=%v err=%v", ok, err)
	}
}

func TestDB_ManifestPinsAlgorithms(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, "sha3", "xor")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := Open(dir, "blake3", "xor"); err == nil {
		t.Fatalf("expected error for hash_alg mismatch")
	}
	if _, err := Open(dir, "sha3", "aead"); err == nil {
		t.Fatalf("expected error for seal_mode mismatch")
	}

	d, err = Open(dir, "sha3", "xor")
	if err != nil {
		t.Fatalf("reopen with matching algorithms: %v", err)
	}
	m := d.Manifest()
	if m == nil || m.HashAlg != "sha3" || m.SealMode != "xor" || m.SchemaVersion != SchemaVersionV1 {
		t.Fatalf("manifest not persisted: %+v", m)
	}
	_ = d.Close()
}

func TestDB_AttestationRecord(t *testing.T) {
	d := openTestDB(t)
	testator := fill32(0x11)
	vaultID := fill32(0x22)

	if _, _, ok, err := d.GetAttestationRecord(testator); err != nil || ok {
		t.Fatalf("get before put: ok=%v err=%v", ok, err)
	}
	if err := d.PutAttestationRecord(testator, vaultID, 1_700_000_123); err != nil {
		t.Fatalf("put: %v", err)
	}
	gotID, createdAt, ok, err := d.GetAttestationRecord(testator)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if gotID != vaultID || createdAt != 1_700_000_123 {
		t.Fatalf("record mismatch: id=%x created_at=%d", gotID, createdAt)
	}
}

func TestDB_Events(t *testing.T) {
	d := openTestDB(t)

	seq1, err := d.AppendEvent(0x01, []byte("first"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	seq2, err := d.AppendEvent(0x02, []byte("second"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if seq2 <= seq1 {
		t.Fatalf("sequence not monotonic: %d then %d", seq1, seq2)
	}

	events, err := d.Events()
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != 0x01 || !bytes.Equal(events[0].Payload, []byte("first")) {
		t.Fatalf("first event mismatch: %+v", events[0])
	}
	if events[1].Kind != 0x02 || !bytes.Equal(events[1].Payload, []byte("second")) {
		t.Fatalf("second event mismatch: %+v", events[1])
	}
}

func TestLedger(t *testing.T) {
	d := openTestDB(t)
	l := d.Ledger()
	alice := fill32(0xA1)
	bob := fill32(0xB2)

	if err := l.Credit(alice, 1_000); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := l.BalanceOf(alice); got != 1_000 {
		t.Fatalf("balance=%d, want 1000", got)
	}

	if err := l.Transfer(alice, bob, 300); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if l.BalanceOf(alice) != 700 || l.BalanceOf(bob) != 300 {
		t.Fatalf("balances after transfer: alice=%d bob=%d", l.BalanceOf(alice), l.BalanceOf(bob))
	}

	// Zero amount is a no-op even from an empty account.
	if err := l.Transfer(fill32(0xEE), bob, 0); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}

	err := l.Transfer(alice, bob, 10_000)
	if err == nil {
		t.Fatalf("expected insufficient funds")
	}
	if core.CodeOf(err) != core.CUSTODY_ERR_INSUFFICIENT_FUNDS {
		t.Fatalf("code=%s, want %s", core.CodeOf(err), core.CUSTODY_ERR_INSUFFICIENT_FUNDS)
	}
	if l.BalanceOf(alice) != 700 || l.BalanceOf(bob) != 300 {
		t.Fatalf("failed transfer moved funds")
	}

	if err := l.SetRetentionFloor(alice, 500); err != nil {
		t.Fatalf("set floor: %v", err)
	}
	if got := l.MinRetainedBalance(alice); got != 500 {
		t.Fatalf("floor=%d, want 500", got)
	}
	if got := l.MinRetainedBalance(bob); got != 0 {
		t.Fatalf("unset floor=%d, want 0", got)
	}
}

// Balances survive a close and reopen of the same datadir.
func TestLedger_Persistence(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir, "sha3", "xor")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	account := fill32(0xCC)
	if err := d.Ledger().Credit(account, 42); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	d, err = Open(dir, "sha3", "xor")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if got := d.Ledger().BalanceOf(account); got != 42 {
		t.Fatalf("balance after reopen=%d, want 42", got)
	}
}

// A failing atomic unit rolls back every write it made: vault record,
// ledger movement, and event record never commit separately.
func TestAtomic_RollsBackAllWrites(t *testing.T) {
	d := openTestDB(t)
	vault := fill32(0xD1)
	beneficiary := fill32(0xD2)
	if err := d.Ledger().Credit(vault, 500); err != nil {
		t.Fatalf("credit: %v", err)
	}

	boom := errors.New("boom")
	err := d.Atomic(func(ts *TxStore) error {
		if err := ts.Ledger().Transfer(vault, beneficiary, 500); err != nil {
			return err
		}
		if err := ts.PutVault(sampleVault()); err != nil {
			return err
		}
		if _, err := ts.AppendEvent(0x01, []byte("payload")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("atomic: %v", err)
	}

	if d.Ledger().BalanceOf(vault) != 500 || d.Ledger().BalanceOf(beneficiary) != 0 {
		t.Fatalf("rolled-back transfer moved funds")
	}
	if _, ok, err := d.GetVault(sampleVault().ID); err != nil || ok {
		t.Fatalf("rolled-back vault write persisted: ok=%v err=%v", ok, err)
	}
	events, err := d.Events()
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("rolled-back event persisted")
	}
}

// Writes through the transaction-scoped view are visible after commit.
func TestAtomic_CommitsTogether(t *testing.T) {
	d := openTestDB(t)
	vault := fill32(0xE1)
	beneficiary := fill32(0xE2)
	if err := d.Ledger().Credit(vault, 500); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := d.Atomic(func(ts *TxStore) error {
		if err := ts.Ledger().Transfer(vault, beneficiary, 500); err != nil {
			return err
		}
		return ts.PutVault(sampleVault())
	})
	if err != nil {
		t.Fatalf("atomic: %v", err)
	}

	if d.Ledger().BalanceOf(beneficiary) != 500 {
		t.Fatalf("committed transfer missing")
	}
	if _, ok, err := d.GetVault(sampleVault().ID); err != nil || !ok {
		t.Fatalf("committed vault missing: ok=%v err=%v", ok, err)
	}
}
