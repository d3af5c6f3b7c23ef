// Package store persists vault records, attestation handles, custody
// balances, and observable event records in a bbolt key-value file.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"heirloom.dev/vault/core"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketVaults   = []byte("vaults_by_id")
	bucketAttest   = []byte("attest_by_testator")
	bucketEvents   = []byte("events")
	bucketBalances = []byte("balances_by_account")
	bucketFloors   = []byte("floors_by_account")
)

type DB struct {
	vaultDir string
	db       *bolt.DB
	manifest *Manifest
}

// Open opens (or initializes) the vault store under datadir. The hash
// and seal algorithms are pinned in the manifest at first open: a
// store written under one derivation stack cannot silently be reopened
// under another, because wrapped secrets would become unrecoverable.
func Open(datadir, hashAlg, sealMode string) (*DB, error) {
	if datadir == "" {
		return nil, fmt.Errorf("datadir required")
	}

	vaultDir := VaultDir(datadir)
	if err := ensureDir(vaultDir); err != nil {
		return nil, err
	}
	if err := ensureDir(filepath.Join(vaultDir, "db")); err != nil {
		return nil, err
	}

	path := filepath.Join(vaultDir, "db", "kv.db")
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}

	d := &DB{vaultDir: vaultDir, db: bdb}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketVaults, bucketAttest, bucketEvents, bucketBalances, bucketFloors} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	m, err := readManifest(vaultDir)
	if err != nil {
		if os.IsNotExist(err) {
			m = &Manifest{SchemaVersion: SchemaVersionV1, HashAlg: hashAlg, SealMode: sealMode}
			if err := writeManifestAtomic(vaultDir, m); err != nil {
				_ = bdb.Close()
				return nil, err
			}
			d.manifest = m
			return d, nil
		}
		_ = bdb.Close()
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if m.SchemaVersion > SchemaVersionV1 {
		_ = bdb.Close()
		return nil, fmt.Errorf("manifest schema_version %d > supported %d", m.SchemaVersion, SchemaVersionV1)
	}
	if m.HashAlg != hashAlg {
		_ = bdb.Close()
		return nil, fmt.Errorf("store was written with hash_alg %q, configured %q", m.HashAlg, hashAlg)
	}
	if m.SealMode != sealMode {
		_ = bdb.Close()
		return nil, fmt.Errorf("store was written with seal_mode %q, configured %q", m.SealMode, sealMode)
	}
	d.manifest = m
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) VaultDir() string { return d.vaultDir }

func (d *DB) Manifest() *Manifest {
	if d == nil {
		return nil
	}
	return d.manifest
}

// TxStore is a transaction-scoped view of the store: every write made
// through it, vault records and ledger movements alike, commits in one
// bbolt transaction or not at all.
type TxStore struct {
	tx *bolt.Tx
}

// Atomic runs fn against a transaction-scoped view. Returning an error
// rolls back everything fn wrote.
func (d *DB) Atomic(fn func(ts *TxStore) error) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return fn(&TxStore{tx: tx})
	})
}

func (t *TxStore) PutVault(v *core.Vault) error { return putVaultTx(t.tx, v) }

func (t *TxStore) GetVault(id [32]byte) (*core.Vault, bool, error) { return getVaultTx(t.tx, id) }

func (t *TxStore) DeleteVault(id [32]byte) error { return deleteVaultTx(t.tx, id) }

func (t *TxStore) PutAttestationRecord(testator, vaultID [32]byte, createdAt uint64) error {
	return putAttestationRecordTx(t.tx, testator, vaultID, createdAt)
}

func (t *TxStore) AppendEvent(kind byte, payload []byte) (uint64, error) {
	return appendEventTx(t.tx, kind, payload)
}

// Ledger returns the custody gateway bound to this transaction.
func (t *TxStore) Ledger() *Ledger { return &Ledger{tx: t.tx} }

func (d *DB) PutVault(v *core.Vault) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putVaultTx(tx, v)
	})
}

func (d *DB) GetVault(id [32]byte) (*core.Vault, bool, error) {
	var (
		out *core.Vault
		ok  bool
	)
	err := d.db.View(func(tx *bolt.Tx) error {
		var err error
		out, ok, err = getVaultTx(tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, ok, nil
}

func (d *DB) DeleteVault(id [32]byte) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return deleteVaultTx(tx, id)
	})
}

// PutAttestationRecord stores the opaque per-testator attestation
// handle: vault_id(32) || created_at u64le.
func (d *DB) PutAttestationRecord(testator, vaultID [32]byte, createdAt uint64) error {
	return d.db.Update(func(tx *bolt.Tx) error {
		return putAttestationRecordTx(tx, testator, vaultID, createdAt)
	})
}

func (d *DB) GetAttestationRecord(testator [32]byte) (vaultID [32]byte, createdAt uint64, ok bool, err error) {
	err = d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAttest).Get(testator[:])
		if v == nil {
			return nil
		}
		if len(v) != 40 {
			return fmt.Errorf("attestation record: expected 40 bytes, got %d", len(v))
		}
		copy(vaultID[:], v[0:32])
		createdAt = binary.LittleEndian.Uint64(v[32:40])
		ok = true
		return nil
	})
	return vaultID, createdAt, ok, err
}

// EventRecord is one observable record appended at execute or identity
// verification time, keyed by a monotonic sequence number.
type EventRecord struct {
	Seq     uint64
	Kind    byte
	Payload []byte
}

func (d *DB) AppendEvent(kind byte, payload []byte) (uint64, error) {
	var seq uint64
	err := d.db.Update(func(tx *bolt.Tx) error {
		n, err := appendEventTx(tx, kind, payload)
		if err != nil {
			return err
		}
		seq = n
		return nil
	})
	return seq, err
}

func (d *DB) Events() ([]EventRecord, error) {
	var out []EventRecord
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			if len(k) != 8 || len(v) < 1 {
				return fmt.Errorf("event record: malformed entry")
			}
			out = append(out, EventRecord{
				Seq:     binary.BigEndian.Uint64(k),
				Kind:    v[0],
				Payload: append([]byte(nil), v[1:]...),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func putVaultTx(tx *bolt.Tx, v *core.Vault) error {
	val, err := encodeVault(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketVaults).Put(v.ID[:], val)
}

func getVaultTx(tx *bolt.Tx, id [32]byte) (*core.Vault, bool, error) {
	v := tx.Bucket(bucketVaults).Get(id[:])
	if v == nil {
		return nil, false, nil
	}
	decoded, err := decodeVault(v)
	if err != nil {
		return nil, false, err
	}
	return decoded, true, nil
}

func deleteVaultTx(tx *bolt.Tx, id [32]byte) error {
	return tx.Bucket(bucketVaults).Delete(id[:])
}

func putAttestationRecordTx(tx *bolt.Tx, testator, vaultID [32]byte, createdAt uint64) error {
	rec := make([]byte, 40)
	copy(rec[0:32], vaultID[:])
	binary.LittleEndian.PutUint64(rec[32:40], createdAt)
	return tx.Bucket(bucketAttest).Put(testator[:], rec)
}

func appendEventTx(tx *bolt.Tx, kind byte, payload []byte) (uint64, error) {
	b := tx.Bucket(bucketEvents)
	n, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], n)
	val := make([]byte, 1+len(payload))
	val[0] = kind
	copy(val[1:], payload)
	return n, b.Put(key[:], val)
}
