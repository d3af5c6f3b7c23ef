package store

import (
	"encoding/binary"

	"heirloom.dev/vault/core"

	bolt "go.etcd.io/bbolt"
)

// Ledger is a bbolt-backed custody gateway for single-node operation:
// balances and retention floors live in the same database file as the
// vault records. A Ledger obtained from TxStore.Ledger operates inside
// that transaction, so ledger movements and vault writes commit
// together; a Ledger obtained from DB.Ledger opens its own transaction
// per call. Hosted deployments replace this with the runtime's own
// ledger.
type Ledger struct {
	db *DB
	tx *bolt.Tx
}

func (d *DB) Ledger() *Ledger { return &Ledger{db: d} }

func (l *Ledger) update(fn func(tx *bolt.Tx) error) error {
	if l.tx != nil {
		return fn(l.tx)
	}
	return l.db.db.Update(fn)
}

func (l *Ledger) view(fn func(tx *bolt.Tx) error) error {
	if l.tx != nil {
		return fn(l.tx)
	}
	return l.db.db.View(fn)
}

// Credit mints amount into account, outside any transfer rules.
func (l *Ledger) Credit(account [32]byte, amount uint64) error {
	return l.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		return putU64(b, account, getU64(b, account)+amount)
	})
}

func (l *Ledger) SetRetentionFloor(account [32]byte, amount uint64) error {
	return l.update(func(tx *bolt.Tx) error {
		return putU64(tx.Bucket(bucketFloors), account, amount)
	})
}

func (l *Ledger) BalanceOf(account [32]byte) uint64 {
	var out uint64
	_ = l.view(func(tx *bolt.Tx) error {
		out = getU64(tx.Bucket(bucketBalances), account)
		return nil
	})
	return out
}

func (l *Ledger) MinRetainedBalance(account [32]byte) uint64 {
	var out uint64
	_ = l.view(func(tx *bolt.Tx) error {
		out = getU64(tx.Bucket(bucketFloors), account)
		return nil
	})
	return out
}

func (l *Ledger) Transfer(from, to [32]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return l.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBalances)
		src := getU64(b, from)
		if src < amount {
			return &core.VaultError{Code: core.CUSTODY_ERR_INSUFFICIENT_FUNDS, Msg: "source balance too low"}
		}
		if err := putU64(b, from, src-amount); err != nil {
			return err
		}
		return putU64(b, to, getU64(b, to)+amount)
	})
}

func getU64(b *bolt.Bucket, account [32]byte) uint64 {
	v := b.Get(account[:])
	if len(v) != 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func putU64(b *bolt.Bucket, account [32]byte, value uint64) error {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], value)
	return b.Put(account[:], tmp[:])
}
