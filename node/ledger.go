package node

import (
	"sync"

	"heirloom.dev/vault/core"
)

// MemoryLedger is a map-backed stand-in for the host custody ledger,
// used by tests and the CLI demo. The production gateway is the
// surrounding transactional runtime, which also provides per-vault
// call serialization.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[[32]byte]uint64
	floors   map[[32]byte]uint64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[[32]byte]uint64),
		floors:   make(map[[32]byte]uint64),
	}
}

// Credit mints amount into account, outside any transfer rules.
func (l *MemoryLedger) Credit(account [32]byte, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
}

// SetRetentionFloor sets the minimum balance account must retain after
// any outgoing transfer (the custody floor).
func (l *MemoryLedger) SetRetentionFloor(account [32]byte, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.floors[account] = amount
}

func (l *MemoryLedger) BalanceOf(account [32]byte) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

func (l *MemoryLedger) MinRetainedBalance(account [32]byte) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.floors[account]
}

func (l *MemoryLedger) Transfer(from, to [32]byte, amount uint64) error {
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return &core.VaultError{Code: core.CUSTODY_ERR_INSUFFICIENT_FUNDS, Msg: "source balance too low"}
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
