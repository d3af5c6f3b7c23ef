package core

// CustodyGateway is the host-ledger interface the state machine uses
// to move escrowed assets. Transfers are all-or-nothing with the state
// mutation that triggered them: a failed transfer must leave the vault
// record untouched.
type CustodyGateway interface {
	Transfer(from, to [32]byte, amount uint64) error
	BalanceOf(account [32]byte) uint64
	MinRetainedBalance(account [32]byte) uint64
}

// Clock supplies host time in unix seconds, monotonic non-decreasing.
type Clock interface {
	Now() uint64
}
