// Package signal defines the value types that flow between the controller,
// the command queue, and the channel state: transactions, commands and the
// addresses commands target.
package signal

import "github.com/rs/xid"

// Transaction is a unit of memory work accepted from a requester. It is
// mutated only by the controller that owns it and is destroyed once it is
// handed back to the requester.
type Transaction struct {
	ID xid.ID

	Addr      uint64
	IsWrite   bool
	Requester int

	StartCycle     uint64
	AddedCycle     uint64
	DistLinkStart  uint64
	ScheduleCycle  uint64
	IssueCycle     uint64
	CompleteCycle  uint64
}

// NewTransaction creates a transaction stamped with its creation cycle.
func NewTransaction(addr uint64, isWrite bool, requester int, startCycle uint64) Transaction {
	return Transaction{
		ID:         xid.New(),
		Addr:       addr,
		IsWrite:    isWrite,
		Requester:  requester,
		StartCycle: startCycle,
	}
}
