package org

import "github.com/sarchlab/dramctrl/internal/signal"

// Bank tracks the row-buffer state and per-command-kind readiness of a
// single DRAM bank.
type Bank struct {
	// Row is nil when the bank is precharged (no open row), and points at
	// the open row number otherwise.
	Row *int

	// ReadyAt maps a command kind to the earliest clock cycle at which the
	// bank may accept a command of that kind.
	ReadyAt map[signal.CommandKind]uint64

	// RowHits counts consecutive column accesses that hit the currently
	// open row. It resets to zero on every ACTIVATE.
	RowHits int
}

// NewBank creates a precharged bank with no outstanding timing
// restrictions.
func NewBank() *Bank {
	return &Bank{ReadyAt: make(map[signal.CommandKind]uint64)}
}

// readyFor reports whether the bank can accept a command of the given kind
// at clk.
func (b *Bank) readyFor(kind signal.CommandKind, clk uint64) bool {
	return clk >= b.ReadyAt[kind]
}

// rowOpen reports whether the bank's currently open row matches row.
func (b *Bank) rowOpen(row int) bool {
	return b.Row != nil && *b.Row == row
}

// setReadyAfter records that a command of kind may not be accepted again
// until minCycles have elapsed from clk.
func (b *Bank) setReadyAfter(kind signal.CommandKind, clk uint64, minCycles int) {
	at := clk + uint64(minCycles)
	if at > b.ReadyAt[kind] {
		b.ReadyAt[kind] = at
	}
}
