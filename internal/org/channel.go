package org

import "github.com/sarchlab/dramctrl/internal/signal"

// ChannelState is the collaborator spec.md §6 calls "ChannelState": it owns
// the per-bank/per-rank DRAM timing FSMs, refresh scheduling, and
// self-refresh power state for one channel.
type ChannelState interface {
	// IsRefreshWaiting reports whether some rank has a refresh due.
	IsRefreshWaiting() bool
	// IsRankSelfRefreshing reports whether rank is currently in
	// self-refresh.
	IsRankSelfRefreshing(rank int) bool
	// IsAllBankIdleInRank reports whether every bank in rank is precharged.
	IsAllBankIdleInRank(rank int) bool
	// RankIdleCyclesSlice exposes the mutable per-rank idle-cycle counters
	// the controller increments/resets directly, matching the source
	// model's public rank_idle_cycles field.
	RankIdleCyclesSlice() []int
	// GetReadyCommand returns the command that should actually be issued
	// towards satisfying cmd: cmd itself once timing allows it, an implicit
	// ACTIVATE/PRECHARGE if the bank/rank needs one first, or nil if
	// nothing can be issued yet.
	GetReadyCommand(cmd signal.Command, clk uint64) *signal.Command
	// UpdateTimingAndStates applies the effect of having just issued cmd.
	UpdateTimingAndStates(cmd signal.Command, clk uint64)
	// RowHitCount returns the bank's row-hit counter as of the last
	// UpdateTimingAndStates call (i.e. before the *next* one runs).
	RowHitCount(rank, bankgroup, bank int) int
	// MarkRefreshDue advances each rank's refresh clock, flagging any rank
	// whose tREFI interval has elapsed as refresh-pending.
	MarkRefreshDue(clk uint64)
	// DueRefreshRank returns the index of a rank whose refresh interval has
	// elapsed and that is not currently self-refreshing, or -1 if none is
	// due.
	DueRefreshRank() int
}

// ChannelImpl is the default ChannelState.
type ChannelImpl struct {
	Banks  [][][]*Bank // [rank][bankgroup][bank]
	Timing Timing

	RankIdleCycles []int

	tREFI int
	tRFC  int

	nextRefreshDue []uint64
	refreshPending []bool
	selfRefresh    []bool
}

// NewChannelImpl builds a channel with the given dimensions and timing.
func NewChannelImpl(ranks, bankgroups, banks int, timing Timing, tREFI, tRFC int) *ChannelImpl {
	c := &ChannelImpl{
		Banks:           make([][][]*Bank, ranks),
		Timing:          timing,
		RankIdleCycles:  make([]int, ranks),
		tREFI:           tREFI,
		tRFC:            tRFC,
		nextRefreshDue:  make([]uint64, ranks),
		refreshPending:  make([]bool, ranks),
		selfRefresh:     make([]bool, ranks),
	}

	for r := 0; r < ranks; r++ {
		c.Banks[r] = make([][]*Bank, bankgroups)
		c.nextRefreshDue[r] = uint64(tREFI)

		for g := 0; g < bankgroups; g++ {
			c.Banks[r][g] = make([]*Bank, banks)
			for k := 0; k < banks; k++ {
				c.Banks[r][g][k] = NewBank()
			}
		}
	}

	return c
}

func (c *ChannelImpl) bank(a signal.Address) *Bank {
	return c.Banks[a.Rank][a.BankGroup][a.Bank]
}

func (c *ChannelImpl) IsRefreshWaiting() bool {
	return c.dueRank() >= 0
}

// DueRefreshRank returns the index of a rank whose refresh interval elapsed
// and that is not self-refreshing, or -1.
func (c *ChannelImpl) DueRefreshRank() int {
	return c.dueRank()
}

func (c *ChannelImpl) dueRank() int {
	for r := range c.nextRefreshDue {
		if c.selfRefresh[r] {
			continue
		}
		if c.refreshPending[r] {
			return r
		}
	}

	return -1
}

// MarkRefreshDue is called once per cycle, before scheduling, to advance
// the per-rank refresh clock.
func (c *ChannelImpl) MarkRefreshDue(clk uint64) {
	for r := range c.nextRefreshDue {
		if !c.refreshPending[r] && clk >= c.nextRefreshDue[r] {
			c.refreshPending[r] = true
		}
	}
}

func (c *ChannelImpl) IsRankSelfRefreshing(rank int) bool {
	return c.selfRefresh[rank]
}

func (c *ChannelImpl) IsAllBankIdleInRank(rank int) bool {
	for _, group := range c.Banks[rank] {
		for _, b := range group {
			if b.Row != nil {
				return false
			}
		}
	}

	return true
}

func (c *ChannelImpl) RankIdleCyclesSlice() []int {
	return c.RankIdleCycles
}

func (c *ChannelImpl) RowHitCount(rank, bankgroup, bank int) int {
	return c.Banks[rank][bankgroup][bank].RowHits
}

// GetReadyCommand implements automatic ACTIVATE-before-access and
// PRECHARGE-before-refresh insertion, the way a real command queue's
// row-buffer-aware scheduler behaves.
func (c *ChannelImpl) GetReadyCommand(cmd signal.Command, clk uint64) *signal.Command {
	switch cmd.Kind {
	case signal.CommandRead, signal.CommandWrite,
		signal.CommandReadPrecharge, signal.CommandWritePrecharge:
		return c.readyAccessCommand(cmd, clk)
	case signal.CommandRefresh:
		return c.readyRefreshCommand(cmd, clk)
	case signal.CommandSelfRefreshEnter:
		return c.readySelfRefreshEnter(cmd, clk)
	case signal.CommandSelfRefreshExit:
		return c.readySelfRefreshExit(cmd, clk)
	default:
		return nil
	}
}

func (c *ChannelImpl) readyAccessCommand(cmd signal.Command, clk uint64) *signal.Command {
	b := c.bank(cmd.Addr)

	if !b.rowOpen(cmd.Addr.Row) {
		if !b.readyFor(signal.CommandActivate, clk) {
			return nil
		}

		act := signal.Command{
			Kind:    signal.CommandActivate,
			Addr:    cmd.Addr,
			HexAddr: cmd.HexAddr,
		}

		return &act
	}

	if !b.readyFor(cmd.Kind, clk) {
		return nil
	}

	out := cmd

	return &out
}

func (c *ChannelImpl) readyRefreshCommand(cmd signal.Command, clk uint64) *signal.Command {
	rank := cmd.Addr.Rank

	for g, group := range c.Banks[rank] {
		for k, b := range group {
			if b.Row == nil {
				continue
			}

			if !b.readyFor(signal.CommandPrecharge, clk) {
				return nil
			}

			return &signal.Command{
				Kind: signal.CommandPrecharge,
				Addr: signal.Address{Rank: rank, BankGroup: g, Bank: k},
			}
		}
	}

	out := cmd

	return &out
}

func (c *ChannelImpl) readySelfRefreshEnter(cmd signal.Command, clk uint64) *signal.Command {
	if !c.IsAllBankIdleInRank(cmd.Addr.Rank) {
		return nil
	}

	out := cmd

	return &out
}

func (c *ChannelImpl) readySelfRefreshExit(cmd signal.Command, _ uint64) *signal.Command {
	out := cmd

	return &out
}

// UpdateTimingAndStates applies the effect of cmd having just issued: bank
// row-buffer transitions, per-scope timing propagation, and refresh/
// self-refresh bookkeeping.
func (c *ChannelImpl) UpdateTimingAndStates(cmd signal.Command, clk uint64) {
	switch cmd.Kind {
	case signal.CommandActivate:
		c.applyActivate(cmd, clk)
	case signal.CommandRead, signal.CommandWrite:
		c.applyColumnAccess(cmd, clk, false)
	case signal.CommandReadPrecharge, signal.CommandWritePrecharge:
		c.applyColumnAccess(cmd, clk, true)
	case signal.CommandPrecharge:
		c.applyPrecharge(cmd, clk)
	case signal.CommandRefresh, signal.CommandRefreshBank:
		c.applyRefresh(cmd, clk)
	case signal.CommandSelfRefreshEnter:
		c.selfRefresh[cmd.Addr.Rank] = true
	case signal.CommandSelfRefreshExit:
		c.selfRefresh[cmd.Addr.Rank] = false
	}
}

func (c *ChannelImpl) applyActivate(cmd signal.Command, clk uint64) {
	b := c.bank(cmd.Addr)
	row := cmd.Addr.Row
	b.Row = &row
	b.RowHits = 0

	c.propagate(cmd, clk, c.Timing.SameBank[signal.CommandActivate], sameBank)
	c.propagate(cmd, clk, c.Timing.OtherBanksInBankGroup[signal.CommandActivate], otherBanksInGroup)
	c.propagate(cmd, clk, c.Timing.SameRank[signal.CommandActivate], sameRankOtherGroups)
}

func (c *ChannelImpl) applyColumnAccess(cmd signal.Command, clk uint64, precharges bool) {
	b := c.bank(cmd.Addr)
	b.RowHits++

	c.propagate(cmd, clk, c.Timing.SameBank[cmd.Kind], sameBank)

	if precharges {
		b.Row = nil
	}
}

func (c *ChannelImpl) applyPrecharge(cmd signal.Command, clk uint64) {
	b := c.bank(cmd.Addr)
	b.Row = nil

	c.propagate(cmd, clk, c.Timing.SameBank[signal.CommandPrecharge], sameBank)
}

func (c *ChannelImpl) applyRefresh(cmd signal.Command, clk uint64) {
	rank := cmd.Addr.Rank
	c.refreshPending[rank] = false
	c.nextRefreshDue[rank] = clk + uint64(c.tREFI)

	for _, group := range c.Banks[rank] {
		for _, b := range group {
			b.setReadyAfter(signal.CommandActivate, clk, c.tRFC)
		}
	}
}

type propagationScope int

const (
	sameBank propagationScope = iota
	otherBanksInGroup
	sameRankOtherGroups
)

// propagate applies a set of timing-table entries to the banks the scope
// selects relative to cmd's target bank.
func (c *ChannelImpl) propagate(cmd signal.Command, clk uint64, entries []TimeTableEntry, scope propagationScope) {
	if len(entries) == 0 {
		return
	}

	rank, group, bank := cmd.Addr.Rank, cmd.Addr.BankGroup, cmd.Addr.Bank

	for g, groupBanks := range c.Banks[rank] {
		for k, b := range groupBanks {
			switch scope {
			case sameBank:
				if g != group || k != bank {
					continue
				}
			case otherBanksInGroup:
				if g != group || k == bank {
					continue
				}
			case sameRankOtherGroups:
				if g == group {
					continue
				}
			}

			for _, e := range entries {
				b.setReadyAfter(e.NextCmdKind, clk, e.MinCycleInBetween)
			}
		}
	}
}
