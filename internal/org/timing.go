package org

import "github.com/sarchlab/dramctrl/internal/signal"

// TimeTableEntry records that after a command of a given kind completes on
// a bank, a command of NextCmdKind may not start on some scope of banks
// (same bank, other banks in the group, same rank, other ranks) until
// MinCycleInBetween cycles have passed.
type TimeTableEntry struct {
	NextCmdKind       signal.CommandKind
	MinCycleInBetween int
}

// TimeTable maps a just-issued command kind to the list of constraints it
// imposes on future commands.
type TimeTable map[signal.CommandKind][]TimeTableEntry

// MakeTimeTable returns an empty TimeTable ready to be populated.
func MakeTimeTable() TimeTable {
	return make(TimeTable)
}

// Timing groups the four scopes a command's timing constraints can target,
// mirroring the akita DRAM model's org.Timing layout.
type Timing struct {
	SameBank              TimeTable
	OtherBanksInBankGroup TimeTable
	SameRank              TimeTable
	OtherRanks            TimeTable
}

// Params holds the subset of DRAM timing parameters (in controller clock
// cycles) this port needs to derive a default Timing. Precise
// parameter-to-timing-table derivation is out of this spec's scope (spec.md
// §1 names it an external collaborator concern); this is a reasonable
// default good enough to exercise the scheduler end to end.
type Params struct {
	TRCD int // activate -> read/write
	TRAS int // activate -> precharge
	TRP  int // precharge -> activate
	TRC  int // activate -> activate, same bank
	TRRD int // activate -> activate, other bank
	TWR  int // write -> precharge
	TRTP int // read -> precharge
	TCCD int // column -> column
	TWTR int // write -> read
}

// DefaultParams returns timing numbers in the same ballpark as the teacher's
// DDR3 defaults (builder.go's MakeBuilder), scaled down to keep unit tests
// fast.
func DefaultParams() Params {
	return Params{
		TRCD: 11,
		TRAS: 28,
		TRP:  11,
		TRC:  39,
		TRRD: 5,
		TWR:  12,
		TRTP: 6,
		TCCD: 4,
		TWTR: 6,
	}
}

// BuildTiming derives a Timing table from Params. Only the constraints the
// scheduler actually exercises (activate/read/write/precharge sequencing)
// are populated; refresh and self-refresh sequencing is handled directly by
// ChannelImpl since it is rank-wide rather than bank-scoped.
func BuildTiming(p Params) Timing {
	t := Timing{
		SameBank:              MakeTimeTable(),
		OtherBanksInBankGroup: MakeTimeTable(),
		SameRank:              MakeTimeTable(),
		OtherRanks:            MakeTimeTable(),
	}

	t.SameBank[signal.CommandActivate] = []TimeTableEntry{
		{signal.CommandActivate, p.TRC},
		{signal.CommandRead, p.TRCD},
		{signal.CommandWrite, p.TRCD},
		{signal.CommandReadPrecharge, p.TRCD},
		{signal.CommandWritePrecharge, p.TRCD},
		{signal.CommandPrecharge, p.TRAS},
	}
	t.OtherBanksInBankGroup[signal.CommandActivate] = []TimeTableEntry{
		{signal.CommandActivate, p.TRRD},
	}
	t.SameRank[signal.CommandActivate] = []TimeTableEntry{
		{signal.CommandActivate, p.TRRD},
	}

	t.SameBank[signal.CommandRead] = []TimeTableEntry{
		{signal.CommandRead, p.TCCD},
		{signal.CommandWrite, p.TCCD},
		{signal.CommandPrecharge, p.TRTP},
	}
	t.SameBank[signal.CommandWrite] = []TimeTableEntry{
		{signal.CommandWrite, p.TCCD},
		{signal.CommandRead, p.TWTR},
		{signal.CommandPrecharge, p.TWR},
	}

	t.SameBank[signal.CommandReadPrecharge] = []TimeTableEntry{
		{signal.CommandActivate, p.TRTP + p.TRP},
	}
	t.SameBank[signal.CommandWritePrecharge] = []TimeTableEntry{
		{signal.CommandActivate, p.TWR + p.TRP},
	}
	t.SameBank[signal.CommandPrecharge] = []TimeTableEntry{
		{signal.CommandActivate, p.TRP},
	}

	return t
}
