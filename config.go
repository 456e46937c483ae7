package dramctrl

import "github.com/sarchlab/dramctrl/internal/addressmapping"

// RowBufPolicy selects how the row buffer is managed after a column access.
type RowBufPolicy int

const (
	// OpenPage leaves the activated row open after a column access.
	OpenPage RowBufPolicy = iota
	// ClosePage issues an implicit precharge with the column command.
	ClosePage
)

// Config bundles the tunables a Controller needs from its driving
// simulator: topology, queue sizing, policy switches, and the energy
// constants Statistics needs to derive power figures.
type Config struct {
	Ranks         int
	BankGroups    int
	BanksPerGroup int

	RequestersPerChannel int
	TransQueueSize       int
	DistTransQueueSize   int

	UnifiedQueue    bool
	DistController  bool
	RowBufPolicy    RowBufPolicy
	LinkLatency     uint64
	SrefThreshold   int
	EnableSelfRefresh bool
	EnableHBMDualCmd  bool

	ReadDelay  uint64
	WriteDelay uint64

	TCK              float64
	RequestSizeBytes int

	ActEnergyInc    float64
	ReadEnergyInc   float64
	WriteEnergyInc  float64
	RefEnergyInc    float64
	RefbEnergyInc   float64
	ActStbEnergyInc float64
	PreStbEnergyInc float64
	PrePdEnergyInc  float64
	SrefEnergyInc   float64

	AddressMapper addressmapping.Mapper

	Hmc            bool
	OutputPrefix   string
}

// IsHMC reports whether this channel is configured as a Hybrid Memory Cube
// pseudo-channel. The Controller's scheduling does not consult it.
func (c *Config) IsHMC() bool {
	return c.Hmc
}

// NumBanks returns the number of banks per rank (bank groups × banks per
// group), the flattened index space ChannelState/CommandQueue schedule
// against.
func (c *Config) NumBanks() int {
	return c.BankGroups * c.BanksPerGroup
}

// BankIndex flattens a bankgroup/bank pair into the 0..NumBanks()-1 index
// used by per-bank read queues.
func (c *Config) BankIndex(bankgroup, bank int) int {
	return bankgroup*c.BanksPerGroup + bank
}
