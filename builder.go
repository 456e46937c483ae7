package dramctrl

import (
	"github.com/sarchlab/dramctrl/internal/addressmapping"
	"github.com/sarchlab/dramctrl/internal/cmdq"
	"github.com/sarchlab/dramctrl/internal/org"
)

// Builder assembles a Controller and its default collaborators with a
// fluent With... configuration surface.
type Builder struct {
	config Config

	channel      ChannelState
	commandQueue CommandQueue
	thermal      ThermalCalculator
	trace        *CommandTracer

	timingParams org.Params
	tREFI        int
	tRFC         int

	commandQueueCapacity int
}

// MakeBuilder returns a Builder pre-populated with a single-channel,
// two-rank, single-bank-group DDR3-shaped default configuration, the same
// ballpark as the teacher's own MakeBuilder default.
func MakeBuilder() Builder {
	return Builder{
		config: Config{
			Ranks:                2,
			BankGroups:           1,
			BanksPerGroup:        8,
			RequestersPerChannel: 1,
			TransQueueSize:       32,
			DistTransQueueSize:   32,
			UnifiedQueue:         false,
			DistController:       false,
			RowBufPolicy:         OpenPage,
			LinkLatency:          0,
			SrefThreshold:        1000,
			EnableSelfRefresh:    false,
			EnableHBMDualCmd:     false,
			ReadDelay:            20,
			WriteDelay:           20,
			TCK:                  0.625, // 1600 MHz DDR, ns per cycle
			RequestSizeBytes:     64,
			ActEnergyInc:         1.0,
			ReadEnergyInc:        1.0,
			WriteEnergyInc:       1.0,
			RefEnergyInc:         1.0,
			RefbEnergyInc:        1.0,
			ActStbEnergyInc:      0.1,
			PreStbEnergyInc:      0.1,
			PrePdEnergyInc:       0.1,
			SrefEnergyInc:        0.05,
			OutputPrefix:         "",
		},
		timingParams:         org.DefaultParams(),
		tREFI:                7800,
		tRFC:                 350,
		commandQueueCapacity: 8,
	}
}

// WithRanks sets the rank count.
func (b Builder) WithRanks(n int) Builder { b.config.Ranks = n; return b }

// WithBankGroups sets the bank-group count.
func (b Builder) WithBankGroups(n int) Builder { b.config.BankGroups = n; return b }

// WithBanksPerGroup sets the banks-per-group count.
func (b Builder) WithBanksPerGroup(n int) Builder { b.config.BanksPerGroup = n; return b }

// WithRequestersPerChannel sets the number of distinct requesters a
// distributed controller multiplexes.
func (b Builder) WithRequestersPerChannel(n int) Builder {
	b.config.RequestersPerChannel = n
	return b
}

// WithTransQueueSize sets the centralized-mode ingress queue capacity.
func (b Builder) WithTransQueueSize(n int) Builder { b.config.TransQueueSize = n; return b }

// WithDistTransQueueSize sets the per-requester ingress queue capacity in
// distributed mode.
func (b Builder) WithDistTransQueueSize(n int) Builder {
	b.config.DistTransQueueSize = n
	return b
}

// WithUnifiedQueue selects a single read/write queue instead of split
// read_queue/write_buffer.
func (b Builder) WithUnifiedQueue(v bool) Builder { b.config.UnifiedQueue = v; return b }

// WithDistController selects the distributed-controller topology.
func (b Builder) WithDistController(v bool) Builder { b.config.DistController = v; return b }

// WithRowBufPolicy selects open-page or close-page row buffer management.
func (b Builder) WithRowBufPolicy(p RowBufPolicy) Builder { b.config.RowBufPolicy = p; return b }

// WithLinkLatency sets the wire delay simulated between a distributed
// requester and the shared channel stage.
func (b Builder) WithLinkLatency(cycles uint64) Builder { b.config.LinkLatency = cycles; return b }

// WithSrefThreshold sets the idle-cycle threshold before a rank is offered
// self-refresh entry.
func (b Builder) WithSrefThreshold(n int) Builder { b.config.SrefThreshold = n; return b }

// WithSelfRefresh enables or disables self-refresh power management.
func (b Builder) WithSelfRefresh(v bool) Builder { b.config.EnableSelfRefresh = v; return b }

// WithHBMDualCmd enables HBM's same-cycle opposite-polarity dual command
// issue.
func (b Builder) WithHBMDualCmd(v bool) Builder { b.config.EnableHBMDualCmd = v; return b }

// WithReadDelay sets the fixed read completion latency added at issue time.
func (b Builder) WithReadDelay(cycles uint64) Builder { b.config.ReadDelay = cycles; return b }

// WithWriteDelay sets the fixed write completion latency added at issue
// time.
func (b Builder) WithWriteDelay(cycles uint64) Builder { b.config.WriteDelay = cycles; return b }

// WithTCK sets the clock period in nanoseconds, used by Statistics to
// derive bandwidth and power.
func (b Builder) WithTCK(ns float64) Builder { b.config.TCK = ns; return b }

// WithRequestSizeBytes sets the bytes moved per completed transaction.
func (b Builder) WithRequestSizeBytes(n int) Builder { b.config.RequestSizeBytes = n; return b }

// WithHMC marks this channel as an HMC pseudo-channel.
func (b Builder) WithHMC(v bool) Builder { b.config.Hmc = v; return b }

// WithOutputPrefix sets the path prefix stats/trace files are written
// under.
func (b Builder) WithOutputPrefix(prefix string) Builder { b.config.OutputPrefix = prefix; return b }

// WithCommandQueueCapacity sets the per-bank command queue depth.
func (b Builder) WithCommandQueueCapacity(n int) Builder {
	b.commandQueueCapacity = n
	return b
}

// WithTimingParams overrides the derived DRAM timing-table parameters.
func (b Builder) WithTimingParams(p org.Params) Builder { b.timingParams = p; return b }

// WithRefreshTiming overrides the refresh interval (tREFI) and refresh
// duration (tRFC), both in controller cycles.
func (b Builder) WithRefreshTiming(tREFI, tRFC int) Builder {
	b.tREFI, b.tRFC = tREFI, tRFC
	return b
}

// WithAddressMapper overrides the default bit-sliced address mapper.
func (b Builder) WithAddressMapper(m addressmapping.Mapper) Builder {
	b.config.AddressMapper = m
	return b
}

// WithChannelState overrides the default ChannelState collaborator, mainly
// for tests that inject a mock.
func (b Builder) WithChannelState(c ChannelState) Builder { b.channel = c; return b }

// WithCommandQueue overrides the default CommandQueue collaborator, mainly
// for tests that inject a mock.
func (b Builder) WithCommandQueue(q CommandQueue) Builder { b.commandQueue = q; return b }

// WithThermalCalculator attaches a thermal/power model that is notified of
// every issued command and every rank's background energy draw.
func (b Builder) WithThermalCalculator(t ThermalCalculator) Builder { b.thermal = t; return b }

// WithCommandTrace enables the per-command trace file, one line per issued
// command, written to <output_prefix>ch_<channel>cmd.trace.
func (b Builder) WithCommandTrace(channel int) Builder {
	b.trace = NewCommandTracer(channel)
	return b
}

// Build assembles the Controller, wiring default collaborators for any
// that were not explicitly overridden.
func (b Builder) Build() *Controller {
	if b.config.AddressMapper == nil {
		b.config.AddressMapper = addressmapping.MakeBuilder().
			WithNumRank(b.config.Ranks).
			WithNumBankGroup(b.config.BankGroups).
			WithNumBank(b.config.BanksPerGroup).
			Build()
	}

	if b.channel == nil {
		timing := org.BuildTiming(b.timingParams)
		b.channel = org.NewChannelImpl(
			b.config.Ranks, b.config.BankGroups, b.config.BanksPerGroup,
			timing, b.tREFI, b.tRFC,
		)
	}

	if b.commandQueue == nil {
		b.commandQueue = cmdq.NewCommandQueueImpl(
			b.channel, b.config.Ranks, b.config.BankGroups, b.config.BanksPerGroup,
			b.commandQueueCapacity,
		)
	}

	if b.thermal == nil {
		b.thermal = NoOpThermalCalculator{}
	}

	return newController(b.config, b.channel, b.commandQueue, b.thermal, b.trace)
}
