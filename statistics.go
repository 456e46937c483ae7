package dramctrl

import (
	"fmt"
	"io"
	"strings"
)

// stat is the common surface every stat variant exposes so Statistics can
// render them through one table/CSV writer regardless of kind.
type stat interface {
	statName() string
	statDesc() string
	epochValue() float64
	cumulativeValue() float64
	updateEpoch()
}

// CounterStat is a monotonically increasing integer count (commands
// issued, transactions completed, cycles spent in a power state).
type CounterStat struct {
	Name, Desc string

	cumulative uint64
	epochBase  uint64
}

// NewCounterStat creates a zeroed counter.
func NewCounterStat(name, desc string) *CounterStat {
	return &CounterStat{Name: name, Desc: desc}
}

// Inc increments the counter by one.
func (s *CounterStat) Inc() { s.cumulative++ }

// IncBy increments the counter by n.
func (s *CounterStat) IncBy(n uint64) { s.cumulative += n }

// Value returns the cumulative count.
func (s *CounterStat) Value() uint64 { return s.cumulative }

func (s *CounterStat) statName() string        { return s.Name }
func (s *CounterStat) statDesc() string         { return s.Desc }
func (s *CounterStat) epochValue() float64      { return float64(s.cumulative - s.epochBase) }
func (s *CounterStat) cumulativeValue() float64 { return float64(s.cumulative) }
func (s *CounterStat) updateEpoch()             { s.epochBase = s.cumulative }

// DoubleStat is a monotonically increasing floating point accumulator,
// used for latency sums and other quantities a counter can't represent.
type DoubleStat struct {
	Name, Desc string

	cumulative float64
	epochBase  float64
}

// NewDoubleStat creates a zeroed accumulator.
func NewDoubleStat(name, desc string) *DoubleStat {
	return &DoubleStat{Name: name, Desc: desc}
}

// Add accumulates v.
func (s *DoubleStat) Add(v float64) { s.cumulative += v }

// Value returns the cumulative sum.
func (s *DoubleStat) Value() float64 { return s.cumulative }

func (s *DoubleStat) statName() string        { return s.Name }
func (s *DoubleStat) statDesc() string         { return s.Desc }
func (s *DoubleStat) epochValue() float64      { return s.cumulative - s.epochBase }
func (s *DoubleStat) cumulativeValue() float64 { return s.cumulative }
func (s *DoubleStat) updateEpoch()             { s.epochBase = s.cumulative }

// DoubleComputeStat is a derived stat (energy, power, bandwidth, queue
// occupancy) whose epoch and cumulative values are set directly by
// PreEpochCompute rather than tracked incrementally, since the derivation
// formula itself differs between an epoch window and the whole run.
type DoubleComputeStat struct {
	Name, Desc string

	epoch      float64
	cumulative float64
}

// NewDoubleComputeStat creates a zeroed derived stat.
func NewDoubleComputeStat(name, desc string) *DoubleComputeStat {
	return &DoubleComputeStat{Name: name, Desc: desc}
}

// Set records this epoch's and the whole run's current derived value.
func (s *DoubleComputeStat) Set(epoch, cumulative float64) {
	s.epoch, s.cumulative = epoch, cumulative
}

func (s *DoubleComputeStat) statName() string        { return s.Name }
func (s *DoubleComputeStat) statDesc() string         { return s.Desc }
func (s *DoubleComputeStat) epochValue() float64      { return s.epoch }
func (s *DoubleComputeStat) cumulativeValue() float64 { return s.cumulative }
func (s *DoubleComputeStat) updateEpoch()             {}

// HistogramStat buckets values into num_bins buckets: bucket 0 catches
// everything below Start, bucket NumBins-1 catches everything at or above
// End, and the NumBins-2 interior buckets evenly divide [Start, End).
type HistogramStat struct {
	Name, Desc string
	Start, End float64
	NumBins    int

	cumulative []uint64
	epochBase  []uint64
}

// NewHistogramStat creates an empty histogram with the given bucket
// layout.
func NewHistogramStat(name, desc string, start, end float64, numBins int) *HistogramStat {
	return &HistogramStat{
		Name: name, Desc: desc, Start: start, End: end, NumBins: numBins,
		cumulative: make([]uint64, numBins),
		epochBase:  make([]uint64, numBins),
	}
}

// AddValue files v into its bucket.
func (h *HistogramStat) AddValue(v float64) {
	h.cumulative[h.bucketIndex(v)]++
}

func (h *HistogramStat) bucketIndex(v float64) int {
	if v < h.Start {
		return 0
	}

	if v >= h.End {
		return h.NumBins - 1
	}

	binWidth := (h.End - h.Start) / float64(h.NumBins-2)
	idx := 1 + int((v-h.Start)/binWidth)

	if idx >= h.NumBins-1 {
		idx = h.NumBins - 2
	}

	return idx
}

func (h *HistogramStat) statName() string   { return h.Name }
func (h *HistogramStat) statDesc() string    { return h.Desc }
func (h *HistogramStat) updateEpoch()        { copy(h.epochBase, h.cumulative) }

// epochValue reports the epoch's total sample count, the one scalar
// summary that fits alongside the other stat kinds in the table/CSV
// output; the per-bucket counts are not part of that output.
func (h *HistogramStat) epochValue() float64 {
	var total uint64
	for i := range h.cumulative {
		total += h.cumulative[i] - h.epochBase[i]
	}

	return float64(total)
}

func (h *HistogramStat) cumulativeValue() float64 {
	var total uint64
	for _, c := range h.cumulative {
		total += c
	}

	return float64(total)
}

// Mean returns the cumulative sample mean, treating each interior bucket's
// representative value as its midpoint. Samples in the under/over
// catch-all buckets are excluded, since they have no representable value.
func (h *HistogramStat) Mean() float64 {
	binWidth := (h.End - h.Start) / float64(h.NumBins-2)

	var sum float64

	var count uint64

	for i := 1; i < h.NumBins-1; i++ {
		mid := h.Start + (float64(i-1)+0.5)*binWidth
		sum += mid * float64(h.cumulative[i])
		count += h.cumulative[i]
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// Statistics accumulates every per-channel counter, derived stat, and
// latency histogram a Controller reports, and renders them as a
// human-readable table or as CSV.
type Statistics struct {
	Channel int

	NumReadsDone    *CounterStat
	NumWritesDone   *CounterStat
	NumTransAccepted *CounterStat
	HbmDualCmds     *CounterStat
	NumRowHits      *CounterStat
	NumReadRowHits  *CounterStat
	NumWriteRowHits *CounterStat
	NumWriteBufHits *CounterStat
	NumWrDependency *CounterStat
	NumOndemandPres *CounterStat
	HmcReqsDone     *CounterStat

	NumActCmds   *CounterStat
	NumReadCmds  *CounterStat
	NumWriteCmds *CounterStat
	NumRefCmds   *CounterStat
	NumRefbCmds  *CounterStat

	SrefCycles        *CounterStat
	AllBankIdleCycles *CounterStat
	RankActiveCycles  *CounterStat
	EpochCycles       *CounterStat

	ReadLatency         *HistogramStat
	TotalReadLatency    *HistogramStat
	WriteLatency        *HistogramStat
	TotalWriteLatency   *HistogramStat
	InterarrivalLatency *HistogramStat
	StallLatency        *HistogramStat
	CommandQueuingLatency *HistogramStat
	ReadQueuingLatency    *HistogramStat
	WriteQueuingLatency   *HistogramStat

	readLatencySum     *DoubleStat
	totalReadLatencySum *DoubleStat
	writeLatencySum    *DoubleStat
	totalWriteLatencySum *DoubleStat
	interarrivalSum    *DoubleStat
	queueUsageSum      *DoubleStat

	ActEnergy      *DoubleComputeStat
	ReadEnergy     *DoubleComputeStat
	WriteEnergy    *DoubleComputeStat
	RefEnergy      *DoubleComputeStat
	RefbEnergy     *DoubleComputeStat
	ActStbEnergy   *DoubleComputeStat
	PreStbEnergy   *DoubleComputeStat
	SrefEnergy     *DoubleComputeStat
	TotalEnergy    *DoubleComputeStat
	AveragePower   *DoubleComputeStat
	AverageBandwidth *DoubleComputeStat
	AverageLatency   *DoubleComputeStat
	AverageInterarrival *DoubleComputeStat
	QueueUsageStat      *DoubleComputeStat

	counters   []*CounterStat
	histograms []*HistogramStat
	computed   []*DoubleComputeStat
}

// NewStatistics creates a zeroed Statistics collaborator for one channel.
func NewStatistics(channel int) *Statistics {
	s := &Statistics{Channel: channel}

	s.NumReadsDone = s.registerCounter("num_reads_done", "Number of read requests completed")
	s.NumWritesDone = s.registerCounter("num_writes_done", "Number of write requests completed")
	s.NumTransAccepted = s.registerCounter("num_trans_accepted", "Number of transactions accepted from requesters")
	s.HbmDualCmds = s.registerCounter("hbm_dual_cmds", "Number of cycles a dual HBM command issued")
	s.NumRowHits = s.registerCounter("num_row_hits", "Number of commands that hit an already open row")
	s.NumReadRowHits = s.registerCounter("num_read_row_hits", "Number of reads that hit an already open row")
	s.NumWriteRowHits = s.registerCounter("num_write_row_hits", "Number of writes that hit an already open row")
	s.NumWriteBufHits = s.registerCounter("num_write_buf_hits", "Number of reads served by write forwarding")
	s.NumWrDependency = s.registerCounter("num_wr_dependency", "Number of write-drain aborts due to a pending read")
	s.NumOndemandPres = s.registerCounter("num_ondemand_pres", "Number of on-demand precharges (HMC only, unused)")
	s.HmcReqsDone = s.registerCounter("hmc_reqs_done", "Number of HMC requests completed (HMC only, unused)")

	s.NumActCmds = s.registerCounter("num_act_cmds", "Number of ACTIVATE commands issued")
	s.NumReadCmds = s.registerCounter("num_read_cmds", "Number of READ/READ_PRECHARGE commands issued")
	s.NumWriteCmds = s.registerCounter("num_write_cmds", "Number of WRITE/WRITE_PRECHARGE commands issued")
	s.NumRefCmds = s.registerCounter("num_ref_cmds", "Number of REFRESH commands issued")
	s.NumRefbCmds = s.registerCounter("num_refb_cmds", "Number of REFRESH_BANK commands issued")

	s.SrefCycles = s.registerCounter("sref_cycles", "Cycles spent in self-refresh, summed over ranks")
	s.AllBankIdleCycles = s.registerCounter("all_bank_idle_cycles", "Cycles with all banks idle, summed over ranks")
	s.RankActiveCycles = s.registerCounter("rank_active_cycles", "Cycles with at least one bank active, summed over ranks")
	s.EpochCycles = s.registerCounter("epoch_cycles", "Cycles elapsed")

	s.ReadLatency = s.registerHistogram("read_latency", "Read latency from acceptance to completion", 0, 200, 10)
	s.TotalReadLatency = s.registerHistogram("total_read_latency", "Read latency from creation to completion", 0, 400, 10)
	s.WriteLatency = s.registerHistogram("write_latency", "Write latency from acceptance to command completion", 0, 200, 10)
	s.TotalWriteLatency = s.registerHistogram("total_write_latency", "Write latency from creation to command completion", 0, 400, 10)
	s.InterarrivalLatency = s.registerHistogram("interarrival_latency", "Cycles between consecutive accepted transactions", 0, 100, 10)
	s.StallLatency = s.registerHistogram("stall_latency", "Cycles a transaction waited before being accepted", 0, 100, 10)
	s.CommandQueuingLatency = s.registerHistogram("command_queuing_latency", "Cycles from acceptance to command-queue admission", 0, 100, 10)
	s.ReadQueuingLatency = s.registerHistogram("read_queuing_latency", "command_queuing_latency, reads only", 0, 100, 10)
	s.WriteQueuingLatency = s.registerHistogram("write_queuing_latency", "command_queuing_latency, writes only", 0, 100, 10)

	s.readLatencySum = NewDoubleStat("", "")
	s.totalReadLatencySum = NewDoubleStat("", "")
	s.writeLatencySum = NewDoubleStat("", "")
	s.totalWriteLatencySum = NewDoubleStat("", "")
	s.interarrivalSum = NewDoubleStat("", "")
	s.queueUsageSum = NewDoubleStat("", "")

	s.ActEnergy = s.registerComputed("act_energy", "Energy spent on ACTIVATE commands")
	s.ReadEnergy = s.registerComputed("read_energy", "Energy spent on READ commands")
	s.WriteEnergy = s.registerComputed("write_energy", "Energy spent on WRITE commands")
	s.RefEnergy = s.registerComputed("ref_energy", "Energy spent on REFRESH commands")
	s.RefbEnergy = s.registerComputed("refb_energy", "Energy spent on REFRESH_BANK commands")
	s.ActStbEnergy = s.registerComputed("act_stb_energy", "Active standby energy")
	s.PreStbEnergy = s.registerComputed("pre_stb_energy", "Precharge standby energy")
	s.SrefEnergy = s.registerComputed("sref_energy", "Self-refresh energy")
	s.TotalEnergy = s.registerComputed("total_energy", "Sum of every energy component")
	s.AveragePower = s.registerComputed("average_power", "Total energy divided by elapsed time")
	s.AverageBandwidth = s.registerComputed("average_bandwidth", "Bytes transferred per nanosecond")
	s.AverageLatency = s.registerComputed("average_latency", "Mean read latency, acceptance to completion")
	s.AverageInterarrival = s.registerComputed("average_interarrival", "Mean cycles between accepted transactions")
	s.QueueUsageStat = s.registerComputed("queue_usage", "Mean command-queue occupancy")

	return s
}

func (s *Statistics) registerCounter(name, desc string) *CounterStat {
	c := NewCounterStat(name, desc)
	s.counters = append(s.counters, c)

	return c
}

func (s *Statistics) registerHistogram(name, desc string, start, end float64, numBins int) *HistogramStat {
	h := NewHistogramStat(name, desc, start, end, numBins)
	s.histograms = append(s.histograms, h)

	return h
}

func (s *Statistics) registerComputed(name, desc string) *DoubleComputeStat {
	c := NewDoubleComputeStat(name, desc)
	s.computed = append(s.computed, c)

	return c
}

// RecordReadComplete records a completed read's two latency samples.
func (s *Statistics) RecordReadComplete(latency, totalLatency uint64) {
	s.NumReadsDone.Inc()
	s.ReadLatency.AddValue(float64(latency))
	s.TotalReadLatency.AddValue(float64(totalLatency))
	s.readLatencySum.Add(float64(latency))
	s.totalReadLatencySum.Add(float64(totalLatency))
}

// RecordWriteIssueLatency records a write's latency samples at the point
// its command issues, the way the source model stamps write_latency before
// the transaction is ever dequeued from the return queue (its caller-facing
// completion was already recorded by AddTransaction/QueueIn).
func (s *Statistics) RecordWriteIssueLatency(latency, totalLatency uint64) {
	s.WriteLatency.AddValue(float64(latency))
	s.TotalWriteLatency.AddValue(float64(totalLatency))
	s.writeLatencySum.Add(float64(latency))
	s.totalWriteLatencySum.Add(float64(totalLatency))
}

// RecordWriteDequeue counts a write leaving the return queue.
func (s *Statistics) RecordWriteDequeue() {
	s.NumWritesDone.Inc()
}

// RecordAccepted records an accepted transaction's stall and interarrival
// samples.
func (s *Statistics) RecordAccepted(stall, interarrival uint64) {
	s.NumTransAccepted.Inc()
	s.StallLatency.AddValue(float64(stall))
	s.InterarrivalLatency.AddValue(float64(interarrival))
	s.interarrivalSum.Add(float64(interarrival))
}

// RecordQueuingLatency records the delay between a transaction's
// acceptance and the cycle the command queue admits its command.
func (s *Statistics) RecordQueuingLatency(isWrite bool, latency uint64) {
	s.CommandQueuingLatency.AddValue(float64(latency))

	if isWrite {
		s.WriteQueuingLatency.AddValue(float64(latency))
	} else {
		s.ReadQueuingLatency.AddValue(float64(latency))
	}
}

// SampleQueueUsage folds one cycle's command-queue occupancy sample into
// the running average.
func (s *Statistics) SampleQueueUsage(usage int) {
	s.queueUsageSum.Add(float64(usage))
	s.EpochCycles.Inc()
}

// PreEpochCompute derives every DoubleComputeStat from the primitive
// counters accumulated so far, the way the source model's PreEpochCompute
// turns command/cycle counts into energy, power, bandwidth, and average
// latency figures. Both the epoch window and the whole run are computed
// in the same pass.
func (s *Statistics) PreEpochCompute(cfg *Config) {
	epochCycles := s.EpochCycles.epochValue()
	cumulativeCycles := s.EpochCycles.cumulativeValue()

	s.NumRowHits.cumulative = s.NumReadRowHits.cumulative + s.NumWriteRowHits.cumulative

	actEpoch := s.NumActCmds.epochValue() * cfg.ActEnergyInc
	actCum := s.NumActCmds.cumulativeValue() * cfg.ActEnergyInc
	s.ActEnergy.Set(actEpoch, actCum)

	readEpoch := s.NumReadCmds.epochValue() * cfg.ReadEnergyInc
	readCum := s.NumReadCmds.cumulativeValue() * cfg.ReadEnergyInc
	s.ReadEnergy.Set(readEpoch, readCum)

	writeEpoch := s.NumWriteCmds.epochValue() * cfg.WriteEnergyInc
	writeCum := s.NumWriteCmds.cumulativeValue() * cfg.WriteEnergyInc
	s.WriteEnergy.Set(writeEpoch, writeCum)

	refEpoch := s.NumRefCmds.epochValue() * cfg.RefEnergyInc
	refCum := s.NumRefCmds.cumulativeValue() * cfg.RefEnergyInc
	s.RefEnergy.Set(refEpoch, refCum)

	refbEpoch := s.NumRefbCmds.epochValue() * cfg.RefbEnergyInc
	refbCum := s.NumRefbCmds.cumulativeValue() * cfg.RefbEnergyInc
	s.RefbEnergy.Set(refbEpoch, refbCum)

	actStbEpoch := s.RankActiveCycles.epochValue() * cfg.ActStbEnergyInc
	actStbCum := s.RankActiveCycles.cumulativeValue() * cfg.ActStbEnergyInc
	s.ActStbEnergy.Set(actStbEpoch, actStbCum)

	preStbEpoch := s.AllBankIdleCycles.epochValue() * cfg.PreStbEnergyInc
	preStbCum := s.AllBankIdleCycles.cumulativeValue() * cfg.PreStbEnergyInc
	s.PreStbEnergy.Set(preStbEpoch, preStbCum)

	srefEpoch := s.SrefCycles.epochValue() * cfg.SrefEnergyInc
	srefCum := s.SrefCycles.cumulativeValue() * cfg.SrefEnergyInc
	s.SrefEnergy.Set(srefEpoch, srefCum)

	totalEpoch := actEpoch + readEpoch + writeEpoch + refEpoch + refbEpoch + actStbEpoch + preStbEpoch + srefEpoch
	totalCum := actCum + readCum + writeCum + refCum + refbCum + actStbCum + preStbCum + srefCum
	s.TotalEnergy.Set(totalEpoch, totalCum)

	s.AveragePower.Set(safeDiv(totalEpoch, epochCycles*cfg.TCK), safeDiv(totalCum, cumulativeCycles*cfg.TCK))

	doneEpoch := s.NumReadsDone.epochValue() + s.NumWritesDone.epochValue()
	doneCum := s.NumReadsDone.cumulativeValue() + s.NumWritesDone.cumulativeValue()
	bytesEpoch := doneEpoch * float64(cfg.RequestSizeBytes)
	bytesCum := doneCum * float64(cfg.RequestSizeBytes)
	s.AverageBandwidth.Set(safeDiv(bytesEpoch, epochCycles*cfg.TCK), safeDiv(bytesCum, cumulativeCycles*cfg.TCK))

	readLatEpoch := s.ReadLatency.epochValue()
	s.AverageLatency.Set(
		safeDiv(s.readLatencySum.epochValue(), readLatEpoch),
		safeDiv(s.readLatencySum.cumulativeValue(), s.ReadLatency.cumulativeValue()),
	)

	acceptedEpoch := s.NumTransAccepted.epochValue()
	s.AverageInterarrival.Set(
		safeDiv(s.interarrivalSum.epochValue(), acceptedEpoch),
		safeDiv(s.interarrivalSum.cumulativeValue(), s.NumTransAccepted.cumulativeValue()),
	)

	s.QueueUsageStat.Set(
		safeDiv(s.queueUsageSum.epochValue(), epochCycles),
		safeDiv(s.queueUsageSum.cumulativeValue(), cumulativeCycles),
	)
}

func safeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}

	return num / denom
}

// UpdateEpoch snapshots every stat so the next PrintEpochStats reports only
// this epoch's deltas.
func (s *Statistics) UpdateEpoch() {
	for _, c := range s.counters {
		c.updateEpoch()
	}

	for _, h := range s.histograms {
		h.updateEpoch()
	}

	s.readLatencySum.updateEpoch()
	s.totalReadLatencySum.updateEpoch()
	s.writeLatencySum.updateEpoch()
	s.totalWriteLatencySum.updateEpoch()
	s.interarrivalSum.updateEpoch()
	s.queueUsageSum.updateEpoch()
}

func (s *Statistics) allStats() []stat {
	all := make([]stat, 0, len(s.counters)+len(s.histograms)+len(s.computed))
	for _, c := range s.counters {
		all = append(all, c)
	}

	for _, h := range s.histograms {
		all = append(all, h)
	}

	for _, c := range s.computed {
		all = append(all, c)
	}

	return all
}

// PrintTable writes human-readable "name = value # description" rows,
// reading epoch values if epoch is true, cumulative otherwise.
func (s *Statistics) PrintTable(w io.Writer, epoch bool) {
	for _, st := range s.allStats() {
		v := st.cumulativeValue()
		if epoch {
			v = st.epochValue()
		}

		fmt.Fprintf(w, "%-30s = %12g # %s\n", st.statName(), v, st.statDesc())
	}
}

// PrintCSVHeader writes the CSV header row: epoch,channel,<stat>...
func (s *Statistics) PrintCSVHeader(w io.Writer) {
	names := make([]string, 0, len(s.allStats())+2)
	names = append(names, "epoch", "channel")

	for _, st := range s.allStats() {
		names = append(names, st.statName())
	}

	fmt.Fprintln(w, strings.Join(names, ","))
}

// PrintCSVRow writes one data row for the given epoch index, reading
// epoch values if epoch is true, cumulative otherwise.
func (s *Statistics) PrintCSVRow(w io.Writer, epochIndex int, epoch bool) {
	fields := make([]string, 0, len(s.allStats())+2)
	fields = append(fields, fmt.Sprintf("%d", epochIndex), fmt.Sprintf("%d", s.Channel))

	for _, st := range s.allStats() {
		v := st.cumulativeValue()
		if epoch {
			v = st.epochValue()
		}

		fields = append(fields, fmt.Sprintf("%g", v))
	}

	fmt.Fprintln(w, strings.Join(fields, ","))
}
