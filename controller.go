// Package dramctrl implements the per-channel DRAM memory controller
// scheduling core: transaction ingress, write-drain, row-hit aware command
// issue, refresh interleaving, self-refresh power management, and the
// distributed-controller round-robin fairness layer.
package dramctrl

import (
	"fmt"

	"github.com/sarchlab/dramctrl/internal/signal"
)

// ChannelState is the collaborator that owns DRAM bank/rank timing,
// refresh scheduling, and row-hit counting. internal/org.ChannelImpl is the
// shipped default implementation.
type ChannelState interface {
	IsRefreshWaiting() bool
	IsRankSelfRefreshing(rank int) bool
	IsAllBankIdleInRank(rank int) bool
	RankIdleCyclesSlice() []int
	GetReadyCommand(cmd signal.Command, clk uint64) *signal.Command
	UpdateTimingAndStates(cmd signal.Command, clk uint64)
	RowHitCount(rank, bankgroup, bank int) int
	MarkRefreshDue(clk uint64)
	DueRefreshRank() int
}

// CommandQueue is the collaborator holding commands between scheduling and
// bus issuance. internal/cmdq.CommandQueueImpl is the shipped default
// implementation.
type CommandQueue interface {
	AddCommand(cmd signal.Command)
	WillAcceptCommand(rank, bankgroup, bank int) bool
	GetCommandToIssue() *signal.Command
	FinishRefresh() *signal.Command
	QueueEmpty() bool
	QueueUsage() int
	RankQueueEmpty(rank int) bool
	ClockTick()
}

// candidate is one transaction a scheduling pass may emit a command for,
// paired with the closure that removes it from whichever source queue it
// came from.
type candidate struct {
	txn    *signal.Transaction
	remove func()
}

func sliceCandidates(src *[]*signal.Transaction) []candidate {
	cands := make([]candidate, len(*src))

	for i := range *src {
		i := i
		cands[i] = candidate{
			txn: (*src)[i],
			remove: func() {
				*src = append((*src)[:i], (*src)[i+1:]...)
			},
		}
	}

	return cands
}

// Controller is a single DRAM channel's per-cycle scheduling core.
type Controller struct {
	Config  Config
	Channel ChannelState
	Queue   CommandQueue
	Stats   *Statistics
	Thermal ThermalCalculator
	Trace   *CommandTracer

	clk uint64

	unifiedQueue []*signal.Transaction
	readQueue    []*signal.Transaction
	writeBuffer  []*signal.Transaction

	distUnified [][]*signal.Transaction
	distRead    [][]*signal.Transaction
	distWrite   [][]*signal.Transaction

	sharedUnified    []*signal.Transaction
	sharedWrite      []*signal.Transaction
	perBankReadQueue [][]*signal.Transaction

	lastUnifiedRequester int
	lastReadRequester     int
	lastWriteRequester    int

	pendingRd map[uint64][]*signal.Transaction
	pendingWr map[uint64]*signal.Transaction

	returnQueue []*signal.Transaction

	writeDraining int

	haveLastTransClk bool
	lastTransClk     uint64
}

func newController(cfg Config, channel ChannelState, queue CommandQueue, thermal ThermalCalculator, trace *CommandTracer) *Controller {
	c := &Controller{
		Config:    cfg,
		Channel:   channel,
		Queue:     queue,
		Stats:     NewStatistics(0),
		Thermal:   thermal,
		Trace:     trace,
		pendingRd: make(map[uint64][]*signal.Transaction),
		pendingWr: make(map[uint64]*signal.Transaction),
	}

	c.lastUnifiedRequester = cfg.RequestersPerChannel - 1
	c.lastReadRequester = cfg.RequestersPerChannel - 1
	c.lastWriteRequester = cfg.RequestersPerChannel - 1

	if cfg.DistController {
		c.distUnified = make([][]*signal.Transaction, cfg.RequestersPerChannel)
		c.distRead = make([][]*signal.Transaction, cfg.RequestersPerChannel)
		c.distWrite = make([][]*signal.Transaction, cfg.RequestersPerChannel)

		if !cfg.UnifiedQueue {
			c.perBankReadQueue = make([][]*signal.Transaction, cfg.NumBanks())
		}
	}

	return c
}

// WillAcceptTransaction reports whether a centralized controller has room
// for a new transaction of the given write/read class. Panics if called on
// a distributed controller, matching the source model's mode-misuse
// handling.
func (c *Controller) WillAcceptTransaction(isWrite bool) bool {
	if c.Config.DistController {
		panic("dramctrl: WillAcceptTransaction called on a distributed controller; use WillAcceptTransactionFrom")
	}

	if c.Config.UnifiedQueue {
		return len(c.unifiedQueue) < c.Config.TransQueueSize
	}

	if isWrite {
		return len(c.writeBuffer) < c.Config.TransQueueSize
	}

	return len(c.readQueue) < c.Config.TransQueueSize
}

// WillAcceptTransactionFrom is the distributed-mode, requester-qualified
// admission check. Panics if called on a centralized controller.
func (c *Controller) WillAcceptTransactionFrom(requester int, isWrite bool) bool {
	if !c.Config.DistController {
		panic("dramctrl: WillAcceptTransactionFrom called on a centralized controller; use WillAcceptTransaction")
	}

	if c.Config.UnifiedQueue {
		return len(c.distUnified[requester]) < c.Config.DistTransQueueSize
	}

	if isWrite {
		return len(c.distWrite[requester]) < c.Config.DistTransQueueSize
	}

	return len(c.distRead[requester]) < c.Config.DistTransQueueSize
}

// AddTransaction admits t, whose WillAcceptTransaction(From) must have
// returned true this same cycle. Panics if the caller broke that contract;
// otherwise returns true.
func (c *Controller) AddTransaction(t signal.Transaction) bool {
	admits := c.WillAcceptTransaction
	if c.Config.DistController {
		admits = func(isWrite bool) bool { return c.WillAcceptTransactionFrom(t.Requester, isWrite) }
	}

	if !admits(t.IsWrite) {
		panic("dramctrl: AddTransaction called without a true WillAcceptTransaction this cycle")
	}

	pt := t
	pt.AddedCycle = c.clk

	var interarrival uint64
	if c.haveLastTransClk {
		interarrival = c.clk - c.lastTransClk
	}

	c.lastTransClk = c.clk
	c.haveLastTransClk = true

	c.Stats.RecordAccepted(c.clk-pt.StartCycle, interarrival)

	txn := &pt

	if c.Config.DistController {
		if c.Config.UnifiedQueue {
			c.distUnified[txn.Requester] = append(c.distUnified[txn.Requester], txn)
		} else if txn.IsWrite {
			c.distWrite[txn.Requester] = append(c.distWrite[txn.Requester], txn)
		} else {
			c.distRead[txn.Requester] = append(c.distRead[txn.Requester], txn)
		}

		return true
	}

	if txn.IsWrite {
		if c.promoteWrite(txn) {
			if c.Config.UnifiedQueue {
				c.unifiedQueue = append(c.unifiedQueue, txn)
			} else {
				c.writeBuffer = append(c.writeBuffer, txn)
			}
		}

		return true
	}

	first := c.promoteRead(txn)
	if first {
		if c.Config.UnifiedQueue {
			c.unifiedQueue = append(c.unifiedQueue, txn)
		} else {
			c.readQueue = append(c.readQueue, txn)
		}
	}

	return true
}

// promoteWrite applies the write-merge rule. Every write, merged or not,
// completes on the next cycle from the caller's perspective, so the
// caller-facing completion is stamped and queued unconditionally. Returns
// true iff txn is now the authoritative pending write (i.e. it was not a
// merged duplicate) and so belongs in an ingress queue.
func (c *Controller) promoteWrite(txn *signal.Transaction) bool {
	txn.CompleteCycle = c.clk + 1
	ret := *txn
	c.returnQueue = append(c.returnQueue, &ret)

	if _, exists := c.pendingWr[txn.Addr]; exists {
		return false
	}

	c.pendingWr[txn.Addr] = txn

	return true
}

// promoteRead applies the write-forwarding and read-coalescing rules.
// Returns true iff txn is the first pending read for its address and so
// belongs in an ingress queue; false if it was forwarded from the write
// buffer or coalesced into an existing pending read.
func (c *Controller) promoteRead(txn *signal.Transaction) bool {
	if _, exists := c.pendingWr[txn.Addr]; exists {
		txn.CompleteCycle = c.clk + 1
		c.Stats.NumWriteBufHits.Inc()
		ret := *txn
		c.returnQueue = append(c.returnQueue, &ret)

		return false
	}

	first := len(c.pendingRd[txn.Addr]) == 0
	c.pendingRd[txn.Addr] = append(c.pendingRd[txn.Addr], txn)

	return first
}

// ClockTick advances the controller by one cycle, in the fixed order the
// scheduling core requires: refresh bookkeeping, command issue, power
// accounting, self-refresh policy, distributed promotion, scheduling, then
// the clock increment itself.
func (c *Controller) ClockTick() {
	c.Channel.MarkRefreshDue(c.clk)

	var cmd *signal.Command
	if c.Channel.IsRefreshWaiting() {
		cmd = c.Queue.FinishRefresh()
	} else {
		cmd = c.Queue.GetCommandToIssue()
	}

	if cmd != nil {
		c.issueCommand(*cmd)

		if c.Config.EnableHBMDualCmd && cmd.Kind.IsReadWrite() {
			if second := c.Queue.GetCommandToIssue(); second != nil && second.Kind.IsReadWrite() && second.Kind.IsRead() != cmd.Kind.IsRead() {
				c.issueCommand(*second)
				c.Stats.HbmDualCmds.Inc()
			}
		}
	}

	c.powerAccounting()

	if cmd == nil && c.Config.EnableSelfRefresh {
		c.selfRefreshPolicy()
	}

	if c.Config.DistController {
		c.queueIn()
	}

	c.scheduleTransaction()

	c.clk++
	c.Queue.ClockTick()
	c.Stats.SampleQueueUsage(c.Queue.QueueUsage())
}

func (c *Controller) powerAccounting() {
	idle := c.Channel.RankIdleCyclesSlice()

	for rank := 0; rank < c.Config.Ranks; rank++ {
		switch {
		case c.Channel.IsRankSelfRefreshing(rank):
			c.Stats.SrefCycles.Inc()
		case c.Channel.IsAllBankIdleInRank(rank):
			c.Stats.AllBankIdleCycles.Inc()
			idle[rank]++
		default:
			c.Stats.RankActiveCycles.Inc()
			idle[rank] = 0
		}
	}
}

func (c *Controller) selfRefreshPolicy() {
	idle := c.Channel.RankIdleCyclesSlice()

	for rank := 0; rank < c.Config.Ranks; rank++ {
		if c.Channel.IsRankSelfRefreshing(rank) {
			if !c.Queue.RankQueueEmpty(rank) {
				cmd := signal.Command{Kind: signal.CommandSelfRefreshExit, Addr: signal.Address{Rank: rank}}
				if ready := c.Channel.GetReadyCommand(cmd, c.clk); ready != nil {
					c.issueCommand(*ready)
					return
				}
			}

			continue
		}

		if c.Queue.RankQueueEmpty(rank) && idle[rank] >= c.Config.SrefThreshold {
			cmd := signal.Command{Kind: signal.CommandSelfRefreshEnter, Addr: signal.Address{Rank: rank}}
			if ready := c.Channel.GetReadyCommand(cmd, c.clk); ready != nil {
				c.issueCommand(*ready)
				return
			}
		}
	}
}

// queueIn runs the distributed round-robin promotion for one cycle: at
// most one read and one write (or one transaction in unified mode) move
// from a per-requester queue into the shared stage.
func (c *Controller) queueIn() {
	if c.Config.UnifiedQueue {
		if len(c.sharedUnified) >= 1 {
			return
		}

		n := c.Config.RequestersPerChannel
		start := (c.lastUnifiedRequester + 1) % n

		for i := 0; i < n; i++ {
			r := (start + i) % n

			q := c.distUnified[r]
			if len(q) == 0 {
				continue
			}

			txn := q[0]
			c.distUnified[r] = q[1:]
			txn.DistLinkStart = c.clk

			var admit bool
			if txn.IsWrite {
				admit = c.promoteWrite(txn)
			} else {
				admit = c.promoteRead(txn)
			}

			if admit {
				c.sharedUnified = append(c.sharedUnified, txn)
			}

			c.lastUnifiedRequester = r

			return
		}

		return
	}

	writeDone := len(c.sharedWrite) >= 32

	readDone := true

	for bank := range c.perBankReadQueue {
		if len(c.perBankReadQueue[bank]) < 1 {
			readDone = false
			break
		}
	}

	if writeDone && readDone {
		return
	}

	if !readDone {
		c.queueInRead()
	}

	if !writeDone {
		c.queueInWrite()
	}
}

func (c *Controller) queueInRead() {
	n := c.Config.RequestersPerChannel
	start := (c.lastReadRequester + 1) % n

	for i := 0; i < n; i++ {
		r := (start + i) % n

		q := c.distRead[r]
		if len(q) == 0 {
			continue
		}

		txn := q[0]

		if _, forwards := c.pendingWr[txn.Addr]; !forwards && len(c.pendingRd[txn.Addr]) == 0 {
			addr := c.Config.AddressMapper.Map(txn.Addr)
			bankIdx := c.Config.BankIndex(addr.BankGroup, addr.Bank)

			if len(c.perBankReadQueue[bankIdx]) >= 1 {
				continue
			}
		}

		c.distRead[r] = q[1:]
		txn.DistLinkStart = c.clk

		if c.promoteRead(txn) {
			addr := c.Config.AddressMapper.Map(txn.Addr)
			bankIdx := c.Config.BankIndex(addr.BankGroup, addr.Bank)
			c.perBankReadQueue[bankIdx] = append(c.perBankReadQueue[bankIdx], txn)
		}

		c.lastReadRequester = r

		return
	}
}

func (c *Controller) queueInWrite() {
	n := c.Config.RequestersPerChannel
	start := (c.lastWriteRequester + 1) % n

	for i := 0; i < n; i++ {
		r := (start + i) % n

		q := c.distWrite[r]
		if len(q) == 0 {
			continue
		}

		txn := q[0]
		c.distWrite[r] = q[1:]
		txn.DistLinkStart = c.clk

		if c.promoteWrite(txn) {
			c.sharedWrite = append(c.sharedWrite, txn)
		}

		c.lastWriteRequester = r

		return
	}
}

// buildCandidates returns, in priority order, the transactions the
// current scheduling pass may emit a command for: the shared unified
// queue, the write buffer while draining, the read queue (or per-bank read
// queues in distributed split mode) otherwise.
func (c *Controller) buildCandidates() []candidate {
	if c.Config.UnifiedQueue {
		if c.Config.DistController {
			return sliceCandidates(&c.sharedUnified)
		}

		return sliceCandidates(&c.unifiedQueue)
	}

	if c.writeDraining > 0 {
		if c.Config.DistController {
			return sliceCandidates(&c.sharedWrite)
		}

		return sliceCandidates(&c.writeBuffer)
	}

	if c.Config.DistController {
		var cands []candidate

		for bank := range c.perBankReadQueue {
			cands = append(cands, sliceCandidates(&c.perBankReadQueue[bank])...)
		}

		return cands
	}

	return sliceCandidates(&c.readQueue)
}

func (c *Controller) writeBufferLenCap() (int, int) {
	if c.Config.DistController {
		return len(c.sharedWrite), 32
	}

	return len(c.writeBuffer), c.Config.TransQueueSize
}

// scheduleTransaction picks at most one transaction to hand to the command
// queue this cycle, enforcing the write-drain FSM and the R->W dependency
// abort.
func (c *Controller) scheduleTransaction() {
	if !c.Config.UnifiedQueue && c.writeDraining == 0 {
		wbLen, wbCap := c.writeBufferLenCap()
		if wbLen == wbCap || (wbLen > 8 && c.Queue.QueueEmpty()) {
			c.writeDraining = wbLen
		}
	}

	for _, cand := range c.buildCandidates() {
		txn := cand.txn

		if c.Config.DistController && txn.DistLinkStart+c.Config.LinkLatency > c.clk {
			continue
		}

		cmd := c.transToCommand(txn)

		if !c.Queue.WillAcceptCommand(cmd.Addr.Rank, cmd.Addr.BankGroup, cmd.Addr.Bank) {
			continue
		}

		if txn.IsWrite {
			txn.ScheduleCycle = c.clk
		} else {
			for _, pending := range c.pendingRd[txn.Addr] {
				pending.ScheduleCycle = c.clk
			}
		}

		c.Stats.RecordQueuingLatency(txn.IsWrite, c.clk-txn.AddedCycle)

		if txn.IsWrite {
			if len(c.pendingRd[txn.Addr]) > 0 {
				c.writeDraining = 0
				c.Stats.NumWrDependency.Inc()

				break
			}

			c.writeDraining--
		}

		c.Queue.AddCommand(cmd)
		cand.remove()

		break
	}
}

// transToCommand maps a transaction to the DRAM command its address and
// the configured row-buffer policy require.
func (c *Controller) transToCommand(txn *signal.Transaction) signal.Command {
	addr := c.Config.AddressMapper.Map(txn.Addr)

	var kind signal.CommandKind

	switch {
	case !txn.IsWrite && c.Config.RowBufPolicy == OpenPage:
		kind = signal.CommandRead
	case txn.IsWrite && c.Config.RowBufPolicy == OpenPage:
		kind = signal.CommandWrite
	case !txn.IsWrite:
		kind = signal.CommandReadPrecharge
	default:
		kind = signal.CommandWritePrecharge
	}

	return signal.Command{Kind: kind, Addr: addr, HexAddr: txn.Addr}
}

// issueCommand applies the effect of a command actually issuing on the
// bus: transaction completion stamping, row-hit and per-kind counters, and
// channel timing update.
func (c *Controller) issueCommand(cmd signal.Command) {
	hitBefore := c.Channel.RowHitCount(cmd.Addr.Rank, cmd.Addr.BankGroup, cmd.Addr.Bank) > 0

	switch {
	case cmd.Kind.IsRead():
		pending := c.pendingRd[cmd.HexAddr]
		if len(pending) == 0 {
			panic(fmt.Sprintf("dramctrl: issued READ with no pending_rd entry at addr %#x", cmd.HexAddr))
		}

		for _, txn := range pending {
			txn.IssueCycle = c.clk
			txn.CompleteCycle = c.clk + c.Config.ReadDelay
			ret := *txn
			c.returnQueue = append(c.returnQueue, &ret)
		}

		delete(c.pendingRd, cmd.HexAddr)

		if hitBefore {
			c.Stats.NumReadRowHits.Inc()
		}

		c.Stats.NumReadCmds.Inc()

	case cmd.Kind.IsWrite():
		txn, ok := c.pendingWr[cmd.HexAddr]
		if !ok {
			panic(fmt.Sprintf("dramctrl: issued WRITE with no pending_wr entry at addr %#x", cmd.HexAddr))
		}

		txn.IssueCycle = c.clk
		writeLatency := c.clk - txn.AddedCycle + c.Config.WriteDelay
		totalWriteLatency := c.clk - txn.StartCycle + c.Config.WriteDelay
		c.Stats.RecordWriteIssueLatency(writeLatency, totalWriteLatency)
		delete(c.pendingWr, cmd.HexAddr)

		if hitBefore {
			c.Stats.NumWriteRowHits.Inc()
		}

		c.Stats.NumWriteCmds.Inc()

	case cmd.Kind == signal.CommandActivate:
		c.Stats.NumActCmds.Inc()
	case cmd.Kind == signal.CommandRefresh:
		c.Stats.NumRefCmds.Inc()
	case cmd.Kind == signal.CommandRefreshBank:
		c.Stats.NumRefbCmds.Inc()
	}

	c.Thermal.UpdateCMDPower(c.Stats.Channel, cmd, c.clk)
	c.Channel.UpdateTimingAndStates(cmd, c.clk)

	if c.Trace != nil {
		c.Trace.Record(c.clk, cmd)
	}
}

// ReturnDoneTrans scans the return queue from the head for the first
// transaction whose completion time has elapsed, dequeues it, and reports
// it to the caller; entries not yet ready are skipped in place, since
// completion times are not necessarily monotonic across the queue. Returns
// (addr, isWrite, true); if nothing is ready, returns (-1, false, false).
func (c *Controller) ReturnDoneTrans(clk uint64) (addr int64, isWrite bool, ok bool) {
	for i, head := range c.returnQueue {
		effective := head.CompleteCycle

		if c.Config.DistController {
			effective += c.Config.LinkLatency
		}

		if effective > clk {
			continue
		}

		c.returnQueue = append(c.returnQueue[:i], c.returnQueue[i+1:]...)

		if head.IsWrite {
			c.Stats.RecordWriteDequeue()
		} else {
			c.Stats.RecordReadComplete(clk-head.AddedCycle, clk-head.StartCycle)
		}

		return int64(head.Addr), head.IsWrite, true
	}

	return -1, false, false
}

// QueueUsage reports the command queue's current occupancy.
func (c *Controller) QueueUsage() int {
	return c.Queue.QueueUsage()
}

// PendingWork reports whether any transaction is still in flight anywhere in
// the controller: an ingress queue, the command queue, or the return queue.
// A driver can use this together with an exhausted input trace to know when
// a run is complete.
func (c *Controller) PendingWork() bool {
	if c.Queue.QueueUsage() > 0 || len(c.returnQueue) > 0 {
		return true
	}

	if len(c.unifiedQueue) > 0 || len(c.readQueue) > 0 || len(c.writeBuffer) > 0 {
		return true
	}

	if len(c.pendingRd) > 0 || len(c.pendingWr) > 0 {
		return true
	}

	for _, q := range c.distUnified {
		if len(q) > 0 {
			return true
		}
	}

	for _, q := range c.distRead {
		if len(q) > 0 {
			return true
		}
	}

	for _, q := range c.distWrite {
		if len(q) > 0 {
			return true
		}
	}

	if len(c.sharedUnified) > 0 || len(c.sharedWrite) > 0 {
		return true
	}

	for _, q := range c.perBankReadQueue {
		if len(q) > 0 {
			return true
		}
	}

	return false
}

// Clk reports the controller's current cycle count.
func (c *Controller) Clk() uint64 {
	return c.clk
}

// PrintEpochStats derives this epoch's stats and writes them as a
// human-readable table, then snapshots the epoch boundary.
func (c *Controller) PrintEpochStats(w writer) {
	c.Stats.PreEpochCompute(&c.Config)
	c.Stats.PrintTable(w, true)
	c.Stats.UpdateEpoch()
}

// PrintFinalStats derives cumulative stats and writes them as a
// human-readable table.
func (c *Controller) PrintFinalStats(w writer) {
	c.Stats.PreEpochCompute(&c.Config)
	c.Stats.PrintTable(w, false)
}

// writer is the subset of io.Writer Print*Stats needs, kept local so
// controller.go does not have to import io just for this.
type writer interface {
	Write(p []byte) (n int, err error)
}
