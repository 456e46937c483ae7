// Package cmdq holds the per-bank command queues a channel schedules
// commands out of.
package cmdq

import "github.com/sarchlab/dramctrl/internal/signal"

// Channel is the subset of org.ChannelState the command queue needs: given
// a candidate command, tell it what (if anything) is actually ready to
// issue right now, and which rank (if any) needs a refresh. Recording the
// effect of an issued command is left to the controller.
type Channel interface {
	GetReadyCommand(cmd signal.Command, clk uint64) *signal.Command
	IsRefreshWaiting() bool
	DueRefreshRank() int
}

// Queue is a FIFO of commands waiting on one bank.
type Queue []signal.Command

// CommandQueue is the holding area between ScheduleTransaction and the bus:
// column/activate/precharge commands queue per bank. Refresh and
// self-refresh transitions do not queue here; they are driven directly off
// the channel's own refresh clock (FinishRefresh) or issued straight to the
// channel (self-refresh entry/exit), since they are rank-wide policy
// decisions rather than transaction-scheduled work.
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

// CommandQueueImpl is the default CommandQueue.
type CommandQueueImpl struct {
	Channel  Channel
	Capacity int

	numRanks      int
	numBankGroups int
	numBanks      int

	banks []Queue

	nextBankIndex int
	clk           uint64
}

// NewCommandQueueImpl creates a command queue over the given topology, each
// per-bank FIFO bounded to capacity entries.
func NewCommandQueueImpl(channel Channel, numRanks, numBankGroups, numBanks, capacity int) *CommandQueueImpl {
	return &CommandQueueImpl{
		Channel:       channel,
		Capacity:      capacity,
		numRanks:      numRanks,
		numBankGroups: numBankGroups,
		numBanks:      numBanks,
		banks:         make([]Queue, numRanks*numBankGroups*numBanks),
	}
}

func (q *CommandQueueImpl) bankIndex(a signal.Address) int {
	return (a.Rank*q.numBankGroups+a.BankGroup)*q.numBanks + a.Bank
}

// AddCommand files cmd into its bank's FIFO.
func (q *CommandQueueImpl) AddCommand(cmd signal.Command) {
	idx := q.bankIndex(cmd.Addr)
	q.banks[idx] = append(q.banks[idx], cmd)
}

// WillAcceptCommand reports whether the named bank's FIFO has room.
func (q *CommandQueueImpl) WillAcceptCommand(rank, bankgroup, bank int) bool {
	idx := (rank*q.numBankGroups+bankgroup)*q.numBanks + bank

	return len(q.banks[idx]) < q.Capacity
}

// GetCommandToIssue scans bank FIFOs round-robin, returning the first
// command a bank's queue front makes ready (an implicit ACTIVATE/PRECHARGE
// ahead of it counts as making it ready), or nil.
func (q *CommandQueueImpl) GetCommandToIssue() *signal.Command {
	n := len(q.banks)
	if n == 0 {
		return nil
	}

	for i := 0; i < n; i++ {
		idx := (q.nextBankIndex + i) % n
		queue := q.banks[idx]

		if len(queue) == 0 {
			continue
		}

		ready := q.Channel.GetReadyCommand(queue[0], q.clk)
		if ready == nil {
			continue
		}

		if ready.Kind == queue[0].Kind && ready.Addr == queue[0].Addr {
			q.banks[idx] = queue[1:]
		}

		q.nextBankIndex = (idx + 1) % n

		return ready
	}

	return nil
}

// FinishRefresh asks the channel which rank (if any) has a refresh due and
// drives it towards issue: the channel's readyRefreshCommand inserts
// whatever implicit PRECHARGEs the rank's banks still need, one per call,
// before finally handing back the REFRESH command itself.
func (q *CommandQueueImpl) FinishRefresh() *signal.Command {
	rank := q.Channel.DueRefreshRank()
	if rank < 0 {
		return nil
	}

	cmd := signal.Command{Kind: signal.CommandRefresh, Addr: signal.Address{Rank: rank}}

	return q.Channel.GetReadyCommand(cmd, q.clk)
}

// QueueEmpty reports whether every bank FIFO is empty.
func (q *CommandQueueImpl) QueueEmpty() bool {
	return q.QueueUsage() == 0
}

// QueueUsage sums the length of every bank FIFO.
func (q *CommandQueueImpl) QueueUsage() int {
	total := 0
	for _, b := range q.banks {
		total += len(b)
	}

	return total
}

// RankQueueEmpty reports whether rank has no queued command in any of its
// banks.
func (q *CommandQueueImpl) RankQueueEmpty(rank int) bool {
	for g := 0; g < q.numBankGroups; g++ {
		for b := 0; b < q.numBanks; b++ {
			idx := (rank*q.numBankGroups+g)*q.numBanks + b
			if len(q.banks[idx]) != 0 {
				return false
			}
		}
	}

	return true
}

// ClockTick advances the queue's notion of the current cycle, used to
// evaluate command readiness.
func (q *CommandQueueImpl) ClockTick() {
	q.clk++
}
