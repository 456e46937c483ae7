package cmdq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/dramctrl/internal/signal"
)

// fakeChannel lets each test script exactly which commands it will declare
// ready, without pulling in a full org.ChannelImpl.
type fakeChannel struct {
	ready          map[signal.CommandKind]bool
	refreshWaiting bool
	dueRank        int
}

func (f *fakeChannel) GetReadyCommand(cmd signal.Command, _ uint64) *signal.Command {
	if !f.ready[cmd.Kind] {
		return nil
	}

	out := cmd

	return &out
}

func (f *fakeChannel) IsRefreshWaiting() bool { return f.refreshWaiting }

func (f *fakeChannel) DueRefreshRank() int { return f.dueRank }

func TestGetCommandToIssueSkipsBanksThatAreNotReady(t *testing.T) {
	ch := &fakeChannel{ready: map[signal.CommandKind]bool{signal.CommandWrite: true}, dueRank: -1}
	q := NewCommandQueueImpl(ch, 1, 1, 2, 8)

	q.AddCommand(signal.Command{Kind: signal.CommandRead, Addr: signal.Address{Bank: 0}})
	q.AddCommand(signal.Command{Kind: signal.CommandWrite, Addr: signal.Address{Bank: 1}})

	cmd := q.GetCommandToIssue()

	require.NotNil(t, cmd)
	assert.Equal(t, signal.CommandWrite, cmd.Kind)
	assert.Equal(t, 1, cmd.Addr.Bank)
	assert.Equal(t, 1, q.QueueUsage(), "the read that was not ready must stay queued")
}

func TestGetCommandToIssueRotatesStartingBankRoundRobin(t *testing.T) {
	ch := &fakeChannel{ready: map[signal.CommandKind]bool{signal.CommandRead: true}, dueRank: -1}
	q := NewCommandQueueImpl(ch, 1, 1, 2, 8)

	q.AddCommand(signal.Command{Kind: signal.CommandRead, Addr: signal.Address{Bank: 0}})
	q.AddCommand(signal.Command{Kind: signal.CommandRead, Addr: signal.Address{Bank: 1}})

	first := q.GetCommandToIssue()
	require.NotNil(t, first)
	assert.Equal(t, 0, first.Addr.Bank)

	q.AddCommand(signal.Command{Kind: signal.CommandRead, Addr: signal.Address{Bank: 0}})

	second := q.GetCommandToIssue()
	require.NotNil(t, second)
	assert.Equal(t, 1, second.Addr.Bank, "bank 1 should be served before bank 0 gets a second turn")
}

func TestGetCommandToIssueReturnsNilWhenNothingReady(t *testing.T) {
	ch := &fakeChannel{dueRank: -1}
	q := NewCommandQueueImpl(ch, 1, 1, 2, 8)
	q.AddCommand(signal.Command{Kind: signal.CommandRead, Addr: signal.Address{Bank: 0}})

	assert.Nil(t, q.GetCommandToIssue())
	assert.Equal(t, 1, q.QueueUsage())
}

func TestWillAcceptCommandRespectsCapacity(t *testing.T) {
	ch := &fakeChannel{dueRank: -1}
	q := NewCommandQueueImpl(ch, 1, 1, 1, 1)

	assert.True(t, q.WillAcceptCommand(0, 0, 0))
	q.AddCommand(signal.Command{Kind: signal.CommandRead, Addr: signal.Address{}})
	assert.False(t, q.WillAcceptCommand(0, 0, 0))
}

func TestFinishRefreshReturnsNilWhenNoRankIsDue(t *testing.T) {
	ch := &fakeChannel{dueRank: -1}
	q := NewCommandQueueImpl(ch, 2, 1, 1, 8)

	assert.Nil(t, q.FinishRefresh())
}

func TestFinishRefreshSynthesizesRefreshForDueRank(t *testing.T) {
	ch := &fakeChannel{
		dueRank: 1,
		ready:   map[signal.CommandKind]bool{signal.CommandRefresh: true},
	}
	q := NewCommandQueueImpl(ch, 2, 1, 1, 8)

	got := q.FinishRefresh()
	require.NotNil(t, got)
	assert.Equal(t, signal.CommandRefresh, got.Kind)
	assert.Equal(t, 1, got.Addr.Rank)
}

func TestFinishRefreshReturnsNilWhenChannelNotYetReady(t *testing.T) {
	ch := &fakeChannel{dueRank: 0}
	q := NewCommandQueueImpl(ch, 1, 1, 1, 8)

	assert.Nil(t, q.FinishRefresh(), "channel withholds REFRESH until any implicit precharge clears")
}

func TestQueueEmptyAndRankQueueEmpty(t *testing.T) {
	ch := &fakeChannel{dueRank: -1}
	q := NewCommandQueueImpl(ch, 2, 1, 2, 8)

	assert.True(t, q.QueueEmpty())

	q.AddCommand(signal.Command{Kind: signal.CommandRead, Addr: signal.Address{Rank: 1, Bank: 0}})

	assert.False(t, q.QueueEmpty())
	assert.True(t, q.RankQueueEmpty(0))
	assert.False(t, q.RankQueueEmpty(1))
}
