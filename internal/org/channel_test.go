package org

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarchlab/dramctrl/internal/signal"
)

func newTestChannel() *ChannelImpl {
	timing := BuildTiming(DefaultParams())

	return NewChannelImpl(1, 1, 2, timing, 100, 40)
}

func TestGetReadyCommandInsertsActivateBeforeFirstAccess(t *testing.T) {
	c := newTestChannel()

	cmd := signal.Command{Kind: signal.CommandRead, Addr: signal.Address{Row: 3}}
	ready := c.GetReadyCommand(cmd, 0)

	require.NotNil(t, ready)
	assert.Equal(t, signal.CommandActivate, ready.Kind)
}

func TestGetReadyCommandReturnsAccessOnceRowIsOpenAndTimingAllows(t *testing.T) {
	c := newTestChannel()
	addr := signal.Address{Row: 3}

	act := c.GetReadyCommand(signal.Command{Kind: signal.CommandRead, Addr: addr}, 0)
	require.NotNil(t, act)
	c.UpdateTimingAndStates(*act, 0)

	cmd := signal.Command{Kind: signal.CommandRead, Addr: addr}

	assert.Nil(t, c.GetReadyCommand(cmd, 1), "tRCD has not elapsed yet")

	ready := c.GetReadyCommand(cmd, uint64(DefaultParams().TRCD))
	require.NotNil(t, ready)
	assert.Equal(t, signal.CommandRead, ready.Kind)
}

func TestRowHitCountIncrementsOnColumnAccessAndResetsOnActivate(t *testing.T) {
	c := newTestChannel()
	addr := signal.Address{Row: 3}

	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandActivate, Addr: addr}, 0)
	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandRead, Addr: addr}, 20)
	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandRead, Addr: addr}, 24)

	assert.Equal(t, 2, c.RowHitCount(0, 0, 0))

	other := signal.Address{Row: 9}
	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandActivate, Addr: other}, 40)
	assert.Equal(t, 0, c.RowHitCount(0, 0, 0))
}

func TestIsAllBankIdleInRank(t *testing.T) {
	c := newTestChannel()
	assert.True(t, c.IsAllBankIdleInRank(0))

	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandActivate, Addr: signal.Address{Bank: 1, Row: 2}}, 0)
	assert.False(t, c.IsAllBankIdleInRank(0))

	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandPrecharge, Addr: signal.Address{Bank: 1}}, 100)
	assert.True(t, c.IsAllBankIdleInRank(0))
}

func TestRefreshWaitsForAllBanksToPrecharge(t *testing.T) {
	c := newTestChannel()

	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandActivate, Addr: signal.Address{Bank: 0, Row: 1}}, 0)
	c.MarkRefreshDue(100)

	assert.True(t, c.IsRefreshWaiting())

	cmd := signal.Command{Kind: signal.CommandRefresh, Addr: signal.Address{}}
	pre := c.GetReadyCommand(cmd, 100)

	require.NotNil(t, pre)
	assert.Equal(t, signal.CommandPrecharge, pre.Kind, "an open bank forces a precharge before the refresh can issue")

	c.UpdateTimingAndStates(*pre, 100)

	ref := c.GetReadyCommand(cmd, 111)
	require.NotNil(t, ref)
	assert.Equal(t, signal.CommandRefresh, ref.Kind)

	c.UpdateTimingAndStates(*ref, 111)
	assert.False(t, c.IsRefreshWaiting())
}

func TestSelfRefreshEnterRequiresIdleRankAndExitAlwaysReady(t *testing.T) {
	c := newTestChannel()
	cmd := signal.Command{Kind: signal.CommandSelfRefreshEnter, Addr: signal.Address{}}

	assert.NotNil(t, c.GetReadyCommand(cmd, 0))

	c.UpdateTimingAndStates(signal.Command{Kind: signal.CommandActivate, Addr: signal.Address{Row: 1}}, 0)
	assert.Nil(t, c.GetReadyCommand(cmd, 1), "rank is not idle, cannot enter self-refresh")

	c.UpdateTimingAndStates(cmd, 1)
	assert.True(t, c.IsRankSelfRefreshing(0))

	exit := signal.Command{Kind: signal.CommandSelfRefreshExit, Addr: signal.Address{}}
	require.NotNil(t, c.GetReadyCommand(exit, 1))

	c.UpdateTimingAndStates(exit, 1)
	assert.False(t, c.IsRankSelfRefreshing(0))
}
