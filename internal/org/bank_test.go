package org

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/dramctrl/internal/signal"
)

func TestBankStartsPrecharged(t *testing.T) {
	b := NewBank()

	assert.False(t, b.rowOpen(0))
	assert.True(t, b.readyFor(signal.CommandActivate, 0))
}

func TestBankRowOpenTracksLastActivatedRow(t *testing.T) {
	b := NewBank()
	row := 7
	b.Row = &row

	assert.True(t, b.rowOpen(7))
	assert.False(t, b.rowOpen(8))
}

func TestBankSetReadyAfterOnlyExtendsForward(t *testing.T) {
	b := NewBank()

	b.setReadyAfter(signal.CommandRead, 10, 20)
	assert.False(t, b.readyFor(signal.CommandRead, 29))
	assert.True(t, b.readyFor(signal.CommandRead, 30))

	b.setReadyAfter(signal.CommandRead, 15, 5)
	assert.True(t, b.readyFor(signal.CommandRead, 30), "an earlier, shorter constraint must not pull the deadline back in")
}
