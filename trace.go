package dramctrl

import (
	"bytes"
	"fmt"

	"github.com/sarchlab/dramctrl/internal/signal"
)

// commandName renders a command kind the way a trace consumer expects to
// see it: the bare DRAM mnemonic.
func commandName(k signal.CommandKind) string {
	switch k {
	case signal.CommandRead:
		return "READ"
	case signal.CommandReadPrecharge:
		return "READ_PRECHARGE"
	case signal.CommandWrite:
		return "WRITE"
	case signal.CommandWritePrecharge:
		return "WRITE_PRECHARGE"
	case signal.CommandActivate:
		return "ACTIVATE"
	case signal.CommandPrecharge:
		return "PRECHARGE"
	case signal.CommandRefresh:
		return "REFRESH"
	case signal.CommandRefreshBank:
		return "REFRESH_BANK"
	case signal.CommandSelfRefreshEnter:
		return "SREF_ENTER"
	case signal.CommandSelfRefreshExit:
		return "SREF_EXIT"
	default:
		return "UNKNOWN"
	}
}

// CommandTracer accumulates one line per issued command in memory, in the
// `<output_prefix>ch_<channel>cmd.trace` format. A CLI driver flushes
// Bytes() to disk; this port keeps file I/O out of the library core so
// tests can inspect the trace directly.
type CommandTracer struct {
	channel int
	buf     bytes.Buffer
}

// NewCommandTracer creates a tracer for the given channel index.
func NewCommandTracer(channel int) *CommandTracer {
	return &CommandTracer{channel: channel}
}

// FileName returns the trace file name this tracer's content belongs in,
// given the configured output prefix.
func (t *CommandTracer) FileName(outputPrefix string) string {
	return fmt.Sprintf("%sch_%dcmd.trace", outputPrefix, t.channel)
}

// Record appends one trace line for a command issued at clk.
func (t *CommandTracer) Record(clk uint64, cmd signal.Command) {
	fmt.Fprintf(&t.buf, "%d %s\n", clk, commandName(cmd.Kind))
}

// Bytes returns the accumulated trace content.
func (t *CommandTracer) Bytes() []byte {
	return t.buf.Bytes()
}
