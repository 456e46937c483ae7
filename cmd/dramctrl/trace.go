package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// traceEntry is one line of an input trace: a transaction to present to the
// controller at the given cycle.
type traceEntry struct {
	cycle     uint64
	addr      uint64
	isWrite   bool
	requester int
}

// loadTrace reads a plain-text trace file, one request per line in
//
//	<cycle> <hex_addr> <R|W> [requester]
//
// format, the same shape dramsim3's own trace-driven frontend reads, with an
// optional trailing requester column for distributed-controller runs.
func loadTrace(path string) ([]traceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []traceEntry

	scanner := bufio.NewScanner(f)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("trace line %d: expected at least 3 fields, got %d", lineNo, len(fields))
		}

		cycle, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: bad cycle: %w", lineNo, err)
		}

		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: bad address: %w", lineNo, err)
		}

		var isWrite bool

		switch strings.ToUpper(fields[2]) {
		case "R":
			isWrite = false
		case "W":
			isWrite = true
		default:
			return nil, fmt.Errorf("trace line %d: expected R or W, got %q", lineNo, fields[2])
		}

		requester := 0

		if len(fields) >= 4 {
			requester, err = strconv.Atoi(fields[3])
			if err != nil {
				return nil, fmt.Errorf("trace line %d: bad requester: %w", lineNo, err)
			}
		}

		entries = append(entries, traceEntry{
			cycle: cycle, addr: addr, isWrite: isWrite, requester: requester,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
