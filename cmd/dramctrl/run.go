package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/dramctrl"
	"github.com/sarchlab/dramctrl/internal/signal"
)

func newTransaction(e traceEntry, clk uint64) signal.Transaction {
	return signal.NewTransaction(e.addr, e.isWrite, e.requester, clk)
}

func newRunCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a dramctrl channel from a YAML config and a trace file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML channel config (required)")
	cmd.MarkFlagRequired("config")

	return cmd
}

func runSimulation(configPath string) error {
	ycfg, err := loadYAMLConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if ycfg.TracePath == "" {
		return fmt.Errorf("config %s: trace_path is required", configPath)
	}

	entries, err := loadTrace(ycfg.TracePath)
	if err != nil {
		return fmt.Errorf("loading trace %s: %w", ycfg.TracePath, err)
	}

	ctrl := buildController(ycfg)

	atexit.Register(func() {
		ctrl.PrintFinalStats(os.Stdout)
	})

	driveTrace(ctrl, entries, ycfg.DistController)

	if ctrl.Trace != nil {
		tracePath := ctrl.Trace.FileName(ycfg.OutputPrefix)
		if err := os.WriteFile(tracePath, ctrl.Trace.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing command trace %s: %w", tracePath, err)
		}
	}

	return nil
}

func buildController(ycfg yamlConfig) *dramctrl.Controller {
	policy := dramctrl.OpenPage
	if ycfg.RowBufPolicy == "close_page" {
		policy = dramctrl.ClosePage
	}

	b := dramctrl.MakeBuilder().
		WithRanks(ycfg.Ranks).
		WithBankGroups(ycfg.BankGroups).
		WithBanksPerGroup(ycfg.BanksPerGroup).
		WithRequestersPerChannel(ycfg.RequestersPerChannel).
		WithTransQueueSize(ycfg.TransQueueSize).
		WithDistTransQueueSize(ycfg.DistTransQueueSize).
		WithCommandQueueCapacity(ycfg.CommandQueueCapacity).
		WithUnifiedQueue(ycfg.UnifiedQueue).
		WithDistController(ycfg.DistController).
		WithRowBufPolicy(policy).
		WithLinkLatency(ycfg.LinkLatency).
		WithSrefThreshold(ycfg.SrefThreshold).
		WithSelfRefresh(ycfg.EnableSelfRefresh).
		WithHBMDualCmd(ycfg.EnableHBMDualCmd).
		WithReadDelay(ycfg.ReadDelay).
		WithWriteDelay(ycfg.WriteDelay).
		WithTCK(ycfg.TCK).
		WithRequestSizeBytes(ycfg.RequestSizeBytes).
		WithRefreshTiming(ycfg.TREFI, ycfg.TRFC).
		WithOutputPrefix(ycfg.OutputPrefix).
		WithTimingParams(ycfg.timingParams())

	if ycfg.CommandTrace {
		b = b.WithCommandTrace(0)
	}

	return b.Build()
}

// driveTrace feeds entries to ctrl one cycle at a time, retrying admission
// on a later cycle if the relevant queue was full, until every entry has
// been admitted and every in-flight transaction has returned.
func driveTrace(ctrl *dramctrl.Controller, entries []traceEntry, distController bool) {
	next := 0

	for next < len(entries) || ctrl.PendingWork() {
		clk := ctrl.Clk()

		for next < len(entries) && entries[next].cycle <= clk {
			e := entries[next]

			var accepted bool
			if distController {
				accepted = ctrl.WillAcceptTransactionFrom(e.requester, e.isWrite)
			} else {
				accepted = ctrl.WillAcceptTransaction(e.isWrite)
			}

			if accepted {
				ctrl.AddTransaction(newTransaction(e, clk))
				next++

				continue
			}

			break
		}

		for {
			_, _, ok := ctrl.ReturnDoneTrans(clk)
			if !ok {
				break
			}
		}

		ctrl.ClockTick()

		if next >= len(entries) && !ctrl.PendingWork() {
			break
		}
	}
}
