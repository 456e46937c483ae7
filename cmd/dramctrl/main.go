// Command dramctrl drives a dramctrl.Controller from a YAML config and a
// plain-text trace file, printing final statistics on exit.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func main() {
	defer atexit.Exit(0)

	root := &cobra.Command{
		Use:   "dramctrl",
		Short: "A cycle-accurate DRAM memory controller scheduling core",
	}

	root.AddCommand(newRunCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}
