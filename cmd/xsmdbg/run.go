package main

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/xsmdbg/internal/xsmvm"
	"github.com/spf13/cobra"
)

var runSteps int

var runCmd = &cobra.Command{
	Use:   "run [command...]",
	Short: "Spawn an XSM binary, step it N times, and dump the resulting snapshot",
	Long: `Spawn an XSM binary under the debug adapter, step it a fixed number of
times, and print the resulting register/status/output snapshot as YAML.

Example:
  xsmdbg run --steps 20 -- ./xsm a.out`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f, err := xsmvm.SpawnNew(args, cfg)
	if err != nil {
		return fmt.Errorf("spawn: %w", err)
	}
	defer f.Close()

	fmt.Printf("spawned: %s\n", strings.Join(args, " "))

	for i := 0; i < runSteps && !f.IsHalted(); i++ {
		f.Step(1)
	}

	return dumpSnapshot(f)
}

func init() {
	runCmd.Flags().IntVar(&runSteps, "steps", 1, "Number of single-steps to execute before dumping state")
}
