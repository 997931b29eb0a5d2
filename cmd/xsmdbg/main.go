// Command xsmdbg drives an XSM virtual machine over its interactive
// debug console and exposes the session as a CLI, a readline console,
// a live watch view, and an MCP tool server.
package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/xsmdbg/internal/xsmvm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "xsmdbg",
	Short: "XSM virtual machine debug adapter",
	Long:  "xsmdbg — drives an XSM virtual machine's interactive debug console and exposes session state to CLIs, agents and editors.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("xsmdbg %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads Config from configPath if set, else returns the
// default. A present file must validate against the schema.
func loadConfig() (xsmvm.Config, error) {
	if configPath == "" {
		return xsmvm.DefaultConfig(), nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return xsmvm.Config{}, fmt.Errorf("read config %s: %w", configPath, err)
	}
	return xsmvm.LoadConfigFile(data)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML session config file (defaults to built-in defaults)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
}

// dumpSnapshot renders the current facade state as YAML to stdout.
func dumpSnapshot(f *xsmvm.Facade) error {
	regs := map[string]string{}
	for _, reg := range f.GetRegs().Named() {
		regs[reg.Name] = reg.Value
	}
	snap := map[string]any{
		"mode":              f.Mode().String(),
		"registers":         regs,
		"halted":            f.IsHalted(),
		"is_next_halt":      f.IsNextHalt(),
		"is_exception_edge": f.IsExceptionEdge(),
		"status":            f.GetStatus(),
		"output":            f.GetOutput(),
		"errors":            f.GetErrors(),
	}
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
