package main

import (
	"encoding/json"
	"fmt"

	"github.com/ormasoftchile/xsmdbg/internal/xsmvm"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the session config JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := xsmvm.GenerateConfigSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var raw json.RawMessage = data
	formatted, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

func init() {
	schemaCmd.AddCommand(schemaExportCmd)
}
