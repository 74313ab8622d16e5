package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pdfvision/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and validate extraction schemas",
	Long: `Inspect and validate extraction schemas.

A schema is a JSON object with "type": "object" and a "properties" map
that must include "page_number".

Examples:
  pdfvision schema presets
  pdfvision schema show financial -o json
  pdfvision schema validate ./schema.json`,
}

// schemaSummary describes a validated schema.
type schemaSummary struct {
	Valid    bool            `json:"valid"`
	Fields   []schemaField   `json:"fields"`
	Required []string        `json:"required,omitempty"`
	Example  json.RawMessage `json:"example"`
}

type schemaField struct {
	Name string      `json:"name"`
	Kind schema.Kind `json:"kind"`
}

func summarize(s *schema.Schema) schemaSummary {
	fields := make([]schemaField, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = schemaField{Name: f.Name, Kind: f.Kind}
	}
	return schemaSummary{Valid: true, Fields: fields, Required: s.Required, Example: s.Example()}
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate <file|json>",
	Short: "Validate a schema file or inline JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := schema.Load(args[0])
		if err != nil {
			return err
		}
		return printer.Print(summarize(s))
	},
}

var schemaPresetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List built-in schema presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printer.Print(schema.Presets())
	},
}

var schemaShowCmd = &cobra.Command{
	Use:   "show <preset>",
	Short: "Print a built-in schema preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := schema.PresetJSON(args[0])
		if err != nil {
			return err
		}
		return printer.Print(json.RawMessage(raw))
	},
}

func init() {
	schemaCmd.AddCommand(schemaValidateCmd)
	schemaCmd.AddCommand(schemaPresetsCmd)
	schemaCmd.AddCommand(schemaShowCmd)

	rootCmd.AddCommand(schemaCmd)
}
