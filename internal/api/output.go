// Package api renders command results for the terminal.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format is a structured output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// DefaultFormat is used when no --output flag is given.
const DefaultFormat = FormatYAML

// ParseFormat validates an --output value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return DefaultFormat, nil
	case FormatYAML, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format: %s (use yaml or json)", s)
	}
}

// Printer writes values to w in one format.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a printer.
func NewPrinter(w io.Writer, format Format) *Printer {
	if format == "" {
		format = DefaultFormat
	}
	return &Printer{w: w, format: format}
}

// Format returns the printer's format.
func (p *Printer) Format() Format {
	return p.format
}

// Print writes v. Values are always encoded through their JSON form first,
// so custom MarshalJSON methods and json tags shape the YAML output too,
// and object keys keep their JSON order.
func (p *Printer) Print(v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return err
	}

	switch p.format {
	case FormatJSON:
		_, err := p.w.Write(data)
		return err
	case FormatYAML:
		return writeYAML(p.w, data)
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return buf.Bytes(), nil
}

// writeYAML re-emits a JSON document as block-style YAML.
func writeYAML(w io.Writer, data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to convert output to yaml: %w", err)
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles a JSON source leaves on
// every node. The encoder re-quotes scalars that need it.
func blockStyle(n *yaml.Node) {
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		if len(n.Content) > 0 {
			n.Style = 0
		}
	case yaml.ScalarNode:
		n.Style = 0
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}
