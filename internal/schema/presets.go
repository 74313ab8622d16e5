package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed presets/*.json
var presetFS embed.FS

// DefaultPreset is used when the caller supplies no schema.
const DefaultPreset = "base"

// PresetInfo describes an embedded preset.
type PresetInfo struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Order       int    `json:"-" yaml:"-"`
}

// presets lists the embedded schemas in display order.
var presets = []PresetInfo{
	{Name: "base", Description: "General documents: text, key points, images, tables", Order: 1},
	{Name: "simple", Description: "Text content and a short summary", Order: 2},
	{Name: "entity", Description: "Named entities with context", Order: 3},
	{Name: "financial", Description: "Financial figures, metrics, periods and tables", Order: 4},
	{Name: "technical", Description: "Components, configuration, endpoints and diagrams", Order: 5},
	{Name: "academic", Description: "Methods, findings, citations and figures", Order: 6},
	{Name: "legal", Description: "Parties, obligations, dates and amounts", Order: 7},
}

// Presets returns every embedded preset in display order.
func Presets() []PresetInfo {
	out := make([]PresetInfo, len(presets))
	copy(out, presets)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// PresetJSON returns the raw document of a preset.
func PresetJSON(name string) ([]byte, error) {
	name = normalizePreset(name)
	for _, p := range presets {
		if p.Name != name {
			continue
		}
		content, err := presetFS.ReadFile(fmt.Sprintf("presets/%s.json", p.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to read preset %s: %w", p.Name, err)
		}
		return content, nil
	}
	return nil, fmt.Errorf("unknown schema preset: %s (available: %s)", name, strings.Join(presetNames(), ", "))
}

// Preset parses the named preset.
func Preset(name string) (*Schema, error) {
	raw, err := PresetJSON(name)
	if err != nil {
		return nil, err
	}
	s, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("preset %s: %w", name, err)
	}
	return s, nil
}

// Default returns the general-purpose schema.
func Default() *Schema {
	s, err := Preset(DefaultPreset)
	if err != nil {
		panic(err)
	}
	return s
}

func normalizePreset(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "default" {
		return DefaultPreset
	}
	return name
}

func presetNames() []string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.Name
	}
	return names
}
