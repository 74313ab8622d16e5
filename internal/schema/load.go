package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Load resolves a schema argument that is either inline JSON or a path to a
// JSON file.
func Load(arg string) (*Schema, error) {
	trimmed := strings.TrimSpace(arg)
	if strings.HasPrefix(trimmed, "{") {
		return Parse([]byte(trimmed))
	}
	data, err := os.ReadFile(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("schema file not found: %s", trimmed)
		}
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Parse(data)
}

// WithFields returns a new schema with extra property definitions added.
// Existing properties of the same name are replaced in place; new ones are
// appended. The result is validated.
func (s *Schema) WithFields(extra json.RawMessage) (*Schema, error) {
	additions, err := objectEntries(extra)
	if err != nil {
		return nil, fmt.Errorf("invalid additional fields: %w", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(s.raw, &top); err != nil {
		return nil, fmt.Errorf("failed to decode base schema: %w", err)
	}
	existing, err := objectEntries(top["properties"])
	if err != nil {
		return nil, err
	}

	merged := make([]entry, 0, len(existing)+len(additions))
	index := make(map[string]int, len(existing))
	for _, e := range existing {
		index[e.key] = len(merged)
		merged = append(merged, e)
	}
	for _, e := range additions {
		if i, ok := index[e.key]; ok {
			merged[i] = e
			continue
		}
		index[e.key] = len(merged)
		merged = append(merged, e)
	}

	top["properties"] = encodeEntries(merged)
	raw, err := json.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged schema: %w", err)
	}
	out, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("merged schema is invalid: %w", err)
	}
	return out, nil
}

// FromExample infers a schema from an example output object. A page_number
// field is always present in the result.
func FromExample(example json.RawMessage) (*Schema, error) {
	entries, err := objectEntries(example)
	if err != nil {
		return nil, fmt.Errorf("example must be a JSON object: %w", err)
	}

	props := make([]entry, 0, len(entries)+1)
	hasPageNumber := false
	for _, e := range entries {
		def := inferDef(e.value)
		if e.key == PageNumberField {
			hasPageNumber = true
			def = map[string]any{"type": string(KindInteger), "description": "Page number (1-indexed)"}
		}
		b, err := json.Marshal(def)
		if err != nil {
			return nil, err
		}
		props = append(props, entry{key: e.key, value: b})
	}
	if !hasPageNumber {
		pn := json.RawMessage(`{"type":"integer","description":"Page number (1-indexed)"}`)
		props = append([]entry{{key: PageNumberField, value: pn}}, props...)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":"object","properties":`)
	buf.Write(encodeEntries(props))
	buf.WriteString(`,"required":["page_number"]}`)
	return Parse(buf.Bytes())
}

func inferDef(raw json.RawMessage) map[string]any {
	def := map[string]any{"type": string(inferKind(raw))}
	switch inferKind(raw) {
	case KindArray:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
			def["items"] = inferDef(items[0])
		}
	case KindObject:
		entries, err := objectEntries(raw)
		if err == nil && len(entries) > 0 {
			nested := make([]entry, 0, len(entries))
			for _, e := range entries {
				b, _ := json.Marshal(inferDef(e.value))
				nested = append(nested, entry{key: e.key, value: b})
			}
			def["properties"] = json.RawMessage(encodeEntries(nested))
		}
	}
	return def
}

func inferKind(raw json.RawMessage) Kind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return KindString
	}
	switch trimmed[0] {
	case '"':
		return KindString
	case '{':
		return KindObject
	case '[':
		return KindArray
	case 't', 'f':
		return KindBoolean
	case 'n':
		return KindString
	}
	if bytes.ContainsAny(trimmed, ".eE") {
		return KindNumber
	}
	return KindInteger
}

func encodeEntries(entries []entry) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(e.key)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(e.value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}
