// Package schema resolves caller-supplied extraction schemas into typed
// descriptors that drive prompt generation, placeholder synthesis and
// accumulation rules.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidSchema is wrapped by every validation failure.
var ErrInvalidSchema = errors.New("invalid schema")

// PageNumberField is the page-tracking field every schema must declare.
const PageNumberField = "page_number"

// Kind is the closed set of field types a schema may declare.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

var validKinds = []Kind{KindString, KindInteger, KindNumber, KindBoolean, KindArray, KindObject}

// Valid reports whether k is one of the recognized kinds.
func (k Kind) Valid() bool {
	for _, v := range validKinds {
		if k == v {
			return true
		}
	}
	return false
}

// Field describes one property of a schema.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Items       *Field  // element descriptor for arrays, nil when undeclared
	Fields      []Field // properties for objects, in declaration order
}

// Schema is a validated extraction schema.
type Schema struct {
	Fields   []Field
	Required []string

	raw json.RawMessage
}

// Raw returns the schema document as supplied.
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// MarshalJSON emits the original schema document.
func (s *Schema) MarshalJSON() ([]byte, error) {
	if len(s.raw) == 0 {
		return []byte("null"), nil
	}
	return s.raw, nil
}

// Field returns the top-level field with the given name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KindOf returns the declared kind of a top-level field.
func (s *Schema) KindOf(name string) (Kind, bool) {
	f, ok := s.Field(name)
	if !ok {
		return "", false
	}
	return f.Kind, true
}

// Names returns the top-level field names in declaration order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks that doc has the minimum shape required for extraction.
// Checks run in a fixed order and stop at the first violation.
func Validate(doc any) error {
	root, ok := doc.(map[string]any)
	if !ok {
		return invalid("schema must be an object")
	}
	if t, _ := root["type"].(string); t != string(KindObject) {
		return invalid("schema type must be 'object'")
	}

	var props map[string]any
	if raw, present := root["properties"]; present {
		props, ok = raw.(map[string]any)
		if !ok {
			return invalid("schema properties must be an object")
		}
	}

	pn, ok := props[PageNumberField]
	if !ok {
		return invalid("schema must include 'page_number' field for page tracking")
	}
	pnDef, _ := pn.(map[string]any)
	if t, _ := pnDef["type"].(string); t != string(KindInteger) {
		return invalid("page_number field must be of type 'integer'")
	}

	for _, name := range sortedKeys(props) {
		def, ok := props[name].(map[string]any)
		if !ok {
			return invalid(fmt.Sprintf("field '%s' definition must be an object", name))
		}
		rawType, present := def["type"]
		t, _ := rawType.(string)
		if !present || t == "" {
			return invalid(fmt.Sprintf("field '%s' must have a 'type' property", name))
		}
		if !Kind(t).Valid() {
			return invalid(fmt.Sprintf("field '%s' has invalid type '%s', must be one of: %s", name, t, kindList()))
		}
		if Kind(t) != KindArray {
			continue
		}
		items, ok := def["items"].(map[string]any)
		if !ok {
			continue
		}
		if it, ok := items["type"].(string); ok && it != "" && !Kind(it).Valid() {
			return invalid(fmt.Sprintf("field '%s' array items have invalid type '%s'", name, it))
		}
	}
	return nil
}

// ValidateJSON decodes raw and runs Validate on it.
func ValidateJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", ErrInvalidSchema, err)
	}
	return Validate(doc)
}

// Parse validates raw and resolves it into a typed Schema.
func Parse(raw []byte) (*Schema, error) {
	if err := ValidateJSON(raw); err != nil {
		return nil, err
	}

	var top struct {
		Properties json.RawMessage `json:"properties"`
		Required   []string        `json:"required"`
	}
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	fields, err := parseFields(top.Properties)
	if err != nil {
		return nil, err
	}

	compact := new(bytes.Buffer)
	if err := json.Compact(compact, raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	return &Schema{
		Fields:   fields,
		Required: top.Required,
		raw:      compact.Bytes(),
	}, nil
}

// MustParse is Parse for schemas known to be valid. It panics on error.
func MustParse(raw []byte) *Schema {
	s, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return s
}

type fieldDoc struct {
	Type        string          `json:"type"`
	Description string          `json:"description"`
	Items       json.RawMessage `json:"items"`
	Properties  json.RawMessage `json:"properties"`
}

func parseFields(props json.RawMessage) ([]Field, error) {
	entries, err := objectEntries(props)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, len(entries))
	for _, e := range entries {
		f, err := parseField(e.key, e.value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(name string, raw json.RawMessage) (Field, error) {
	var doc fieldDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Field{}, fmt.Errorf("%w: field '%s': %v", ErrInvalidSchema, name, err)
	}

	// Nested descriptors are not covered by Validate; untyped ones read as strings.
	kind := Kind(doc.Type)
	if !kind.Valid() {
		kind = KindString
	}

	f := Field{Name: name, Kind: kind, Description: doc.Description}
	switch kind {
	case KindArray:
		if len(doc.Items) > 0 && !isNull(doc.Items) {
			item, err := parseField("", doc.Items)
			if err != nil {
				return Field{}, err
			}
			if !hasType(doc.Items) {
				item.Kind = ""
			}
			f.Items = &item
		}
	case KindObject:
		nested, err := parseFields(doc.Properties)
		if err != nil {
			return Field{}, err
		}
		f.Fields = nested
	}
	return f, nil
}

type entry struct {
	key   string
	value json.RawMessage
}

// objectEntries decodes a JSON object keeping key order.
func objectEntries(raw json.RawMessage) ([]entry, error) {
	if len(raw) == 0 || isNull(raw) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected object", ErrInvalidSchema)
	}

	var entries []entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		key, _ := keyTok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
		}
		entries = append(entries, entry{key: key, value: value})
	}
	return entries, nil
}

func hasType(raw json.RawMessage) bool {
	var probe struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(raw, &probe) == nil && probe.Type != ""
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchema, msg)
}

func kindList() string {
	names := make([]string, len(validKinds))
	for i, k := range validKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
