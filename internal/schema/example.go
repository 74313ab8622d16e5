package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Example renders a representative output object for the schema. It only
// demonstrates shape to the model; its values are deliberately recognizable
// placeholders that the accumulator filters out if echoed back.
func (s *Schema) Example() json.RawMessage {
	var buf bytes.Buffer
	writeExampleObject(&buf, s.Fields)
	return buf.Bytes()
}

func writeExampleObject(buf *bytes.Buffer, fields []Field) {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name)
		buf.Write(key)
		buf.WriteByte(':')
		writeExampleValue(buf, f)
	}
	buf.WriteByte('}')
}

func writeExampleValue(buf *bytes.Buffer, f Field) {
	name := strings.ToLower(f.Name)
	switch f.Kind {
	case KindString:
		writeJSON(buf, exampleString(f))
	case KindInteger:
		if strings.Contains(name, "page") {
			buf.WriteString("1")
		} else {
			buf.WriteString("0")
		}
	case KindNumber:
		buf.WriteString("0.0")
	case KindBoolean:
		// Presence flags stay false so the model does not copy a true.
		buf.WriteString("false")
	case KindArray:
		writeExampleArray(buf, f)
	case KindObject:
		writeExampleObject(buf, f.Fields)
	default:
		buf.WriteString("null")
	}
}

func exampleString(f Field) string {
	name := strings.ToLower(f.Name)
	switch {
	case strings.Contains(name, "page"):
		return "Page X"
	case strings.Contains(name, "content"):
		return "main text content from page"
	case strings.Contains(name, "title"):
		return "actual title from document"
	case f.Description != "":
		return fmt.Sprintf("actual %s data", f.Name)
	default:
		return "actual_" + f.Name
	}
}

func writeExampleArray(buf *bytes.Buffer, f Field) {
	if f.Items == nil {
		buf.WriteString("[]")
		return
	}
	name := strings.ToLower(f.Name)
	switch f.Items.Kind {
	case KindString:
		if strings.Contains(name, "header") || strings.Contains(name, "row") {
			buf.WriteString(`["actual_data_1","actual_data_2"]`)
		} else {
			buf.WriteString(`["actual_item_1","actual_item_2"]`)
		}
	case KindObject:
		if len(f.Items.Fields) == 0 {
			buf.WriteString("[]")
			return
		}
		buf.WriteByte('[')
		writeExampleObject(buf, f.Items.Fields)
		buf.WriteByte(']')
	default:
		buf.WriteString("[]")
	}
}

// Zero returns a record holding the empty value of every top-level field.
func (s *Schema) Zero() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = zeroValue(f)
	}
	return out
}

func zeroValue(f Field) any {
	switch f.Kind {
	case KindString:
		return ""
	case KindInteger, KindNumber:
		return 0
	case KindBoolean:
		return false
	case KindArray:
		return []any{}
	case KindObject:
		obj := make(map[string]any, len(f.Fields))
		for _, nested := range f.Fields {
			obj[nested.Name] = zeroValue(nested)
		}
		return obj
	default:
		return nil
	}
}

func writeJSON(buf *bytes.Buffer, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(b)
}
