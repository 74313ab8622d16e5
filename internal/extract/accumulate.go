package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jackzampolin/pdfvision/internal/schema"
)

// Accumulator folds page records into one document-level record.
type Accumulator struct {
	schema *schema.Schema
	filter FilterProfile
}

// NewAccumulator creates an accumulator. Field kinds come from s when it
// declares the field and are otherwise inferred from the first record.
// A nil schema infers every kind.
func NewAccumulator(s *schema.Schema, filter FilterProfile) *Accumulator {
	if filter == "" {
		filter = FilterStrict
	}
	return &Accumulator{schema: s, filter: filter}
}

// Accumulate merges records with the strict filter and inferred kinds.
func Accumulate(records []map[string]any) map[string]any {
	return NewAccumulator(nil, FilterStrict).Accumulate(records)
}

// merger is the rule set for one field kind.
type merger struct {
	seed  func(name string, first any) any
	merge func(m *merge, name string, v any)
}

var mergers = map[schema.Kind]merger{
	schema.KindString:  {seed: seedString, merge: mergeString},
	schema.KindArray:   {seed: seedList, merge: mergeList},
	schema.KindBoolean: {seed: seedBool, merge: mergeBool},
	schema.KindInteger: {seed: seedNumber, merge: mergeNumber},
	schema.KindNumber:  {seed: seedNumber, merge: mergeNumber},
	schema.KindObject:  {seed: seedFirst, merge: keepFirst},
}

// untyped fields keep whatever the first record held.
var keepMerger = merger{seed: seedFirst, merge: keepFirst}

// merge is the state of one Accumulate call.
type merge struct {
	acc    *Accumulator
	out    map[string]any
	fields map[string]merger
	seen   map[string]map[string]struct{}
	pages  int
}

// Accumulate merges records into one record keyed by the fields of the
// first record, page_number excluded. Empty input yields an empty record.
func (a *Accumulator) Accumulate(records []map[string]any) map[string]any {
	out := map[string]any{}
	if len(records) == 0 {
		return out
	}

	m := &merge{
		acc:    a,
		out:    out,
		fields: make(map[string]merger),
		seen:   make(map[string]map[string]struct{}),
		pages:  len(records),
	}

	first := records[0]
	names := make([]string, 0, len(first))
	for name := range first {
		if name == schema.PageNumberField {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		mg := a.mergerFor(name, first[name])
		m.fields[name] = mg
		out[name] = mg.seed(name, first[name])
	}

	hasVisual := false
	visual := []any{}
	for _, rec := range records {
		for _, name := range names {
			v, ok := rec[name]
			if !ok {
				continue
			}
			m.fields[name].merge(m, name, v)
		}
		if v, ok := rec[fieldVisualSummary]; ok {
			hasVisual = true
			if s, ok := v.(string); ok && s != "" {
				visual = append(visual, s)
			}
		}
	}

	if hasVisual {
		out[fieldVisualSummaries] = visual
	}
	if s, ok := out[fieldContent].(string); ok {
		out[fieldContent] = strings.TrimSpace(s)
	}
	for _, name := range []string{fieldExplicitPages, fieldPageNumbers} {
		if list, ok := out[name].([]any); ok {
			out[name] = sortPageRefs(list)
		}
	}

	return out
}

func (a *Accumulator) mergerFor(name string, first any) merger {
	kind := kindOfValue(first)
	if a.schema != nil {
		if k, ok := a.schema.KindOf(name); ok && k.Valid() {
			kind = k
		}
	}
	if mg, ok := mergers[kind]; ok {
		return mg
	}
	return keepMerger
}

func kindOfValue(v any) schema.Kind {
	switch v.(type) {
	case string:
		return schema.KindString
	case bool:
		return schema.KindBoolean
	case []any:
		return schema.KindArray
	case map[string]any:
		return schema.KindObject
	}
	if _, ok := toFloat(v); ok {
		return schema.KindNumber
	}
	return ""
}

func seedString(string, any) any { return "" }
func seedList(string, any) any   { return []any{} }
func seedBool(string, any) any   { return false }
func seedFirst(_ string, v any) any {
	return v
}

func seedNumber(name string, first any) any {
	if isSumField(name) {
		return 0
	}
	if _, ok := toFloat(first); ok {
		return first
	}
	return 0
}

func keepFirst(*merge, string, any) {}

func mergeString(m *merge, name string, v any) {
	s, ok := v.(string)
	if !ok || s == "" {
		return
	}
	cur, _ := m.out[name].(string)

	switch {
	case name == fieldContent:
		m.out[name] = cur + s + " "
	case cur == "":
		m.out[name] = s
	case name == fieldName:
		m.out[name] = fmt.Sprintf("Accumulated Pages 1-%d", m.pages)
	case name == fieldResult:
		m.out[name] = fmt.Sprintf("Accumulated analysis of %d pages", m.pages)
	}
}

func mergeList(m *merge, name string, v any) {
	items, ok := v.([]any)
	if !ok {
		return
	}
	list, _ := m.out[name].([]any)
	seen := m.seen[name]
	if seen == nil {
		seen = make(map[string]struct{})
		m.seen[name] = seen
	}

	for _, item := range items {
		if isEmptyValue(item) {
			continue
		}
		key := canonicalKey(item)
		if _, dup := seen[key]; dup {
			continue
		}
		if m.acc.filter == FilterStrict && rejectItem(name, item) {
			continue
		}
		seen[key] = struct{}{}
		list = append(list, item)
	}
	m.out[name] = list
}

func mergeBool(m *merge, name string, v any) {
	b, ok := v.(bool)
	if !ok {
		return
	}
	cur, _ := m.out[name].(bool)
	m.out[name] = cur || b
}

func mergeNumber(m *merge, name string, v any) {
	f, ok := toFloat(v)
	if !ok {
		return
	}
	cur, _ := toFloat(m.out[name])

	switch {
	case name == fieldError:
		if f > cur {
			m.out[name] = v
		}
	case isSumField(name):
		m.out[name] = normalizeNumber(cur + f)
	}
}

func isSumField(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "count") || strings.Contains(lower, "total")
}

// rejectItem reports whether a list item is placeholder data. Table-like
// objects also need a real title and some headers or rows.
func rejectItem(field string, item any) bool {
	switch v := item.(type) {
	case string:
		return isPlaceholderText(v)
	case map[string]any:
		if field == fieldTablesData || isTableLike(v) {
			return !hasTableContent(v)
		}
	}
	return isPlaceholderText(canonicalKey(item))
}

func isTableLike(m map[string]any) bool {
	_, headers := m["headers"]
	_, rows := m["rows"]
	return headers || rows
}

func hasTableContent(m map[string]any) bool {
	title, _ := m["table_title"].(string)
	if title == "" {
		title, _ = m["title"].(string)
	}
	if strings.TrimSpace(title) == "" || isPlaceholderText(title) {
		return false
	}
	return !isEmptyValue(m["headers"]) || !isEmptyValue(m["rows"])
}

// isEmptyValue reports whether v carries no data.
func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	if f, ok := toFloat(v); ok {
		return f == 0
	}
	return false
}

// canonicalKey identifies a value for deduplication. encoding/json sorts
// map keys, so equal values produce equal keys.
func canonicalKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func sortPageRefs(list []any) []any {
	out := make([]any, 0, len(list))
	seen := make(map[float64]struct{}, len(list))
	var other []any
	for _, v := range list {
		f, ok := toFloat(v)
		if !ok {
			other = append(other, v)
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, _ := toFloat(out[i])
		fj, _ := toFloat(out[j])
		return fi < fj
	})
	return append(out, other...)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	}
	return 0, false
}

// normalizeNumber keeps whole sums integral in the output.
func normalizeNumber(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}
