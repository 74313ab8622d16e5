package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelopeKeys are the object keys a model may wrap its page list in,
// in lookup order.
var envelopeKeys = []string{"pages", "data", "results"}

// parseRecords extracts page records from a model response. It accepts a
// bare array, an object wrapping an array under one of envelopeKeys, or a
// single page object.
func parseRecords(raw []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
		for _, key := range envelopeKeys {
			if arr, ok := v[key].([]any); ok {
				items = arr
				break
			}
		}
	default:
		return nil, fmt.Errorf("%w: %T", errUnexpectedShape, doc)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no page records", errUnexpectedShape)
	}

	records := make([]map[string]any, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: page record %d is %T", errUnexpectedShape, i, item)
		}
		records[i] = rec
	}
	return records, nil
}

// reconcile pairs records with the requested pages by position. Missing
// records are padded with partial placeholders; records beyond the
// requested pages are returned as surplus, untouched.
func (e *BatchExtractor) reconcile(records []map[string]any, pages []int) ([]PageResult, []map[string]any) {
	results := make([]PageResult, len(pages))
	for i, page := range pages {
		if i < len(records) {
			results[i] = PageResult{PageNumber: page, Status: StatusSuccess, Data: records[i]}
			continue
		}
		results[i] = placeholder(e.schema, page, StatusPartial,
			fmt.Sprintf("model returned %d of %d pages", len(records), len(pages)))
	}

	var surplus []map[string]any
	if len(records) > len(pages) {
		surplus = records[len(pages):]
	}
	return results, surplus
}
