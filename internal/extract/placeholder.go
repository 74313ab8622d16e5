package extract

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/pdfvision/internal/schema"
)

// Fields populated on synthesized records.
const (
	fieldContent         = "content"
	fieldError           = "error"
	fieldName            = "name"
	fieldResult          = "result"
	fieldCustomContent   = "custom_content"
	fieldExplicitPages   = "explicit_pages"
	fieldPageNumbers     = "page_numbers"
	fieldTablesData      = "tables_data"
	fieldVisualSummary   = "visual_summary"
	fieldVisualSummaries = "visual_summaries"
)

// placeholder builds a schema-shaped record for a page the model did not
// cover. content and error are always set; name, result and explicit_pages
// only when the schema declares them.
func placeholder(s *schema.Schema, page int, st Status, reason string) PageResult {
	data := map[string]any{}
	if s != nil {
		data = s.Zero()
	}

	marker := fmt.Sprintf("Failed to process page %d", page)
	result := marker
	if st == StatusPartial {
		marker = fmt.Sprintf("Partial processing for page %d", page)
		result = fmt.Sprintf("Processed page %d", page)
	}

	data[fieldContent] = marker
	data[fieldError] = 1
	if s != nil {
		if _, ok := s.Field(fieldName); ok {
			data[fieldName] = fmt.Sprintf("Page %d", page)
		}
		if _, ok := s.Field(fieldResult); ok {
			data[fieldResult] = result
		}
		if _, ok := s.Field(fieldExplicitPages); ok {
			data[fieldExplicitPages] = []any{page}
		}
	}
	delete(data, schema.PageNumberField)

	return PageResult{PageNumber: page, Status: st, Reason: reason, Data: data}
}

// degradeBatch replaces every page of a batch with a failure record.
func degradeBatch(s *schema.Schema, pages []int, reason string) []PageResult {
	out := make([]PageResult, len(pages))
	for i, p := range pages {
		out[i] = placeholder(s, p, StatusDegraded, reason)
	}
	return out
}

// placeholderLiterals are exact values models copy from the prompt example.
var placeholderLiterals = map[string]struct{}{
	"example1":                   {},
	"example2":                   {},
	"example_table_title":        {},
	"example summary":            {},
	"actual title from document": {},
}

// isPlaceholderText reports whether s looks like example text rather than
// extracted content.
func isPlaceholderText(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := placeholderLiterals[s]; ok {
		return true
	}
	return strings.HasPrefix(s, "example") ||
		strings.HasPrefix(s, "actual_") ||
		strings.Contains(s, "placeholder")
}
