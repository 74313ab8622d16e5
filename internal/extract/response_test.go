package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/jackzampolin/pdfvision/internal/schema"
)

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantCount int
		wantShape bool // errUnexpectedShape expected
		wantErr   bool
	}{
		{name: "bare array", raw: `[{"content": "a"}, {"content": "b"}]`, wantCount: 2},
		{name: "pages envelope", raw: `{"pages": [{"content": "a"}]}`, wantCount: 1},
		{name: "data envelope", raw: `{"data": [{"content": "a"}, {"content": "b"}]}`, wantCount: 2},
		{name: "results envelope", raw: `{"results": [{"content": "a"}]}`, wantCount: 1},
		{name: "pages wins over data", raw: `{"pages": [{"a": 1}], "data": [{"b": 1}, {"c": 1}]}`, wantCount: 1},
		{name: "single object", raw: `{"page_number": 1, "content": "solo"}`, wantCount: 1},
		{name: "envelope key that is not a list", raw: `{"pages": "two", "content": "x"}`, wantCount: 1},
		{name: "scalar", raw: `42`, wantShape: true},
		{name: "string", raw: `"pages"`, wantShape: true},
		{name: "empty array", raw: `[]`, wantShape: true},
		{name: "empty pages", raw: `{"pages": []}`, wantShape: true},
		{name: "non-object record", raw: `[{"content": "a"}, "b"]`, wantShape: true},
		{name: "invalid json", raw: `{"pages": [`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := parseRecords([]byte(tt.raw))
			switch {
			case tt.wantShape:
				if !errors.Is(err, errUnexpectedShape) {
					t.Fatalf("error = %v, want unexpected shape", err)
				}
				return
			case tt.wantErr:
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRecords() error = %v", err)
			}
			if len(records) != tt.wantCount {
				t.Errorf("got %d records, want %d", len(records), tt.wantCount)
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	s := schema.MustParse([]byte(`{
		"type": "object",
		"properties": {
			"page_number": {"type": "integer"},
			"content": {"type": "string"},
			"name": {"type": "string"},
			"explicit_pages": {"type": "array", "items": {"type": "integer"}},
			"tags": {"type": "array"}
		}
	}`))
	e := NewBatchExtractor(BatchExtractorConfig{Schema: s})

	t.Run("pads missing tail", func(t *testing.T) {
		records := []map[string]any{{"page_number": 99, "content": "first"}}
		results, surplus := e.reconcile(records, []int{4, 5, 6})

		if len(results) != 3 {
			t.Fatalf("got %d results, want 3", len(results))
		}
		if surplus != nil {
			t.Errorf("unexpected surplus: %v", surplus)
		}

		if results[0].Status != StatusSuccess || results[0].PageNumber != 4 {
			t.Errorf("first result = %+v", results[0])
		}
		if got := results[0].Record()["page_number"]; got != 4 {
			t.Errorf("page number not stamped: %v", got)
		}

		for i, page := range []int{5, 6} {
			r := results[i+1]
			if r.Status != StatusPartial || r.PageNumber != page {
				t.Errorf("padded result = %+v", r)
			}
			if r.Data["error"] != 1 {
				t.Errorf("padded error = %v, want 1", r.Data["error"])
			}
			if !strings.HasPrefix(r.Data["content"].(string), "Partial processing for page") {
				t.Errorf("padded content = %v", r.Data["content"])
			}
			if r.Reason != "model returned 1 of 3 pages" {
				t.Errorf("Reason = %q", r.Reason)
			}
		}
	})

	t.Run("keeps surplus", func(t *testing.T) {
		records := []map[string]any{{"content": "a"}, {"content": "b"}, {"content": "c"}}
		results, surplus := e.reconcile(records, []int{1, 2})
		if len(results) != 2 || len(surplus) != 1 {
			t.Fatalf("results %d surplus %d", len(results), len(surplus))
		}
		if surplus[0]["content"] != "c" {
			t.Errorf("surplus = %v", surplus)
		}
	})
}

func TestPlaceholder(t *testing.T) {
	s := schema.MustParse([]byte(`{
		"type": "object",
		"properties": {
			"page_number": {"type": "integer"},
			"name": {"type": "string"},
			"result": {"type": "string"},
			"explicit_pages": {"type": "array"},
			"contains_tables": {"type": "boolean"},
			"tables_data": {"type": "array"}
		}
	}`))

	tests := []struct {
		status      Status
		wantContent string
		wantResult  string
	}{
		{StatusPartial, "Partial processing for page 7", "Processed page 7"},
		{StatusDegraded, "Failed to process page 7", "Failed to process page 7"},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			p := placeholder(s, 7, tt.status, "why")
			if p.Data["content"] != tt.wantContent {
				t.Errorf("content = %v", p.Data["content"])
			}
			if p.Data["result"] != tt.wantResult {
				t.Errorf("result = %v", p.Data["result"])
			}
			if p.Data["name"] != "Page 7" {
				t.Errorf("name = %v", p.Data["name"])
			}
			if p.Data["error"] != 1 {
				t.Errorf("error = %v", p.Data["error"])
			}
			if pages, _ := p.Data["explicit_pages"].([]any); len(pages) != 1 || pages[0] != 7 {
				t.Errorf("explicit_pages = %v", p.Data["explicit_pages"])
			}
			if p.Data["contains_tables"] != false {
				t.Errorf("contains_tables = %v", p.Data["contains_tables"])
			}
			if tables, _ := p.Data["tables_data"].([]any); len(tables) != 0 {
				t.Errorf("tables_data = %v", p.Data["tables_data"])
			}
			if _, ok := p.Data["page_number"]; ok {
				t.Error("page_number should only be stamped by Record")
			}
		})
	}

	t.Run("schema without descriptive fields", func(t *testing.T) {
		minimal := schema.MustParse([]byte(`{"type": "object", "properties": {"page_number": {"type": "integer"}}}`))
		p := placeholder(minimal, 2, StatusDegraded, "")
		if _, ok := p.Data["name"]; ok {
			t.Error("name should not be added")
		}
		if p.Data["error"] != 1 || p.Data["content"] != "Failed to process page 2" {
			t.Errorf("Data = %v", p.Data)
		}
	})
}

func TestIsPlaceholderText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"example1", true},
		{"Example Corp", true},
		{"EXAMPLE_TABLE_TITLE", true},
		{"actual_item_1", true},
		{"actual_data_2", true},
		{"Actual Title From Document", true},
		{"example summary", true},
		{"this is a placeholder", true},
		{"Revenue grew 4%", false},
		{"actual revenue", false},
		{"counterexample", false},
	}
	for _, tt := range tests {
		if got := isPlaceholderText(tt.in); got != tt.want {
			t.Errorf("isPlaceholderText(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
