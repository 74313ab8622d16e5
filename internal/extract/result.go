package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/pdfvision/internal/schema"
)

// Status distinguishes a genuine extraction from a synthesized record.
type Status string

const (
	// StatusSuccess is a record returned by the model.
	StatusSuccess Status = "success"
	// StatusPartial pads a batch whose response held fewer records than pages.
	StatusPartial Status = "partial"
	// StatusDegraded replaces every page of a batch that exhausted its retries.
	StatusDegraded Status = "degraded"
)

// PageResult is the extracted record for one page.
type PageResult struct {
	PageNumber int
	Status     Status
	Reason     string // why the record was synthesized; empty on success
	Data       map[string]any
}

// Record returns the page's data with page_number stamped.
func (p PageResult) Record() map[string]any {
	out := make(map[string]any, len(p.Data)+1)
	for k, v := range p.Data {
		out[k] = v
	}
	out[schema.PageNumberField] = p.PageNumber
	return out
}

// MarshalJSON emits the page record itself, as returned by the model.
func (p PageResult) MarshalJSON() ([]byte, error) {
	return marshalNoEscape(p.Record())
}

// TokenUsage counts tokens as reported by the provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates other into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Stats describes how a document was processed.
type Stats struct {
	TotalPages            int     `json:"total_pages"`
	TotalBatches          int     `json:"total_batches"`
	BatchSize             int     `json:"batch_size"`
	DPIUsed               int     `json:"dpi_used"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
	AutoConfig            string  `json:"auto_config"`
}

// Result is the outcome of extracting one document.
type Result struct {
	SourcePDF       string         `json:"source_pdf"`
	PageResults     []PageResult   `json:"page_results"`
	AccumulatedData map[string]any `json:"accumulated_data"`
	ProcessingStats Stats          `json:"processing_stats"`
}

// PageNumbers returns the page number of every result, in order.
func (r *Result) PageNumbers() []int {
	out := make([]int, len(r.PageResults))
	for i, p := range r.PageResults {
		out[i] = p.PageNumber
	}
	return out
}

// PagesWithStatus returns the page numbers whose result has status st.
func (r *Result) PagesWithStatus(st Status) []int {
	out := []int{}
	for _, p := range r.PageResults {
		if p.Status == st {
			out = append(out, p.PageNumber)
		}
	}
	return out
}

// Metadata describes the run itself.
type Metadata struct {
	ProcessingTimeSeconds float64    `json:"processing_time_seconds"`
	TokenUsage            TokenUsage `json:"token_usage"`
	Timestamp             string     `json:"timestamp"`
	PagesProcessed        int        `json:"pages_processed"`
	BatchesUsed           int        `json:"batches_used"`

	DegradedPages  []int `json:"degraded_pages"`
	PartialPages   []int `json:"partial_pages"`
	Attempts       int   `json:"attempts"`
	SurplusRecords int   `json:"surplus_records,omitempty"`
}

// TimestampFormat is the layout of Metadata.Timestamp.
const TimestampFormat = "2006-01-02 15:04:05"

// Artifact is the saved form of a run.
type Artifact struct {
	ProcessingMetadata *Metadata `json:"processing_metadata"`
	ExtractionResults  *Result   `json:"extraction_results"`
}

// ArtifactName derives the default artifact file name from the source PDF.
func ArtifactName(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "_extraction_results.json"
}

// SaveArtifact writes the result and metadata to path as indented JSON.
func SaveArtifact(path string, result *Result, meta *Metadata) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Artifact{ProcessingMetadata: meta, ExtractionResults: result}); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
