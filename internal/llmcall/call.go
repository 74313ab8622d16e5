// Package llmcall records every vision model attempt for traceability.
// Each attempt is captured with its batch, pages, response and metrics.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/pdfvision/internal/providers"
)

// PromptKeyBatch identifies the batch extraction prompt.
const PromptKeyBatch = "extract.batch"

// Call represents a recorded model attempt.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	SourcePDF string `json:"source_pdf,omitempty"`
	Batch     int    `json:"batch"`
	Pages     []int  `json:"pages,omitempty"`
	Attempt   int    `json:"attempt"`

	PromptKey string `json:"prompt_key"`

	// Model info
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	Response string `json:"response,omitempty"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording a model attempt.
type RecordOptions struct {
	SourcePDF string
	Batch     int
	Pages     []int
	Attempt   int

	PromptKey string

	// Request parameters (pointer to distinguish "not set" from "set to 0")
	Temperature *float64

	// Err overrides the result's error message, e.g. for parse failures
	// detected after the call returned.
	Err error
}

// FromChatResult creates a Call from a ChatResult.
// A nil result still produces a failed Call when opts.Err is set.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil && opts.Err == nil {
		return nil
	}

	call := &Call{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		SourcePDF:   opts.SourcePDF,
		Batch:       opts.Batch,
		Pages:       opts.Pages,
		Attempt:     opts.Attempt,
		PromptKey:   opts.PromptKey,
		Temperature: opts.Temperature,
	}

	if result != nil {
		call.LatencyMs = int(result.ExecutionTime.Milliseconds())
		call.Provider = result.Provider
		call.Model = result.ModelUsed
		call.InputTokens = result.PromptTokens
		call.OutputTokens = result.CompletionTokens
		call.Response = result.Content
		call.Success = result.Success
		if !result.Success {
			call.Error = result.ErrorMessage
		}
	}

	if opts.Err != nil {
		call.Success = false
		call.Error = opts.Err.Error()
	}

	return call
}
