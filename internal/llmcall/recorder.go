package llmcall

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackzampolin/pdfvision/internal/providers"
)

// Recorder keeps model attempts in memory and optionally appends them to a
// JSONL file. A nil *Recorder is valid and records nothing.
type Recorder struct {
	mu     sync.Mutex
	calls  []*Call
	file   *os.File
	enc    *json.Encoder
	logger *slog.Logger
}

// NewRecorder creates an in-memory recorder.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

// NewFileRecorder creates a recorder that also appends each call as a JSON
// line to path.
func NewFileRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create call log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open call log: %w", err)
	}
	r := NewRecorder(logger)
	r.file = f
	r.enc = json.NewEncoder(f)
	return r, nil
}

// Record captures a model attempt.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil {
		return
	}
	r.RecordCall(FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call)
	if r.enc != nil {
		if err := r.enc.Encode(call); err != nil {
			// The call log is best effort; extraction continues.
			r.logger.Warn("failed to write call log entry", "id", call.ID, "error", err)
		}
	}
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []*Call {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Summary aggregates recorded calls.
type Summary struct {
	Attempts     int `json:"attempts"`
	Failures     int `json:"failures"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Summary returns totals over the recorded calls.
func (r *Recorder) Summary() Summary {
	var s Summary
	for _, c := range r.Calls() {
		s.Attempts++
		if !c.Success {
			s.Failures++
		}
		s.InputTokens += c.InputTokens
		s.OutputTokens += c.OutputTokens
	}
	return s
}

// Close closes the call log file, if any.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	r.enc = nil
	return err
}
