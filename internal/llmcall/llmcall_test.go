package llmcall

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackzampolin/pdfvision/internal/providers"
)

func TestFromChatResult(t *testing.T) {
	temp := 0.05
	tests := []struct {
		name        string
		result      *providers.ChatResult
		opts        RecordOptions
		wantNil     bool
		wantSuccess bool
		wantError   string
	}{
		{
			name:    "nil result without error",
			wantNil: true,
		},
		{
			name: "successful result",
			result: &providers.ChatResult{
				Content:          `{"pages": []}`,
				PromptTokens:     10,
				CompletionTokens: 5,
				ExecutionTime:    250 * time.Millisecond,
				Provider:         "openai",
				ModelUsed:        "m",
				Success:          true,
			},
			opts:        RecordOptions{Batch: 2, Pages: []int{3, 4}, Attempt: 1, Temperature: &temp},
			wantSuccess: true,
		},
		{
			name:      "failed result",
			result:    &providers.ChatResult{Success: false, ErrorMessage: "json_parse"},
			wantError: "json_parse",
		},
		{
			name:      "nil result with error",
			opts:      RecordOptions{Err: errors.New("connection reset")},
			wantError: "connection reset",
		},
		{
			name:      "error overrides success",
			result:    &providers.ChatResult{Success: true},
			opts:      RecordOptions{Err: errors.New("unexpected shape")},
			wantError: "unexpected shape",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := FromChatResult(tt.result, tt.opts)
			if tt.wantNil {
				if call != nil {
					t.Fatalf("expected nil call, got %+v", call)
				}
				return
			}
			if call == nil {
				t.Fatal("expected call")
			}
			if call.ID == "" {
				t.Error("expected generated ID")
			}
			if call.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", call.Success, tt.wantSuccess)
			}
			if call.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", call.Error, tt.wantError)
			}
			if call.Batch != tt.opts.Batch || call.Attempt != tt.opts.Attempt {
				t.Errorf("context not copied: %+v", call)
			}
		})
	}

	t.Run("latency and tokens", func(t *testing.T) {
		call := FromChatResult(&providers.ChatResult{
			PromptTokens:     1200,
			CompletionTokens: 300,
			ExecutionTime:    1500 * time.Millisecond,
			Success:          true,
		}, RecordOptions{})
		if call.LatencyMs != 1500 || call.InputTokens != 1200 || call.OutputTokens != 300 {
			t.Errorf("unexpected metrics: %+v", call)
		}
	})
}

func TestRecorder(t *testing.T) {
	t.Run("nil recorder is a no-op", func(t *testing.T) {
		var r *Recorder
		r.Record(&providers.ChatResult{Success: true}, RecordOptions{})
		if r.Calls() != nil {
			t.Error("expected no calls")
		}
		if err := r.Close(); err != nil {
			t.Errorf("Close() = %v", err)
		}
	})

	t.Run("summary", func(t *testing.T) {
		r := NewRecorder(nil)
		r.Record(&providers.ChatResult{Success: true, PromptTokens: 10, CompletionTokens: 2}, RecordOptions{Attempt: 1})
		r.Record(nil, RecordOptions{Attempt: 1, Err: errors.New("boom")})
		r.Record(&providers.ChatResult{Success: true, PromptTokens: 7, CompletionTokens: 3}, RecordOptions{Attempt: 2})

		got := r.Summary()
		want := Summary{Attempts: 3, Failures: 1, InputTokens: 17, OutputTokens: 5}
		if got != want {
			t.Errorf("Summary() = %+v, want %+v", got, want)
		}
	})

	t.Run("jsonl file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "calls.jsonl")
		r, err := NewFileRecorder(path, nil)
		if err != nil {
			t.Fatalf("NewFileRecorder() error = %v", err)
		}
		r.Record(&providers.ChatResult{Success: true, Provider: "mock"}, RecordOptions{Batch: 1, Pages: []int{1, 2}})
		r.Record(&providers.ChatResult{Success: true, Provider: "mock"}, RecordOptions{Batch: 2, Pages: []int{3}})
		if err := r.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()

		var batches []int
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var c Call
			if err := json.Unmarshal(scanner.Bytes(), &c); err != nil {
				t.Fatalf("invalid line %q: %v", scanner.Text(), err)
			}
			batches = append(batches, c.Batch)
		}
		if len(batches) != 2 || batches[0] != 1 || batches[1] != 2 {
			t.Errorf("unexpected batches in log: %v", batches)
		}
	})
}
