package extract

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jackzampolin/pdfvision/internal/llmcall"
	"github.com/jackzampolin/pdfvision/internal/providers"
)

type fakeRasterizer struct {
	calls int
	dpi   int
	start int
	end   int
	nilAt int // 1-based page rendered as nil; 0 for none
	err   error
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, dpi, start, end int) ([]image.Image, error) {
	f.calls++
	f.dpi, f.start, f.end = dpi, start, end
	if f.err != nil {
		return nil, f.err
	}
	out := make([]image.Image, 0, end-start+1)
	for p := start; p <= end; p++ {
		if p == f.nilAt {
			out = append(out, nil)
			continue
		}
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		img.Set(1, 1, color.RGBA{R: 200, A: 255})
		out = append(out, img)
	}
	return out, nil
}

type pipelineHarness struct {
	pipeline   *Pipeline
	mock       *providers.MockClient
	rasterizer *fakeRasterizer
	recorder   *llmcall.Recorder
	sleeps     []time.Duration
	path       string
}

func newHarness(t *testing.T, pageCount int) *pipelineHarness {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &pipelineHarness{
		mock:       providers.NewMockClient(),
		rasterizer: &fakeRasterizer{},
		recorder:   llmcall.NewRecorder(nil),
		path:       path,
	}

	s := DefaultSettings()
	s.RetryDelay = time.Millisecond
	s.RateLimitDelay = 2 * time.Second

	h.pipeline = NewPipeline(PipelineConfig{
		Settings: s,
		APIKey:   "test-key",
		NewClient: func(apiKey string) (providers.VisionClient, error) {
			if apiKey == "" {
				t.Error("client created without a key")
			}
			return h.mock, nil
		},
		Rasterizer:  h.rasterizer,
		PageCounter: func(string) (int, error) { return pageCount, nil },
		Recorder:    h.recorder,
	})
	h.pipeline.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	h.pipeline.now = func() time.Time {
		clock = clock.Add(1500 * time.Millisecond)
		return clock
	}
	return h
}

type progressEvent struct {
	message        string
	current, total int
}

func TestPipeline_ThreePages(t *testing.T) {
	h := newHarness(t, 3)
	h.mock.Responses = []string{
		`{"pages": [{"content": "alpha", "key_points": ["a"], "table_count": 1, "error": 0},
		            {"content": "beta", "key_points": ["b", "a"], "table_count": 0, "error": 0}]}`,
		`{"pages": [{"content": "gamma", "key_points": ["c"], "table_count": 2, "error": 0}]}`,
	}

	var events []progressEvent
	res, meta, err := h.pipeline.Extract(context.Background(), Request{
		Path: h.path,
		Progress: func(msg string, cur, total int) {
			events = append(events, progressEvent{msg, cur, total})
		},
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if got := res.PageNumbers(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("page numbers = %v", got)
	}
	for _, pr := range res.PageResults {
		if pr.Status != StatusSuccess {
			t.Errorf("page %d status = %s", pr.PageNumber, pr.Status)
		}
	}

	wantEvents := []progressEvent{
		{"Processing batch 1/2: pages 1-2", 1, 2},
		{"Processing batch 2/2: pages 3-3", 2, 2},
	}
	if !reflect.DeepEqual(events, wantEvents) {
		t.Errorf("progress = %+v, want %+v", events, wantEvents)
	}

	if h.rasterizer.dpi != 200 || h.rasterizer.start != 1 || h.rasterizer.end != 3 {
		t.Errorf("rasterizer called with dpi %d range %d-%d", h.rasterizer.dpi, h.rasterizer.start, h.rasterizer.end)
	}
	if !reflect.DeepEqual(h.sleeps, []time.Duration{2 * time.Second}) {
		t.Errorf("sleeps = %v, want one pause between batches", h.sleeps)
	}
	if h.mock.CloseCount() != 1 {
		t.Errorf("client closed %d times", h.mock.CloseCount())
	}

	acc := res.AccumulatedData
	if acc["content"] != "alpha beta gamma" {
		t.Errorf("content = %q", acc["content"])
	}
	if !reflect.DeepEqual(acc["key_points"], []any{"a", "b", "c"}) {
		t.Errorf("key_points = %v", acc["key_points"])
	}
	if acc["table_count"] != int64(3) {
		t.Errorf("table_count = %#v", acc["table_count"])
	}

	stats := res.ProcessingStats
	if stats.TotalPages != 3 || stats.TotalBatches != 2 || stats.BatchSize != 2 || stats.DPIUsed != 200 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.AutoConfig != "Small PDF - High quality" {
		t.Errorf("AutoConfig = %q", stats.AutoConfig)
	}

	if meta.PagesProcessed != 3 || meta.BatchesUsed != 2 || meta.Attempts != 2 {
		t.Errorf("meta = %+v", meta)
	}
	if meta.TokenUsage != (TokenUsage{PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300}) {
		t.Errorf("TokenUsage = %+v", meta.TokenUsage)
	}
	if len(meta.DegradedPages) != 0 || len(meta.PartialPages) != 0 {
		t.Errorf("degraded %v partial %v", meta.DegradedPages, meta.PartialPages)
	}
	if meta.ProcessingTimeSeconds != 1.5 {
		t.Errorf("ProcessingTimeSeconds = %v", meta.ProcessingTimeSeconds)
	}
	if _, err := time.Parse(TimestampFormat, meta.Timestamp); err != nil {
		t.Errorf("Timestamp %q: %v", meta.Timestamp, err)
	}
	if n := len(h.recorder.Calls()); n != 2 {
		t.Errorf("recorded %d calls, want 2", n)
	}
}

func TestPipeline_PageRange(t *testing.T) {
	h := newHarness(t, 20)
	h.mock.ResponseText = `{"pages": [{"content": "x"}, {"content": "y"}, {"content": "z"}]}`

	res, _, err := h.pipeline.Extract(context.Background(), Request{Path: h.path, StartPage: 5, EndPage: 7})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got := res.PageNumbers(); !reflect.DeepEqual(got, []int{5, 6, 7}) {
		t.Errorf("page numbers = %v", got)
	}
	// Tiering uses the document size, not the range size.
	if h.rasterizer.dpi != 150 || res.ProcessingStats.BatchSize != 3 {
		t.Errorf("dpi %d batch size %d", h.rasterizer.dpi, res.ProcessingStats.BatchSize)
	}
	if len(h.sleeps) != 0 {
		t.Errorf("single batch should not pause, got %v", h.sleeps)
	}
}

func TestPipeline_Preconditions(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		h := newHarness(t, 3)
		_, _, err := h.pipeline.Extract(context.Background(), Request{Path: filepath.Join(t.TempDir(), "nope.pdf")})
		if !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("error = %v, want ErrFileNotFound", err)
		}
		if h.mock.RequestCount() != 0 || h.rasterizer.calls != 0 {
			t.Error("no work should happen before the file check")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		h := newHarness(t, 3)
		h.pipeline.apiKey = ""
		_, _, err := h.pipeline.Extract(context.Background(), Request{Path: h.path})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Fatalf("error = %v, want ErrMissingAPIKey", err)
		}
		if h.rasterizer.calls != 0 {
			t.Error("rasterizer should not run without a key")
		}
	})

	t.Run("request key overrides", func(t *testing.T) {
		h := newHarness(t, 1)
		h.pipeline.apiKey = ""
		h.mock.ResponseText = `[{"content": "ok"}]`
		if _, _, err := h.pipeline.Extract(context.Background(), Request{Path: h.path, APIKey: "override"}); err != nil {
			t.Fatalf("Extract() error = %v", err)
		}
	})

	t.Run("invalid range", func(t *testing.T) {
		h := newHarness(t, 3)
		_, _, err := h.pipeline.Extract(context.Background(), Request{Path: h.path, StartPage: 5, EndPage: 9})
		if !errors.Is(err, ErrInvalidPageRange) {
			t.Fatalf("error = %v, want ErrInvalidPageRange", err)
		}
		if h.mock.CloseCount() != 1 {
			t.Errorf("client closed %d times", h.mock.CloseCount())
		}
		if h.mock.RequestCount() != 0 {
			t.Error("no model calls expected")
		}
	})

	t.Run("rasterize failure", func(t *testing.T) {
		h := newHarness(t, 3)
		h.rasterizer.err = errors.New("pdftoppm exploded")
		_, _, err := h.pipeline.Extract(context.Background(), Request{Path: h.path})
		if err == nil {
			t.Fatal("expected error")
		}
		if h.mock.CloseCount() != 1 {
			t.Errorf("client closed %d times", h.mock.CloseCount())
		}
	})
}

func TestPipeline_DegradedBatchContinues(t *testing.T) {
	h := newHarness(t, 3)
	h.mock.Responses = []string{
		"garbage", "garbage", "garbage",
		`{"pages": [{"content": "gamma"}]}`,
	}

	res, meta, err := h.pipeline.Extract(context.Background(), Request{Path: h.path})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	want := []Status{StatusDegraded, StatusDegraded, StatusSuccess}
	for i, st := range want {
		if res.PageResults[i].Status != st {
			t.Errorf("page %d status = %s, want %s", i+1, res.PageResults[i].Status, st)
		}
	}
	if !reflect.DeepEqual(meta.DegradedPages, []int{1, 2}) {
		t.Errorf("DegradedPages = %v", meta.DegradedPages)
	}
	if meta.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", meta.Attempts)
	}
	// Only the successful batch reports usage.
	if meta.TokenUsage.TotalTokens != 150 {
		t.Errorf("TotalTokens = %d, want 150", meta.TokenUsage.TotalTokens)
	}
}

func TestPipeline_EncodingFailureDegrades(t *testing.T) {
	h := newHarness(t, 3)
	h.rasterizer.nilAt = 2
	h.mock.ResponseText = `[{"content": "third"}]`

	res, _, err := h.pipeline.Extract(context.Background(), Request{Path: h.path})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if res.PageResults[0].Status != StatusDegraded || res.PageResults[1].Status != StatusDegraded {
		t.Errorf("first batch should be degraded: %+v", res.PageResults[:2])
	}
	if res.PageResults[2].Status != StatusSuccess {
		t.Errorf("page 3 = %+v", res.PageResults[2])
	}
	if h.mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", h.mock.RequestCount())
	}
}

func TestPipeline_SurplusRecords(t *testing.T) {
	h := newHarness(t, 1)
	h.mock.ResponseText = `[{"content": "one"}, {"content": "extra"}]`

	res, meta, err := h.pipeline.Extract(context.Background(), Request{Path: h.path})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(res.PageResults) != 1 || meta.SurplusRecords != 1 {
		t.Errorf("results %d surplus %d", len(res.PageResults), meta.SurplusRecords)
	}
}

func TestPipeline_Save(t *testing.T) {
	h := newHarness(t, 1)
	h.mock.ResponseText = `[{"content": "R&D – Zürich"}]`
	out := filepath.Join(t.TempDir(), "out", "result.json")

	_, _, err := h.pipeline.Extract(context.Background(), Request{Path: h.path, Save: true, OutputPath: out})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	var artifact struct {
		ProcessingMetadata map[string]any `json:"processing_metadata"`
		ExtractionResults  struct {
			SourcePDF   string           `json:"source_pdf"`
			PageResults []map[string]any `json:"page_results"`
		} `json:"extraction_results"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("artifact is not JSON: %v", err)
	}
	if artifact.ExtractionResults.SourcePDF != h.path {
		t.Errorf("source_pdf = %q", artifact.ExtractionResults.SourcePDF)
	}
	if got := artifact.ExtractionResults.PageResults[0]["content"]; got != "R&D – Zürich" {
		t.Errorf("content = %q", got)
	}
	if artifact.ProcessingMetadata["pages_processed"] != float64(1) {
		t.Errorf("metadata = %v", artifact.ProcessingMetadata)
	}
}

func TestPipeline_ContextCancelled(t *testing.T) {
	h := newHarness(t, 3)
	h.mock.ResponseText = `{"pages": [{"content": "a"}, {"content": "b"}]}`

	ctx, cancel := context.WithCancel(context.Background())
	h.pipeline.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, _, err := h.pipeline.Extract(ctx, Request{Path: h.path})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if h.mock.RequestCount() != 1 {
		t.Errorf("requests = %d, want 1", h.mock.RequestCount())
	}
	if h.mock.CloseCount() != 1 {
		t.Errorf("client closed %d times", h.mock.CloseCount())
	}
}
