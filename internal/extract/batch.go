package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/jackzampolin/pdfvision/internal/imaging"
	"github.com/jackzampolin/pdfvision/internal/llmcall"
	"github.com/jackzampolin/pdfvision/internal/providers"
	"github.com/jackzampolin/pdfvision/internal/schema"
)

// Batch is a contiguous run of encoded pages sent in one model call.
type Batch struct {
	Index  int // 1-based
	Total  int
	Pages  []int
	Images []*imaging.Encoded
}

// BatchOutput is the reconciled result of one batch.
type BatchOutput struct {
	// Results holds exactly one record per requested page, in page order.
	Results []PageResult

	// Surplus holds records the model returned beyond the requested pages.
	Surplus []map[string]any

	// Usage is zero for degraded batches.
	Usage TokenUsage

	Attempts int

	// Err is the last attempt's error when the batch was degraded.
	Err error
}

// BatchExtractorConfig configures a BatchExtractor.
type BatchExtractorConfig struct {
	Client    providers.VisionClient
	Schema    *schema.Schema
	Settings  Settings
	Logger    *slog.Logger
	Recorder  *llmcall.Recorder // optional
	SourcePDF string
}

// BatchExtractor turns one batch of page images into page records,
// retrying failed attempts and degrading the batch once retries run out.
type BatchExtractor struct {
	client   providers.VisionClient
	schema   *schema.Schema
	settings Settings
	logger   *slog.Logger
	recorder *llmcall.Recorder
	source   string

	// observeDelay, when set, sees every backoff before it is slept.
	observeDelay func(attempt int, d time.Duration)
}

// NewBatchExtractor creates a batch extractor.
func NewBatchExtractor(cfg BatchExtractorConfig) *BatchExtractor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := cfg.Schema
	if s == nil {
		s = schema.Default()
	}
	return &BatchExtractor{
		client:   cfg.Client,
		schema:   s,
		settings: cfg.Settings.withDefaults(),
		logger:   logger,
		recorder: cfg.Recorder,
		source:   cfg.SourcePDF,
	}
}

// Extract runs the batch. Model, parse and shape failures never escape:
// after the last attempt every page becomes a degraded record. The only
// error returned is the context's.
func (e *BatchExtractor) Extract(ctx context.Context, b Batch) (*BatchOutput, error) {
	prompt := BuildPrompt(e.schema, b.Pages)
	images := make([]providers.Image, len(b.Images))
	for i, img := range b.Images {
		images[i] = providers.Image{Base64: img.Base64, MIMEType: img.MIMEType}
	}

	var out *BatchOutput
	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			res, err := e.attempt(ctx, b, attempts, prompt, images)
			if err != nil {
				return err
			}
			out = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.settings.MaxRetries)),
		retry.DelayType(e.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("batch attempt failed, retrying",
				"batch", b.Index,
				"pages", b.Pages,
				"attempt", n+1,
				"error", err)
		}),
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		e.logger.Error("batch extraction failed, degrading pages",
			"batch", b.Index,
			"pages", b.Pages,
			"attempts", attempts,
			"error", err)
		return &BatchOutput{
			Results:  degradeBatch(e.schema, b.Pages, err.Error()),
			Attempts: attempts,
			Err:      err,
		}, nil
	}

	out.Attempts = attempts
	return out, nil
}

// delay is the retry-go DelayType: exponential backoff from the settings,
// stretched to honor a provider's Retry-After. retry-go numbers the first
// wait 1.
func (e *BatchExtractor) delay(n uint, err error, _ *retry.Config) time.Duration {
	retryIndex := max(int(n)-1, 0)
	d := e.settings.Backoff(retryIndex)
	if ra := providers.RetryAfter(err); ra > d {
		d = ra
	}
	if e.observeDelay != nil {
		e.observeDelay(retryIndex, d)
	}
	return d
}

func (e *BatchExtractor) attempt(ctx context.Context, b Batch, n int, prompt string, images []providers.Image) (*BatchOutput, error) {
	temp := e.settings.Temperature
	req := &providers.ChatRequest{
		Messages: []providers.Message{
			{Role: "user", Content: prompt, Images: images},
		},
		Model:          e.settings.Model,
		Temperature:    temp,
		MaxTokens:      e.settings.MaxTokens,
		ResponseFormat: &providers.ResponseFormat{Type: providers.ResponseFormatJSONObject},
		RequestID:      uuid.New().String(),
	}
	opts := llmcall.RecordOptions{
		SourcePDF:   e.source,
		Batch:       b.Index,
		Pages:       b.Pages,
		Attempt:     n,
		PromptKey:   llmcall.PromptKeyBatch,
		Temperature: &temp,
	}

	res, err := e.client.Chat(ctx, req)
	if err != nil {
		opts.Err = err
		e.recorder.Record(res, opts)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, retry.Unrecoverable(ctxErr)
		}
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	raw := res.ParsedJSON
	if len(raw) == 0 {
		raw, err = providers.ParseStructuredJSON(res.Content)
		if err != nil {
			opts.Err = err
			e.recorder.Record(res, opts)
			return nil, fmt.Errorf("invalid JSON response: %w", err)
		}
	}

	records, err := parseRecords(raw)
	if err != nil {
		opts.Err = err
		e.recorder.Record(res, opts)
		return nil, err
	}
	e.recorder.Record(res, opts)

	results, surplus := e.reconcile(records, b.Pages)
	if len(records) != len(b.Pages) {
		e.logger.Warn("page count mismatch in model response",
			"batch", b.Index,
			"requested", len(b.Pages),
			"returned", len(records))
	}
	if e.settings.ValidatePages {
		e.validate(results)
	}

	return &BatchOutput{
		Results: results,
		Surplus: surplus,
		Usage: TokenUsage{
			PromptTokens:     res.PromptTokens,
			CompletionTokens: res.CompletionTokens,
			TotalTokens:      res.TotalTokens,
		},
	}, nil
}

// validate logs records that do not conform to the schema. It is advisory.
func (e *BatchExtractor) validate(results []PageResult) {
	for _, r := range results {
		if r.Status != StatusSuccess {
			continue
		}
		doc, err := jsonDocument(r.Record())
		if err == nil {
			err = e.schema.ValidateDocument(doc)
		}
		if err != nil {
			e.logger.Warn("page record does not match schema",
				"page", r.PageNumber,
				"error", err)
		}
	}
}

// jsonDocument round-trips v into the generic form the validator expects.
func jsonDocument(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}
