package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/jackzampolin/pdfvision/internal/imaging"
	"github.com/jackzampolin/pdfvision/internal/llmcall"
	"github.com/jackzampolin/pdfvision/internal/pdf"
	"github.com/jackzampolin/pdfvision/internal/providers"
	"github.com/jackzampolin/pdfvision/internal/schema"
)

// ProgressFunc receives one notification per batch, in order.
type ProgressFunc func(message string, current, total int)

// ClientFactory creates the vision client for one run.
type ClientFactory func(apiKey string) (providers.VisionClient, error)

// Request describes one extraction.
type Request struct {
	Path string

	// Schema defaults to the base preset.
	Schema *schema.Schema

	// StartPage and EndPage are 1-based and inclusive. Zero means the
	// first and last page respectively.
	StartPage int
	EndPage   int

	Progress ProgressFunc

	// APIKey overrides the pipeline's configured key.
	APIKey string

	// Save writes the artifact to OutputPath, or to
	// <base>_extraction_results.json when OutputPath is empty.
	Save       bool
	OutputPath string
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Settings Settings

	// APIKey is used when a request carries none.
	APIKey string

	// NewClient defaults to providers.New with the key and model settings.
	NewClient ClientFactory

	// Rasterizer defaults to pdftoppm on PATH.
	Rasterizer pdf.Rasterizer

	// PageCounter defaults to pdf.PageCount.
	PageCounter func(path string) (int, error)

	Logger   *slog.Logger
	Recorder *llmcall.Recorder // optional
}

// Pipeline turns a PDF into page records and one accumulated record.
// Batches run one at a time, in page order.
type Pipeline struct {
	settings   Settings
	apiKey     string
	newClient  ClientFactory
	rasterizer pdf.Rasterizer
	pageCount  func(string) (int, error)
	logger     *slog.Logger
	recorder   *llmcall.Recorder

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	settings := cfg.Settings.withDefaults()

	p := &Pipeline{
		settings:   settings,
		apiKey:     cfg.APIKey,
		newClient:  cfg.NewClient,
		rasterizer: cfg.Rasterizer,
		pageCount:  cfg.PageCounter,
		logger:     logger,
		recorder:   cfg.Recorder,
		sleep:      sleepContext,
		now:        time.Now,
	}
	if p.newClient == nil {
		p.newClient = func(apiKey string) (providers.VisionClient, error) {
			return providers.New(providers.Config{APIKey: apiKey, Model: settings.Model})
		}
	}
	if p.rasterizer == nil {
		p.rasterizer = pdf.NewPdftoppmRenderer(pdf.PdftoppmConfig{Logger: logger})
	}
	if p.pageCount == nil {
		p.pageCount = pdf.PageCount
	}
	return p
}

// Settings returns the effective settings.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Extract runs the whole pipeline. Precondition failures (missing file,
// missing credential, unreadable PDF, empty page range, rasterization)
// are returned before any batch runs. Batch failures are absorbed into
// degraded page results. The only other error is ctx's.
func (p *Pipeline) Extract(ctx context.Context, req Request) (*Result, *Metadata, error) {
	if req.Path == "" {
		return nil, nil, fmt.Errorf("%w: no path given", ErrFileNotFound)
	}
	if _, err := os.Stat(req.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrFileNotFound, req.Path)
		}
		return nil, nil, fmt.Errorf("failed to stat PDF: %w", err)
	}

	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = p.apiKey
	}
	if apiKey == "" {
		return nil, nil, ErrMissingAPIKey
	}
	client, err := p.newClient(apiKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			p.logger.Warn("failed to close vision client", "error", cerr)
		}
	}()

	total, err := p.pageCount(req.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	start, end, err := pdf.ClampRange(req.StartPage, req.EndPage, total)
	if err != nil {
		return nil, nil, err
	}

	s := req.Schema
	if s == nil {
		s = schema.Default()
	}
	tier := p.settings.Tiers.Configure(total)
	began := p.now()

	p.logger.Info("starting extraction",
		"path", req.Path,
		"total_pages", total,
		"start", start,
		"end", end,
		"batch_size", tier.BatchSize,
		"dpi", tier.DPI,
		"config", tier.Description)

	images, err := p.rasterizer.Rasterize(ctx, req.Path, tier.DPI, start, end)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, ctxErr
		}
		return nil, nil, fmt.Errorf("failed to rasterize PDF: %w", err)
	}
	if want := end - start + 1; len(images) != want {
		return nil, nil, fmt.Errorf("rasterizer returned %d pages, expected %d", len(images), want)
	}

	batchSize := max(tier.BatchSize, 1)
	totalBatches := (len(images) + batchSize - 1) / batchSize

	encoder := imaging.NewEncoder(p.settings.Image)
	extractor := NewBatchExtractor(BatchExtractorConfig{
		Client:    client,
		Schema:    s,
		Settings:  p.settings,
		Logger:    p.logger,
		Recorder:  p.recorder,
		SourcePDF: req.Path,
	})

	pageResults := make([]PageResult, 0, len(images))
	var usage TokenUsage
	attempts := 0
	surplus := 0

	for i := 0; i < totalBatches; i++ {
		lo := i * batchSize
		hi := min(lo+batchSize, len(images))
		pages := make([]int, hi-lo)
		for j := range pages {
			pages[j] = start + lo + j
		}

		if req.Progress != nil {
			req.Progress(progressMessage(i+1, totalBatches, pages), i+1, totalBatches)
		}

		out, err := p.runBatch(ctx, extractor, encoder, s, images[lo:hi], Batch{
			Index: i + 1,
			Total: totalBatches,
			Pages: pages,
		})
		if err != nil {
			return nil, nil, err
		}
		// Release rasterized pages once they are encoded and sent.
		clear(images[lo:hi])

		pageResults = append(pageResults, out.Results...)
		usage.Add(out.Usage)
		attempts += out.Attempts
		surplus += len(out.Surplus)
		if len(out.Surplus) > 0 {
			p.logger.Warn("model returned more records than pages, extra records dropped",
				"batch", i+1,
				"extra", len(out.Surplus))
		}

		if i < totalBatches-1 {
			if err := p.sleep(ctx, p.settings.RateLimitDelay); err != nil {
				return nil, nil, err
			}
		}
	}

	records := make([]map[string]any, len(pageResults))
	for i, pr := range pageResults {
		records[i] = pr.Record()
	}
	accumulated := NewAccumulator(s, p.settings.Filter).Accumulate(records)

	elapsed := p.now().Sub(began).Seconds()
	result := &Result{
		SourcePDF:       req.Path,
		PageResults:     pageResults,
		AccumulatedData: accumulated,
		ProcessingStats: Stats{
			TotalPages:            len(images),
			TotalBatches:          totalBatches,
			BatchSize:             batchSize,
			DPIUsed:               tier.DPI,
			ProcessingTimeSeconds: elapsed,
			AutoConfig:            tier.Description,
		},
	}
	meta := &Metadata{
		ProcessingTimeSeconds: elapsed,
		TokenUsage:            usage,
		Timestamp:             p.now().Format(TimestampFormat),
		PagesProcessed:        len(images),
		BatchesUsed:           totalBatches,
		DegradedPages:         result.PagesWithStatus(StatusDegraded),
		PartialPages:          result.PagesWithStatus(StatusPartial),
		Attempts:              attempts,
		SurplusRecords:        surplus,
	}

	p.logger.Info("extraction complete",
		"path", req.Path,
		"pages", len(pageResults),
		"batches", totalBatches,
		"degraded", len(meta.DegradedPages),
		"tokens", usage.TotalTokens,
		"seconds", elapsed)

	if req.Save {
		out := req.OutputPath
		if out == "" {
			out = ArtifactName(req.Path)
		}
		if err := SaveArtifact(out, result, meta); err != nil {
			return result, meta, err
		}
		p.logger.Info("saved extraction results", "path", out)
	}

	return result, meta, nil
}

// runBatch encodes a batch's pages and extracts it. An encoding failure
// degrades the batch like an exhausted retry.
func (p *Pipeline) runBatch(ctx context.Context, ex *BatchExtractor, enc *imaging.Encoder, s *schema.Schema, imgs []image.Image, b Batch) (*BatchOutput, error) {
	encoded, err := enc.EncodeAll(imgs)
	if err != nil {
		p.logger.Error("failed to encode batch images, degrading pages",
			"batch", b.Index,
			"pages", b.Pages,
			"error", err)
		return &BatchOutput{Results: degradeBatch(s, b.Pages, err.Error()), Err: err}, nil
	}
	b.Images = encoded
	return ex.Extract(ctx, b)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
