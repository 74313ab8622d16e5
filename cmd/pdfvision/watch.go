package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/pdfvision/internal/config"
	"github.com/jackzampolin/pdfvision/internal/extract"
	"github.com/jackzampolin/pdfvision/internal/llmcall"
)

var (
	watchInbox  string
	watchOutbox string
	watchSettle time.Duration
	watchAPIKey string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Extract every PDF dropped into an inbox directory",
	Long: `Watch an inbox directory and extract each PDF that appears in it,
writing <name>_extraction_results.json to the outbox. PDFs already in the
inbox without a result are processed at startup. Files are picked up once
they have stopped changing for --settle.

Edits to the config file take effect for the next PDF. Every model
attempt is appended to ~/.pdfvision/logs/calls.jsonl.

Examples:
  pdfvision watch
  pdfvision watch --inbox ./scans --outbox ./results`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		h, err := getHome()
		if err != nil {
			return err
		}

		cfg := mgr.Get()
		inbox := firstNonEmpty(watchInbox, cfg.Watch.Inbox, h.InboxDir())
		outbox := firstNonEmpty(watchOutbox, cfg.Watch.Outbox, h.OutboxDir())
		for _, dir := range []string{inbox, outbox} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}

		recorder, err := newRecorder(h.CallLogPath())
		if err != nil {
			return err
		}
		defer recorder.Close()

		w := &inboxWatcher{inbox: inbox, outbox: outbox, settle: watchSettle, recorder: recorder, seen: map[string]time.Time{}}
		if err := w.configure(cfg); err != nil {
			return err
		}

		mgr.OnChange(func(cfg *config.Config) {
			if err := w.configure(cfg); err != nil {
				logger.Error("ignoring invalid configuration change", "error", err)
				return
			}
			logger.Info("configuration reloaded")
		})
		if mgr.ConfigFile() != "" {
			mgr.WatchConfig()
		}

		return w.run(ctx)
	},
}

// inboxWatcher processes PDFs from inbox one at a time.
type inboxWatcher struct {
	inbox    string
	outbox   string
	settle   time.Duration
	recorder *llmcall.Recorder

	mu       sync.Mutex
	pipeline *extract.Pipeline

	// seen maps processed paths to the modification time they had.
	seen map[string]time.Time
}

func (w *inboxWatcher) configure(cfg *config.Config) error {
	apiKey := watchAPIKey
	if apiKey == "" {
		apiKey = cfg.ResolveAPIKey()
	}
	p, err := newPipeline(cfg, apiKey, w.recorder)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.pipeline = p
	w.mu.Unlock()
	return nil
}

func (w *inboxWatcher) current() *extract.Pipeline {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pipeline
}

func (w *inboxWatcher) run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.inbox); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.inbox, err)
	}

	logger.Info("watching for PDFs", "inbox", w.inbox, "outbox", w.outbox)

	if err := w.backlog(ctx); err != nil {
		return err
	}

	pending := map[string]time.Time{}
	tick := time.NewTicker(max(w.settle/2, 50*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if isPDF(ev.Name) && (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case now := <-tick.C:
			var ready []string
			for path, last := range pending {
				if now.Sub(last) >= w.settle {
					ready = append(ready, path)
				}
			}
			sort.Strings(ready)
			for _, path := range ready {
				delete(pending, path)
				if err := w.process(ctx, path); err != nil {
					return err
				}
			}
		}
	}
}

// backlog processes PDFs present at startup that have no result yet.
func (w *inboxWatcher) backlog(ctx context.Context) error {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		return fmt.Errorf("failed to read inbox: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isPDF(e.Name()) {
			continue
		}
		path := filepath.Join(w.inbox, e.Name())
		if _, err := os.Stat(w.artifactPath(path)); err == nil {
			continue
		}
		if err := w.process(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// process extracts one PDF. Only cancellation is returned; other failures
// are logged so the watcher keeps going.
func (w *inboxWatcher) process(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		// Removed before it settled.
		return nil
	}
	if last, ok := w.seen[path]; ok && !info.ModTime().After(last) {
		return nil
	}
	w.seen[path] = info.ModTime()

	out := w.artifactPath(path)
	logger.Info("processing PDF", "path", path)
	_, meta, err := w.current().Extract(ctx, extract.Request{
		Path:       path,
		Save:       true,
		OutputPath: out,
		Progress: func(_ string, current, total int) {
			logger.Info("batch started", "path", path, "batch", current, "total", total)
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		logger.Error("extraction failed", "path", path, "error", err)
		return nil
	}

	logger.Info("wrote extraction results",
		"path", out,
		"pages", meta.PagesProcessed,
		"degraded", len(meta.DegradedPages),
		"tokens", meta.TokenUsage.TotalTokens)
	return nil
}

func (w *inboxWatcher) artifactPath(pdfPath string) string {
	return filepath.Join(w.outbox, extract.ArtifactName(pdfPath))
}

func isPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	watchCmd.Flags().StringVar(&watchInbox, "inbox", "", "directory to watch (default: watch.inbox or ~/.pdfvision/inbox)")
	watchCmd.Flags().StringVar(&watchOutbox, "outbox", "", "directory for results (default: watch.outbox or ~/.pdfvision/outbox)")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 2*time.Second, "quiet period before a new file is processed")
	watchCmd.Flags().StringVar(&watchAPIKey, "api-key", "", "API key (default: provider.api_key or GROQ_API_KEY)")

	rootCmd.AddCommand(watchCmd)
}
