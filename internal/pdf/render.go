package pdf

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Rasterizer renders a page range of a PDF to images, one per page in
// ascending page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, path string, dpi, start, end int) ([]image.Image, error)
}

// PdftoppmConfig configures the poppler-based renderer.
type PdftoppmConfig struct {
	Binary  string // binary name or absolute path; if empty -> "pdftoppm"
	TempDir string // parent for scratch directories; if empty -> os.TempDir()
	Logger  *slog.Logger
}

// PdftoppmRenderer rasterizes pages with pdftoppm (poppler-utils).
type PdftoppmRenderer struct {
	binary  string
	tempDir string
	runner  Runner
	counter func(string) (int, error)
	logger  *slog.Logger
}

// NewPdftoppmRenderer creates a renderer that shells out to pdftoppm.
func NewPdftoppmRenderer(cfg PdftoppmConfig) *PdftoppmRenderer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "pdftoppm"
	}
	return &PdftoppmRenderer{
		binary:  cfg.Binary,
		tempDir: cfg.TempDir,
		runner:  execRunner{logger: logger},
		counter: PageCount,
		logger:  logger,
	}
}

// Rasterize renders pages [start, end] at dpi. The range is clamped to the
// document; a range that selects nothing is an error.
func (r *PdftoppmRenderer) Rasterize(ctx context.Context, path string, dpi, start, end int) ([]image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot read PDF %s: %w", path, err)
	}
	if dpi <= 0 {
		return nil, fmt.Errorf("invalid resolution: %d dpi", dpi)
	}

	total, err := r.counter(path)
	if err != nil {
		return nil, fmt.Errorf("error converting PDF to images: %w", err)
	}
	start, end, err = ClampRange(start, end, total)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(r.tempDir, "pdfvision-pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", err)
		}
	}()

	// pdftoppm -png -r DPI -f START -l END <in.pdf> <tmp/page>
	prefix := filepath.Join(tmpDir, "page")
	_, stderr, err := r.runner.Run(ctx, r.binary,
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", strconv.Itoa(start),
		"-l", strconv.Itoa(end),
		path,
		prefix,
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, strings.TrimSpace(string(stderr)))
	}

	files, err := renderedPages(prefix)
	if err != nil {
		return nil, err
	}
	want := end - start + 1
	if len(files) != want {
		return nil, fmt.Errorf("pdftoppm rendered %d pages, expected %d", len(files), want)
	}

	images := make([]image.Image, 0, len(files))
	for _, file := range files {
		img, err := decodePNG(file)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	r.logger.Debug("rasterized pages", "path", path, "start", start, "end", end, "dpi", dpi)
	return images, nil
}

var pageSuffix = regexp.MustCompile(`-(\d+)\.png$`)

// renderedPages returns prefix-N.png files ordered by page number. pdftoppm
// zero-pads N to the width of the document's page count.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to list rendered pages: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}

	pageOf := func(p string) int {
		m := pageSuffix.FindStringSubmatch(p)
		if len(m) < 2 {
			return 0
		}
		n, _ := strconv.Atoi(m[1])
		return n
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageOf(matches[i]) < pageOf(matches[j])
	})
	return matches, nil
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rendered page: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
