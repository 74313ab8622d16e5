// Package pdf inspects PDF files and rasterizes page ranges.
package pdf

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrInvalidPageRange is returned when a requested range selects no pages.
var ErrInvalidPageRange = errors.New("invalid page range")

// Info describes a PDF file.
type Info struct {
	Path          string  `json:"file_path" yaml:"file_path"`
	FileSizeBytes int64   `json:"file_size_bytes" yaml:"file_size_bytes"`
	FileSizeMB    float64 `json:"file_size_mb" yaml:"file_size_mb"`
	PageCount     int     `json:"total_pages" yaml:"total_pages"`
	Version       string  `json:"pdf_version,omitempty" yaml:"pdf_version,omitempty"`
	Encrypted     bool    `json:"encrypted" yaml:"encrypted"`
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}

// Inspect reads size, page count, version and encryption state.
func Inspect(path string) (*Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat PDF: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	return &Info{
		Path:          path,
		FileSizeBytes: st.Size(),
		FileSizeMB:    math.Round(float64(st.Size())/(1024*1024)*100) / 100,
		PageCount:     pdfCtx.PageCount,
		Version:       pdfCtx.VersionString(),
		Encrypted:     pdfCtx.Encrypt != nil,
	}, nil
}

// ClampRange bounds [start, end] to [1, total]. A non-positive start means
// the first page and a non-positive end means the last page.
func ClampRange(start, end, total int) (int, int, error) {
	if total <= 0 {
		return 0, 0, fmt.Errorf("%w: document has no pages", ErrInvalidPageRange)
	}
	if start < 1 {
		start = 1
	}
	if end <= 0 || end > total {
		end = total
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: start page %d is after end page %d (document has %d pages)",
			ErrInvalidPageRange, start, end, total)
	}
	return start, end, nil
}
