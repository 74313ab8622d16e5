package extract

import (
	"errors"

	"github.com/jackzampolin/pdfvision/internal/pdf"
	"github.com/jackzampolin/pdfvision/internal/providers"
)

// Precondition failures. These are returned before any batch work starts.
var (
	// ErrMissingAPIKey is returned when no credential is available.
	ErrMissingAPIKey = providers.ErrMissingAPIKey

	// ErrFileNotFound is returned when the source PDF does not exist.
	ErrFileNotFound = errors.New("PDF file not found")

	// ErrInvalidPageRange is returned when the requested range is empty
	// after clamping.
	ErrInvalidPageRange = pdf.ErrInvalidPageRange
)

// errUnexpectedShape marks a model response that parsed as JSON but holds
// no page records. It is retried like any transport failure.
var errUnexpectedShape = errors.New("unexpected response format")
