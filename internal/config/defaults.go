package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/jackzampolin/pdfvision/internal/imaging"
	"github.com/jackzampolin/pdfvision/internal/providers"
)

// Entry is a documented configuration key.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
}

// DefaultEntries returns every configuration key with its default value.
// These seed viper's defaults, so they also define the keys that can be
// overridden through PDFVISION_ environment variables.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Provider
		// ===================
		{
			Key:         "provider.type",
			Value:       providers.OpenAIName,
			Description: "Vision client type (openai, openrouter)",
		},
		{
			Key:         "provider.base_url",
			Value:       providers.GroqBaseURL,
			Description: "OpenAI-compatible endpoint",
		},
		{
			Key:         "provider.model",
			Value:       providers.DefaultVisionModel,
			Description: "Vision model used for extraction",
		},
		{
			Key:         "provider.api_key",
			Value:       "${GROQ_API_KEY}",
			Description: "API key (uses environment variable)",
		},
		{
			Key:         "provider.timeout_seconds",
			Value:       120,
			Description: "HTTP timeout in seconds for model requests",
		},
		{
			Key:         "provider.transport_retries",
			Value:       0,
			Description: "Client-level retries per attempt; batch retries are governed by extraction.max_retries",
		},
		{
			Key:         "provider.temperature",
			Value:       0.05,
			Description: "Sampling temperature",
		},
		{
			Key:         "provider.max_tokens",
			Value:       8000,
			Description: "Maximum completion tokens per batch",
		},

		// ===================
		// Extraction
		// ===================
		{
			Key:         "extraction.max_retries",
			Value:       3,
			Description: "Attempts per batch before its pages are degraded",
		},
		{
			Key:         "extraction.retry_delay_seconds",
			Value:       2.0,
			Description: "Base backoff delay; attempt n waits delay*2^n",
		},
		{
			Key:         "extraction.rate_limit_delay_seconds",
			Value:       1.0,
			Description: "Pause between batches",
		},
		{
			Key:         "extraction.filter_profile",
			Value:       "strict",
			Description: "List filtering when merging pages (strict, lenient)",
		},
		{
			Key:         "extraction.tier_profile",
			Value:       "standard",
			Description: "Batch size and DPI table (standard, quality, economy)",
		},
		{
			Key:         "extraction.validate_pages",
			Value:       false,
			Description: "Validate each page record against the schema and log mismatches",
		},

		// ===================
		// Image
		// ===================
		{
			Key:         "image.format",
			Value:       imaging.FormatJPEG,
			Description: "Encoding sent to the model (jpeg, png)",
		},
		{
			Key:         "image.max_dimension",
			Value:       imaging.DefaultMaxDimension,
			Description: "Longest edge in pixels before downscaling",
		},
		{
			Key:         "image.max_bytes",
			Value:       int(imaging.DefaultMaxBytes),
			Description: "JPEG size target in bytes",
		},
		{
			Key:         "image.quality",
			Value:       imaging.DefaultQuality,
			Description: "Initial JPEG quality",
		},
		{
			Key:         "image.min_quality",
			Value:       imaging.DefaultMinQuality,
			Description: "JPEG quality floor",
		},
		{
			Key:         "image.quality_step",
			Value:       imaging.DefaultQualityStep,
			Description: "JPEG quality decrement per re-encode",
		},

		// ===================
		// Renderer
		// ===================
		{
			Key:         "renderer.pdftoppm",
			Value:       "pdftoppm",
			Description: "pdftoppm binary name or path",
		},

		// ===================
		// Watch
		// ===================
		{
			Key:         "watch.inbox",
			Value:       "",
			Description: "Directory watched for new PDFs (default ~/.pdfvision/inbox)",
		},
		{
			Key:         "watch.outbox",
			Value:       "",
			Description: "Directory artifacts are written to (default ~/.pdfvision/outbox)",
		},
	}
}

// GetDefault returns the default entry for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	for _, e := range DefaultEntries() {
		v.SetDefault(e.Key, e.Value)
	}
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &cfg
}
