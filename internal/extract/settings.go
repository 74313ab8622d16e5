package extract

import (
	"fmt"
	"time"

	"github.com/jackzampolin/pdfvision/internal/imaging"
	"github.com/jackzampolin/pdfvision/internal/providers"
)

// Tier is one row of the auto-configuration table.
type Tier struct {
	// MaxPages is the inclusive upper bound on total document pages.
	// Zero means unbounded.
	MaxPages    int    `json:"max_pages,omitempty"`
	BatchSize   int    `json:"batch_size"`
	DPI         int    `json:"dpi"`
	Description string `json:"description"`
}

// Tiers maps a document's page count to a batch size and resolution.
// Rows are ordered by ascending MaxPages; the last row should be unbounded.
type Tiers []Tier

// Configure returns the first tier whose bound covers totalPages.
func (t Tiers) Configure(totalPages int) Tier {
	for _, tier := range t {
		if tier.MaxPages == 0 || totalPages <= tier.MaxPages {
			return tier
		}
	}
	if len(t) == 0 {
		return StandardTiers.Configure(totalPages)
	}
	return t[len(t)-1]
}

// Tier profiles.
const (
	TierProfileStandard = "standard"
	TierProfileQuality  = "quality"
	TierProfileEconomy  = "economy"
)

// StandardTiers is the default auto-configuration table.
var StandardTiers = Tiers{
	{MaxPages: 10, BatchSize: 2, DPI: 200, Description: "Small PDF - High quality"},
	{MaxPages: 50, BatchSize: 3, DPI: 150, Description: "Medium PDF - Balanced"},
	{MaxPages: 200, BatchSize: 4, DPI: 150, Description: "Large PDF - Efficient"},
	{BatchSize: 5, DPI: 120, Description: "Enterprise PDF - Maximum efficiency"},
}

// QualityTiers favors resolution over request count.
var QualityTiers = Tiers{
	{MaxPages: 10, BatchSize: 1, DPI: 300, Description: "Small PDF - Maximum quality"},
	{MaxPages: 50, BatchSize: 2, DPI: 200, Description: "Medium PDF - High quality"},
	{MaxPages: 200, BatchSize: 3, DPI: 200, Description: "Large PDF - High quality"},
	{BatchSize: 4, DPI: 150, Description: "Enterprise PDF - Balanced"},
}

// EconomyTiers favors fewer, cheaper requests.
var EconomyTiers = Tiers{
	{MaxPages: 10, BatchSize: 3, DPI: 150, Description: "Small PDF - Economy"},
	{MaxPages: 50, BatchSize: 4, DPI: 120, Description: "Medium PDF - Economy"},
	{MaxPages: 200, BatchSize: 5, DPI: 120, Description: "Large PDF - Economy"},
	{BatchSize: 6, DPI: 100, Description: "Enterprise PDF - Minimum cost"},
}

// TierProfile returns the named tier table.
func TierProfile(name string) (Tiers, error) {
	switch name {
	case "", TierProfileStandard:
		return StandardTiers, nil
	case TierProfileQuality:
		return QualityTiers, nil
	case TierProfileEconomy:
		return EconomyTiers, nil
	default:
		return nil, fmt.Errorf("unknown tier profile: %s", name)
	}
}

// FilterProfile selects how aggressively list items are filtered when
// pages are merged.
type FilterProfile string

const (
	// FilterStrict drops placeholder text and empty tables.
	FilterStrict FilterProfile = "strict"
	// FilterLenient only removes duplicates.
	FilterLenient FilterProfile = "lenient"
)

// ParseFilterProfile validates a filter profile name.
func ParseFilterProfile(name string) (FilterProfile, error) {
	switch FilterProfile(name) {
	case "", FilterStrict:
		return FilterStrict, nil
	case FilterLenient:
		return FilterLenient, nil
	default:
		return "", fmt.Errorf("unknown filter profile: %s", name)
	}
}

// Settings holds every tunable of an extraction run.
type Settings struct {
	// Model parameters
	Model       string
	Temperature float64
	MaxTokens   int

	// Retry and pacing
	MaxRetries     int
	RetryDelay     time.Duration
	RateLimitDelay time.Duration

	Tiers  Tiers
	Filter FilterProfile

	// ValidatePages checks each returned record against the schema and
	// logs mismatches. It never rejects a record.
	ValidatePages bool

	Image imaging.Options
}

// DefaultSettings returns the out-of-the-box extraction profile.
func DefaultSettings() Settings {
	return Settings{
		Model:          providers.DefaultVisionModel,
		Temperature:    0.05,
		MaxTokens:      8000,
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
		RateLimitDelay: 1 * time.Second,
		Tiers:          StandardTiers,
		Filter:         FilterStrict,
		Image:          imaging.DefaultOptions(),
	}
}

// Backoff returns the wait after the given zero-based failed attempt.
func (s Settings) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return s.RetryDelay * time.Duration(1<<attempt)
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.MaxRetries < 1 {
		s.MaxRetries = 1
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = def.MaxTokens
	}
	if len(s.Tiers) == 0 {
		s.Tiers = def.Tiers
	}
	if s.Filter == "" {
		s.Filter = def.Filter
	}
	if s.RetryDelay < 0 {
		s.RetryDelay = 0
	}
	if s.RateLimitDelay < 0 {
		s.RateLimitDelay = 0
	}
	return s
}
