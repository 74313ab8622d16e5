package config

// Config holds pdfvision configuration.
// Stored at: ~/.pdfvision/config.yaml
type Config struct {
	Provider   ProviderCfg   `mapstructure:"provider" yaml:"provider"`
	Extraction ExtractionCfg `mapstructure:"extraction" yaml:"extraction"`
	Image      ImageCfg      `mapstructure:"image" yaml:"image"`
	Renderer   RendererCfg   `mapstructure:"renderer" yaml:"renderer"`
	Watch      WatchCfg      `mapstructure:"watch" yaml:"watch"`
}

// ProviderCfg configures the vision model endpoint.
type ProviderCfg struct {
	Type             string  `mapstructure:"type" yaml:"type"`         // "openai", "openrouter"
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url"` // OpenAI-compatible endpoint
	Model            string  `mapstructure:"model" yaml:"model"`
	APIKey           string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	TimeoutSeconds   int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	TransportRetries int     `mapstructure:"transport_retries" yaml:"transport_retries"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ExtractionCfg configures batching, retries and merging.
type ExtractionCfg struct {
	MaxRetries            int     `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds     float64 `mapstructure:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	RateLimitDelaySeconds float64 `mapstructure:"rate_limit_delay_seconds" yaml:"rate_limit_delay_seconds"`
	FilterProfile         string  `mapstructure:"filter_profile" yaml:"filter_profile"` // "strict", "lenient"
	TierProfile           string  `mapstructure:"tier_profile" yaml:"tier_profile"`     // "standard", "quality", "economy"
	ValidatePages         bool    `mapstructure:"validate_pages" yaml:"validate_pages"`
}

// ImageCfg configures page image encoding.
type ImageCfg struct {
	Format       string `mapstructure:"format" yaml:"format"` // "jpeg", "png"
	MaxDimension int    `mapstructure:"max_dimension" yaml:"max_dimension"`
	MaxBytes     int    `mapstructure:"max_bytes" yaml:"max_bytes"`
	Quality      int    `mapstructure:"quality" yaml:"quality"`
	MinQuality   int    `mapstructure:"min_quality" yaml:"min_quality"`
	QualityStep  int    `mapstructure:"quality_step" yaml:"quality_step"`
}

// RendererCfg configures page rasterization.
type RendererCfg struct {
	Pdftoppm string `mapstructure:"pdftoppm" yaml:"pdftoppm"` // binary name or path
}

// WatchCfg configures the watch command.
type WatchCfg struct {
	Inbox  string `mapstructure:"inbox" yaml:"inbox"`
	Outbox string `mapstructure:"outbox" yaml:"outbox"`
}
