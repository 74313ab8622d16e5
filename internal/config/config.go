package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/jackzampolin/pdfvision/internal/extract"
	"github.com/jackzampolin/pdfvision/internal/imaging"
	"github.com/jackzampolin/pdfvision/internal/providers"
)

// EnvPrefix namespaces environment overrides, e.g. PDFVISION_PROVIDER_MODEL.
const EnvPrefix = "PDFVISION"

// APIKeyEnv is consulted when provider.api_key resolves to nothing.
const APIKeyEnv = "GROQ_API_KEY"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// A missing config file is not an error; defaults and environment
// overrides still apply.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	setDefaults(cm.v)

	// Environment variables with PDFVISION_ prefix
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.pdfvision")
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the configuration was read from, if any.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// Entries returns every known key with its effective value, after the
// config file and environment overrides are applied.
func (cm *Manager) Entries() []Entry {
	defaults := DefaultEntries()
	out := make([]Entry, len(defaults))
	for i, e := range defaults {
		out[i] = Entry{Key: e.Key, Value: cm.v.Get(e.Key), Description: e.Description}
	}
	return out
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ResolveAPIKey returns the provider key with ${ENV_VAR} references
// expanded, falling back to GROQ_API_KEY.
func (c *Config) ResolveAPIKey() string {
	if key := strings.TrimSpace(ResolveEnvVars(c.Provider.APIKey)); key != "" {
		return key
	}
	return os.Getenv(APIKeyEnv)
}

// ToProviderConfig converts the provider section for providers.New.
// The API key is left for the caller so a command-line override can win.
func (c *Config) ToProviderConfig() providers.Config {
	return providers.Config{
		Type:       c.Provider.Type,
		BaseURL:    c.Provider.BaseURL,
		Model:      c.Provider.Model,
		Timeout:    time.Duration(c.Provider.TimeoutSeconds) * time.Second,
		MaxRetries: c.Provider.TransportRetries,
	}
}

// ToExtractSettings converts the extraction and image sections.
func (c *Config) ToExtractSettings() (extract.Settings, error) {
	tiers, err := extract.TierProfile(c.Extraction.TierProfile)
	if err != nil {
		return extract.Settings{}, err
	}
	filter, err := extract.ParseFilterProfile(c.Extraction.FilterProfile)
	if err != nil {
		return extract.Settings{}, err
	}

	return extract.Settings{
		Model:          c.Provider.Model,
		Temperature:    c.Provider.Temperature,
		MaxTokens:      c.Provider.MaxTokens,
		MaxRetries:     c.Extraction.MaxRetries,
		RetryDelay:     seconds(c.Extraction.RetryDelaySeconds),
		RateLimitDelay: seconds(c.Extraction.RateLimitDelaySeconds),
		Tiers:          tiers,
		Filter:         filter,
		ValidatePages:  c.Extraction.ValidatePages,
		Image: imaging.Options{
			Format:       c.Image.Format,
			MaxDimension: c.Image.MaxDimension,
			MaxBytes:     c.Image.MaxBytes,
			Quality:      c.Image.Quality,
			MinQuality:   c.Image.MinQuality,
			QualityStep:  c.Image.QualityStep,
		},
	}, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# pdfvision configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set the key in your shell: export GROQ_API_KEY=xxx
# Any key can be overridden with PDFVISION_<SECTION>_<KEY>, e.g. PDFVISION_PROVIDER_MODEL

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
