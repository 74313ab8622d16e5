package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/pdfvision/internal/api"
	"github.com/jackzampolin/pdfvision/internal/config"
	"github.com/jackzampolin/pdfvision/internal/home"
	"github.com/jackzampolin/pdfvision/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var (
	printer *api.Printer
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pdfvision",
	Short: "Extract structured JSON from PDFs with a vision model",
	Long: `pdfvision renders PDF pages to images, sends them in batches to a
vision-capable chat model and collects one JSON record per page plus a
merged record for the whole document.

The pipeline includes:
  - Automatic batch size and DPI selection by document size
  - Retries with exponential backoff, then degraded placeholder pages
  - Schema presets or custom JSON schemas
  - Page-level records merged into one accumulated record`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		format, err := api.ParseFormat(outputFormat)
		if err != nil {
			return err
		}
		printer = api.NewPrinter(os.Stdout, format)

		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.pdfvision/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "pdfvision home directory (default: ~/.pdfvision)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)

	rootCmd.AddCommand(versionCmd)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", s)
	}
}

// getHome resolves the home directory without creating it.
func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// loadConfig reads --config, or the home directory's config.yaml when it
// exists, falling back to viper's search paths.
func loadConfig() (*config.Manager, error) {
	path := cfgFile
	if path == "" {
		h, err := getHome()
		if err != nil {
			return nil, err
		}
		if h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	return config.NewManager(path)
}
