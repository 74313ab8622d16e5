package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the pdfvision home directory.
	DefaultDirName = ".pdfvision"

	// ResultsDirName is the subdirectory for saved extraction artifacts.
	ResultsDirName = "results"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// CallLogFileName is the JSONL file model attempts are appended to.
	CallLogFileName = "calls.jsonl"
)

// Dir represents the pdfvision home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.pdfvision).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ResultsDir returns the directory saved artifacts go to when no output
// path is given.
func (d *Dir) ResultsDir() string {
	return filepath.Join(d.path, ResultsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// CallLogPath returns the path to the call log.
func (d *Dir) CallLogPath() string {
	return filepath.Join(d.path, "logs", CallLogFileName)
}

// InboxDir returns the default directory the watch command polls.
func (d *Dir) InboxDir() string {
	return filepath.Join(d.path, "inbox")
}

// OutboxDir returns the default directory the watch command writes to.
func (d *Dir) OutboxDir() string {
	return filepath.Join(d.path, "outbox")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create results directory (this also creates the parent)
	if err := os.MkdirAll(d.ResultsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
