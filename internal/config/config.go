// Package config loads arbor.yaml, the per-workspace settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file looked up at the workspace root.
const FileName = "arbor.yaml"

// Config holds workspace settings. Relative paths are relative to the
// workspace root.
type Config struct {
	// Exclude lists glob patterns, matched against slash-separated paths
	// relative to the root, of files and directories to skip.
	Exclude []string `yaml:"exclude"`
	// StubsDir, if set, is a directory of .pyi stubs searched before the
	// bundled typeshed subset.
	StubsDir string `yaml:"stubs_dir"`
	// InferenceScript, if set, is a Risor script consulted before the
	// default inference rules.
	InferenceScript string `yaml:"inference_script"`
	// Workers bounds parallel checking. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// DB is the snapshot database path. Empty disables the snapshot.
	DB string `yaml:"db"`
}

// Default returns the settings used when no file exists.
func Default() *Config {
	return &Config{
		Exclude: []string{".git", "__pycache__", ".venv", "node_modules"},
		DB:      ".arbor/snapshot.db",
	}
}

// Load reads FileName from root, falling back to Default when it does not
// exist. ARBOR_DB and ARBOR_WORKERS override the file.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, FileName))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg := Default()
		return cfg, applyEnv(cfg)
	case err != nil:
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return cfg, applyEnv(cfg)
}

// Parse decodes settings from r over the defaults. Unknown keys are
// rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if db, ok := os.LookupEnv("ARBOR_DB"); ok {
		cfg.DB = db
	}
	if w := os.Getenv("ARBOR_WORKERS"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil {
			return fmt.Errorf("config: ARBOR_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	return cfg.Validate()
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	for _, p := range c.Exclude {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("config: exclude pattern %q: %w", p, err)
		}
	}
	return nil
}

// WorkerCount resolves Workers to a positive count.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
