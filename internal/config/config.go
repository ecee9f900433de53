package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file read when no path is given.
const DefaultFile = ".docments.yaml"

// Config holds CLI settings. Precedence, lowest first: defaults, the YAML
// file, environment variables (including a .env file), command-line flags.
type Config struct {
	DB       string `yaml:"db"`
	Format   string `yaml:"format"` // json or text
	LogLevel string `yaml:"log_level"`

	Extract struct {
		Full          bool `yaml:"full"`
		Returns       bool `yaml:"returns"`
		EvalStr       bool `yaml:"eval_str"`
		BlankComments bool `yaml:"blank_comments"`
	} `yaml:"extract"`

	Index struct {
		Workers int      `yaml:"workers"` // 0 means one per CPU
		Exclude []string `yaml:"exclude"`
	} `yaml:"index"`
}

// Default returns the built-in settings. A relative DB path is resolved
// against the repository root.
func Default() *Config {
	cfg := &Config{
		DB:       filepath.Join(".docments", "index.db"),
		Format:   "text",
		LogLevel: "warn",
	}
	cfg.Extract.Returns = true
	return cfg
}

// Load builds the configuration. An empty path reads DefaultFile if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config over the defaults
	cfg := Default()
	file := path
	if file == "" {
		file = DefaultFile
	}
	data, err := os.ReadFile(file)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", file, err)
		}
	case path == "" && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: %w", err)
	}

	// 3. Override with environment variables if present
	if v := os.Getenv("DOCMENTS_DB"); v != "" {
		cfg.DB = v
	}
	if v := os.Getenv("DOCMENTS_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("DOCMENTS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: format must be json or text, got %q", c.Format)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("config: index.workers must not be negative")
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
