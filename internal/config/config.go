package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultOutput = "reconstructed_mbp.csv"

type Config struct {
	Output          string `yaml:"output"`
	Levels          int    `yaml:"levels"`
	LogLevel        string `yaml:"log_level"`
	Listen          string `yaml:"listen"`           // empty disables the inspection server
	MetricsTextfile string `yaml:"metrics_textfile"` // empty disables the textfile dump
}

func defaults() Config {
	return Config{
		Output:   DefaultOutput,
		Levels:   10,
		LogLevel: "info",
	}
}

// Load reads path over the defaults, then applies MBP_* environment
// overrides. A missing file is an error only when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := defaults()
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	for key, dst := range map[string]*string{
		"MBP_OUTPUT":           &cfg.Output,
		"MBP_LOG_LEVEL":        &cfg.LogLevel,
		"MBP_LISTEN":           &cfg.Listen,
		"MBP_METRICS_TEXTFILE": &cfg.MetricsTextfile,
	} {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
}

// Validate normalizes the config in place.
func (c *Config) Validate() error {
	if c.Levels != 10 {
		return errors.New("levels must be 10")
	}
	if strings.TrimSpace(c.Output) == "" {
		return errors.New("output must not be empty")
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	if c.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Listen); err != nil {
			return fmt.Errorf("invalid listen address: %w", err)
		}
	}
	return nil
}

func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
