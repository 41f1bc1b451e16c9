package config

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	levelNone  slog.Level = math.MinInt

	formatText    = "text"
	formatJSON    = "json"
	formatConsole = "console"
)

// LogConfig selects the handler, level and destination of the logger.
type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	Output     string `mapstructure:"output" yaml:"output"`
	TimeFormat string `mapstructure:"time_format" yaml:"time_format,omitempty"`
	NoColor    bool   `mapstructure:"no_color" yaml:"no_color,omitempty"`
}

// NewLogger builds the process logger.
func NewLogger(cfg LogConfig) (*slog.Logger, error) {
	out, err := outputWriter(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("creating writer for log output: %w", err)
	}
	h, err := cfg.handler(out)
	if err != nil {
		return nil, fmt.Errorf("creating logger handler: %w", err)
	}
	return slog.New(h), nil
}

func (cfg LogConfig) handler(out io.Writer) (slog.Handler, error) {
	cfg = cfg.withDefaults(out)
	level := cfg.LogLevel()

	switch strings.ToLower(cfg.Format) {
	case formatText:
		return slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}), nil
	case formatJSON:
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}), nil
	case formatConsole:
		return tint.NewHandler(out, &tint.Options{
			Level:      level,
			NoColor:    cfg.NoColor,
			TimeFormat: cfg.TimeFormat,
		}), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg LogConfig) withDefaults(out io.Writer) LogConfig {
	if cfg.Level == "" {
		cfg.Level = slog.LevelInfo.String()
	}
	if cfg.Format == "" {
		cfg.Format = formatConsole
	}
	if cfg.TimeFormat == "" {
		if cfg.Format == formatConsole {
			cfg.TimeFormat = "15:04:05.000"
		} else {
			cfg.TimeFormat = "2006-01-02T15:04:05.000Z0700"
		}
	}
	f, ok := out.(interface{ Fd() uintptr })
	if !ok || !isatty.IsTerminal(f.Fd()) {
		cfg.NoColor = true
	}
	return cfg
}

// LogLevel parses Level. "warning", "trace" and "none" are accepted on top
// of the slog names; unknown names mean info.
func (cfg LogConfig) LogLevel() slog.Level {
	if cfg.Output == "discard" || cfg.Output == os.DevNull {
		return levelNone
	}
	switch strings.ToLower(cfg.Level) {
	case "warning":
		return slog.LevelWarn
	case "trace":
		return LevelTrace
	case "none":
		return levelNone
	}
	var lvl slog.Level
	_ = lvl.UnmarshalText([]byte(cfg.Level))
	return lvl
}

func outputWriter(name string) (io.Writer, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, nil
	case "stderr", "":
		return os.Stderr, nil
	case "discard", os.DevNull:
		return io.Discard, nil
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o700); err != nil {
		return nil, fmt.Errorf("create dir %q for log output: %w", filepath.Dir(name), err)
	}
	f, err := os.OpenFile(filepath.Clean(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file %q for log output: %w", name, err)
	}
	return f, nil
}
