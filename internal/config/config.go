package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/linectl/internal/lineserver"
	"github.com/danmuck/linectl/internal/logging"
	"github.com/danmuck/linectl/internal/sender"
)

const DefaultPrompt = "Cmd> "

// Config is the resolved client and development-listener configuration.
type Config struct {
	Target           sender.Target
	ExpectResponse   bool
	MaxResponseBytes int
	Prompt           string
	Server           ServerConfig
	Log              LogConfig
}

type ServerConfig struct {
	Listen      string
	Reply       string
	IdleTimeout time.Duration
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type fileConfig struct {
	Host             string        `toml:"host"`
	Port             int           `toml:"port"`
	Timeout          string        `toml:"timeout"`
	TimeoutMS        int64         `toml:"timeout_ms"`
	ExpectResponse   bool          `toml:"expect_response"`
	MaxResponseBytes int           `toml:"max_response_bytes"`
	Prompt           string        `toml:"prompt"`
	Server           serverSection `toml:"server"`
	Log              logSection    `toml:"log"`
}

type serverSection struct {
	Listen      string `toml:"listen"`
	Reply       string `toml:"reply"`
	IdleTimeout string `toml:"idle_timeout"`
}

type logSection struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the built-in target, listener, and log settings.
func Default() Config {
	target := sender.DefaultTarget()
	return Config{
		Target:           target,
		ExpectResponse:   true,
		MaxResponseBytes: sender.DefaultMaxResponseBytes,
		Prompt:           DefaultPrompt,
		Server: ServerConfig{
			Listen:      target.Addr(),
			Reply:       "ack",
			IdleTimeout: lineserver.DefaultIdleTimeout,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load decodes path over Default. Only keys present in the file override.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("host") {
		cfg.Target.Host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		cfg.Target.Port = raw.Port
	}
	if meta.IsDefined("timeout") && meta.IsDefined("timeout_ms") {
		return Config{}, fmt.Errorf("load config (%s): timeout and timeout_ms are mutually exclusive", path)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Target.Timeout = d
	}
	if meta.IsDefined("timeout_ms") {
		cfg.Target.Timeout = time.Duration(raw.TimeoutMS) * time.Millisecond
	}
	if meta.IsDefined("expect_response") {
		cfg.ExpectResponse = raw.ExpectResponse
	}
	if meta.IsDefined("max_response_bytes") {
		cfg.MaxResponseBytes = raw.MaxResponseBytes
	}
	if meta.IsDefined("prompt") {
		cfg.Prompt = raw.Prompt
	}

	if meta.IsDefined("server", "listen") {
		cfg.Server.Listen = strings.TrimSpace(raw.Server.Listen)
	}
	if meta.IsDefined("server", "reply") {
		cfg.Server.Reply = strings.TrimSpace(raw.Server.Reply)
	}
	if meta.IsDefined("server", "idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Server.IdleTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse server.idle_timeout: %w", err)
		}
		cfg.Server.IdleTimeout = d
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.TrimSpace(raw.Log.Level)
	}
	if meta.IsDefined("log", "file") {
		cfg.Log.File = strings.TrimSpace(raw.Log.File)
	}
	if meta.IsDefined("log", "max_size_mb") {
		cfg.Log.MaxSizeMB = raw.Log.MaxSizeMB
	}
	if meta.IsDefined("log", "max_backups") {
		cfg.Log.MaxBackups = raw.Log.MaxBackups
	}
	if meta.IsDefined("log", "max_age_days") {
		cfg.Log.MaxAgeDays = raw.Log.MaxAgeDays
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func Validate(cfg Config) error {
	var errs []error
	if strings.TrimSpace(cfg.Target.Host) == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if cfg.Target.Port < 1 || cfg.Target.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", cfg.Target.Port))
	}
	if cfg.Target.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %v", cfg.Target.Timeout))
	}
	if cfg.MaxResponseBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_response_bytes must be positive, got %d", cfg.MaxResponseBytes))
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if _, err := lineserver.HandlerFor(cfg.Server.Reply); err != nil {
		errs = append(errs, err)
	}
	if cfg.Server.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.idle_timeout must be positive, got %v", cfg.Server.IdleTimeout))
	}
	if _, ok := logging.ParseLevel(cfg.Log.Level); !ok {
		errs = append(errs, fmt.Errorf("unknown log level %q", cfg.Log.Level))
	}
	return errors.Join(errs...)
}

// Apply copies file-level log settings into a logging config.
func (c LogConfig) Apply(cfg *logging.Config) {
	if lvl, ok := logging.ParseLevel(c.Level); ok {
		cfg.Level = lvl
	}
	if c.File != "" {
		cfg.File.Path = c.File
	}
	if c.MaxSizeMB > 0 {
		cfg.File.MaxSizeMB = c.MaxSizeMB
	}
	if c.MaxBackups > 0 {
		cfg.File.MaxBackups = c.MaxBackups
	}
	if c.MaxAgeDays > 0 {
		cfg.File.MaxAgeDays = c.MaxAgeDays
	}
}
