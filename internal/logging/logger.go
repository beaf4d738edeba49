package logging

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	sinkMu   sync.Mutex
	fileSink *lumberjack.Logger
)

func install(cfg Config) {
	logger := New(cfg)
	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = logger
}

// New builds a logger from cfg without touching global state. A configured
// file path adds a rotating file sink next to the console writer.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	console := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    cfg.NoColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		console.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	var w io.Writer = console
	if cfg.File.Path != "" {
		w = zerolog.MultiLevelWriter(console, openFileSink(cfg.File))
	}
	return zerolog.New(w).Level(cfg.Level).With().Timestamp().Logger()
}

func openFileSink(cfg FileConfig) io.Writer {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if fileSink != nil {
		_ = fileSink.Close()
	}
	fileSink = &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}
	return fileSink
}

// Close flushes and releases the rotating file sink, if any.
func Close() error {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if fileSink == nil {
		return nil
	}
	err := fileSink.Close()
	fileSink = nil
	return err
}

// Logger returns the process-wide logger.
func Logger() zerolog.Logger {
	return log.Logger
}

func Debugf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	log.Error().Msgf(format, args...)
}
