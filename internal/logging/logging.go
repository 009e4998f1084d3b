// Package logging builds the diagnostic logger. User-facing output never goes
// through it; the TUI owns the terminal, so the default sink is a file.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects where and how much to log
type Options struct {
	// Path is a file path, "stderr", "stdout", or empty to discard.
	Path    string
	Verbose bool
}

// New builds a zap logger. Verbose selects the development encoder at debug
// level, otherwise JSON at info level.
func New(opts Options) (*zap.Logger, error) {
	if opts.Path == "" {
		return Nop(), nil
	}

	if opts.Path != "stderr" && opts.Path != "stdout" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	var cfg zap.Config
	if opts.Verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.Sampling = nil
	}
	cfg.OutputPaths = []string{opts.Path}
	cfg.ErrorOutputPaths = []string{opts.Path}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Named("querychat"), nil
}

// Nop returns a logger that discards everything
func Nop() *zap.Logger {
	return zap.NewNop()
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return Nop()
	}
	return l
}
