// Package logging builds the root zap logger from LOG_LEVEL and NODE_ENV,
// the way the rest of the pipeline's ambient stack is configured: environment
// in, one value out, no package-level globals.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures logger construction.
type Options struct {
	Level string // debug, info, warn, error
	Env   string // development selects console encoding
}

// New builds a *zap.Logger per Options. Unknown levels fall back to info
// rather than failing startup over a typo in LOG_LEVEL.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			level = zapcore.InfoLevel
		}
	}

	var cfg zap.Config
	if strings.EqualFold(opts.Env, "development") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
