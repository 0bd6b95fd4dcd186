// Package logger builds the zap loggers used by the livelist binaries.
package logger

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for structured logging.
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldCount      = "count"
	FieldDurationMS = "duration_ms"
	FieldReason     = "reason"
	FieldError      = "error"
	FieldAddress    = "address"
	FieldPath       = "path"
	FieldClient     = "client"
)

// Options selects the output format and level.
type Options struct {
	JSON  bool
	Level string
	// File, when set, receives the output instead of stderr.
	File string
}

// New builds a logger. JSON output uses zap's production encoder; otherwise a
// console encoder writes human-readable lines to stderr or File.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	if opts.JSON {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		if opts.File != "" {
			config.OutputPaths = []string{opts.File}
			config.ErrorOutputPaths = []string{opts.File}
		}
		return config.Build()
	}

	sink := zapcore.AddSync(os.Stderr)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open log file %s", opts.File)
		}
		sink = zapcore.AddSync(f)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		sink,
		level,
	)
	return zap.New(core), nil
}

// ParseLevel maps a level name to a zap level. The empty string means info.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.Newf("unknown log level %q", name)
	}
}

// Component returns a child logger tagged with a component name.
func Component(l *zap.Logger, name string) *zap.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return l.With(zap.String(FieldComponent, name))
}
