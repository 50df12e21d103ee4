package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig selects level, format, and destination for the
// process logger.
type LoggingConfig struct {
	Level      string // trace, debug, info, warn, error, fatal, panic
	Format     string // json, console, pretty
	Output     string // stdout, stderr
	AddSource  bool   // annotate entries with file:line
	TimeFormat string
}

// DefaultLoggingConfig is JSON on stdout at info level.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// NewLogger builds the process logger from configuration. Unknown
// values fall back to JSON on stdout at info level.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: zerolog.TimeFieldFormat}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.AddSource {
		ctx = ctx.Caller()
	}

	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	return ctx.Logger().Level(level)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithPaperContext adds paper-related fields to a logger.
func WithPaperContext(logger zerolog.Logger, paperID string) zerolog.Logger {
	return logger.With().
		Str("paper_id", paperID).
		Logger()
}

// WithSourceContext adds reference-source fields to a logger.
func WithSourceContext(logger zerolog.Logger, source string) zerolog.Logger {
	return logger.With().
		Str("source", source).
		Logger()
}

// WithJobContext adds background-job fields to a logger.
func WithJobContext(logger zerolog.Logger, jobID, jobType string) zerolog.Logger {
	return logger.With().
		Str("job_id", jobID).
		Str("job_type", jobType).
		Logger()
}
