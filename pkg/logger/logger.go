// Package logger configures structured logging for the ChoreNest engine.
// It builds log/slog loggers with a shared format and provides field helpers
// for the identifiers that appear throughout the engine's logs.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the log output encoding.
type Format string

const (
	// FormatJSON emits one JSON object per line.
	FormatJSON Format = "json"
	// FormatText emits human-readable key=value lines.
	FormatText Format = "text"
)

// ParseLevel parses a string into a slog.Level. Unknown values map to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat parses a string into a Format. Unknown values map to JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatText)) {
		return FormatText
	}
	return FormatJSON
}

// Options configures the logger.
type Options struct {
	Output    io.Writer
	Level     slog.Level
	Format    Format
	AddSource bool

	// Service is attached to every record as service=<name>.
	Service string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Output:  os.Stdout,
		Level:   slog.LevelInfo,
		Format:  FormatJSON,
		Service: "chorenest-engine",
	}
}

// New creates a logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     opts.Level,
		AddSource: opts.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if opts.Format == FormatText {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	return log
}

// Default creates a logger with default options.
func Default() *slog.Logger {
	return New(DefaultOptions())
}

// Setup builds a logger from the given level and format strings and installs
// it as the process default.
func Setup(level, format, service string) *slog.Logger {
	opts := DefaultOptions()
	opts.Level = ParseLevel(level)
	opts.Format = ParseFormat(format)
	if service != "" {
		opts.Service = service
	}
	log := New(opts)
	slog.SetDefault(log)
	return log
}

// Err creates an error attribute. A nil error yields error=<nil>.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}

// Field helpers for identifiers used across the engine.
func ChildID(id string) slog.Attr       { return slog.String("child_id", id) }
func TaskID(id string) slog.Attr        { return slog.String("task_id", id) }
func ReviewerID(id string) slog.Attr    { return slog.String("reviewer_id", id) }
func Score(score int) slog.Attr         { return slog.Int("score", score) }
func XPAmount(xp int) slog.Attr         { return slog.Int("xp_amount", xp) }
func Minutes(m int) slog.Attr           { return slog.Int("minutes", m) }
func Component(name string) slog.Attr   { return slog.String("component", name) }
func Operation(name string) slog.Attr   { return slog.String("operation", name) }
func Job(name string) slog.Attr         { return slog.String("job", name) }
func Latency(d time.Duration) slog.Attr { return slog.String("latency", d.String()) }
