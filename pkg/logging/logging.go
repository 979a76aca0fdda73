package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats supported by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// EnvVar names the environment variable consulted for the default mode.
const EnvVar = "STEPFLOW_ENV"

// defaultEnv is used when neither an explicit mode nor EnvVar is set.
const defaultEnv = "production"

// Mode selects how much a queue reports about its own scheduling.
type Mode int

const (
	// ModeQuiet logs warnings and errors only.
	ModeQuiet Mode = iota
	// ModeVerbose additionally logs step starts, completions and run summaries.
	ModeVerbose
)

func (m Mode) String() string {
	if m == ModeVerbose {
		return "dev"
	}
	return "prod"
}

// ParseMode maps any value starting with "dev" (case-insensitive, no trimming) to
// ModeVerbose and everything else to ModeQuiet.
func ParseMode(value string) Mode {
	if strings.HasPrefix(strings.ToLower(value), "dev") {
		return ModeVerbose
	}
	return ModeQuiet
}

// DefaultMode resolves the mode from EnvVar, falling back to production.
func DefaultMode() Mode {
	return ParseMode(EnvOrDefault())
}

// EnvOrDefault returns the raw environment name used for mode resolution.
func EnvOrDefault() string {
	if env := os.Getenv(EnvVar); env != "" {
		return env
	}
	return defaultEnv
}

// ParseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to w in the given format ("text" or "json").
// Unknown formats fall back to text. A nil writer means stderr.
func New(w io.Writer, format, level string) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Default returns the logger queues use when none is configured: text on
// stderr at INFO.
func Default() *slog.Logger {
	return New(os.Stderr, FormatText, LevelInfo)
}

// Nop returns a logger that discards all output.
// Useful for testing or when logging is disabled.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
