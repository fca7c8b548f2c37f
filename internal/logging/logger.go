package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Log formats understood by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates the application logger writing to Stderr, keeping Stdout free
// for chat output and JSON-RPC.
func New(level, format string) (*slog.Logger, error) {
	return NewWithWriter(level, format, os.Stderr)
}

// NewWithWriter is New with an explicit destination.
// The text format is rendered by charmbracelet/log; json uses slog's JSON handler.
// The "error" key is standardized to "err" in both.
func NewWithWriter(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		pretty := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmLevel(lvl),
			ReportTimestamp: true,
			Formatter:       charmlog.TextFormatter,
		})
		return slog.New(renameErr{pretty}), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: lvl,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == "error" {
					a.Key = "err"
				}
				return a
			},
		})), nil
	}
	return nil, fmt.Errorf("unsupported log format %q", format)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(input string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unsupported log level %q", input)
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func charmLevel(level slog.Level) charmlog.Level {
	switch {
	case level <= slog.LevelDebug:
		return charmlog.DebugLevel
	case level <= slog.LevelInfo:
		return charmlog.InfoLevel
	case level <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}
