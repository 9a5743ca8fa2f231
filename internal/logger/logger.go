package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/Kaelzs/ThreeW/pkg/models"
)

var (
	mu           sync.RWMutex
	globalLogger *slog.Logger
)

// Init initializes the global logger based on application settings and
// writes to w (stdout when nil). Empty level and format default to info and
// text. It should be called once during application startup; tests call it
// with io.Discard.
func Init(settings models.ApplicationSettings, w io.Writer) error {
	level, err := ParseLevel(settings.LogLevel)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(settings.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("invalid log format specified: %q", settings.LogFormat)
	}

	l := slog.New(handler)
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	slog.SetDefault(l)
	l.Debug("Logger initialized", "level", level.String(), "format", settings.LogFormat)
	return nil
}

// ParseLevel maps a configured level name to a slog level. Matching is
// case-insensitive and an empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level specified: %q", name)
	}
}

// L returns the initialized global logger instance. Before Init it falls
// back to slog.Default so library code never panics.
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}
