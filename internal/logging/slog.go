package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// osStdout is an indirection so tests can capture console output.
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with console, file, and
// optional Graylog output.
type SlogManager struct {
	logger *slog.Logger

	// ContextAttrs supplies dynamic attributes appended to every record,
	// e.g. the active selection. May be assigned or replaced after Setup.
	ContextAttrs ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system with console, file, and optional
// Graylog output. A nil file or graylog writer disables that output.
func (m *SlogManager) Setup(file io.Writer, level string, graylog io.Writer) {
	lvl := parseLevel(level)

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	// Build list of handlers
	var handlers []slog.Handler

	// Console handler
	handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))

	// File handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}

	// Graylog handler. Each record is written as one GELF message.
	if graylog != nil {
		handlers = append(handlers, slog.NewTextHandler(graylog, handlerOpts))
	}

	// Combine all handlers and inject dynamic context. The indirection
	// lets callers assign ContextAttrs after Setup has run.
	multiHandler := NewMultiHandler(handlers...)
	contextHandler := NewContextHandler(multiHandler, func() []slog.Attr {
		if m.ContextAttrs != nil {
			return m.ContextAttrs()
		}
		return nil
	})

	m.logger = slog.New(contextHandler)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}
