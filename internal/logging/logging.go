// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/dormoron/gimme/config"
)

// Logger is a *slog.Logger whose level can be changed while it is in use.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New builds a logger writing to w in s.Format, json unless "text".
func New(w io.Writer, s config.LogSettings) *Logger {
	level := new(slog.LevelVar)
	level.Set(LevelFromString(s.Level))
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(s.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(h), level: level}
}

// NewDiscard returns a logger that writes nothing.
func NewDiscard() *Logger {
	return New(io.Discard, config.LogSettings{Level: "error"})
}

func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Follow updates the level whenever p reloads. It returns the listener so it
// can be removed again.
func (l *Logger) Follow(p config.Provider) func(key string) {
	listener := func(key string) {
		if key != "" && key != "log.level" {
			return
		}
		next := LevelFromString(p.GetString("log.level"))
		if next != l.Level() {
			l.Info("log level changed", "level", next.String())
			l.SetLevel(next)
		}
	}
	p.AddChangeListener(listener)
	return listener
}

// LevelFromString accepts debug, info, warn or error, case-insensitively.
// Anything else is info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
