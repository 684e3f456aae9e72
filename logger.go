package gimme

import "log/slog"

// Logger is the logging surface the server needs. *slog.Logger satisfies it,
// so any slog handler (JSON, text, or a custom one) can be plugged in.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// defaultLogger is used by servers created without ServerWithLogger.
var defaultLogger Logger = slog.Default()

// SetDefaultLogger replaces the logger used by servers that were not given
// one explicitly. Call it before creating servers; existing servers keep the
// logger they were built with.
func SetDefaultLogger(log Logger) {
	if log == nil {
		return
	}
	defaultLogger = log
}
