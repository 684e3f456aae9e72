package diagnostic

import (
	"context"
	"log"
	"log/slog"
	"sync"
)

// Sink receives diagnostics. Record is fire-and-forget: it returns nothing
// and callers never wait on delivery. Implementations must be safe for
// concurrent use and must write each Diagnostic as a single unit.
type Sink interface {
	Record(d Diagnostic)
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(d Diagnostic)

func (f SinkFunc) Record(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

type multiSink []Sink

// Multi fans a diagnostic out to every sink in order. A panicking sink does
// not prevent delivery to the ones after it.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiSink) Record(d Diagnostic) {
	for _, s := range m {
		safeRecord(s, d)
	}
}

func safeRecord(s Sink, d Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("diagnostic: sink %T panicked recording %s: %v", s, d.ID, r)
		}
	}()
	s.Record(d)
}

// LogSink writes each diagnostic as one slog record.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
	msg    string
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: slog.LevelError, msg: "request failed"}
}

func (s *LogSink) Record(d Diagnostic) {
	s.logger.LogAttrs(context.Background(), s.level, s.msg, slog.Any("diagnostic", d))
}

// Memory keeps every diagnostic in arrival order.
type Memory struct {
	mu      sync.Mutex
	records []Diagnostic
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(d Diagnostic) {
	m.mu.Lock()
	m.records = append(m.records, d)
	m.mu.Unlock()
}

// Records returns a snapshot of everything recorded so far.
func (m *Memory) Records() []Diagnostic {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Diagnostic, len(m.records))
	copy(out, m.records)
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *Memory) Reset() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}
