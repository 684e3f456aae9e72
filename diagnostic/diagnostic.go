// Package diagnostic defines the operator-facing failure record and the sinks
// that receive it.
//
// A Diagnostic is everything needed to debug a failed request after the fact:
// what went wrong, where, with which inputs, and the underlying cause. It is
// never rendered to clients.
package diagnostic

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a failure.
type Kind string

const (
	KindMissing          Kind = "missing"
	KindNotNumeric       Kind = "not_numeric"
	KindNotFullyConsumed Kind = "not_fully_consumed"
	KindOutOfRange       Kind = "out_of_range"
	KindHandlerFault     Kind = "handler_fault"
)

// Diagnostic is a structured failure record. Once handed to a Sink the sender
// must not modify it.
type Diagnostic struct {
	ID        string `json:"id"`
	RequestID string `json:"request_id,omitempty"`
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	// Origin is where the failure was detected or raised.
	Origin Location `json:"origin"`
	// Inputs are the raw request values that caused the failure, by name.
	Inputs map[string]string `json:"inputs,omitempty"`
	// Cause is the native description of the underlying fault, CauseType
	// its Go type and Chain every error it wraps, outermost first.
	Cause     string   `json:"cause,omitempty"`
	CauseType string   `json:"cause_type,omitempty"`
	Chain     []string `json:"chain,omitempty"`
	// Stack is the goroutine stack at the point a panic was recovered.
	Stack     string    `json:"stack,omitempty"`
	Method    string    `json:"method,omitempty"`
	Path      string    `json:"path,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New stamps a Diagnostic with a fresh ID and the current time.
func New(kind Kind, message string, origin Location) Diagnostic {
	return Diagnostic{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Origin:    origin,
		Timestamp: time.Now().UTC(),
	}
}

// LogValue implements slog.LogValuer so a Diagnostic logs as one group.
func (d Diagnostic) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", d.ID),
		slog.String("kind", string(d.Kind)),
		slog.String("message", d.Message),
		slog.String("origin", d.Origin.String()),
		slog.Time("timestamp", d.Timestamp),
	}
	if d.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", d.RequestID))
	}
	if d.Method != "" {
		attrs = append(attrs, slog.String("method", d.Method), slog.String("path", d.Path))
	}
	if len(d.Inputs) > 0 {
		names := make([]string, 0, len(d.Inputs))
		for k := range d.Inputs {
			names = append(names, k)
		}
		sort.Strings(names)
		inputs := make([]any, 0, len(names))
		for _, k := range names {
			inputs = append(inputs, slog.String(k, d.Inputs[k]))
		}
		attrs = append(attrs, slog.Group("inputs", inputs...))
	}
	if d.Cause != "" {
		attrs = append(attrs,
			slog.String("cause", d.Cause),
			slog.String("cause_type", d.CauseType),
			slog.Any("chain", d.Chain),
		)
	}
	if d.Stack != "" {
		attrs = append(attrs, slog.String("stack", d.Stack))
	}
	return slog.GroupValue(attrs...)
}

// Clone returns a copy that shares no maps or slices with d.
func (d Diagnostic) Clone() Diagnostic {
	if d.Inputs != nil {
		inputs := make(map[string]string, len(d.Inputs))
		for k, v := range d.Inputs {
			inputs[k] = v
		}
		d.Inputs = inputs
	}
	if d.Chain != nil {
		d.Chain = append([]string(nil), d.Chain...)
	}
	return d
}
