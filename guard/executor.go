// Package guard runs application logic behind a boundary that no failure can
// cross.
//
// Every failure, whether a parameter that does not coerce, an error returned
// by the handler or a panic raised inside it, is turned into a Failure outcome
// carrying a complete diagnostic. The same diagnostic is forwarded to the
// configured sink exactly once. Callers render the Outcome; they never see a
// panic.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/dormoron/gimme/coerce"
	"github.com/dormoron/gimme/diagnostic"
	"github.com/dormoron/gimme/internal/errs"
	"github.com/dormoron/gimme/middlewares/requestid"
	"github.com/dormoron/gimme/params"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler is the application logic. It receives the coerced operands in the
// order their names were passed to Execute.
type Handler func(ctx context.Context, ops ...int64) (any, error)

// Executor coerces parameters, runs a Handler and classifies failures.
// It holds no per-request state and is safe for concurrent use.
type Executor struct {
	sink     diagnostic.Sink
	fallback *log.Logger
}

type Option func(e *Executor)

// WithFallbackLogger sets where the executor reports faults in its own
// failure path, such as a diagnostic that cannot be built. Defaults to the
// standard library's default logger.
func WithFallbackLogger(l *log.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.fallback = l
		}
	}
}

func NewExecutor(sink diagnostic.Sink, opts ...Option) *Executor {
	if sink == nil {
		sink = diagnostic.Discard
	}
	e := &Executor{sink: sink, fallback: log.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type requestKey struct{}

type requestInfo struct {
	method string
	path   string
}

// WithRequest records the method and path of the request being served so
// diagnostics built under ctx carry them.
func WithRequest(ctx context.Context, method, path string) context.Context {
	return context.WithValue(ctx, requestKey{}, requestInfo{method: method, path: path})
}

// Execute coerces the parameters listed in names, in order, and calls h with
// the results. If any parameter fails to coerce, h is not called; the
// diagnostic takes its kind from the first failure and its inputs from every
// failing parameter. Execute never panics.
func (e *Executor) Execute(ctx context.Context, p params.RequestParams, names []string, h Handler) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = e.internalFailure(ctx, r)
		}
	}()

	ops := make([]int64, 0, len(names))
	var bad *diagnostic.Diagnostic
	for _, name := range names {
		res := coerce.Param(p, name)
		if res.Ok() {
			ops = append(ops, res.Value())
			continue
		}
		if bad == nil {
			d := diagnostic.New(kindOf(res.Kind()), fmt.Sprintf("parameter %q: %s", name, res.Kind()), diagnostic.Caller(0))
			d.Inputs = make(map[string]string, len(names))
			bad = &d
		}
		bad.Inputs[name] = res.Raw()
	}
	if bad != nil {
		return e.fail(ctx, *bad)
	}

	v, f := call(ctx, h, ops)
	if f != nil {
		d := e.faultDiagnostic(f)
		d.Inputs = rawInputs(p, names)
		return e.fail(ctx, d)
	}
	return Success(v)
}

// Recovered turns a value recovered from a panic into a Failure and records
// it. It must be called from the deferred function that called recover, so
// the panicking frame is still on the stack.
func (e *Executor) Recovered(ctx context.Context, r any) (out Outcome) {
	f := &fault{err: &errs.Fault{Value: r}, origin: diagnostic.PanicOrigin(), stack: debug.Stack()}
	defer func() {
		if r2 := recover(); r2 != nil {
			out = e.internalFailure(ctx, r2)
		}
	}()
	return e.fail(ctx, e.faultDiagnostic(f))
}

// fault is a handler failure captured at the call boundary.
type fault struct {
	err    error
	origin diagnostic.Location
	stack  []byte
}

func call(ctx context.Context, h Handler, ops []int64) (v any, f *fault) {
	defer func() {
		if r := recover(); r != nil {
			f = &fault{err: &errs.Fault{Value: r}, origin: diagnostic.PanicOrigin(), stack: debug.Stack()}
		}
	}()
	v, err := h(ctx, ops...)
	if err != nil {
		return nil, &fault{err: err, origin: diagnostic.FuncLocation(h)}
	}
	return v, nil
}

func (e *Executor) faultDiagnostic(f *fault) diagnostic.Diagnostic {
	msg := "handler returned an error"
	causeType := fmt.Sprintf("%T", f.err)
	var pf *errs.Fault
	if errors.As(f.err, &pf) {
		msg = "handler panicked"
		causeType = fmt.Sprintf("%T", pf.Value)
	}
	d := diagnostic.New(diagnostic.KindHandlerFault, msg, f.origin)
	d.Cause = f.err.Error()
	d.CauseType = causeType
	d.Chain = errs.Chain(f.err)
	d.Stack = string(f.stack)
	return d
}

// fail completes d from ctx, forwards a copy to the sink and returns the
// Failure.
func (e *Executor) fail(ctx context.Context, d diagnostic.Diagnostic) Outcome {
	d.RequestID = requestid.FromContext(ctx)
	if info, ok := ctx.Value(requestKey{}).(requestInfo); ok {
		d.Method, d.Path = info.method, info.path
	}
	markSpan(ctx, d)
	e.forward(d.Clone())
	return Failure(d)
}

func (e *Executor) forward(d diagnostic.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			e.fallback.Printf("guard: sink %T panicked recording diagnostic %s (%s): %v", e.sink, d.ID, d.Kind, r)
		}
	}()
	e.sink.Record(d)
}

// internalFailure is the last resort when building or forwarding a
// diagnostic panicked. It reports through the fallback logger only and builds
// a Failure from nothing that can fail.
func (e *Executor) internalFailure(ctx context.Context, r any) Outcome {
	e.fallback.Printf("guard: failed to build diagnostic for request %q: %v\n%s", requestid.FromContext(ctx), r, debug.Stack())
	return Failure(diagnostic.Diagnostic{
		Kind:      diagnostic.KindHandlerFault,
		Message:   "diagnostic unavailable",
		Timestamp: time.Now().UTC(),
	})
}

func markSpan(ctx context.Context, d diagnostic.Diagnostic) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(errors.New(d.Message), trace.WithAttributes(
		attribute.String("diagnostic.id", d.ID),
		attribute.String("diagnostic.kind", string(d.Kind)),
	))
	span.SetStatus(codes.Error, string(d.Kind))
}

func rawInputs(p params.RequestParams, names []string) map[string]string {
	inputs := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := p.Get(name); ok {
			inputs[name] = v
		}
	}
	return inputs
}

func kindOf(k coerce.Kind) diagnostic.Kind {
	switch k {
	case coerce.Missing:
		return diagnostic.KindMissing
	case coerce.NotFullyConsumed:
		return diagnostic.KindNotFullyConsumed
	case coerce.OutOfRange:
		return diagnostic.KindOutOfRange
	default:
		return diagnostic.KindNotNumeric
	}
}
