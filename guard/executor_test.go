package guard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/dormoron/gimme/diagnostic"
	"github.com/dormoron/gimme/internal/errs"
	"github.com/dormoron/gimme/middlewares/requestid"
	"github.com/dormoron/gimme/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var names = []string{"op1", "op2"}

func add(_ context.Context, ops ...int64) (any, error) {
	var total int64
	for _, op := range ops {
		total += op
	}
	return total, nil
}

func boom(_ context.Context, ops ...int64) (any, error) {
	return ops[len(ops)], nil
}

type panickyError struct{}

func (panickyError) Error() string { panic("cannot describe myself") }

func TestExecute(t *testing.T) {
	testCases := []struct {
		name       string
		query      string
		handler    Handler
		wantValue  any
		wantKind   diagnostic.Kind
		wantInputs map[string]string
		wantMsg    string
	}{
		{
			name:      "success",
			query:     "op1=3&op2=4",
			handler:   add,
			wantValue: int64(7),
		},
		{
			name:       "not fully consumed",
			query:      "op1=1200.50&op2=4",
			handler:    add,
			wantKind:   diagnostic.KindNotFullyConsumed,
			wantInputs: map[string]string{"op1": "1200.50"},
			wantMsg:    `parameter "op1": not_fully_consumed`,
		},
		{
			name:       "both decimal",
			query:      "op1=1200.50&op2=20.30",
			handler:    add,
			wantKind:   diagnostic.KindNotFullyConsumed,
			wantInputs: map[string]string{"op1": "1200.50", "op2": "20.30"},
			wantMsg:    `parameter "op1": not_fully_consumed`,
		},
		{
			name:       "first failure sets kind",
			query:      "op1=abc&op2=1.5",
			handler:    add,
			wantKind:   diagnostic.KindNotNumeric,
			wantInputs: map[string]string{"op1": "abc", "op2": "1.5"},
			wantMsg:    `parameter "op1": not_numeric`,
		},
		{
			name:       "both missing",
			query:      "",
			handler:    add,
			wantKind:   diagnostic.KindMissing,
			wantInputs: map[string]string{"op1": "", "op2": ""},
			wantMsg:    `parameter "op1": missing`,
		},
		{
			name:       "not numeric",
			query:      "op1=3&op2=abc",
			handler:    add,
			wantKind:   diagnostic.KindNotNumeric,
			wantInputs: map[string]string{"op2": "abc"},
			wantMsg:    `parameter "op2": not_numeric`,
		},
		{
			name:       "missing",
			query:      "op1=3",
			handler:    add,
			wantKind:   diagnostic.KindMissing,
			wantInputs: map[string]string{"op2": ""},
			wantMsg:    `parameter "op2": missing`,
		},
		{
			name:       "out of range",
			query:      "op1=99999999999999999999&op2=1",
			handler:    add,
			wantKind:   diagnostic.KindOutOfRange,
			wantInputs: map[string]string{"op1": "99999999999999999999"},
			wantMsg:    `parameter "op1": out_of_range`,
		},
		{
			name:  "handler error",
			query: "op1=3&op2=4",
			handler: func(_ context.Context, ops ...int64) (any, error) {
				return nil, errs.ErrOverflowOperands(ops[0], ops[1])
			},
			wantKind:   diagnostic.KindHandlerFault,
			wantInputs: map[string]string{"op1": "3", "op2": "4"},
			wantMsg:    "handler returned an error",
		},
		{
			name:       "handler panic",
			query:      "op1=3&op2=4",
			handler:    boom,
			wantKind:   diagnostic.KindHandlerFault,
			wantInputs: map[string]string{"op1": "3", "op2": "4"},
			wantMsg:    "handler panicked",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sink := diagnostic.NewMemory()
			ex := NewExecutor(sink)

			o := ex.Execute(context.Background(), params.Extract(tc.query), names, tc.handler)

			if tc.wantKind == "" {
				require.True(t, o.IsSuccess())
				assert.Equal(t, tc.wantValue, o.Value())
				assert.Equal(t, 0, sink.Len())
				return
			}
			require.False(t, o.IsSuccess())
			d, ok := o.Diagnostic()
			require.True(t, ok)
			assert.Equal(t, tc.wantKind, d.Kind)
			assert.Equal(t, tc.wantMsg, d.Message)
			assert.Equal(t, tc.wantInputs, d.Inputs)
			assert.NotEmpty(t, d.ID)
			assert.NotEqual(t, "unknown", d.Origin.String())

			records := sink.Records()
			require.Len(t, records, 1)
			assert.Equal(t, d.ID, records[0].ID)
			assert.Equal(t, d.Inputs, records[0].Inputs)
		})
	}
}

func TestExecuteHandlerError(t *testing.T) {
	sink := diagnostic.NewMemory()
	ex := NewExecutor(sink)
	h := func(_ context.Context, _ ...int64) (any, error) {
		return nil, fmt.Errorf("adding: %w", errs.ErrOverflow)
	}

	o := ex.Execute(context.Background(), params.Extract("op1=1&op2=2"), names, h)

	d, ok := o.Diagnostic()
	require.True(t, ok)
	assert.Equal(t, "adding: handler: integer overflow", d.Cause)
	assert.Equal(t, "*fmt.wrapError", d.CauseType)
	assert.Equal(t, []string{"adding: handler: integer overflow", "handler: integer overflow"}, d.Chain)
	assert.Contains(t, d.Origin.Function, "TestExecuteHandlerError")
	assert.Empty(t, d.Stack)
}

func TestExecuteHandlerPanic(t *testing.T) {
	sink := diagnostic.NewMemory()
	ex := NewExecutor(sink)

	o := ex.Execute(context.Background(), params.Extract("op1=1&op2=2"), names, boom)

	d, ok := o.Diagnostic()
	require.True(t, ok)
	assert.Contains(t, d.Cause, "index out of range [2] with length 2")
	assert.Equal(t, "runtime.boundsError", d.CauseType)
	assert.True(t, strings.HasSuffix(d.Origin.Function, "guard.boom"), d.Origin.Function)
	assert.Contains(t, d.Origin.File, "executor_test.go")
	assert.Contains(t, d.Stack, "goroutine")
	assert.Contains(t, d.Stack, "guard.boom")
}

func TestExecuteWrappedPanicError(t *testing.T) {
	sink := diagnostic.NewMemory()
	ex := NewExecutor(sink)
	h := func(_ context.Context, _ ...int64) (any, error) {
		panic(fmt.Errorf("wrapped: %w", errs.ErrOverflow))
	}

	o := ex.Execute(context.Background(), params.Extract("op1=1&op2=2"), names, h)

	d, ok := o.Diagnostic()
	require.True(t, ok)
	assert.Equal(t, "panic: wrapped: handler: integer overflow", d.Cause)
	assert.Equal(t, "*fmt.wrapError", d.CauseType)
	assert.Equal(t, []string{
		"panic: wrapped: handler: integer overflow",
		"wrapped: handler: integer overflow",
		"handler: integer overflow",
	}, d.Chain)
}

func TestExecuteRequestContext(t *testing.T) {
	sink := diagnostic.NewMemory()
	ex := NewExecutor(sink)
	ctx := WithRequest(requestid.NewContext(context.Background(), "req-1"), "GET", "/sum")

	o := ex.Execute(ctx, params.Extract("op1=x"), names, add)

	d, ok := o.Diagnostic()
	require.True(t, ok)
	assert.Equal(t, "req-1", d.RequestID)
	assert.Equal(t, "GET", d.Method)
	assert.Equal(t, "/sum", d.Path)
}

func TestExecuteDiagnosticUnavailable(t *testing.T) {
	var buf bytes.Buffer
	sink := diagnostic.NewMemory()
	ex := NewExecutor(sink, WithFallbackLogger(log.New(&buf, "", 0)))
	h := func(_ context.Context, _ ...int64) (any, error) {
		return nil, panickyError{}
	}

	var o Outcome
	require.NotPanics(t, func() {
		o = ex.Execute(context.Background(), params.Extract("op1=1&op2=2"), names, h)
	})

	require.False(t, o.IsSuccess())
	d, _ := o.Diagnostic()
	assert.Equal(t, diagnostic.KindHandlerFault, d.Kind)
	assert.Equal(t, "diagnostic unavailable", d.Message)
	assert.Contains(t, buf.String(), "cannot describe myself")
	assert.Equal(t, 0, sink.Len())
}

func TestExecuteSinkPanics(t *testing.T) {
	var buf bytes.Buffer
	sink := diagnostic.SinkFunc(func(d diagnostic.Diagnostic) { panic("sink down") })
	ex := NewExecutor(sink, WithFallbackLogger(log.New(&buf, "", 0)))

	o := ex.Execute(context.Background(), params.Extract("op1=oops"), names, add)

	d, ok := o.Diagnostic()
	require.True(t, ok)
	assert.Equal(t, diagnostic.KindNotNumeric, d.Kind)
	assert.Contains(t, buf.String(), "sink down")
	assert.Contains(t, buf.String(), d.ID)
}

func TestExecuteSinkCopyIsIndependent(t *testing.T) {
	sink := diagnostic.SinkFunc(func(d diagnostic.Diagnostic) { d.Inputs["op1"] = "tampered" })
	ex := NewExecutor(sink)

	o := ex.Execute(context.Background(), params.Extract("op1=1.5"), names, add)

	d, _ := o.Diagnostic()
	assert.Equal(t, "1.5", d.Inputs["op1"])
}

func TestExecuteConcurrent(t *testing.T) {
	sink := diagnostic.NewMemory()
	ex := NewExecutor(sink)

	const n = 100
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := fmt.Sprintf("op1=%d&op2=%d", i, i)
			if i%2 == 1 {
				q = fmt.Sprintf("op1=%d.5&op2=%d", i, i)
			}
			outcomes[i] = ex.Execute(context.Background(), params.Extract(q), names, add)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i, o := range outcomes {
		if i%2 == 0 {
			require.True(t, o.IsSuccess())
			assert.Equal(t, int64(2*i), o.Value())
			continue
		}
		d, ok := o.Diagnostic()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("%d.5", i), d.Inputs["op1"])
		ids[d.ID] = true
	}
	assert.Len(t, ids, n/2)
	assert.Equal(t, n/2, sink.Len())
}

func TestExecuteMarksSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ex := NewExecutor(nil)

	ctx, span := tp.Tracer("test").Start(context.Background(), "sum")
	o := ex.Execute(ctx, params.Extract("op1=1&op2=two"), names, add)
	span.End()

	require.False(t, o.IsSuccess())
	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, string(diagnostic.KindNotNumeric), spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecovered(t *testing.T) {
	sink := diagnostic.NewMemory()
	ex := NewExecutor(sink)

	var o Outcome
	func() {
		defer func() {
			if r := recover(); r != nil {
				o = ex.Recovered(context.Background(), r)
			}
		}()
		panic(errors.New("escaped"))
	}()

	d, ok := o.Diagnostic()
	require.True(t, ok)
	assert.Equal(t, diagnostic.KindHandlerFault, d.Kind)
	assert.Equal(t, "panic: escaped", d.Cause)
	assert.Contains(t, d.Origin.Function, "TestRecovered")
	assert.Equal(t, 1, sink.Len())
}
