package recovery

import (
	"github.com/dormoron/gimme"
	"github.com/dormoron/gimme/guard"
	"github.com/dormoron/gimme/response"
)

// MiddlewareBuilder builds the guard stage of the pipeline. Installed above
// every stage that may fail, it recovers any panic that escapes them, hands
// the recovered value to the Executor so one complete diagnostic is recorded,
// and stages the opaque failure response in place of whatever was staged
// before.
//
// Failures that stages already turned into an Outcome (see guard.Executor)
// do not pass through here; this stage only sees what nothing else caught.
//
// Example:
//
//	ex := guard.NewExecutor(sink)
//	server.Use(recovery.MiddlewareBuilder{Executor: ex, Builder: response.Default()}.Build())
type MiddlewareBuilder struct {
	// Executor records the diagnostic. Required.
	Executor *guard.Executor

	// Builder renders the failure response sent to the client.
	Builder response.Builder

	// LogFunc, when set, is called after the failure has been recorded with
	// the outcome that was rendered.
	LogFunc func(ctx *gimme.Context, o guard.Outcome)
}

func (m MiddlewareBuilder) Build() gimme.Middleware {
	return func(next gimme.HandleFunc) gimme.HandleFunc {
		return func(ctx *gimme.Context) {
			defer func() {
				if r := recover(); r != nil {
					reqCtx := guard.WithRequest(ctx.Request.Context(), ctx.Request.Method, ctx.Request.URL.Path)
					o := m.Executor.Recovered(reqCtx, r)
					m.Builder.Build(o).Write(ctx)
					if m.LogFunc != nil {
						m.LogFunc(ctx, o)
					}
				}
			}()
			next(ctx)
		}
	}
}
