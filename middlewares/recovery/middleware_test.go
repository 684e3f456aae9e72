package recovery

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dormoron/gimme"
	"github.com/dormoron/gimme/diagnostic"
	"github.com/dormoron/gimme/guard"
	"github.com/dormoron/gimme/middlewares/requestid"
	"github.com/dormoron/gimme/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareBuilder_Build(t *testing.T) {
	sink := diagnostic.NewMemory()
	var logged []guard.Outcome
	builder := MiddlewareBuilder{
		Executor: guard.NewExecutor(sink),
		Builder:  response.Default(),
		LogFunc: func(ctx *gimme.Context, o guard.Outcome) {
			logged = append(logged, o)
		},
	}
	server := gimme.InitHTTPServer()
	server.Use(builder.Build())
	server.GET("/panic", func(ctx *gimme.Context) {
		ctx.RespStatusCode = http.StatusOK
		ctx.RespData = []byte("partial")
		panic("stage blew up")
	})
	server.GET("/ok", func(ctx *gimme.Context) {
		response.Build(guard.Success("fine")).Write(ctx)
	})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, response.FailureMessage, rec.Body.String())
	require.Equal(t, 1, sink.Len())
	d := sink.Records()[0]
	assert.Equal(t, diagnostic.KindHandlerFault, d.Kind)
	assert.Equal(t, "panic: stage blew up", d.Cause)
	assert.Equal(t, "string", d.CauseType)
	assert.Equal(t, http.MethodGet, d.Method)
	assert.Equal(t, "/panic", d.Path)
	assert.Contains(t, d.Origin.Function, "TestMiddlewareBuilder_Build")
	require.Len(t, logged, 1)
	ld, _ := logged[0].Diagnostic()
	assert.Equal(t, d.ID, ld.ID)

	rec = httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
	assert.Equal(t, 1, sink.Len())
	assert.Len(t, logged, 1)
}

func TestMiddlewareBuilder_GuardsLaterStages(t *testing.T) {
	sink := diagnostic.NewMemory()
	server := gimme.InitHTTPServer()
	server.Use(
		requestid.InitMiddlewareBuilder().Build(),
		MiddlewareBuilder{Executor: guard.NewExecutor(sink), Builder: response.Default()}.Build(),
		func(next gimme.HandleFunc) gimme.HandleFunc {
			return func(ctx *gimme.Context) {
				panic("stage boom")
			}
		},
	)
	called := false
	server.GET("/", func(ctx *gimme.Context) { called = true })

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, response.FailureMessage, rec.Body.String())
	require.Equal(t, 1, sink.Len())
	d := sink.Records()[0]
	assert.Equal(t, diagnostic.KindHandlerFault, d.Kind)
	assert.Equal(t, "panic: stage boom", d.Cause)
	assert.Equal(t, rec.Header().Get(requestid.HeaderName), d.RequestID)
}
