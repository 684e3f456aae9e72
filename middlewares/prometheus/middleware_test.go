package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dormoron/gimme"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareBuilder_Build(t *testing.T) {
	reg := prometheus.NewRegistry()
	builder := InitMiddlewareBuilder("gimme", "http", "request_duration_us", "request latency").WithRegisterer(reg)

	server := gimme.InitHTTPServer()
	server.Use(builder.Build())
	server.GET("/sum", func(ctx *gimme.Context) {
		if ctx.Request.URL.Query().Get("op1") == "" {
			ctx.RespStatusCode = http.StatusBadRequest
		}
	})

	server.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sum?op1=1", nil))
	server.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sum?op1=2", nil))
	server.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sum", nil))

	n, err := testutil.GatherAndCount(reg, "gimme_http_request_duration_us")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	counts := make(map[string]uint64)
	for _, metric := range families[0].GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "status" {
				counts[label.GetValue()] = metric.GetSummary().GetSampleCount()
			}
		}
	}
	assert.Equal(t, map[string]uint64{"200": 2, "400": 1}, counts)
}

func TestMiddlewareBuilder_BuildTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	builder := InitMiddlewareBuilder("gimme", "http", "request_duration_us", "request latency").WithRegisterer(reg)

	assert.NotPanics(t, func() {
		builder.Build()
		builder.Build()
	})
}
