// Package accesslog writes one JSON line per request.
package accesslog

import (
	"encoding/json"
	"time"

	"github.com/dormoron/gimme"
)

type MiddlewareBuilder struct {
	logFunc func(log string)
}

// InitMiddlewareBuilder returns a builder that passes each line to logFunc.
func InitMiddlewareBuilder(logFunc func(log string)) *MiddlewareBuilder {
	return &MiddlewareBuilder{logFunc: logFunc}
}

func (b *MiddlewareBuilder) LogFunc(fn func(log string)) *MiddlewareBuilder {
	b.logFunc = fn
	return b
}

// Build returns the access log middleware. Installed outside the guard stage
// it sees the final staged status, so failed requests are logged with their
// request ID and nothing else about the failure.
func (b *MiddlewareBuilder) Build() gimme.Middleware {
	return func(next gimme.HandleFunc) gimme.HandleFunc {
		return func(ctx *gimme.Context) {
			start := time.Now()
			defer func() {
				status := ctx.RespStatusCode
				if status == 0 {
					status = 200
				}
				log := accessLog{
					Host:       ctx.Request.Host,
					Route:      ctx.MatchedRoute,
					HTTPMethod: ctx.Request.Method,
					Path:       ctx.Request.URL.Path,
					Status:     status,
					RequestID:  ctx.RequestID(),
					DurationMS: float64(time.Since(start).Microseconds()) / 1000,
				}
				data, _ := json.Marshal(log)
				b.logFunc(string(data))
			}()
			next(ctx)
		}
	}
}

type accessLog struct {
	Host       string  `json:"host,omitempty"`
	Route      string  `json:"route,omitempty"`
	HTTPMethod string  `json:"http_method,omitempty"`
	Path       string  `json:"path,omitempty"`
	Status     int     `json:"status"`
	RequestID  string  `json:"request_id,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}
