// Package activelimit caps the number of requests processed at once.
package activelimit

import (
	"net/http"

	"github.com/dormoron/gimme"
	"go.uber.org/atomic"
)

// MiddlewareBuilder rejects requests once maxActive are already in flight.
// Rejected requests get 429 unless an overload handler is set.
type MiddlewareBuilder struct {
	maxActive               *atomic.Int64
	countActive             *atomic.Int64
	rejected                *atomic.Int64
	overloadResponseHandler func(ctx *gimme.Context)
}

func InitMiddlewareBuilder(maxActive int64) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		maxActive:   atomic.NewInt64(maxActive),
		countActive: atomic.NewInt64(0),
		rejected:    atomic.NewInt64(0),
	}
}

func (m *MiddlewareBuilder) SetOverloadResponseHandler(overloadResponseHandler func(ctx *gimme.Context)) *MiddlewareBuilder {
	m.overloadResponseHandler = overloadResponseHandler
	return m
}

// SetMaxActive changes the limit. Requests already admitted are unaffected.
func (m *MiddlewareBuilder) SetMaxActive(n int64) {
	m.maxActive.Store(n)
}

// Active reports the requests currently in flight.
func (m *MiddlewareBuilder) Active() int64 { return m.countActive.Load() }

// Rejected reports how many requests were turned away so far.
func (m *MiddlewareBuilder) Rejected() int64 { return m.rejected.Load() }

func (m *MiddlewareBuilder) Build() gimme.Middleware {
	return func(next gimme.HandleFunc) gimme.HandleFunc {
		return func(ctx *gimme.Context) {
			current := m.countActive.Add(1)
			defer m.countActive.Sub(1)

			if current > m.maxActive.Load() {
				m.rejected.Inc()
				if m.overloadResponseHandler != nil {
					m.overloadResponseHandler(ctx)
				} else {
					ctx.AbortWithStatus(http.StatusTooManyRequests)
				}
				return
			}
			next(ctx)
		}
	}
}
