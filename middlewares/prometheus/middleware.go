// Package prometheus observes request latency by route, method and status.
package prometheus

import (
	"errors"
	"strconv"
	"time"

	"github.com/dormoron/gimme"
	"github.com/prometheus/client_golang/prometheus"
)

// MiddlewareBuilder names the latency summary. Registerer defaults to
// prometheus.DefaultRegisterer.
type MiddlewareBuilder struct {
	Namespace  string
	Subsystem  string
	Name       string
	Help       string
	Registerer prometheus.Registerer
}

func InitMiddlewareBuilder(namespace string, subsystem string, name string, help string) *MiddlewareBuilder {
	return &MiddlewareBuilder{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}
}

// WithRegisterer registers the summary on reg instead of the default
// registry.
func (m *MiddlewareBuilder) WithRegisterer(reg prometheus.Registerer) *MiddlewareBuilder {
	m.Registerer = reg
	return m
}

// Build registers a SummaryVec with labels pattern, method and status and
// returns the middleware observing it in microseconds. Building twice against
// the same registry reuses the summary registered first.
func (m *MiddlewareBuilder) Build() gimme.Middleware {
	vector := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: m.Namespace,
		Subsystem: m.Subsystem,
		Name:      m.Name,
		Help:      m.Help,
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{"pattern", "method", "status"})

	reg := m.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(vector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		vector = are.ExistingCollector.(*prometheus.SummaryVec)
	}

	return func(next gimme.HandleFunc) gimme.HandleFunc {
		return func(ctx *gimme.Context) {
			startTime := time.Now()
			defer func() {
				duration := time.Since(startTime).Microseconds()
				pattern := ctx.MatchedRoute
				if pattern == "" {
					pattern = "unknown"
				}
				status := ctx.RespStatusCode
				if status == 0 {
					status = 200
				}
				vector.WithLabelValues(pattern, ctx.Request.Method, strconv.Itoa(status)).Observe(float64(duration))
			}()
			next(ctx)
		}
	}
}
