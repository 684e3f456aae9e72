package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dormoron/gimme"
	"github.com/dormoron/gimme/config"
	"github.com/dormoron/gimme/diagnostic"
	"github.com/dormoron/gimme/diagnostic/redissink"
	"github.com/dormoron/gimme/guard"
	"github.com/dormoron/gimme/internal/logging"
	"github.com/dormoron/gimme/middlewares/accesslog"
	"github.com/dormoron/gimme/middlewares/activelimit"
	"github.com/dormoron/gimme/middlewares/healthcheck"
	"github.com/dormoron/gimme/middlewares/opentelemetry"
	gimmeprom "github.com/dormoron/gimme/middlewares/prometheus"
	"github.com/dormoron/gimme/middlewares/recovery"
	"github.com/dormoron/gimme/middlewares/requestid"
	"github.com/dormoron/gimme/response"
	"github.com/dormoron/gimme/sum"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// app is the wired process: the public server, the optional admin server and
// the diagnostic pipeline behind them.
type app struct {
	server *gimme.HTTPServer
	admin  *http.Server
	async  *diagnostic.Async
	store  *diagnostic.Store
	redis  *redis.Client
}

func newApp(s config.Settings, logger *logging.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	a := &app{}

	sinks := []diagnostic.Sink{diagnostic.NewLogSink(logger.Logger)}
	if s.Sink.StoreSize > 0 {
		store, err := diagnostic.NewStore(s.Sink.StoreSize)
		if err != nil {
			return nil, err
		}
		a.store = store
		sinks = append(sinks, store)
	}
	if s.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		sinks = append(sinks, redissink.New(a.redis, s.Redis.Key,
			redissink.WithMaxLen(s.Redis.MaxLen),
			redissink.WithErrorHandler(func(d diagnostic.Diagnostic, err error) {
				logger.Error("redis sink failed", "diagnostic_id", d.ID, "error", err)
			}),
		))
	}
	var sink diagnostic.Sink = diagnostic.Multi(sinks...)
	if s.Sink.Metrics {
		m, err := diagnostic.NewMetrics(reg, "gimme", sink)
		if err != nil {
			return nil, err
		}
		sink = m
	}
	a.async = diagnostic.NewAsync(sink,
		diagnostic.AsyncWithBuffer(s.Sink.Buffer),
		diagnostic.AsyncWithEnqueueTimeout(s.Sink.EnqueueTimeout),
		diagnostic.AsyncWithDropHandler(func(d diagnostic.Diagnostic, err error) {
			logger.Warn("diagnostic dropped", "diagnostic_id", d.ID, "kind", d.Kind, "error", err)
		}),
	)

	ex := guard.NewExecutor(a.async)
	builder := response.Default()

	a.server = gimme.InitHTTPServer(
		gimme.ServerWithLogger(logger.Logger),
		gimme.WithServerConfig(gimme.ServerConfig{
			ReadTimeout:       s.Server.ReadTimeout,
			WriteTimeout:      s.Server.WriteTimeout,
			IdleTimeout:       s.Server.IdleTimeout,
			ReadHeaderTimeout: s.Server.ReadHeaderTimeout,
			MaxHeaderBytes:    gimme.DefaultServerConfig().MaxHeaderBytes,
		}),
	)
	// Stages installed after recovery run guarded.
	a.server.Use(
		accesslog.InitMiddlewareBuilder(func(line string) {
			logger.Info("access", "request", line)
		}).Build(),
		requestid.InitMiddlewareBuilder().Build(),
		recovery.MiddlewareBuilder{Executor: ex, Builder: builder}.Build(),
	)
	if s.Server.MaxActive > 0 {
		a.server.Use(activelimit.InitMiddlewareBuilder(s.Server.MaxActive).Build())
	}
	a.server.Use(
		(&opentelemetry.MiddlewareBuilder{}).Build(),
		gimmeprom.InitMiddlewareBuilder("gimme", "http", "request_duration_us", "Request latency in microseconds.").
			WithRegisterer(reg).Build(),
	)
	a.health().Register(a.server)
	endpoint := sum.Endpoint(ex, builder)
	a.server.GET("/", endpoint)
	a.server.POST("/", endpoint)

	if s.Server.AdminAddr != "" {
		a.admin = &http.Server{
			Addr:              s.Server.AdminAddr,
			Handler:           adminHandler(gatherer, a.store, logger.Logger),
			ReadHeaderTimeout: s.Server.ReadHeaderTimeout,
		}
	}
	return a, nil
}

func (a *app) health() *healthcheck.Middleware {
	h := healthcheck.InitMiddleware("/health")
	h.RegisterComponent("diagnostics", func() (healthcheck.Status, map[string]any) {
		return healthcheck.StatusUp, map[string]any{
			"delivered": a.async.Delivered(),
			"dropped":   a.async.Dropped(),
		}
	})
	if a.redis != nil {
		h.RegisterComponent("redis", func() (healthcheck.Status, map[string]any) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := a.redis.Ping(ctx).Err(); err != nil {
				return healthcheck.StatusDown, map[string]any{"error": err.Error()}
			}
			return healthcheck.StatusUp, nil
		})
	}
	return h
}

// shutdown stops accepting requests, then drains the diagnostics recorded
// by the requests that were in flight.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.async.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
