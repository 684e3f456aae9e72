// Package healthcheck answers health probes before they reach the routes.
package healthcheck

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dormoron/gimme"
	"github.com/patrickmn/go-cache"
)

type Status string

const (
	StatusUp      Status = "UP"
	StatusDown    Status = "DOWN"
	StatusUnknown Status = "UNKNOWN"
)

// ComponentCheck reports the status of one dependency.
type ComponentCheck func() (Status, map[string]any)

type HealthResponse struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
}

type ComponentStatus struct {
	Status  Status         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Middleware serves path with the combined status of every registered
// component, and path+"/liveness" with the process alone. Results are cached
// for the cache timeout.
type Middleware struct {
	mu         sync.Mutex
	path       string
	version    string
	components map[string]ComponentCheck
	results    *cache.Cache
}

const resultKey = "health"

func InitMiddleware(path string) *Middleware {
	if path == "" {
		path = "/health"
	}
	return &Middleware{
		path:       path,
		components: make(map[string]ComponentCheck),
		results:    cache.New(5*time.Second, time.Minute),
	}
}

func (m *Middleware) RegisterComponent(name string, check ComponentCheck) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = check
	m.results.Flush()
	return m
}

func (m *Middleware) SetVersion(version string) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version = version
	return m
}

// SetCacheTimeout sets how long a result is served before the components
// are checked again. Default 5s.
func (m *Middleware) SetCacheTimeout(timeout time.Duration) *Middleware {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = cache.New(timeout, time.Minute)
	return m
}

// check runs every component, or returns the cached result when it is
// fresh. An empty component set is UNKNOWN.
func (m *Middleware) check() HealthResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.results.Get(resultKey); ok {
		return cached.(HealthResponse)
	}

	result := HealthResponse{
		Status:     StatusUp,
		Components: make(map[string]ComponentStatus, len(m.components)),
		Timestamp:  time.Now(),
		Version:    m.version,
	}
	names := make([]string, 0, len(m.components))
	for name := range m.components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status, details := m.components[name]()
		result.Components[name] = ComponentStatus{Status: status, Details: details}
		if status != StatusUp && result.Status != StatusDown {
			result.Status = status
		}
	}
	if len(m.components) == 0 {
		result.Status = StatusUnknown
	}

	m.results.SetDefault(resultKey, result)
	return result
}

func (m *Middleware) Build() gimme.Middleware {
	return func(next gimme.HandleFunc) gimme.HandleFunc {
		return func(ctx *gimme.Context) {
			var resp HealthResponse
			switch ctx.Request.URL.Path {
			case m.path:
				resp = m.check()
			case m.path + "/liveness":
				resp = HealthResponse{Status: StatusUp, Timestamp: time.Now(), Version: m.version}
			default:
				next(ctx)
				return
			}

			data, err := json.Marshal(resp)
			if err != nil {
				ctx.RespStatusCode = http.StatusInternalServerError
				return
			}
			ctx.RespStatusCode = http.StatusOK
			if resp.Status != StatusUp {
				ctx.RespStatusCode = http.StatusServiceUnavailable
			}
			ctx.Header("Content-Type", "application/json")
			ctx.RespData = data
		}
	}
}

// Register adds the probe routes to server, since global middlewares only
// run for registered routes.
func (m *Middleware) Register(server *gimme.HTTPServer) {
	noop := func(ctx *gimme.Context) {}
	server.GET(m.path, noop, m.Build())
	server.GET(m.path+"/liveness", noop, m.Build())
}
