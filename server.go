package gimme

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

var _ Server = &HTTPServer{} // ensure HTTPServer implements Server

// Server is an http.Handler that can also bind itself to an address.
type Server interface {
	http.Handler
	Start(addr string) error
	registerRoute(method string, path string, handleFunc HandleFunc, mils ...Middleware)
}

// HTTPServerOption configures an HTTPServer in InitHTTPServer.
type HTTPServerOption func(server *HTTPServer)

// HTTPServer dispatches requests to registered endpoints through the
// middleware chain and writes the staged response once the chain returns.
type HTTPServer struct {
	router
	log         Logger
	middlewares []Middleware
	config      ServerConfig

	mu         sync.Mutex
	httpServer *http.Server
}

// ServerConfig holds the transport settings applied to the underlying
// http.Server.
type ServerConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	MaxHeaderBytes    int
}

// DefaultServerConfig returns conservative timeouts suitable for a public
// listener.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
}

// WithServerConfig overrides DefaultServerConfig.
func WithServerConfig(config ServerConfig) HTTPServerOption {
	return func(s *HTTPServer) {
		s.config = config
	}
}

// ServerWithLogger sets the logger used for transport-level errors.
func ServerWithLogger(log Logger) HTTPServerOption {
	return func(s *HTTPServer) {
		if log != nil {
			s.log = log
		}
	}
}

// InitHTTPServer creates a server with an empty route table.
func InitHTTPServer(opts ...HTTPServerOption) *HTTPServer {
	res := &HTTPServer{
		router: initRouter(),
		log:    defaultLogger,
		config: DefaultServerConfig(),
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Use appends global middlewares. They run for every route, inside any
// route-level middlewares.
func (s *HTTPServer) Use(mdls ...Middleware) {
	if len(mdls) == 0 {
		return
	}
	s.middlewares = append(s.middlewares, mdls...)
}

// ServeHTTP implements http.Handler.
func (s *HTTPServer) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	ctx := acquireContext(writer, request)
	defer releaseContext(ctx)
	s.server(ctx)
}

// flashResp writes the staged status code and body. It is the only place the
// response reaches the wire.
func (s *HTTPServer) flashResp(ctx *Context) {
	if ctx.headerWritten {
		return
	}
	if ctx.RespStatusCode == 0 {
		ctx.RespStatusCode = http.StatusOK
	}
	ctx.writeHeader(ctx.RespStatusCode)
	if len(ctx.RespData) == 0 {
		return
	}
	if _, err := ctx.ResponseWriter.Write(ctx.RespData); err != nil {
		s.log.Error("failed to write response", "path", ctx.Request.URL.Path, "error", err)
	}
}

func (s *HTTPServer) server(ctx *Context) {
	mi, ok := s.findRoute(ctx.Request.Method, ctx.Request.URL.Path)
	if !ok {
		ctx.RespStatusCode = http.StatusNotFound
		if mi != nil && mi.pathFound {
			ctx.RespStatusCode = http.StatusMethodNotAllowed
		}
		s.flashResp(ctx)
		return
	}
	ctx.MatchedRoute = mi.n.path

	var mdls []Middleware
	mdls = append(mdls, mi.n.mils...)
	mdls = append(mdls, s.middlewares...)
	root := Chain(mi.n.handler, mdls...)

	// The flush stage is outermost so that whatever the chain staged,
	// including an abort, is written exactly once.
	var m Middleware = func(next HandleFunc) HandleFunc {
		return func(ctx *Context) {
			if !ctx.Aborted {
				next(ctx)
			}
			s.flashResp(ctx)
		}
	}
	m(root)(ctx)
}

// Start listens on addr and serves until Shutdown is called. It returns nil
// after a graceful shutdown.
func (s *HTTPServer) Start(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l. It is Start without the listen step and is
// handy when the listener is created elsewhere.
func (s *HTTPServer) Serve(l net.Listener) error {
	srv := &http.Server{
		Addr:              l.Addr().String(),
		Handler:           s,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		MaxHeaderBytes:    s.config.MaxHeaderBytes,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.log.Info("server listening", "addr", srv.Addr)
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Handle registers handleFunc for method and path.
func (s *HTTPServer) Handle(method string, path string, handleFunc HandleFunc, ms ...Middleware) {
	s.registerRoute(method, path, handleFunc, ms...)
}

// GET registers a handler for GET requests on path.
func (s *HTTPServer) GET(path string, handleFunc HandleFunc, ms ...Middleware) {
	s.registerRoute(http.MethodGet, path, handleFunc, ms...)
}

// POST registers a handler for POST requests on path.
func (s *HTTPServer) POST(path string, handleFunc HandleFunc, ms ...Middleware) {
	s.registerRoute(http.MethodPost, path, handleFunc, ms...)
}

func (s *HTTPServer) registerRoute(method string, path string, handleFunc HandleFunc, mils ...Middleware) {
	s.router.registerRoute(method, path, handleFunc, mils...)
}
