package gimme

import (
	"net/http"
	"sync"
	"time"
)

// Context carries the state needed to process one HTTP request as it flows
// through the middleware chain. Handlers stage their output in RespStatusCode
// and RespData; the server writes it to the client once the chain returns.
//
// A Context is request-scoped. It is taken from a pool when the request
// arrives and returned after the response has been flushed, so it must not be
// retained by goroutines that outlive the request.
type Context struct {
	// Request is the original http.Request received by the server.
	Request *http.Request

	// ResponseWriter is used to send the response back to the client.
	// Handlers should prefer staging data in RespData and RespStatusCode.
	ResponseWriter http.ResponseWriter

	// Keys stores arbitrary values shared between stages of the chain
	// for the lifetime of the request.
	Keys map[string]any

	// mutex guards Keys.
	mutex sync.RWMutex

	// MatchedRoute is the registered path that matched the request.
	MatchedRoute string

	// RespData accumulates the response body before it is written.
	RespData []byte

	// RespStatusCode is the status code that will be written. Zero means 200.
	RespStatusCode int

	// headerWritten records whether WriteHeader has already been called so
	// the status line is never written twice.
	headerWritten bool

	// Aborted stops further processing; the server flushes whatever has been
	// staged so far.
	Aborted bool
}

// RequestIDKey is the Keys entry holding the request ID.
const RequestIDKey = "request_id"

var contextPool = sync.Pool{
	New: func() any {
		return &Context{}
	},
}

// acquireContext takes a Context from the pool and binds it to the request.
func acquireContext(w http.ResponseWriter, r *http.Request) *Context {
	ctx := contextPool.Get().(*Context)
	ctx.Request = r
	ctx.ResponseWriter = w
	return ctx
}

// releaseContext clears every request-specific field and returns ctx to the
// pool.
func releaseContext(ctx *Context) {
	ctx.Request = nil
	ctx.ResponseWriter = nil
	ctx.Keys = nil
	ctx.MatchedRoute = ""
	ctx.RespData = nil
	ctx.RespStatusCode = 0
	ctx.headerWritten = false
	ctx.Aborted = false
	contextPool.Put(ctx)
}

// Deadline delegates to the request's context.
func (c *Context) Deadline() (deadline time.Time, ok bool) {
	return c.Request.Context().Deadline()
}

// Done delegates to the request's context.
func (c *Context) Done() <-chan struct{} {
	return c.Request.Context().Done()
}

// Err delegates to the request's context.
func (c *Context) Err() error {
	return c.Request.Context().Err()
}

// Value looks string keys up in Keys first and falls back to the request's
// context for everything else.
func (c *Context) Value(key any) any {
	if keyAsString, ok := key.(string); ok {
		if val, exists := c.Get(keyAsString); exists {
			return val
		}
	}
	return c.Request.Context().Value(key)
}

// writeHeader sends the status line at most once per request.
func (c *Context) writeHeader(statusCode int) {
	if !c.headerWritten {
		c.ResponseWriter.WriteHeader(statusCode)
		c.RespStatusCode = statusCode
		c.headerWritten = true
	}
}

// AbortWithStatus stages code and marks the request as aborted. Stages that
// run afterwards should check Aborted and return.
func (c *Context) AbortWithStatus(code int) {
	if c.Aborted {
		return
	}
	c.RespStatusCode = code
	c.Aborted = true
}

// Header sets a response header, or deletes it when value is empty.
func (c *Context) Header(key, value string) {
	if value == "" {
		c.ResponseWriter.Header().Del(key)
		return
	}
	c.ResponseWriter.Header().Set(key, value)
}

// Set stores value under key. It is safe for concurrent use.
func (c *Context) Set(key string, value any) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.Keys == nil {
		c.Keys = make(map[string]any)
	}
	c.Keys[key] = value
}

// Get returns the value stored under key and whether it exists.
func (c *Context) Get(key string) (value any, exists bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	value, exists = c.Keys[key]
	return
}

// MustGet returns the value for key and panics if it does not exist.
func (c *Context) MustGet(key string) any {
	if value, exists := c.Get(key); exists {
		return value
	}
	panic("Key \"" + key + "\" does not exist")
}

// GetString returns the value for key as a string, or "" when it is absent
// or not a string.
func (c *Context) GetString(key string) (s string) {
	if val, ok := c.Get(key); ok && val != nil {
		s, _ = val.(string)
	}
	return
}

// RequestID returns the ID assigned to the request, or "" when no request ID
// stage ran.
func (c *Context) RequestID() string {
	return c.GetString(RequestIDKey)
}
