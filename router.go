package gimme

import (
	"strings"

	"github.com/dormoron/gimme/internal/errs"
)

// router maps an exact method and path to a handler. Pattern matching is not
// supported; each registered path names one endpoint.
type router struct {
	// routes is keyed by path, then by HTTP method.
	routes map[string]map[string]*route
}

// route is one registered endpoint together with its route-level middlewares.
type route struct {
	path    string
	handler HandleFunc
	mils    []Middleware
}

// matchInfo is the result of a lookup. pathFound is set when the path exists
// but n is nil because the method does not.
type matchInfo struct {
	n         *route
	pathFound bool
}

func initRouter() router {
	return router{routes: make(map[string]map[string]*route)}
}

// registerRoute adds an endpoint. It panics on a path that does not start
// with '/' and on duplicates, so misconfiguration fails at startup.
func (r *router) registerRoute(method string, path string, handler HandleFunc, ms ...Middleware) {
	if path == "" || !strings.HasPrefix(path, "/") {
		panic(errs.ErrRouteInvalid(path))
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	methods, ok := r.routes[path]
	if !ok {
		methods = make(map[string]*route)
		r.routes[path] = methods
	}
	if _, dup := methods[method]; dup {
		panic(errs.ErrRouteDuplicate(method, path))
	}
	methods[method] = &route{path: path, handler: handler, mils: ms}
}

func (r *router) findRoute(method string, path string) (*matchInfo, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	methods, ok := r.routes[path]
	if !ok {
		return nil, false
	}
	n, ok := methods[method]
	if !ok {
		return &matchInfo{pathFound: true}, false
	}
	return &matchInfo{n: n, pathFound: true}, true
}
