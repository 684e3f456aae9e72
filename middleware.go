package gimme

// Middleware wraps a HandleFunc with extra behaviour and returns the wrapped
// function. Chaining middlewares builds the request pipeline: each stage may
// act before calling next, after next returns, or both, and may decide not to
// call next at all (for example when it aborts the request).
//
// The chain for a route is assembled so that route-level middlewares wrap the
// global ones registered with Use, which in turn wrap the route handler:
//
//	route_before -> global_before -> handler -> global_after -> route_after
//
// Stages that can fail should sit beneath a guard stage (see package guard and
// middlewares/recovery) so that no failure escapes to the transport layer.
type Middleware func(next HandleFunc) HandleFunc

// Chain composes mdls around h. The first middleware becomes the outermost
// stage.
func Chain(h HandleFunc, mdls ...Middleware) HandleFunc {
	for i := len(mdls) - 1; i >= 0; i-- {
		h = mdls[i](h)
	}
	return h
}
