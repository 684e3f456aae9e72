package gimme

// HandleFunc is the signature of every stage in the request pipeline. It
// receives the request-scoped Context and reports its result by staging
// RespStatusCode and RespData on it.
//
// Example:
//
//	func Hello(ctx *Context) {
//	  ctx.RespStatusCode = http.StatusOK
//	  ctx.RespData = []byte("Hello, World!")
//	}
//
//	server.GET("/hello", Hello)
type HandleFunc func(ctx *Context)
