// Package requestid tags every request with an ID that ties the access log,
// the diagnostic record and the client-visible response header together.
package requestid

import (
	"context"

	"github.com/dormoron/gimme"
	"github.com/google/uuid"
)

// HeaderName is read from the request and echoed on the response.
const HeaderName = "X-Request-ID"

// Key is the gimme.Context key holding the ID.
const Key = gimme.RequestIDKey

type ctxKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request ID stored in ctx, or "".
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type MiddlewareBuilder struct {
	trustHeader bool
	generator   func() string
}

// InitMiddlewareBuilder returns a builder that honours incoming IDs and
// generates UUIDv4 ones otherwise.
func InitMiddlewareBuilder() *MiddlewareBuilder {
	return &MiddlewareBuilder{
		trustHeader: true,
		generator:   uuid.NewString,
	}
}

// IgnoreIncoming always generates a fresh ID, even when the client sent one.
func (b *MiddlewareBuilder) IgnoreIncoming() *MiddlewareBuilder {
	b.trustHeader = false
	return b
}

// Generator replaces the ID generator.
func (b *MiddlewareBuilder) Generator(fn func() string) *MiddlewareBuilder {
	if fn != nil {
		b.generator = fn
	}
	return b
}

func (b *MiddlewareBuilder) Build() gimme.Middleware {
	return func(next gimme.HandleFunc) gimme.HandleFunc {
		return func(ctx *gimme.Context) {
			id := ""
			if b.trustHeader {
				id = ctx.Request.Header.Get(HeaderName)
			}
			if id == "" || len(id) > 128 {
				id = b.generator()
			}
			ctx.Set(Key, id)
			ctx.Request = ctx.Request.WithContext(NewContext(ctx.Request.Context(), id))
			ctx.Header(HeaderName, id)
			next(ctx)
		}
	}
}
