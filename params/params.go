// Package params decodes raw query strings and form bodies into an immutable
// mapping of named string parameters.
//
// Decoding is purely structural. Values are never validated here; callers
// coerce them into typed values later (see package coerce).
package params

import (
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// MaxBodyBytes caps how much of a form body FromRequest will read.
const MaxBodyBytes = 1 << 20

// RequestParams maps a parameter name to its raw value. The zero value is an
// empty, usable set. It is never mutated after construction.
type RequestParams struct {
	values map[string]string
}

// New builds a RequestParams from m. The map is copied.
func New(m map[string]string) RequestParams {
	values := make(map[string]string, len(m))
	for k, v := range m {
		values[k] = v
	}
	return RequestParams{values: values}
}

// Get returns the raw value for name and whether it was present.
func (p RequestParams) Get(name string) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

func (p RequestParams) Len() int { return len(p.values) }

// Names returns the parameter names in lexical order.
func (p RequestParams) Names() []string {
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the underlying values.
func (p RequestParams) Map() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Extract decodes an application/x-www-form-urlencoded string such as
// "op1=3&op2=4".
//
// When a key repeats, the last occurrence wins. Pairs whose key or value
// cannot be percent-decoded are dropped, so a later lookup reports the key as
// missing. A pair without '=' yields an empty value.
func Extract(raw string) RequestParams {
	values := make(map[string]string)
	decodeInto(values, raw)
	return RequestParams{values: values}
}

// FromRequest collects the URL query followed by a urlencoded body for
// POST, PUT and PATCH requests. Body values override query values with the
// same name. A body longer than MaxBodyBytes is ignored entirely, so its
// parameters read as missing rather than cut short.
func FromRequest(r *http.Request) RequestParams {
	values := make(map[string]string)
	if r.URL != nil {
		decodeInto(values, r.URL.RawQuery)
	}
	if hasFormBody(r) {
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
		if err == nil && len(body) <= MaxBodyBytes {
			decodeInto(values, string(body))
		}
	}
	return RequestParams{values: values}
}

func hasFormBody(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	ct := r.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.EqualFold(strings.TrimSpace(ct), "application/x-www-form-urlencoded")
}

func decodeInto(dst map[string]string, raw string) {
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		dst[key] = val
	}
}
