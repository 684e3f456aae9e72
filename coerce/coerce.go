// Package coerce turns raw string parameters into int64 values.
//
// Coercion is total: every input, however malformed, produces a Result that
// is either a value or a classified failure. Nothing in this package panics.
package coerce

import (
	"errors"
	"strconv"

	"github.com/dormoron/gimme/params"
)

// Kind classifies why a coercion failed. KindNone marks a successful Result.
type Kind uint8

const (
	KindNone Kind = iota
	// NotFullyConsumed means a numeric prefix was found but characters
	// remained after it, as in "1200.50".
	NotFullyConsumed
	// NotNumeric means the input does not start with an integer at all.
	NotNumeric
	// Missing means the parameter was absent from the request.
	Missing
	// OutOfRange means the whole input is an integer that does not fit int64.
	OutOfRange
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case NotFullyConsumed:
		return "not_fully_consumed"
	case NotNumeric:
		return "not_numeric"
	case Missing:
		return "missing"
	case OutOfRange:
		return "out_of_range"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Result is either Ok(value) or Err(kind, raw).
type Result struct {
	value int64
	kind  Kind
	raw   string
}

func Ok(v int64) Result { return Result{value: v} }

// Err builds a failed Result. Passing KindNone is a programming error and is
// reported as NotNumeric so the Result still reads as a failure.
func Err(kind Kind, raw string) Result {
	if kind == KindNone {
		kind = NotNumeric
	}
	return Result{kind: kind, raw: raw}
}

func (r Result) Ok() bool     { return r.kind == KindNone }
func (r Result) Kind() Kind   { return r.kind }
func (r Result) Raw() string  { return r.raw }
func (r Result) Value() int64 { return r.value }

func (r Result) String() string {
	if r.Ok() {
		return "Ok(" + strconv.FormatInt(r.value, 10) + ")"
	}
	return "Err(" + r.kind.String() + ", " + strconv.Quote(r.raw) + ")"
}

// Coerce parses the entire raw string as a base-10 integer with an optional
// leading sign. Whitespace is not trimmed.
func Coerce(raw string) Result {
	n := numericPrefix(raw)
	switch {
	case n == 0:
		return Err(NotNumeric, raw)
	case n < len(raw):
		return Err(NotFullyConsumed, raw)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return Err(OutOfRange, raw)
		}
		return Err(NotNumeric, raw)
	}
	return Ok(v)
}

// Param looks name up in p and coerces it. An absent key is Err(Missing, "").
func Param(p params.RequestParams, name string) Result {
	raw, ok := p.Get(name)
	if !ok {
		return Err(Missing, "")
	}
	return Coerce(raw)
}

// numericPrefix returns the length of the longest [+-]?[0-9]+ prefix of s,
// or 0 when there is none.
func numericPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0
	}
	return i
}
