package errs

import (
	"errors"
	"fmt"
)

var (
	// handler errors
	ErrOverflow = errors.New("handler: integer overflow")
	// diagnostic sink errors
	ErrSinkClosed = errors.New("diagnostic: sink closed")
	ErrSinkFull   = errors.New("diagnostic: sink buffer full")
	// router errors
	errRouteDuplicate = errors.New("web: route already registered")
	errRouteInvalid   = errors.New("web: invalid route")
	// config errors
	errConfigKeyMissing = errors.New("config: key does not exist")
	errConfigFormat     = errors.New("config: unsupported file format")
)

func ErrOverflowOperands(a, b int64) error {
	return fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
}

func ErrRouteDuplicate(method, path string) error {
	return fmt.Errorf("%w [%s %s]", errRouteDuplicate, method, path)
}

func ErrRouteInvalid(path string) error {
	return fmt.Errorf("%w [%s], must start with '/'", errRouteInvalid, path)
}

func ErrConfigKeyMissing(key string) error {
	return fmt.Errorf("%w: %s", errConfigKeyMissing, key)
}

func ErrConfigFormat(format string) error {
	return fmt.Errorf("%w: %s", errConfigFormat, format)
}

// Fault carries a value recovered from a panic through the error chain.
// When the panic value is itself an error it is exposed via Unwrap, so
// errors.Is and errors.As keep working on recovered runtime errors.
type Fault struct {
	Value any
}

func (f *Fault) Error() string {
	if err, ok := f.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", f.Value)
}

func (f *Fault) Unwrap() error {
	if err, ok := f.Value.(error); ok {
		return err
	}
	return nil
}

// Chain flattens err and everything it wraps into messages, outermost first.
// Joined errors contribute each branch in order.
func Chain(err error) []string {
	var out []string
	var walk func(e error)
	walk = func(e error) {
		for e != nil {
			out = append(out, e.Error())
			if j, ok := e.(interface{ Unwrap() []error }); ok {
				for _, inner := range j.Unwrap() {
					walk(inner)
				}
				return
			}
			e = errors.Unwrap(e)
		}
	}
	walk(err)
	return out
}
