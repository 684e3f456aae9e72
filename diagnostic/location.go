package diagnostic

import (
	"reflect"
	"runtime"
	"strconv"
	"strings"
)

// Location identifies a point in the program.
type Location struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

func (l Location) String() string {
	if l.Function == "" && l.File == "" {
		return "unknown"
	}
	return l.Function + " (" + l.File + ":" + strconv.Itoa(l.Line) + ")"
}

// Caller reports the location of the function skip frames above the caller
// of Caller. Caller(0) is the line that calls Caller.
func Caller(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{}
	}
	loc := Location{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		loc.Function = fn.Name()
	}
	return loc
}

// FuncLocation reports where fn is declared. Non-functions yield the zero
// Location.
func FuncLocation(fn any) Location {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Location{}
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return Location{}
	}
	file, line := f.FileLine(f.Entry())
	return Location{Function: f.Name(), File: file, Line: line}
}

// PanicOrigin must be called from a deferred function while a panic is being
// recovered. It reports the frame that raised the panic, skipping the runtime's
// own frames. It returns the zero Location when no panic frame is on the stack.
func PanicOrigin() Location {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	panicking := false
	for {
		frame, more := frames.Next()
		if panicking && !isRuntime(frame.Function) {
			return Location{Function: frame.Function, File: frame.File, Line: frame.Line}
		}
		if frame.Function == "runtime.gopanic" {
			panicking = true
		}
		if !more {
			return Location{}
		}
	}
}

func isRuntime(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") || strings.HasPrefix(fn, "internal/runtime/")
}
