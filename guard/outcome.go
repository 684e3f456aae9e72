package guard

import "github.com/dormoron/gimme/diagnostic"

// Outcome is the result of one guarded execution: either Success(value) or
// Failure(diagnostic).
type Outcome struct {
	value any
	diag  *diagnostic.Diagnostic
}

func Success(v any) Outcome {
	return Outcome{value: v}
}

func Failure(d diagnostic.Diagnostic) Outcome {
	return Outcome{diag: &d}
}

func (o Outcome) IsSuccess() bool { return o.diag == nil }

// Value is the handler's result. It is nil for a Failure.
func (o Outcome) Value() any { return o.value }

// Diagnostic returns the failure record and true for a Failure.
func (o Outcome) Diagnostic() (diagnostic.Diagnostic, bool) {
	if o.diag == nil {
		return diagnostic.Diagnostic{}, false
	}
	return *o.diag, true
}
