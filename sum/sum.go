// Package sum is the adder endpoint: it reads two integer operands, op1 and
// op2, and answers with their sum.
package sum

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dormoron/gimme"
	"github.com/dormoron/gimme/guard"
	"github.com/dormoron/gimme/internal/errs"
	"github.com/dormoron/gimme/params"
	"github.com/dormoron/gimme/response"
)

// Operands are the request parameters the endpoint requires, in order.
var Operands = []string{"op1", "op2"}

// Result is a successful addition.
type Result struct {
	Operands []int64
	Total    int64
}

// String renders "The sum of 3 and 4 is 7". With more than two operands the
// leading ones are comma separated.
func (r Result) String() string {
	ops := make([]string, len(r.Operands))
	for i, op := range r.Operands {
		ops[i] = strconv.FormatInt(op, 10)
	}
	var list string
	switch len(ops) {
	case 0:
		list = "nothing"
	case 1:
		list = ops[0]
	default:
		list = strings.Join(ops[:len(ops)-1], ", ") + " and " + ops[len(ops)-1]
	}
	return fmt.Sprintf("The sum of %s is %d", list, r.Total)
}

// Add sums ops. It fails with errs.ErrOverflow instead of wrapping around.
func Add(ops ...int64) (Result, error) {
	var total int64
	for _, op := range ops {
		if (op > 0 && total > math.MaxInt64-op) || (op < 0 && total < math.MinInt64-op) {
			return Result{}, errs.ErrOverflowOperands(total, op)
		}
		total += op
	}
	return Result{Operands: append([]int64(nil), ops...), Total: total}, nil
}

// Handler adapts Add to guard.Handler.
func Handler(_ context.Context, ops ...int64) (any, error) {
	return Add(ops...)
}

// Endpoint extracts the operands from the request, runs Handler behind ex and
// stages the rendered response.
func Endpoint(ex *guard.Executor, b response.Builder) gimme.HandleFunc {
	return func(ctx *gimme.Context) {
		p := params.FromRequest(ctx.Request)
		reqCtx := guard.WithRequest(ctx.Request.Context(), ctx.Request.Method, ctx.Request.URL.Path)
		o := ex.Execute(reqCtx, p, Operands, Handler)
		b.Build(o).Write(ctx)
	}
}
