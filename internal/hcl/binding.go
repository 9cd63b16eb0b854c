package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/etp/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"github.com/zclconf/go-cty/cty/gocty"
)

// binding ties one attribute expression to the model field it overrides.
type binding struct {
	name   string
	expr   hcl.Expression
	target any
}

// apply evaluates the expression and stores it in the target. It reports
// false, leaving the target alone, when the attribute was omitted.
func (b binding) apply(ctx context.Context, evalCtx *hcl.EvalContext) (bool, error) {
	if !isExprDefined(b.expr) {
		return false, nil
	}
	logger := ctxlog.FromContext(ctx)

	val, diags := b.expr.Value(evalCtx)
	if diags.HasErrors() {
		return false, fmt.Errorf("evaluating %s: %w", b.name, diags)
	}
	if val.IsNull() {
		return false, nil
	}
	if !val.IsWhollyKnown() {
		return false, fmt.Errorf("%s: value is not known", b.name)
	}

	ty, err := gocty.ImpliedType(b.target)
	if err != nil {
		return false, fmt.Errorf("%s: %w", b.name, err)
	}
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return false, fmt.Errorf("%s at %s: expected %s: %w", b.name, b.expr.Range(), ty.FriendlyName(), err)
	}
	if err := gocty.FromCtyValue(converted, b.target); err != nil {
		return false, fmt.Errorf("%s at %s: %w", b.name, b.expr.Range(), err)
	}

	logger.Debug("Applied policy attribute.", "attribute", b.name, "value", converted.GoString())
	return true, nil
}

// isExprDefined reports whether an optional attribute was present in the
// source. gohcl fills omitted ones with a zero-width synthetic expression.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}

func (l *Loader) environ() []string {
	if l.Environ != nil {
		return l.Environ()
	}
	return os.Environ()
}

func newEvalContext(environ []string) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				if i > 0 {
					env[kv[:i]] = cty.StringVal(kv[i+1:])
				}
				break
			}
		}
	}

	envVal := cty.EmptyObjectVal
	if len(env) > 0 {
		envVal = cty.ObjectVal(env)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envVal},
		Functions: map[string]function.Function{
			"concat":   stdlib.ConcatFunc,
			"lower":    stdlib.LowerFunc,
			"upper":    stdlib.UpperFunc,
			"coalesce": stdlib.CoalesceFunc,
			"tonumber": stdlib.MakeToFunc(cty.Number),
			"tobool":   stdlib.MakeToFunc(cty.Bool),
		},
	}
}
