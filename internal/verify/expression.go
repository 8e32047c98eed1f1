package verify

import (
	"context"
	"fmt"

	"github.com/alevsk/rollout-scope/internal/config"
	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrInvalidExpression is returned when an acceptance expression does not compile
var ErrInvalidExpression = fmt.Errorf("invalid acceptance expression")

// ExpressionVerifier evaluates a boolean expression over the live object.
// Top level fields of the object are variables, e.g. `status.phase == "Ready"`.
//
// Helpers:
//
//	condition(status.conditions, "Ready")  status of the named condition, or ""
//	hasKey(metadata.annotations, "key")    true when the map holds key
type ExpressionVerifier struct {
	source  string
	program *vm.Program
}

// NewExpressionVerifier compiles source.
func NewExpressionVerifier(source string) (*ExpressionVerifier, error) {
	program, err := expr.Compile(source,
		expr.Env(map[string]interface{}{}),
		expr.AllowUndefinedVariables(),
		expr.Function("condition", func(params ...any) (any, error) { return conditionStatus(params[0], params[1]) }),
		expr.Function("hasKey", func(params ...any) (any, error) { return hasKey(params[0], params[1]) }),
	)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidExpression, source, err)
	}
	return &ExpressionVerifier{source: source, program: program}, nil
}

// Verify implements Verifier.
func (v *ExpressionVerifier) Verify(ctx context.Context, client kube.Client, target Target) Outcome {
	obj, err := client.Get(ctx, target.Kind, target.Namespace, target.Name)
	if err != nil {
		return NotVerified(target, "%v", err)
	}
	out, err := expr.Run(v.program, obj.Object)
	if err != nil {
		return NotVerified(target, "evaluating %q: %v", v.source, err)
	}
	result, ok := out.(bool)
	if !ok {
		return NotVerified(target, "expression %q resulted in a non-boolean value of type %T", v.source, out)
	}
	if !result {
		return NotVerified(target, "expression %q is false", v.source)
	}
	return Verified(target, "expression %q holds", v.source)
}

// RegisterExpressions compiles and registers the configured expression verifiers.
func RegisterExpressions(r *Registry, expressions []config.ExpressionConfig) error {
	for _, e := range expressions {
		v, err := NewExpressionVerifier(e.Expression)
		if err != nil {
			return fmt.Errorf("kind %s: %w", e.Kind, err)
		}
		if err := r.Register(e.APIVersion, e.Kind, v); err != nil {
			return err
		}
	}
	return nil
}

func conditionStatus(conditions, conditionType any) (any, error) {
	want, ok := conditionType.(string)
	if !ok {
		return nil, fmt.Errorf("condition type must be a string, got %T", conditionType)
	}
	list, _ := conditions.([]interface{})
	for _, item := range list {
		c, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if c["type"] == want {
			status, _ := c["status"].(string)
			return status, nil
		}
	}
	return "", nil
}

func hasKey(m, key any) (any, error) {
	k, ok := key.(string)
	if !ok {
		return nil, fmt.Errorf("key must be a string, got %T", key)
	}
	mapping, _ := m.(map[string]interface{})
	_, found := mapping[k]
	return found, nil
}
