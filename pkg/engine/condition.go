package engine

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// evalCondition evaluates a step's when guard against the resolved
// variables. Guards are expr expressions only: len(items) > 0,
// framework == "react", and so on. An empty guard is always true.
func evalCondition(condition string, vars map[string]any) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	program, err := expr.Compile(condition, expr.Env(vars), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", condition, err)
	}
	output, err := expr.Run(program, vars)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", condition, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T: %v)", condition, output, output)
	}
	return result, nil
}
