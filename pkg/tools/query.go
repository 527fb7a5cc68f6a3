package tools

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"

	"github.com/svallory/hypergen/pkg/recipe"
)

// QueryTool evaluates a sandboxed expression over the resolved variables
// and captures the result into a new variable. It is side-effect free, so
// it also runs during the collect pass.
type QueryTool struct{}

func (t *QueryTool) Name() string { return "query" }

func (t *QueryTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.Query
	if cfg == nil {
		return nil, missingConfig(step, "query")
	}

	program, err := expr.Compile(cfg.Expr, expr.Env(ectx.Vars))
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", cfg.Expr, err)
	}
	result, err := expr.Run(program, ectx.Vars)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", cfg.Expr, err)
	}

	ectx.Vars[cfg.Capture] = result
	return &Outcome{Output: fmt.Sprint(result)}, nil
}
