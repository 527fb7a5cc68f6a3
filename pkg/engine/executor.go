package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/svallory/hypergen/pkg/recipe"
	"github.com/svallory/hypergen/pkg/tools"
	"github.com/svallory/hypergen/pkg/vars"
)

// MaxChainDepth bounds recipe-invokes-recipe nesting to catch cycles.
const MaxChainDepth = 5

// executeSteps runs a step list sequentially. The first failure aborts the
// remainder; steps that never started produce no outcome.
func (e *Engine) executeSteps(ctx context.Context, steps []recipe.Step, ectx *tools.ExecContext, depth int) ([]*StepOutcome, error) {
	outcomes := make([]*StepOutcome, 0, len(steps))
	for i := range steps {
		outcome, err := e.executeStep(ctx, &steps[i], ectx, depth)
		outcomes = append(outcomes, outcome)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// executeStep runs one step through the guard, timeout, and dispatch
// phases. The returned outcome is always non-nil.
func (e *Engine) executeStep(ctx context.Context, step *recipe.Step, ectx *tools.ExecContext, depth int) (*StepOutcome, error) {
	outcome := &StepOutcome{Name: step.Name, Tool: step.Tool}
	start := time.Now()
	defer func() { outcome.Duration = time.Since(start) }()

	// The conditional tool consumes its own guard to pick a branch, so it
	// bypasses the generic skip check.
	if step.Tool != "conditional" && step.When != "" {
		ok, err := evalCondition(step.When, ectx.Vars)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome, fmt.Errorf("step %q: %w", step.Name, err)
		}
		if !ok {
			outcome.Status = StatusSkipped
			outcome.SkipReason = fmt.Sprintf("condition %q is false", step.When)
			e.Log.Debug("step skipped", zap.String("step", step.Name), zap.String("when", step.When))
			return outcome, nil
		}
	}

	timeout := step.Timeout
	if timeout == "" {
		timeout = ectx.DefaultTimeout
	}
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			outcome.Status = StatusFailed
			outcome.Error = err.Error()
			return outcome, fmt.Errorf("step %q: invalid timeout %q: %w", step.Name, timeout, err)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var err error
	switch step.Tool {
	case "sequence":
		outcome.Children, err = e.executeSteps(ctx, step.Steps, ectx, depth)
	case "parallel":
		outcome.Children, err = e.executeParallel(ctx, step.Steps, ectx, depth)
	case "conditional":
		outcome.Children, err = e.executeConditional(ctx, step, ectx, depth, outcome)
		if outcome.Status == StatusSkipped {
			return outcome, nil
		}
	case "recipe":
		outcome.Children, err = e.executeSubRecipe(ctx, step, ectx, depth)
	default:
		err = e.executeLeaf(ctx, step, ectx, outcome)
		if outcome.Status == StatusSkipped {
			return outcome, nil
		}
	}

	if err != nil {
		outcome.Status = StatusFailed
		if outcome.Error == "" {
			outcome.Error = err.Error()
		}
		return outcome, err
	}
	outcome.Status = StatusCompleted
	return outcome, nil
}

// executeLeaf dispatches to a registered tool.
func (e *Engine) executeLeaf(ctx context.Context, step *recipe.Step, ectx *tools.ExecContext, outcome *StepOutcome) error {
	tool, ok := e.Registry.Lookup(step.Tool)
	if !ok {
		return fmt.Errorf("step %q: unknown tool %q", step.Name, step.Tool)
	}

	result, err := tool.Run(ctx, step, ectx)
	if err != nil {
		return fmt.Errorf("step %q: %w", step.Name, err)
	}
	if result.Skipped {
		outcome.Status = StatusSkipped
		outcome.SkipReason = result.SkipReason
		return nil
	}
	outcome.Output = result.Output
	return nil
}

// executeParallel runs children concurrently and joins them all before
// reporting. A failing child does not cancel its siblings; the first error
// propagates after every branch has finished. Each branch gets its own
// copy of the variable map so capture steps never race against sibling
// renders; captures merge back in branch order after the join.
func (e *Engine) executeParallel(ctx context.Context, steps []recipe.Step, ectx *tools.ExecContext, depth int) ([]*StepOutcome, error) {
	outcomes := make([]*StepOutcome, len(steps))
	branchVars := make([]map[string]any, len(steps))
	var g errgroup.Group
	for i := range steps {
		branchCtx := *ectx
		branchCtx.Vars = cloneVars(ectx.Vars)
		branchVars[i] = branchCtx.Vars
		g.Go(func() error {
			outcome, err := e.executeStep(ctx, &steps[i], &branchCtx, depth)
			outcomes[i] = outcome
			return err
		})
	}
	err := g.Wait()

	for _, bv := range branchVars {
		for k, v := range bv {
			ectx.Vars[k] = v
		}
	}
	return outcomes, err
}

// executeConditional evaluates the step's guard and runs the matching
// branch. A false guard with no else branch skips the step.
func (e *Engine) executeConditional(ctx context.Context, step *recipe.Step, ectx *tools.ExecContext, depth int, outcome *StepOutcome) ([]*StepOutcome, error) {
	ok, err := evalCondition(step.When, ectx.Vars)
	if err != nil {
		return nil, fmt.Errorf("step %q: %w", step.Name, err)
	}
	branch := step.Then
	if !ok {
		branch = step.Else
		if len(branch) == 0 {
			outcome.Status = StatusSkipped
			outcome.SkipReason = fmt.Sprintf("condition %q is false", step.When)
			return nil, nil
		}
	}
	return e.executeSteps(ctx, branch, ectx, depth)
}

// executeSubRecipe loads a child recipe and runs its steps inline. Inputs
// render against the parent's variables; the child resolves its own
// variables non-interactively, so every required child variable must come
// from an input or a default.
func (e *Engine) executeSubRecipe(ctx context.Context, step *recipe.Step, ectx *tools.ExecContext, depth int) ([]*StepOutcome, error) {
	cfg := step.Recipe
	if cfg == nil {
		return nil, fmt.Errorf("step %q: tool \"recipe\" requires a recipe config block", step.Name)
	}
	if depth >= MaxChainDepth {
		return nil, fmt.Errorf("step %q: recipe chain exceeds max depth %d (cycle?)", step.Name, MaxChainDepth)
	}

	file, err := ectx.RenderString(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("step %q: render recipe path: %w", step.Name, err)
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(ectx.RecipeDir, path)
	}

	child, issues := recipe.ValidateFile(path)
	if recipe.HasErrors(issues) {
		return nil, fmt.Errorf("step %q: recipe %s failed validation: %w", step.Name, file, firstError(issues))
	}

	inputs := make(map[string]any, len(cfg.Inputs))
	for k, v := range cfg.Inputs {
		rendered, err := ectx.RenderString(v)
		if err != nil {
			return nil, fmt.Errorf("step %q: render input %s: %w", step.Name, k, err)
		}
		inputs[k] = rendered
	}

	resolver := vars.NewResolver(nil, nil)
	childVars, err := resolver.Resolve(ctx, child, vars.Options{
		Mode:     vars.ModeNobody,
		Provided: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("step %q: resolve %s: %w", step.Name, file, err)
	}

	childCtx := *ectx
	childCtx.RecipeDir = filepath.Dir(path)
	childCtx.Vars = childVars
	childCtx.DefaultTimeout = ""
	if child.Defaults != nil {
		childCtx.DefaultTimeout = child.Defaults.Timeout
	}

	e.Log.Info("entering sub-recipe",
		zap.String("recipe", child.Name),
		zap.Int("depth", depth+1))
	return e.executeSteps(ctx, child.Steps, &childCtx, depth+1)
}
