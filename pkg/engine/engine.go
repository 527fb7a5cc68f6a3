// Package engine orchestrates recipe execution: variable resolution, the
// two-pass AI block protocol, and the step state machine.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/svallory/hypergen/pkg/ai"
	"github.com/svallory/hypergen/pkg/recipe"
	"github.com/svallory/hypergen/pkg/render"
	"github.com/svallory/hypergen/pkg/tools"
	"github.com/svallory/hypergen/pkg/vars"
)

// Config assembles an Engine. Zero-value fields get working defaults.
type Config struct {
	Transport ai.Transport
	Prompter  vars.Prompter
	Registry  *tools.Registry
	Renderer  render.Renderer
	Runner    tools.CommandRunner
	Log       *zap.Logger
}

// Engine runs recipes. It never prints; callers render results and
// pending prompts themselves.
type Engine struct {
	Transport ai.Transport
	Resolver  *vars.Resolver
	Registry  *tools.Registry
	Renderer  render.Renderer
	Runner    tools.CommandRunner
	Log       *zap.Logger
}

// New creates an engine from config.
func New(cfg Config) *Engine {
	if cfg.Transport == nil {
		cfg.Transport = &ai.StdoutTransport{}
	}
	if cfg.Registry == nil {
		cfg.Registry = tools.DefaultRegistry(tools.NewActionRegistry())
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.NewGoTemplateRenderer(nil)
	}
	if cfg.Runner == nil {
		cfg.Runner = &tools.ExecCommandRunner{}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Engine{
		Transport: cfg.Transport,
		Resolver:  vars.NewResolver(cfg.Prompter, cfg.Transport),
		Registry:  cfg.Registry,
		Renderer:  cfg.Renderer,
		Runner:    cfg.Runner,
		Log:       cfg.Log,
	}
}

// RunOptions parameterizes one run.
type RunOptions struct {
	RecipePath string
	// Cwd is where output paths land. Defaults to the process working
	// directory.
	Cwd        string
	Mode       vars.Mode
	NoDefaults bool
	Provided   map[string]any
	// Answers short-circuits AI collection: the run executes once with
	// these answers substituted into ai blocks.
	Answers map[string]any
	// OriginalCommand and AnswersPath appear in the assembled prompt's
	// re-invocation footer.
	OriginalCommand string
	AnswersPath     string
}

// Run executes a recipe end to end. Step failures are reported inside the
// result; the error return covers load, validation, resolution, and
// transport failures.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*ExecutionResult, error) {
	rec, issues := recipe.ValidateFile(opts.RecipePath)
	if recipe.HasErrors(issues) {
		return nil, fmt.Errorf("recipe %s failed validation: %w", opts.RecipePath, firstError(issues))
	}
	if opts.Mode == "" {
		opts.Mode = vars.ModeMe
	}

	resolved, err := e.Resolver.Resolve(ctx, rec, vars.Options{
		Mode:       opts.Mode,
		NoDefaults: opts.NoDefaults,
		Provided:   opts.Provided,
	})
	if err != nil {
		return nil, err
	}

	result := newResult(rec.Name)
	recipeDir := filepath.Dir(opts.RecipePath)

	if opts.Answers != nil {
		e.runPass(ctx, rec, result, e.execContext(opts, recipeDir, cloneVars(resolved), &render.Context{
			Answers: opts.Answers,
		}))
		return result, nil
	}

	// Pass 1: collect. Renders everything, writes nothing.
	collector := ai.NewCollector()
	collectResult := newResult(rec.Name)
	e.runPass(ctx, rec, collectResult, e.execContext(opts, recipeDir, cloneVars(resolved), &render.Context{
		CollectMode: true,
		Collector:   collector,
	}))
	if !collectResult.Success {
		return collectResult, nil
	}

	if !collector.HasEntries() {
		e.runPass(ctx, rec, result, e.execContext(opts, recipeDir, cloneVars(resolved), &render.Context{}))
		return result, nil
	}

	e.Log.Info("collected ai blocks",
		zap.Int("count", len(collector.Keys())),
		zap.Strings("keys", collector.Keys()))

	assembleOpts := ai.AssembleOptions{
		OriginalCommand: opts.OriginalCommand,
		AnswersPath:     opts.AnswersPath,
		IncludeCallback: opts.OriginalCommand != "",
	}

	if e.Transport.Kind() == ai.KindStdout {
		// No backend to call: surface the prompt and stop. Nothing has
		// been written, so re-running with answers starts clean.
		result.PendingPrompt = ai.Assemble(collector, assembleOpts)
		result.AnswerKeys = collector.Keys()
		result.tally()
		result.Duration = time.Since(result.StartedAt)
		return result, nil
	}

	answers, err := e.Transport.ResolveEntries(ctx, collector.GlobalContexts(), collector.Entries(), assembleOpts)
	if err != nil {
		return nil, fmt.Errorf("resolve ai blocks: %w", err)
	}
	for _, key := range collector.Keys() {
		if _, ok := answers[key]; !ok {
			return nil, fmt.Errorf("ai transport returned no answer for %q", key)
		}
	}

	// Pass 2: execute for real with answers substituted.
	e.runPass(ctx, rec, result, e.execContext(opts, recipeDir, cloneVars(resolved), &render.Context{
		Answers: answers,
	}))
	return result, nil
}

// runPass executes the recipe's steps once and fills in the result.
func (e *Engine) runPass(ctx context.Context, rec *recipe.Recipe, result *ExecutionResult, ectx *tools.ExecContext) {
	if rec.Defaults != nil {
		ectx.DefaultTimeout = rec.Defaults.Timeout
	}
	outcomes, err := e.executeSteps(ctx, rec.Steps, ectx, 0)
	result.Steps = outcomes
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	result.FilesCreated = ectx.Files.CreatedFiles()
	result.FilesModified = ectx.Files.ModifiedFiles()
	result.tally()
	result.Duration = time.Since(result.StartedAt)
}

func (e *Engine) execContext(opts RunOptions, recipeDir string, runVars map[string]any, rctx *render.Context) *tools.ExecContext {
	runner := e.Runner
	if execRunner, ok := runner.(*tools.ExecCommandRunner); ok && execRunner.Dir == "" && opts.Cwd != "" {
		runner = &tools.ExecCommandRunner{Dir: opts.Cwd}
	}
	return &tools.ExecContext{
		Cwd:       opts.Cwd,
		RecipeDir: recipeDir,
		Vars:      runVars,
		Renderer:  e.Renderer,
		RenderCtx: rctx,
		Runner:    runner,
		Log:       e.Log,
		Files:     tools.NewFileTracker(),
	}
}

// cloneVars gives each pass its own variable map so captures from the
// collect pass cannot leak into the execute pass.
func cloneVars(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func firstError(issues []*recipe.ValidationError) *recipe.ValidationError {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return issue
		}
	}
	return issues[0]
}
