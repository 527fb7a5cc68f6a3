// Package tools implements the leaf step tools dispatched by the engine.
// Composite tools (sequence, parallel, conditional, recipe) live in the
// engine because they recurse into step execution.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/svallory/hypergen/pkg/recipe"
	"github.com/svallory/hypergen/pkg/render"
)

// Tool executes one step kind. Each implementation reads only its own
// config block from the step.
type Tool interface {
	Name() string
	Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error)
}

// Outcome reports what a tool did. Files touched are recorded on the
// ExecContext's tracker, not here.
type Outcome struct {
	Skipped    bool
	SkipReason string
	// Output is short human-readable detail (captured stdout, paths).
	Output string
}

// ExecContext carries the per-run state shared by all tools.
type ExecContext struct {
	// Cwd is the directory output paths resolve against.
	Cwd string
	// RecipeDir is the directory template file references resolve against.
	RecipeDir string
	Vars      map[string]any
	Renderer  render.Renderer
	// RenderCtx holds the pass state (collect mode, answers, collector).
	// Tools derive per-source copies rather than mutating it.
	RenderCtx *render.Context
	Runner    CommandRunner
	Log       *zap.Logger
	Files     *FileTracker
	// DefaultTimeout is the recipe-level fallback for steps that declare no
	// timeout of their own.
	DefaultTimeout string
}

// CollectMode reports whether this pass only gathers AI blocks. Tools with
// side effects skip themselves in collect mode.
func (e *ExecContext) CollectMode() bool {
	return e.RenderCtx != nil && e.RenderCtx.CollectMode
}

// RenderString evaluates template markers in s against the run's variables.
func (e *ExecContext) RenderString(s string) (string, error) {
	return e.Renderer.Render(s, e.renderContext(""))
}

// RenderSource evaluates s, labeling AI entries with the given source file.
func (e *ExecContext) RenderSource(s, sourceFile string) (string, error) {
	return e.Renderer.Render(s, e.renderContext(sourceFile))
}

func (e *ExecContext) renderContext(sourceFile string) *render.Context {
	rctx := &render.Context{Vars: e.Vars}
	if e.RenderCtx != nil {
		rctx.CollectMode = e.RenderCtx.CollectMode
		rctx.Answers = e.RenderCtx.Answers
		rctx.Collector = e.RenderCtx.Collector
	}
	rctx.SourceFile = sourceFile
	return rctx
}

// OutPath resolves a rendered output path against the working directory.
func (e *ExecContext) OutPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.Cwd, p)
}

// TemplatePath resolves a template file reference against the recipe's
// directory.
func (e *ExecContext) TemplatePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.RecipeDir, p)
}

// FileTracker records files touched during a run. Safe for concurrent use
// by parallel steps.
type FileTracker struct {
	mu       sync.Mutex
	created  []string
	modified []string
}

func NewFileTracker() *FileTracker { return &FileTracker{} }

func (t *FileTracker) Created(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.created = append(t.created, path)
}

func (t *FileTracker) Modified(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modified = append(t.modified, path)
}

func (t *FileTracker) CreatedFiles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.created...)
}

func (t *FileTracker) ModifiedFiles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.modified...)
}

// CommandResult is the outcome of one subprocess run.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// CommandRunner runs external commands. Tests substitute a fake.
type CommandRunner interface {
	Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error)
}

// ExecCommandRunner runs commands via os/exec.
type ExecCommandRunner struct {
	// Dir is the working directory for spawned commands.
	Dir string
}

// Execute runs a command and captures its output. On Windows, a command not
// found directly is retried through cmd.exe /C so shell builtins work.
func (r *ExecCommandRunner) Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = r.Dir
	if len(env) > 0 {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if err != nil && runtime.GOOS == "windows" && isExecNotFound(err) {
		stdout.Reset()
		stderr.Reset()
		cmdLine := command
		for _, a := range args {
			cmdLine += " " + a
		}
		cmd = exec.CommandContext(ctx, "cmd.exe", "/C", cmdLine)
		cmd.Dir = r.Dir
		if len(env) > 0 {
			cmd.Env = env
		}
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err = cmd.Run()
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("execute command %q: %w", command, err)
		}
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}

func isExecNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var execErr *exec.Error
	return errors.As(err, &execErr)
}
