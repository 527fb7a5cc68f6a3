package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/svallory/hypergen/pkg/recipe"
)

// ShellTool runs an external command and optionally captures its stdout
// into a variable.
type ShellTool struct{}

func (t *ShellTool) Name() string { return "shell" }

func (t *ShellTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.Shell
	if cfg == nil {
		return nil, missingConfig(step, "shell")
	}
	if ectx.CollectMode() {
		return &Outcome{Skipped: true, SkipReason: "collect pass"}, nil
	}

	argv, err := t.buildArgv(cfg, ectx)
	if err != nil {
		return nil, err
	}

	env := os.Environ()
	for k, v := range cfg.Env {
		rendered, err := ectx.RenderString(v)
		if err != nil {
			return nil, fmt.Errorf("render env %s: %w", k, err)
		}
		env = append(env, k+"="+rendered)
	}

	result, err := ectx.Runner.Execute(ctx, argv[0], argv[1:], env)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		detail := strings.TrimSpace(string(result.Stderr))
		if detail == "" {
			detail = strings.TrimSpace(string(result.Stdout))
		}
		return nil, fmt.Errorf("command %q exited with code %d: %s", argv[0], result.ExitCode, detail)
	}

	stdout := strings.TrimSpace(string(result.Stdout))
	if cfg.Capture != "" {
		ectx.Vars[cfg.Capture] = parseCapture(stdout)
		ectx.Log.Debug("captured output",
			zap.String("variable", cfg.Capture),
			zap.Int("bytes", len(stdout)))
	}
	return &Outcome{Output: stdout}, nil
}

func (t *ShellTool) buildArgv(cfg *recipe.ShellConfig, ectx *ExecContext) ([]string, error) {
	if len(cfg.Argv) > 0 {
		argv := make([]string, len(cfg.Argv))
		for i, a := range cfg.Argv {
			rendered, err := ectx.RenderString(a)
			if err != nil {
				return nil, fmt.Errorf("render argv[%d]: %w", i, err)
			}
			argv[i] = rendered
		}
		return argv, nil
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("shell step requires command or argv")
	}
	rendered, err := ectx.RenderString(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("render command: %w", err)
	}
	argv := strings.Fields(rendered)
	if len(argv) == 0 {
		return nil, fmt.Errorf("shell command rendered to an empty string")
	}
	return argv, nil
}

// parseCapture upgrades JSON-shaped output to structured values so template
// functions like len and index work on it. Anything else stays a string.
func parseCapture(v string) any {
	if len(v) > 1 && v[0] == '[' {
		var arr []any
		if err := json.Unmarshal([]byte(v), &arr); err == nil {
			return arr
		}
	}
	if len(v) > 1 && v[0] == '{' {
		var obj map[string]any
		if err := json.Unmarshal([]byte(v), &obj); err == nil {
			return obj
		}
	}
	return v
}
