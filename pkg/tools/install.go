package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/svallory/hypergen/pkg/recipe"
)

// InstallTool adds packages through a package manager.
type InstallTool struct{}

func (t *InstallTool) Name() string { return "install" }

func (t *InstallTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.Install
	if cfg == nil {
		return nil, missingConfig(step, "install")
	}
	if ectx.CollectMode() {
		return &Outcome{Skipped: true, SkipReason: "collect pass"}, nil
	}

	packages := make([]string, len(cfg.Packages))
	for i, p := range cfg.Packages {
		rendered, err := ectx.RenderString(p)
		if err != nil {
			return nil, fmt.Errorf("render package %q: %w", p, err)
		}
		packages[i] = rendered
	}

	argv, err := installArgv(cfg.Manager, packages, cfg.Dev)
	if err != nil {
		return nil, err
	}

	ectx.Log.Info("installing packages",
		zap.String("manager", argv[0]),
		zap.Strings("packages", packages))

	result, err := ectx.Runner.Execute(ctx, argv[0], argv[1:], nil)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("%s exited with code %d: %s",
			argv[0], result.ExitCode, strings.TrimSpace(string(result.Stderr)))
	}
	return &Outcome{Output: strings.Join(packages, ", ")}, nil
}

func installArgv(manager string, packages []string, dev bool) ([]string, error) {
	switch manager {
	case "", "npm":
		argv := []string{"npm", "install"}
		if dev {
			argv = append(argv, "--save-dev")
		}
		return append(argv, packages...), nil
	case "pnpm":
		argv := []string{"pnpm", "add"}
		if dev {
			argv = append(argv, "-D")
		}
		return append(argv, packages...), nil
	case "yarn":
		argv := []string{"yarn", "add"}
		if dev {
			argv = append(argv, "-D")
		}
		return append(argv, packages...), nil
	case "go":
		return append([]string{"go", "get"}, packages...), nil
	default:
		return nil, fmt.Errorf("unknown package manager %q", manager)
	}
}
