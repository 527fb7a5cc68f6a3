package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/svallory/hypergen/pkg/recipe"
)

// EnsureDirsTool creates directories ahead of steps that write into them.
type EnsureDirsTool struct{}

func (t *EnsureDirsTool) Name() string { return "ensure-dirs" }

func (t *EnsureDirsTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.EnsureDirs
	if cfg == nil {
		return nil, missingConfig(step, "ensure-dirs")
	}
	if ectx.CollectMode() {
		return &Outcome{Skipped: true, SkipReason: "collect pass"}, nil
	}

	made := make([]string, 0, len(cfg.Dirs))
	for _, dir := range cfg.Dirs {
		rendered, err := ectx.RenderString(dir)
		if err != nil {
			return nil, fmt.Errorf("render dir %q: %w", dir, err)
		}
		path := ectx.OutPath(rendered)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", rendered, err)
		}
		made = append(made, rendered)
	}
	return &Outcome{Output: strings.Join(made, ", ")}, nil
}
