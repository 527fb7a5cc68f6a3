package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/svallory/hypergen/pkg/recipe"
)

// TemplateTool renders template content and writes it to a destination.
// In collect mode the render still runs, so AI blocks are gathered, but
// nothing touches the filesystem.
type TemplateTool struct{}

func (t *TemplateTool) Name() string { return "template" }

func (t *TemplateTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.Template
	if cfg == nil {
		return nil, missingConfig(step, "template")
	}
	if cfg.File == "" && cfg.Content == "" {
		return nil, fmt.Errorf("template step %q: one of file or content is required", step.Name)
	}

	content := cfg.Content
	source := ""
	if cfg.File != "" {
		path := ectx.TemplatePath(cfg.File)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", cfg.File, err)
		}
		content = string(raw)
		source = cfg.File
	}

	rendered, err := ectx.RenderSource(content, source)
	if err != nil {
		return nil, fmt.Errorf("render template %q: %w", step.Name, err)
	}

	if cfg.To == "" {
		// Render-only step, typically used for its side effects on the
		// collector or to validate a template.
		return &Outcome{Output: rendered}, nil
	}

	if ectx.CollectMode() {
		return &Outcome{Skipped: true, SkipReason: "collect pass"}, nil
	}

	to, err := ectx.RenderString(cfg.To)
	if err != nil {
		return nil, fmt.Errorf("render destination for %q: %w", step.Name, err)
	}
	dest := ectx.OutPath(to)

	existed := false
	if _, err := os.Stat(dest); err == nil {
		existed = true
		if !cfg.Overwrite {
			return &Outcome{Skipped: true, SkipReason: fmt.Sprintf("%s exists and overwrite is false", to)}, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create parent directory for %s: %w", to, err)
	}
	if err := os.WriteFile(dest, []byte(rendered), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", to, err)
	}

	if existed {
		ectx.Files.Modified(dest)
	} else {
		ectx.Files.Created(dest)
	}
	ectx.Log.Debug("template written", zap.String("to", dest), zap.Bool("overwrote", existed))
	return &Outcome{Output: dest}, nil
}
