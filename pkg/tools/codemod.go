package tools

import (
	"context"
	"fmt"
	"os"
	"regexp"

	"go.uber.org/zap"

	"github.com/svallory/hypergen/pkg/recipe"
)

// CodemodTool applies regex replacements to an existing file.
type CodemodTool struct{}

func (t *CodemodTool) Name() string { return "codemod" }

func (t *CodemodTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.Codemod
	if cfg == nil {
		return nil, missingConfig(step, "codemod")
	}
	if ectx.CollectMode() {
		return &Outcome{Skipped: true, SkipReason: "collect pass"}, nil
	}

	file, err := ectx.RenderString(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("render file path: %w", err)
	}
	path := ectx.OutPath(file)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	content := string(raw)
	original := content

	for i, rep := range cfg.Replace {
		re, err := regexp.Compile(rep.Pattern)
		if err != nil {
			return nil, fmt.Errorf("replace[%d]: invalid pattern %q: %w", i, rep.Pattern, err)
		}
		with, err := ectx.RenderString(rep.With)
		if err != nil {
			return nil, fmt.Errorf("replace[%d]: render replacement: %w", i, err)
		}
		if !re.MatchString(content) {
			ectx.Log.Warn("codemod pattern matched nothing",
				zap.String("file", file),
				zap.String("pattern", rep.Pattern))
			continue
		}
		content = re.ReplaceAllString(content, with)
	}

	if content == original {
		return &Outcome{Skipped: true, SkipReason: "no patterns matched"}, nil
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", file, err)
	}
	ectx.Files.Modified(path)
	return &Outcome{Output: path}, nil
}
