package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/svallory/hypergen/pkg/recipe"
)

// PatchTool inserts rendered text into an existing file next to a marker
// line. SkipIf makes patches idempotent across repeated runs.
type PatchTool struct{}

func (t *PatchTool) Name() string { return "patch" }

func (t *PatchTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.Patch
	if cfg == nil {
		return nil, missingConfig(step, "patch")
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

	insert, err := ectx.RenderString(cfg.Insert)
	if err != nil {
		return nil, fmt.Errorf("render insert text: %w", err)
	}

	skipIf := cfg.SkipIf
	if skipIf != "" {
		if skipIf, err = ectx.RenderString(skipIf); err != nil {
			return nil, fmt.Errorf("render skip_if: %w", err)
		}
	}
	if skipIf == "" {
		skipIf = insert
	}
	if strings.Contains(content, skipIf) {
		return &Outcome{Skipped: true, SkipReason: fmt.Sprintf("%s already contains the patch", file)}, nil
	}

	marker := cfg.After
	before := false
	if marker == "" {
		marker = cfg.Before
		before = true
	}
	if marker, err = ectx.RenderString(marker); err != nil {
		return nil, fmt.Errorf("render marker: %w", err)
	}

	patched, err := insertAtMarker(content, marker, insert, before)
	if err != nil {
		return nil, fmt.Errorf("patch %s: %w", file, err)
	}

	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", file, err)
	}
	ectx.Files.Modified(path)
	return &Outcome{Output: path}, nil
}

// insertAtMarker places insert on its own line adjacent to the first line
// containing marker.
func insertAtMarker(content, marker, insert string, before bool) (string, error) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if !strings.Contains(line, marker) {
			continue
		}
		insertLines := strings.Split(strings.TrimRight(insert, "\n"), "\n")
		at := i + 1
		if before {
			at = i
		}
		out := make([]string, 0, len(lines)+len(insertLines))
		out = append(out, lines[:at]...)
		out = append(out, insertLines...)
		out = append(out, lines[at:]...)
		return strings.Join(out, "\n"), nil
	}
	return "", fmt.Errorf("marker %q not found", marker)
}
