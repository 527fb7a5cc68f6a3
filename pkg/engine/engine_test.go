package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/svallory/hypergen/pkg/ai"
	"github.com/svallory/hypergen/pkg/tools"
)

// fakeRunner fails any command named "fail" and succeeds otherwise.
type fakeRunner struct{}

func (fakeRunner) Execute(ctx context.Context, command string, args []string, env []string) (*tools.CommandResult, error) {
	if command == "fail" {
		return &tools.CommandResult{ExitCode: 1, Stderr: []byte("simulated failure")}, nil
	}
	return &tools.CommandResult{Stdout: []byte("ok")}, nil
}

// sleepyRunner blocks until the step's context expires.
type sleepyRunner struct{}

func (sleepyRunner) Execute(ctx context.Context, command string, args []string, env []string) (*tools.CommandResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return &tools.CommandResult{}, nil
	}
}

// fakeTransport answers ResolveEntries from a fixed map.
type fakeTransport struct {
	answers map[string]any
	calls   int
}

func (f *fakeTransport) Kind() ai.Kind { return ai.KindCommand }

func (f *fakeTransport) ResolveBatch(ctx context.Context, queries []ai.VariableQuery) (map[string]any, error) {
	return f.answers, nil
}

func (f *fakeTransport) Send(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("not used")
}

func (f *fakeTransport) ResolveEntries(ctx context.Context, globals []string, entries []*ai.Entry, opts ai.AssembleOptions) (map[string]any, error) {
	f.calls++
	return f.answers, nil
}

func writeRecipe(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "recipe.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(transport ai.Transport) *Engine {
	return New(Config{
		Transport: transport,
		Runner:    fakeRunner{},
	})
}

func TestRunSimpleRecipe(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: simple
variables:
  name:
    type: string
    default: widget
steps:
  - name: write
    tool: template
    template:
      content: "hello {{ .name }}"
      to: out.txt
`)

	result, err := newTestEngine(nil).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || result.Completed != 1 {
		t.Fatalf("result = %+v", result)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello widget" {
		t.Errorf("content = %q", data)
	}
	if len(result.FilesCreated) != 1 {
		t.Errorf("FilesCreated = %v", result.FilesCreated)
	}
}

func TestRunInvalidRecipeFailsBeforeExecution(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, "name: bad\nsteps:\n  - tool: teleport\n")

	_, err := newTestEngine(nil).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Errorf("err = %v, want validation failure", err)
	}
}

const aiRecipe = `
name: with-ai
variables:
  name:
    type: string
    default: shop
steps:
  - name: readme
    tool: template
    template:
      content: '# {{ .name }}{{ "\n" }}{{ ai "intro" "Write an intro" }}'
      to: README.md
`

func TestStdoutTransportStopsWithPromptAndNoWrites(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, aiRecipe)

	result, err := newTestEngine(&ai.StdoutTransport{}).Run(context.Background(), RunOptions{
		RecipePath:      path,
		Cwd:             dir,
		OriginalCommand: "hypergen run recipe.yml",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.NeedsAnswers() {
		t.Fatal("expected a pending prompt")
	}
	if len(result.AnswerKeys) != 1 || result.AnswerKeys[0] != "intro" {
		t.Errorf("AnswerKeys = %v", result.AnswerKeys)
	}
	for _, want := range []string{"### intro", "hypergen run recipe.yml --answers"} {
		if !strings.Contains(result.PendingPrompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	// The collect pass must not have written anything.
	if _, err := os.Stat(filepath.Join(dir, "README.md")); !os.IsNotExist(err) {
		t.Error("collect pass wrote README.md")
	}
}

func TestCommandTransportAutoContinuesSecondPass(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, aiRecipe)
	transport := &fakeTransport{answers: map[string]any{"intro": "An intro paragraph."}}

	result, err := newTestEngine(transport).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || result.NeedsAnswers() {
		t.Fatalf("result = %+v", result)
	}
	if transport.calls != 1 {
		t.Errorf("transport calls = %d, want 1", transport.calls)
	}

	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "# shop\nAn intro paragraph." {
		t.Errorf("content = %q", data)
	}
}

func TestTransportMissingAnswerKeyFails(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, aiRecipe)
	transport := &fakeTransport{answers: map[string]any{"wrong_key": "x"}}

	_, err := newTestEngine(transport).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err == nil || !strings.Contains(err.Error(), "intro") {
		t.Errorf("err = %v, want missing-answer error naming the key", err)
	}
}

func TestAnswersRunIsIdempotent(t *testing.T) {
	answers := map[string]any{"intro": "Fixed intro."}

	run := func() string {
		dir := t.TempDir()
		path := writeRecipe(t, dir, aiRecipe)
		result, err := newTestEngine(&ai.StdoutTransport{}).Run(context.Background(), RunOptions{
			RecipePath: path,
			Cwd:        dir,
			Answers:    answers,
		})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if !result.Success {
			t.Fatalf("result = %+v", result)
		}
		data, err := os.ReadFile(filepath.Join(dir, "README.md"))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	first := run()
	second := run()
	if first != second {
		t.Errorf("answer-mode runs differ: %q vs %q", first, second)
	}
	if first != "# shop\nFixed intro." {
		t.Errorf("content = %q", first)
	}
}

func TestSequenceAbortsOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: seq
steps:
  - name: first
    tool: shell
    shell:
      command: echo one
  - name: second
    tool: shell
    shell:
      command: fail
  - name: third
    tool: template
    template:
      content: never
      to: never.txt
`)

	result, err := newTestEngine(nil).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Error("expected failure")
	}
	// The aborted third step never entered execution, so it is not counted.
	if result.TotalSteps != 2 || result.Completed != 1 || result.Failed != 1 || result.Skipped != 0 {
		t.Errorf("counts = total %d, completed %d, skipped %d, failed %d",
			result.TotalSteps, result.Completed, result.Skipped, result.Failed)
	}
	if _, err := os.Stat(filepath.Join(dir, "never.txt")); !os.IsNotExist(err) {
		t.Error("third step ran after the failure")
	}
}

func TestParallelJoinsAllChildren(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: par
steps:
  - name: fan-out
    tool: parallel
    steps:
      - name: a
        tool: template
        template:
          content: a
          to: a.txt
      - name: b
        tool: shell
        shell:
          command: fail
      - name: c
        tool: template
        template:
          content: c
          to: c.txt
`)

	result, err := newTestEngine(nil).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Error("expected failure")
	}

	parent := result.Steps[0]
	if parent.Status != StatusFailed {
		t.Errorf("parent status = %s", parent.Status)
	}
	if len(parent.Children) != 3 {
		t.Fatalf("children = %d, want all three settled", len(parent.Children))
	}
	// Siblings of the failing child still ran to completion.
	for _, f := range []string{"a.txt", "c.txt"} {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("sibling output %s missing", f)
		}
	}
	statuses := map[StepStatus]int{}
	for _, c := range parent.Children {
		statuses[c.Status]++
	}
	if statuses[StatusCompleted] != 2 || statuses[StatusFailed] != 1 {
		t.Errorf("child statuses = %v", statuses)
	}
}

func TestParallelCapturesMergeAfterJoin(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: par-captures
variables:
  name:
    type: string
    default: widget
steps:
  - name: fan-out
    tool: parallel
    steps:
      - name: two
        tool: query
        query:
          expr: 1 + 1
          capture: two
      - name: four
        tool: query
        query:
          expr: 2 * 2
          capture: four
      - name: render
        tool: template
        template:
          content: "hi {{ .name }}"
          to: hi.txt
      - name: nine
        tool: query
        query:
          expr: 3 * 3
          capture: nine
  - name: use
    tool: template
    template:
      content: "{{ .two }}-{{ .four }}-{{ .nine }}"
      to: out.txt
`)

	result, err := newTestEngine(nil).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "2-4-9" {
		t.Errorf("merged captures rendered %q, want 2-4-9", data)
	}
}

func TestDefaultTimeoutAppliesToSteps(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: timed
defaults:
  timeout: 50ms
steps:
  - name: slow
    tool: shell
    shell:
      command: block
`)

	eng := New(Config{Runner: sleepyRunner{}})
	result, err := eng.Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Steps[0].Error, "context deadline exceeded") {
		t.Errorf("step error = %q, want deadline exceeded", result.Steps[0].Error)
	}
}

func TestStepTimeoutOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: timed
defaults:
  timeout: 1h
steps:
  - name: slow
    tool: shell
    timeout: 50ms
    shell:
      command: block
`)

	eng := New(Config{Runner: sleepyRunner{}})
	start := time.Now()
	result, err := eng.Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatalf("result = %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("step timeout did not override the default (took %s)", elapsed)
	}
}

func TestConditionalBranches(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: cond
variables:
  use_ts:
    type: boolean
    default: true
steps:
  - name: pick
    tool: conditional
    when: use_ts
    then:
      - name: ts
        tool: template
        template:
          content: typescript
          to: lang.txt
    else:
      - name: js
        tool: template
        template:
          content: javascript
          to: lang.txt
`)

	eng := newTestEngine(nil)

	result, err := eng.Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil || !result.Success {
		t.Fatalf("Run: %v, %+v", err, result)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "lang.txt"))
	if string(data) != "typescript" {
		t.Errorf("then branch content = %q", data)
	}

	dir2 := t.TempDir()
	path2 := writeRecipe(t, dir2, strings.Replace(`
name: cond
variables:
  use_ts:
    type: boolean
    default: true
steps:
  - name: pick
    tool: conditional
    when: use_ts
    then:
      - name: ts
        tool: template
        template:
          content: typescript
          to: lang.txt
    else:
      - name: js
        tool: template
        template:
          content: javascript
          to: lang.txt
`, "default: true", "default: false", 1))
	result, err = eng.Run(context.Background(), RunOptions{RecipePath: path2, Cwd: dir2})
	if err != nil || !result.Success {
		t.Fatalf("Run: %v, %+v", err, result)
	}
	data, _ = os.ReadFile(filepath.Join(dir2, "lang.txt"))
	if string(data) != "javascript" {
		t.Errorf("else branch content = %q", data)
	}
}

func TestWhenGuardSkipsStep(t *testing.T) {
	dir := t.TempDir()
	path := writeRecipe(t, dir, `
name: guarded
variables:
  enabled:
    type: boolean
    default: false
steps:
  - name: maybe
    tool: template
    when: enabled
    template:
      content: x
      to: x.txt
`)

	result, err := newTestEngine(nil).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Success || result.Skipped != 1 {
		t.Errorf("result = %+v", result)
	}
	if _, err := os.Stat(filepath.Join(dir, "x.txt")); !os.IsNotExist(err) {
		t.Error("guarded step ran")
	}
}

func TestSubRecipeInvocation(t *testing.T) {
	dir := t.TempDir()
	child := filepath.Join(dir, "child.yml")
	if err := os.WriteFile(child, []byte(`
name: child
variables:
  label:
    type: string
    required: true
steps:
  - name: emit
    tool: template
    template:
      content: "child says {{ .label }}"
      to: child.txt
`), 0o644); err != nil {
		t.Fatal(err)
	}

	path := writeRecipe(t, dir, `
name: parent
variables:
  name:
    type: string
    default: widget
steps:
  - name: delegate
    tool: recipe
    recipe:
      file: child.yml
      inputs:
        label: "{{ .name }}"
`)

	result, err := newTestEngine(nil).Run(context.Background(), RunOptions{RecipePath: path, Cwd: dir})
	if err != nil || !result.Success {
		t.Fatalf("Run: %v, %+v", err, result)
	}
	data, err := os.ReadFile(filepath.Join(dir, "child.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "child says widget" {
		t.Errorf("content = %q", data)
	}
}

func TestEvalCondition(t *testing.T) {
	varsMap := map[string]any{"framework": "react", "items": []any{1, 2}}
	cases := []struct {
		expr string
		want bool
	}{
		{"", true},
		{`framework == "react"`, true},
		{`framework == "vue"`, false},
		{"len(items) > 1", true},
	}
	for _, tc := range cases {
		got, err := evalCondition(tc.expr, varsMap)
		if err != nil {
			t.Fatalf("%q: %v", tc.expr, err)
		}
		if got != tc.want {
			t.Errorf("%q = %v, want %v", tc.expr, got, tc.want)
		}
	}

	if _, err := evalCondition("framework + 1", varsMap); err == nil {
		t.Error("expected error for non-boolean condition")
	}
}
