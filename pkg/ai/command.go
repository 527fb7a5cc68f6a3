package ai

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// PromptPlaceholder is the token in a command template replaced by the
// assembled prompt text.
const PromptPlaceholder = "{prompt}"

// Payload modes for the command transport.
const (
	// PayloadBatched sends all pending keys in a single invocation and
	// expects one JSON object back on stdout.
	PayloadBatched = "batched"
	// PayloadPerBlock runs one invocation per AI block and expects raw
	// text back on stdout.
	PayloadPerBlock = "per-block"
)

// CommandConfig configures the command transport.
type CommandConfig struct {
	// Template is the command line with a {prompt} placeholder, e.g.
	// "claude -p {prompt}". The placeholder is substituted as a single
	// argv element; no shell is involved, so no escaping is needed.
	Template string `mapstructure:"template" yaml:"template"`
	// Payload is "batched" (default) or "per-block".
	Payload string `mapstructure:"payload" yaml:"payload"`
}

// Runner abstracts subprocess execution so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, argv []string) (stdout string, err error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run executes argv[0] with the remaining elements as arguments and
// returns captured stdout. Stderr is folded into the error on failure.
func (ExecRunner) Run(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "(no stderr)"
		}
		return "", fmt.Errorf("command %q failed: %w\nstderr: %s", argv[0], err, detail)
	}
	return stdout.String(), nil
}

// CommandTransport shells out to an external AI executable, substituting
// the assembled prompt into a configured command template.
type CommandTransport struct {
	template []string
	payload  string
	timeout  time.Duration
	runner   Runner
}

// DefaultCommandTimeout bounds a single subprocess invocation.
const DefaultCommandTimeout = 5 * time.Minute

// NewCommandTransport creates a command transport from configuration.
func NewCommandTransport(cfg CommandConfig, timeout time.Duration) (*CommandTransport, error) {
	fields := strings.Fields(cfg.Template)
	if len(fields) == 0 {
		return nil, fmt.Errorf("ai: command transport requires a non-empty template")
	}
	if !strings.Contains(cfg.Template, PromptPlaceholder) {
		return nil, fmt.Errorf("ai: command template must contain %s", PromptPlaceholder)
	}
	payload := cfg.Payload
	if payload == "" {
		payload = PayloadBatched
	}
	if payload != PayloadBatched && payload != PayloadPerBlock {
		return nil, fmt.Errorf("ai: unknown command payload %q (expected %s or %s)", payload, PayloadBatched, PayloadPerBlock)
	}
	if timeout == 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandTransport{
		template: fields,
		payload:  payload,
		timeout:  timeout,
		runner:   ExecRunner{},
	}, nil
}

// SetRunner replaces the subprocess runner. Used by tests.
func (t *CommandTransport) SetRunner(r Runner) { t.runner = r }

// Kind returns KindCommand.
func (t *CommandTransport) Kind() Kind { return KindCommand }

// Send substitutes prompt into the command template, runs the command,
// and returns captured stdout.
func (t *CommandTransport) Send(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	argv := make([]string, len(t.template))
	for i, field := range t.template {
		argv[i] = strings.ReplaceAll(field, PromptPlaceholder, prompt)
	}

	out, err := t.runner.Run(ctx, argv)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("ai: command %q returned empty output", t.template[0])
	}
	return out, nil
}

// ResolveBatch sends one batched variable prompt and parses the JSON
// object answer.
func (t *CommandTransport) ResolveBatch(ctx context.Context, queries []VariableQuery) (map[string]any, error) {
	out, err := t.Send(ctx, buildVariablePrompt(queries))
	if err != nil {
		return nil, err
	}
	return parseAnswersJSON(out)
}

// ResolveEntries resolves collected AI blocks. Batched payload sends one
// assembled prompt expecting a keyed JSON object; per-block payload runs
// one invocation per entry and takes raw stdout as that key's answer.
func (t *CommandTransport) ResolveEntries(ctx context.Context, globals []string, entries []*Entry, opts AssembleOptions) (map[string]any, error) {
	if t.payload == PayloadPerBlock {
		answers := make(map[string]any, len(entries))
		for _, entry := range entries {
			out, err := t.Send(ctx, assembleBlockPrompt(globals, entry))
			if err != nil {
				return nil, fmt.Errorf("resolve block %q: %w", entry.Key, err)
			}
			answers[entry.Key] = strings.TrimSpace(out)
		}
		return answers, nil
	}

	collector := NewCollector()
	for _, g := range globals {
		collector.AddGlobalContext(g)
	}
	for _, entry := range entries {
		if err := collector.AddEntry(entry.Key, entry.Contexts, entry.Prompt, entry.OutputDescription, entry.SourceFile); err != nil {
			return nil, err
		}
	}
	out, err := t.Send(ctx, Assemble(collector, AssembleOptions{
		OriginalCommand: opts.OriginalCommand,
		AnswersPath:     opts.AnswersPath,
	}))
	if err != nil {
		return nil, err
	}
	return parseAnswersJSON(out)
}
