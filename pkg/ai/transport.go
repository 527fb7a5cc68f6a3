package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind identifies a transport implementation.
type Kind string

const (
	// KindStdout cannot run non-interactively; callers must detect this
	// kind and fall back to human prompting or emit the assembled prompt.
	KindStdout Kind = "stdout"
	// KindCommand shells out to an external executable.
	KindCommand Kind = "command"
	// KindAPI calls a remote model endpoint directly.
	KindAPI Kind = "api"
)

// ErrInteractiveOnly is returned by the stdout transport for operations
// that require a non-interactive AI backend.
var ErrInteractiveOnly = errors.New("ai: transport is interactive-only")

// VariableQuery describes one unresolved variable passed to a transport's
// ResolveBatch. Description and Suggestion give the model maximal context.
type VariableQuery struct {
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	Suggestion  any    `json:"suggestion,omitempty"`
	Values      []any  `json:"values,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Transport delivers prompts to an AI backend and returns answers.
type Transport interface {
	// Kind identifies the transport so callers can apply the interactive
	// fallback rule.
	Kind() Kind

	// ResolveBatch resolves a batch of variables in one round-trip.
	// Returns a map keyed by variable name; a missing key means the model
	// declined to answer for that variable.
	ResolveBatch(ctx context.Context, queries []VariableQuery) (map[string]any, error)

	// Send delivers one assembled prompt and returns the raw answer text.
	Send(ctx context.Context, prompt string) (string, error)

	// ResolveEntries resolves collected AI block entries into an answers
	// map keyed by output key.
	ResolveEntries(ctx context.Context, globals []string, entries []*Entry, opts AssembleOptions) (map[string]any, error)
}

// Config selects and configures a transport. Selection is driven purely by
// Mode; there is no auto-detection.
type Config struct {
	Mode    string        `mapstructure:"mode"    yaml:"mode"` // stdout | command | api
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Command CommandConfig `mapstructure:"command" yaml:"command"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
}

// ResolveTransport selects a transport from configuration. An empty mode
// resolves to the stdout transport.
func ResolveTransport(cfg Config) (Transport, error) {
	switch cfg.Mode {
	case "", string(KindStdout):
		return &StdoutTransport{}, nil
	case string(KindCommand):
		return NewCommandTransport(cfg.Command, cfg.Timeout)
	case string(KindAPI):
		return NewAPITransport(cfg.API, cfg.Timeout)
	default:
		return nil, fmt.Errorf("ai: unknown transport mode %q (expected stdout, command, or api)", cfg.Mode)
	}
}

// buildVariablePrompt renders the batched variable-resolution request sent
// through command and api transports.
func buildVariablePrompt(queries []VariableQuery) string {
	var b strings.Builder
	b.WriteString("Choose values for the following code-generation variables.\n\n")
	for _, q := range queries {
		fmt.Fprintf(&b, "- %s", q.Name)
		if q.Type != "" {
			fmt.Fprintf(&b, " (%s)", q.Type)
		}
		b.WriteString("\n")
		if q.Description != "" {
			fmt.Fprintf(&b, "  description: %s\n", q.Description)
		}
		if q.Suggestion != nil {
			fmt.Fprintf(&b, "  suggestion: %v\n", q.Suggestion)
		}
		if len(q.Values) > 0 {
			allowed := make([]string, len(q.Values))
			for i, v := range q.Values {
				allowed[i] = fmt.Sprint(v)
			}
			fmt.Fprintf(&b, "  allowed values: %s\n", strings.Join(allowed, ", "))
		}
	}
	b.WriteString("\nRespond with exactly one JSON object mapping each variable name to its value.\n")
	b.WriteString("Do not wrap the object in a code fence. Omit a key only if you cannot choose a value.\n")
	return b.String()
}

// parseAnswersJSON parses a JSON object from model output, tolerating a
// wrapping code fence.
func parseAnswersJSON(raw string) (map[string]any, error) {
	cleaned := stripOuterCodeFence(raw)
	var answers map[string]any
	if err := json.Unmarshal([]byte(cleaned), &answers); err != nil {
		return nil, fmt.Errorf("ai: response is not a JSON object: %w", err)
	}
	return answers, nil
}

// stripOuterCodeFence removes a wrapping ```...``` code fence if present.
func stripOuterCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx != -1 {
			trimmed = trimmed[idx+1:]
		}
		if last := strings.LastIndex(trimmed, "```"); last != -1 {
			trimmed = trimmed[:last]
		}
	}
	return strings.TrimSpace(trimmed)
}
