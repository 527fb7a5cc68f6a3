package vars

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// PromptRequest describes one variable to ask the user about.
type PromptRequest struct {
	Name        string
	Description string
	// Hint is shown as the prompt's pre-filled default: the variable's
	// suggestion if present, else a default suppressed by --no-defaults.
	// It is never applied without the user seeing it.
	Hint   string
	Values []any // enum choices, shown when non-empty
}

// Prompter collects values for unresolved variables in one batch session.
// A variable absent from the returned map stays unresolved.
type Prompter interface {
	PromptBatch(requests []PromptRequest) (map[string]any, error)
}

// ReadlinePrompter asks for values interactively on the terminal.
type ReadlinePrompter struct{}

// PromptBatch runs one interactive session over all requests in order.
// Pressing enter on an empty line accepts the hint when one is shown, and
// leaves the variable unresolved otherwise.
func (p *ReadlinePrompter) PromptBatch(requests []PromptRequest) (map[string]any, error) {
	rl, err := readline.New("")
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	answers := make(map[string]any, len(requests))
	for _, req := range requests {
		if req.Description != "" {
			fmt.Printf("  %s: %s\n", req.Name, req.Description)
		}
		if len(req.Values) > 0 {
			choices := make([]string, len(req.Values))
			for i, v := range req.Values {
				choices[i] = fmt.Sprint(v)
			}
			fmt.Printf("  choices: %s\n", strings.Join(choices, ", "))
		}

		prompt := fmt.Sprintf("  %s: ", req.Name)
		if req.Hint != "" {
			prompt = fmt.Sprintf("  %s [%s]: ", req.Name, req.Hint)
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return answers, fmt.Errorf("prompt aborted")
			}
			return nil, fmt.Errorf("read input for %q: %w", req.Name, err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			if req.Hint != "" {
				answers[req.Name] = req.Hint
			}
			continue
		}
		answers[req.Name] = line
	}
	return answers, nil
}

// StaticPrompter returns pre-recorded values without prompting. Used in
// tests and by non-interactive callers that still want the `me` path.
type StaticPrompter struct {
	Values map[string]any
	// Requests records every batch received, for assertions.
	Requests [][]PromptRequest
}

// PromptBatch returns the configured value for each requested variable.
func (p *StaticPrompter) PromptBatch(requests []PromptRequest) (map[string]any, error) {
	p.Requests = append(p.Requests, requests)
	answers := make(map[string]any)
	for _, req := range requests {
		if v, ok := p.Values[req.Name]; ok {
			answers[req.Name] = v
		}
	}
	return answers, nil
}
