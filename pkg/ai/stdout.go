package ai

import "context"

// StdoutTransport marks the absence of a non-interactive AI backend.
// Variable resolution falls back to human prompting, and AI block
// resolution surfaces the assembled prompt to the caller instead of
// resolving it in-process.
type StdoutTransport struct{}

// Kind returns KindStdout.
func (t *StdoutTransport) Kind() Kind { return KindStdout }

// ResolveBatch always fails with ErrInteractiveOnly; callers detect the
// kind up front and route unresolved variables to the interactive path.
func (t *StdoutTransport) ResolveBatch(ctx context.Context, queries []VariableQuery) (map[string]any, error) {
	return nil, ErrInteractiveOnly
}

// Send always fails with ErrInteractiveOnly.
func (t *StdoutTransport) Send(ctx context.Context, prompt string) (string, error) {
	return "", ErrInteractiveOnly
}

// ResolveEntries always fails with ErrInteractiveOnly.
func (t *StdoutTransport) ResolveEntries(ctx context.Context, globals []string, entries []*Entry, opts AssembleOptions) (map[string]any, error) {
	return nil, ErrInteractiveOnly
}
