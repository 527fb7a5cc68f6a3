// Package ai implements the 2-pass AI block protocol: collection of
// in-template AI directives, deterministic prompt assembly, and the
// transports used to resolve assembled prompts.
package ai

import (
	"fmt"
	"sync"
)

// Entry is one collected AI directive, keyed by its output key.
type Entry struct {
	Key               string   `json:"key"`
	Contexts          []string `json:"contexts,omitempty"`
	Prompt            string   `json:"prompt"`
	OutputDescription string   `json:"output_description,omitempty"`
	SourceFile        string   `json:"source_file,omitempty"`
}

// DuplicateKeyError is returned when two AI blocks in the same collection
// pass declare the same output key. Both source locations are named so the
// author can find the collision.
type DuplicateKeyError struct {
	Key          string
	FirstSource  string
	SecondSource string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate AI output key %q: first declared in %s, redeclared in %s",
		e.Key, sourceLabel(e.FirstSource), sourceLabel(e.SecondSource))
}

func sourceLabel(s string) string {
	if s == "" {
		return "<inline template>"
	}
	return s
}

// Collector accumulates AI directives during a collect-mode render pass.
// It is caller-owned: the engine constructs one per execution and clears it
// between passes so no state leaks across recipes or passes. All methods
// are safe for concurrent use: parallel steps rendering AI-block templates
// serialize through the collector's mutex.
type Collector struct {
	mu             sync.Mutex
	entries        map[string]*Entry
	order          []string
	globalContexts []string
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{entries: make(map[string]*Entry)}
}

// AddGlobalContext appends template-wide context shared by every AI block
// in the current pass.
func (c *Collector) AddGlobalContext(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalContexts = append(c.globalContexts, text)
}

// AddEntry registers one AI block. A key collision is a caller error and
// fails fast rather than overwriting the earlier entry.
func (c *Collector) AddEntry(key string, contexts []string, prompt, outputDescription, sourceFile string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		return &DuplicateKeyError{
			Key:          key,
			FirstSource:  existing.SourceFile,
			SecondSource: sourceFile,
		}
	}

	// Copy the context slice so callers can't mutate a stored entry.
	ctxCopy := make([]string, len(contexts))
	copy(ctxCopy, contexts)

	c.entries[key] = &Entry{
		Key:               key,
		Contexts:          ctxCopy,
		Prompt:            prompt,
		OutputDescription: outputDescription,
		SourceFile:        sourceFile,
	}
	c.order = append(c.order, key)
	return nil
}

// HasEntries reports whether any AI blocks were collected this pass.
func (c *Collector) HasEntries() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order) > 0
}

// Entries returns the collected entries in insertion order.
func (c *Collector) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entry, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.entries[key])
	}
	return out
}

// Keys returns the collected output keys in insertion order.
func (c *Collector) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// GlobalContexts returns the global context strings in insertion order.
func (c *Collector) GlobalContexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.globalContexts))
	copy(out, c.globalContexts)
	return out
}

// Clear resets the collector for a new pass. Callers must clear between a
// collect-mode pass and a subsequent answer-mode pass, and between
// independent recipes processed in the same process.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	c.order = nil
	c.globalContexts = nil
}
