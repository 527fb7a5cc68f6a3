package tools

import (
	"fmt"

	"github.com/svallory/hypergen/pkg/recipe"
)

// Registry maps tool discriminators to implementations.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under its name. Registering the same name twice is a
// programming error and panics.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; exists {
		panic(fmt.Sprintf("tool %q registered twice", t.Name()))
	}
	r.tools[t.Name()] = t
}

// Lookup returns the tool for a step discriminator.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// DefaultRegistry returns a registry with every leaf tool registered.
// Composite dispatch (sequence, parallel, conditional, recipe) is handled
// by the engine before the registry is consulted.
func DefaultRegistry(actions *ActionRegistry) *Registry {
	r := NewRegistry()
	r.Register(&TemplateTool{})
	r.Register(&ShellTool{})
	r.Register(&EnsureDirsTool{})
	r.Register(&InstallTool{})
	r.Register(&PatchTool{})
	r.Register(&QueryTool{})
	r.Register(&CodemodTool{})
	r.Register(&ActionTool{Actions: actions})
	return r
}

// missingConfig is the shared error for a step whose discriminator names a
// tool but whose config block is absent. Schema validation catches this for
// file-loaded recipes; programmatic recipes hit it at run time.
func missingConfig(step *recipe.Step, tool string) error {
	name := step.Name
	if name == "" {
		name = "(unnamed)"
	}
	return fmt.Errorf("step %s: tool %q requires a %s config block", name, tool, tool)
}
