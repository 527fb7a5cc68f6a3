package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/svallory/hypergen/pkg/recipe"
)

// ActionFunc is a registered code action. Args arrive rendered.
type ActionFunc func(ctx context.Context, args map[string]string, ectx *ExecContext) error

// ActionRegistry holds named actions registered by the embedding project.
type ActionRegistry struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{actions: make(map[string]ActionFunc)}
}

// Register adds an action. Later registrations win so projects can shadow
// built-ins.
func (r *ActionRegistry) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

func (r *ActionRegistry) lookup(name string) (ActionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.actions[name]
	return fn, ok
}

// Names returns registered action names, sorted.
func (r *ActionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActionTool invokes a registered code action by name.
type ActionTool struct {
	Actions *ActionRegistry
}

func (t *ActionTool) Name() string { return "action" }

func (t *ActionTool) Run(ctx context.Context, step *recipe.Step, ectx *ExecContext) (*Outcome, error) {
	cfg := step.Action
	if cfg == nil {
		return nil, missingConfig(step, "action")
	}
	if ectx.CollectMode() {
		return &Outcome{Skipped: true, SkipReason: "collect pass"}, nil
	}

	if t.Actions == nil {
		return nil, fmt.Errorf("action %q: no actions registered", cfg.Name)
	}
	fn, ok := t.Actions.lookup(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("action %q is not registered (known: %v)", cfg.Name, t.Actions.Names())
	}

	args := make(map[string]string, len(cfg.Args))
	for k, v := range cfg.Args {
		rendered, err := ectx.RenderString(v)
		if err != nil {
			return nil, fmt.Errorf("action %q: render arg %s: %w", cfg.Name, k, err)
		}
		args[k] = rendered
	}

	if err := fn(ctx, args, ectx); err != nil {
		return nil, fmt.Errorf("action %q: %w", cfg.Name, err)
	}
	return &Outcome{Output: cfg.Name}, nil
}
