// Package vars resolves recipe variables from provided values, declared
// defaults, and the active resolution mode before any step executes.
package vars

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/svallory/hypergen/pkg/ai"
	"github.com/svallory/hypergen/pkg/recipe"
)

// Mode selects who answers for variables that are still unresolved after
// provided values and defaults have been applied.
type Mode string

const (
	// ModeMe prompts the user interactively.
	ModeMe Mode = "me"
	// ModeAI asks the configured AI transport.
	ModeAI Mode = "ai"
	// ModeNobody fails on any missing required variable. Non-interactive.
	ModeNobody Mode = "nobody"
)

// ParseMode validates a mode string from the CLI.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMe, ModeAI, ModeNobody:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown resolution mode %q (expected me, ai, or nobody)", s)
	}
}

// Options controls a single resolution run.
type Options struct {
	Mode Mode
	// NoDefaults suppresses declared defaults. Suppressed defaults resurface
	// as interactive hints, never as silently applied values.
	NoDefaults bool
	// Provided holds values from flags or a parent recipe. They win over
	// everything and are taken verbatim before type coercion.
	Provided map[string]any
}

// Resolver turns a recipe's variable declarations plus caller input into a
// fully resolved variable map.
type Resolver struct {
	Prompter  Prompter
	Transport ai.Transport
}

// NewResolver creates a resolver. Prompter may be nil for callers that never
// take the interactive path; Transport may be nil, which behaves like the
// stdout transport.
func NewResolver(p Prompter, t ai.Transport) *Resolver {
	return &Resolver{Prompter: p, Transport: t}
}

// Resolve applies the precedence chain for every declared variable:
// provided value, then default (unless suppressed), then the mode-specific
// strategy. Provided keys with no declaration pass through untouched.
func (r *Resolver) Resolve(ctx context.Context, rec *recipe.Recipe, opts Options) (map[string]any, error) {
	resolved := make(map[string]any, len(rec.Variables)+len(opts.Provided))
	var unresolved []string

	for _, name := range rec.VariableOrder() {
		spec := rec.Variables[name]
		if v, ok := opts.Provided[name]; ok {
			coerced, err := coerce(name, spec, v)
			if err != nil {
				return nil, err
			}
			resolved[name] = coerced
			continue
		}
		if spec.Default != nil && !opts.NoDefaults {
			coerced, err := coerce(name, spec, spec.Default)
			if err != nil {
				return nil, err
			}
			resolved[name] = coerced
			continue
		}
		unresolved = append(unresolved, name)
	}

	for name, v := range opts.Provided {
		if _, declared := rec.Variables[name]; !declared {
			resolved[name] = v
		}
	}

	if len(unresolved) == 0 {
		return resolved, nil
	}

	switch opts.Mode {
	case ModeNobody:
		if missing := requiredOf(rec, unresolved); len(missing) > 0 {
			return nil, &MissingRequiredVariablesError{Names: missing}
		}
		return resolved, nil

	case ModeMe:
		if err := r.promptInto(rec, unresolved, opts, resolved); err != nil {
			return nil, err
		}

	case ModeAI:
		// The stdout transport cannot answer in-process, so the run degrades
		// to interactive prompting without surfacing an error.
		if r.Transport == nil || r.Transport.Kind() == ai.KindStdout {
			if err := r.promptInto(rec, unresolved, opts, resolved); err != nil {
				return nil, err
			}
			break
		}
		if err := r.transportInto(ctx, rec, unresolved, resolved); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown resolution mode %q", opts.Mode)
	}

	var missing []string
	for _, name := range unresolved {
		if _, ok := resolved[name]; !ok && effectivelyRequired(rec.Variables[name]) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingRequiredVariablesError{Names: missing}
	}
	return resolved, nil
}

// effectivelyRequired treats a declared default as a requirement: the
// recipe's templates expect the value to exist, so when --no-defaults
// suppresses it something else must supply one.
func effectivelyRequired(spec *recipe.VariableSpec) bool {
	return spec.Required || spec.Default != nil
}

// promptInto asks the user for every unresolved variable in one batched
// session, in declaration order.
func (r *Resolver) promptInto(rec *recipe.Recipe, unresolved []string, opts Options, resolved map[string]any) error {
	if r.Prompter == nil {
		return fmt.Errorf("variables %v are unresolved and no interactive prompter is available", unresolved)
	}

	requests := make([]PromptRequest, 0, len(unresolved))
	for _, name := range unresolved {
		spec := rec.Variables[name]
		requests = append(requests, PromptRequest{
			Name:        name,
			Description: spec.Description,
			Hint:        hintFor(spec, opts.NoDefaults),
			Values:      spec.Values,
		})
	}

	answers, err := r.Prompter.PromptBatch(requests)
	if err != nil {
		return fmt.Errorf("prompt variables: %w", err)
	}
	return mergeAnswers(rec, unresolved, answers, resolved)
}

// transportInto resolves every unresolved variable in one ResolveBatch
// round-trip through the AI transport.
func (r *Resolver) transportInto(ctx context.Context, rec *recipe.Recipe, unresolved []string, resolved map[string]any) error {
	queries := make([]ai.VariableQuery, 0, len(unresolved))
	for _, name := range unresolved {
		spec := rec.Variables[name]
		queries = append(queries, ai.VariableQuery{
			Name:        name,
			Type:        spec.Type,
			Description: spec.Description,
			Suggestion:  spec.Suggestion,
			Values:      spec.Values,
			Required:    spec.Required,
		})
	}

	answers, err := r.Transport.ResolveBatch(ctx, queries)
	if err != nil {
		return fmt.Errorf("resolve variables via ai transport: %w", err)
	}
	return mergeAnswers(rec, unresolved, answers, resolved)
}

// mergeAnswers coerces and validates answers for the named variables.
// Variables absent from answers stay unresolved; the caller decides whether
// that is fatal.
func mergeAnswers(rec *recipe.Recipe, unresolved []string, answers map[string]any, resolved map[string]any) error {
	for _, name := range unresolved {
		v, ok := answers[name]
		if !ok {
			continue
		}
		coerced, err := coerce(name, rec.Variables[name], v)
		if err != nil {
			return err
		}
		resolved[name] = coerced
	}
	return nil
}

// hintFor picks the value shown as an interactive pre-fill. A default
// suppressed by NoDefaults is offered back so the user still sees it.
func hintFor(spec *recipe.VariableSpec, noDefaults bool) string {
	if spec.Suggestion != nil {
		return cast.ToString(spec.Suggestion)
	}
	if noDefaults && spec.Default != nil {
		return cast.ToString(spec.Default)
	}
	return ""
}

// requiredOf filters names down to the effectively required ones,
// preserving order.
func requiredOf(rec *recipe.Recipe, names []string) []string {
	var required []string
	for _, name := range names {
		if effectivelyRequired(rec.Variables[name]) {
			required = append(required, name)
		}
	}
	return required
}

// coerce converts a raw value to the variable's declared type and enforces
// enum membership. Applies to every source equally, including defaults.
func coerce(name string, spec *recipe.VariableSpec, value any) (any, error) {
	out := value
	var err error
	switch spec.Type {
	case "string":
		out, err = cast.ToStringE(value)
	case "number":
		out, err = cast.ToFloat64E(value)
	case "boolean":
		out, err = cast.ToBoolE(value)
	case "array":
		out, err = cast.ToSliceE(value)
	}
	if err != nil {
		return nil, &CoercionError{Variable: name, Value: value, Type: spec.Type, Err: err}
	}

	if len(spec.Values) > 0 && !memberOf(out, spec.Values) {
		return nil, &EnumValidationError{Variable: name, Value: out, Allowed: spec.Values}
	}
	return out, nil
}

// memberOf compares by string form so that YAML scalars and flag strings
// match regardless of their parsed Go type.
func memberOf(value any, allowed []any) bool {
	s := fmt.Sprint(value)
	for _, a := range allowed {
		if fmt.Sprint(a) == s {
			return true
		}
	}
	return false
}
