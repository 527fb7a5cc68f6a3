// Package recipe defines the Go struct types for the recipe YAML schema
// and provides strict YAML parsing.
package recipe

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Recipe is the top-level document defining a code-generation workflow.
type Recipe struct {
	Name        string                   `yaml:"name"                  json:"name"        jsonschema:"required"`
	Version     string                   `yaml:"version,omitempty"     json:"version,omitempty"`
	Description string                   `yaml:"description,omitempty" json:"description,omitempty"`
	Variables   map[string]*VariableSpec `yaml:"variables,omitempty"   json:"variables,omitempty"`
	Defaults    *Defaults                `yaml:"defaults,omitempty"    json:"defaults,omitempty"`
	Steps       []Step                   `yaml:"steps"                 json:"steps"       jsonschema:"required,minItems=1"`

	// varOrder preserves the declaration order of the variables mapping,
	// which drives prompting order during resolution.
	varOrder []string
}

// VariableOrder returns variable names in declaration order.
func (r *Recipe) VariableOrder() []string {
	if len(r.varOrder) == len(r.Variables) {
		return r.varOrder
	}
	// Fallback for recipes built in code rather than parsed from YAML.
	names := make([]string, 0, len(r.Variables))
	for name := range r.Variables {
		names = append(names, name)
	}
	return names
}

// SetVariableOrder overrides the declaration order. Used by tests and by
// callers that construct recipes programmatically.
func (r *Recipe) SetVariableOrder(names []string) {
	r.varOrder = names
}

// VariableSpec describes one declared variable.
type VariableSpec struct {
	Type        string `yaml:"type,omitempty"        json:"type,omitempty" jsonschema:"enum=string,enum=number,enum=boolean,enum=enum,enum=array"`
	Required    bool   `yaml:"required,omitempty"    json:"required,omitempty"`
	Default     any    `yaml:"default,omitempty"     json:"default,omitempty"`
	Suggestion  any    `yaml:"suggestion,omitempty"  json:"suggestion,omitempty"`
	Values      []any  `yaml:"values,omitempty"      json:"values,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Defaults specifies default execution settings applied to all steps.
type Defaults struct {
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"pattern=^[0-9]+(ms|s|m|h)$"`
}

// Step is a single unit of work. Dispatched to a tool based on Tool.
type Step struct {
	Name    string `yaml:"name,omitempty"    json:"name,omitempty"`
	Tool    string `yaml:"tool"              json:"tool" jsonschema:"required,enum=template,enum=shell,enum=sequence,enum=parallel,enum=conditional,enum=ensure-dirs,enum=install,enum=patch,enum=query,enum=recipe,enum=action,enum=codemod"`
	When    string `yaml:"when,omitempty"    json:"when,omitempty"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"pattern=^[0-9]+(ms|s|m|h)$"`

	Template   *TemplateConfig   `yaml:"template,omitempty"    json:"template,omitempty"`
	Shell      *ShellConfig      `yaml:"shell,omitempty"       json:"shell,omitempty"`
	EnsureDirs *EnsureDirsConfig `yaml:"ensure_dirs,omitempty" json:"ensure_dirs,omitempty"`
	Install    *InstallConfig    `yaml:"install,omitempty"     json:"install,omitempty"`
	Patch      *PatchConfig      `yaml:"patch,omitempty"       json:"patch,omitempty"`
	Query      *QueryConfig      `yaml:"query,omitempty"       json:"query,omitempty"`
	Recipe     *RecipeConfig     `yaml:"recipe,omitempty"      json:"recipe,omitempty"`
	Action     *ActionConfig     `yaml:"action,omitempty"      json:"action,omitempty"`
	Codemod    *CodemodConfig    `yaml:"codemod,omitempty"     json:"codemod,omitempty"`

	// Composite bodies. Steps is used by sequence and parallel;
	// Then/Else by conditional.
	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`
	Then  []Step `yaml:"then,omitempty"  json:"then,omitempty"`
	Else  []Step `yaml:"else,omitempty"  json:"else,omitempty"`
}

// TemplateConfig renders a template and optionally writes the output.
type TemplateConfig struct {
	File      string `yaml:"file,omitempty"      json:"file,omitempty"`
	Content   string `yaml:"content,omitempty"   json:"content,omitempty"`
	To        string `yaml:"to,omitempty"        json:"to,omitempty"`
	Overwrite bool   `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
}

// ShellConfig runs a command. Argv is preferred; Command is split on
// whitespace as a convenience for simple invocations.
type ShellConfig struct {
	Command string            `yaml:"command,omitempty" json:"command,omitempty"`
	Argv    []string          `yaml:"argv,omitempty"    json:"argv,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"     json:"env,omitempty"`
	Capture string            `yaml:"capture,omitempty" json:"capture,omitempty"`
}

// EnsureDirsConfig creates directories before other steps write into them.
type EnsureDirsConfig struct {
	Dirs []string `yaml:"dirs" json:"dirs" jsonschema:"required,minItems=1"`
}

// InstallConfig installs packages via a package manager.
type InstallConfig struct {
	Manager  string   `yaml:"manager,omitempty" json:"manager,omitempty" jsonschema:"enum=npm,enum=pnpm,enum=yarn,enum=go"`
	Packages []string `yaml:"packages"          json:"packages" jsonschema:"required,minItems=1"`
	Dev      bool     `yaml:"dev,omitempty"     json:"dev,omitempty"`
}

// PatchConfig inserts text into an existing file relative to a marker.
// Exactly one of After or Before must be set. SkipIf makes the patch
// idempotent: when the file already contains it, the step is skipped.
type PatchConfig struct {
	File   string `yaml:"file"              json:"file" jsonschema:"required"`
	After  string `yaml:"after,omitempty"   json:"after,omitempty"`
	Before string `yaml:"before,omitempty"  json:"before,omitempty"`
	Insert string `yaml:"insert"            json:"insert" jsonschema:"required"`
	SkipIf string `yaml:"skip_if,omitempty" json:"skip_if,omitempty"`
}

// QueryConfig evaluates a sandboxed expression over the resolved variables
// and execution metadata, capturing the result into a named variable.
type QueryConfig struct {
	Expr    string `yaml:"expr"    json:"expr"    jsonschema:"required"`
	Capture string `yaml:"capture" json:"capture" jsonschema:"required"`
}

// RecipeConfig invokes a child recipe inline as a sub-procedure.
type RecipeConfig struct {
	File   string            `yaml:"file"             json:"file" jsonschema:"required"`
	Inputs map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

// ActionConfig invokes a registered code action by name.
type ActionConfig struct {
	Name string            `yaml:"name"           json:"name" jsonschema:"required"`
	Args map[string]string `yaml:"args,omitempty" json:"args,omitempty"`
}

// CodemodConfig applies regex-based edits to an existing file.
type CodemodConfig struct {
	File    string        `yaml:"file"    json:"file"    jsonschema:"required"`
	Replace []Replacement `yaml:"replace" json:"replace" jsonschema:"required,minItems=1"`
}

// Replacement is a single pattern-replacement pair applied by a codemod.
type Replacement struct {
	Pattern string `yaml:"pattern" json:"pattern" jsonschema:"required"`
	With    string `yaml:"with"    json:"with"`
}

// LoadFile reads and parses a recipe YAML file with strict unknown-field
// rejection. Returns the parsed Recipe or an error.
func LoadFile(path string) (*Recipe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipe: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a recipe from an io.Reader with strict unknown-field rejection
// (yaml.v3 KnownFields). Variable declaration order is preserved.
func Load(r io.Reader) (*Recipe, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // reject unknown fields

	var rc Recipe
	if err := dec.Decode(&rc); err != nil {
		return nil, fmt.Errorf("decode recipe: %w", err)
	}

	rc.varOrder = variableOrder(data)
	return &rc, nil
}

// variableOrder extracts the key order of the top-level variables mapping.
// A map decode discards ordering, so the document is walked a second time.
func variableOrder(data []byte) []string {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "variables" {
			continue
		}
		vars := root.Content[i+1]
		if vars.Kind != yaml.MappingNode {
			return nil
		}
		names := make([]string, 0, len(vars.Content)/2)
		for j := 0; j+1 < len(vars.Content); j += 2 {
			names = append(names, vars.Content[j].Value)
		}
		return names
	}
	return nil
}
