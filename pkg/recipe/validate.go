package recipe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "steps[0].shell")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a recipe file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Recipe, []*ValidationError) {
	rc, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return rc, Validate(rc)
}

// Validate runs semantic and domain validation on an already-loaded recipe.
func Validate(rc *Recipe) []*ValidationError {
	var allErrors []*ValidationError
	allErrors = append(allErrors, validateSemantic(rc)...)
	allErrors = append(allErrors, ValidateDomain(rc)...)
	return allErrors
}

// validateSemantic validates the recipe against the generated JSON Schema.
func validateSemantic(rc *Recipe) []*ValidationError {
	data, err := json.Marshal(rc)
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("marshal for schema validation: %v", err))}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("generate schema: %v", err))}
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal schema: %v", err))}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("recipe-v1.json", schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("add schema resource: %v", err))}
	}
	sch, err := c.Compile("recipe-v1.json")
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("compile schema: %v", err))}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal document: %v", err))}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, semanticErr(err.Error()))
		}
		return errs
	}
	return nil
}

func semanticErr(msg string) *ValidationError {
	return &ValidationError{Phase: "semantic", Message: msg, Severity: "error"}
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

var timeoutRe = regexp.MustCompile(`^[0-9]+(ms|s|m|h)$`)

// ValidateDomain performs Phase 3 domain-level validation.
// Returns a slice of errors; empty means valid.
func ValidateDomain(rc *Recipe) []*ValidationError {
	var errs []*ValidationError

	if rc.Name == "" {
		errs = append(errs, domainErr("name", "recipe name is required"))
	}

	for name, spec := range rc.Variables {
		if spec == nil {
			errs = append(errs, domainErr(fmt.Sprintf("variables.%s", name), "variable spec must not be empty"))
			continue
		}
		if len(spec.Values) > 0 && spec.Default != nil && !memberOf(spec.Default, spec.Values) {
			errs = append(errs, domainErr(fmt.Sprintf("variables.%s.default", name),
				fmt.Sprintf("default %v is not in the declared values set", spec.Default)))
		}
		if spec.Type == "enum" && len(spec.Values) == 0 {
			errs = append(errs, domainErr(fmt.Sprintf("variables.%s.values", name),
				"enum variables require a non-empty values list"))
		}
	}

	errs = append(errs, validateSteps(rc.Steps, "steps")...)
	return errs
}

// validateSteps checks per-tool required fields, recursing into composites.
func validateSteps(steps []Step, path string) []*ValidationError {
	var errs []*ValidationError
	for i, step := range steps {
		p := fmt.Sprintf("%s[%d]", path, i)

		if step.Timeout != "" && !timeoutRe.MatchString(step.Timeout) {
			errs = append(errs, domainErr(p+".timeout",
				fmt.Sprintf("invalid timeout %q: expected <number><ms|s|m|h>", step.Timeout)))
		}

		switch step.Tool {
		case "template":
			if step.Template == nil {
				errs = append(errs, domainErr(p, "template step requires a template config"))
			} else if step.Template.File == "" && step.Template.Content == "" {
				errs = append(errs, domainErr(p+".template", "template step requires file or content"))
			}
		case "shell":
			if step.Shell == nil || (step.Shell.Command == "" && len(step.Shell.Argv) == 0) {
				errs = append(errs, domainErr(p, "shell step requires command or argv"))
			}
		case "ensure-dirs":
			if step.EnsureDirs == nil || len(step.EnsureDirs.Dirs) == 0 {
				errs = append(errs, domainErr(p, "ensure-dirs step requires a non-empty dirs list"))
			}
		case "install":
			if step.Install == nil || len(step.Install.Packages) == 0 {
				errs = append(errs, domainErr(p, "install step requires a non-empty packages list"))
			}
		case "patch":
			if step.Patch == nil {
				errs = append(errs, domainErr(p, "patch step requires a patch config"))
			} else if (step.Patch.After == "") == (step.Patch.Before == "") {
				errs = append(errs, domainErr(p+".patch", "patch step requires exactly one of after or before"))
			}
		case "query":
			if step.Query == nil || step.Query.Expr == "" || step.Query.Capture == "" {
				errs = append(errs, domainErr(p, "query step requires expr and capture"))
			}
		case "recipe":
			if step.Recipe == nil || step.Recipe.File == "" {
				errs = append(errs, domainErr(p, "recipe step requires a file"))
			}
		case "action":
			if step.Action == nil || step.Action.Name == "" {
				errs = append(errs, domainErr(p, "action step requires a name"))
			}
		case "codemod":
			if step.Codemod == nil || step.Codemod.File == "" || len(step.Codemod.Replace) == 0 {
				errs = append(errs, domainErr(p, "codemod step requires file and replacements"))
			}
		case "sequence", "parallel":
			if len(step.Steps) == 0 {
				errs = append(errs, domainErr(p, fmt.Sprintf("%s step requires nested steps", step.Tool)))
			}
			errs = append(errs, validateSteps(step.Steps, p+".steps")...)
		case "conditional":
			if step.When == "" {
				errs = append(errs, domainErr(p, "conditional step requires a when expression"))
			}
			if len(step.Then) == 0 && len(step.Else) == 0 {
				errs = append(errs, domainErr(p, "conditional step requires a then or else branch"))
			}
			errs = append(errs, validateSteps(step.Then, p+".then")...)
			errs = append(errs, validateSteps(step.Else, p+".else")...)
		case "":
			errs = append(errs, domainErr(p+".tool", "step requires a tool"))
		default:
			errs = append(errs, domainErr(p+".tool", fmt.Sprintf("unknown tool %q", step.Tool)))
		}
	}
	return errs
}

// memberOf reports whether v equals any member of values, comparing by
// string form so YAML scalar typing doesn't produce false mismatches.
func memberOf(v any, values []any) bool {
	vs := fmt.Sprint(v)
	for _, candidate := range values {
		if fmt.Sprint(candidate) == vs {
			return true
		}
	}
	return false
}

func domainErr(path, msg string) *ValidationError {
	return &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"}
}

// HasErrors reports whether any entry has severity "error".
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}
