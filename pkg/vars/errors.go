package vars

import (
	"fmt"
	"strings"
)

// MissingRequiredVariablesError names every required variable that was
// still unresolved at the end of resolution, not just the first.
type MissingRequiredVariablesError struct {
	Names []string
}

func (e *MissingRequiredVariablesError) Error() string {
	return fmt.Sprintf("missing required variables: %s", strings.Join(e.Names, ", "))
}

// EnumValidationError is raised when a resolved value is outside a
// variable's declared values set, regardless of which source produced it.
type EnumValidationError struct {
	Variable string
	Value    any
	Allowed  []any
}

func (e *EnumValidationError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, v := range e.Allowed {
		allowed[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("variable %q: value %v is not one of [%s]",
		e.Variable, e.Value, strings.Join(allowed, ", "))
}

// CoercionError is raised when a resolved value cannot be converted to the
// variable's declared type.
type CoercionError struct {
	Variable string
	Value    any
	Type     string
	Err      error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("variable %q: cannot convert %v to %s: %v", e.Variable, e.Value, e.Type, e.Err)
}

func (e *CoercionError) Unwrap() error { return e.Err }
