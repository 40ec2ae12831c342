package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// gojsonschema reports the root object under this synthetic field name.
const rootField = "(root)"

// Code classifies a validation failure.
type Code string

const (
	CodeMissingRequiredField Code = "missing_required_field"
	CodeTypeMismatch         Code = "type_mismatch"
)

// ValidationError reports why provided arguments do not satisfy a schema.
// Path is the dot-joined property path from the root of the arguments.
type ValidationError struct {
	Code     Code   `json:"code"`
	Path     string `json:"path"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeMissingRequiredField:
		return fmt.Sprintf("missing required field %q", e.Path)
	case CodeTypeMismatch:
		return fmt.Sprintf("type mismatch at %q: expected %s, got %s", e.Path, e.Expected, e.Actual)
	default:
		return fmt.Sprintf("validation failed at %q", e.Path)
	}
}

// mapResultError translates the first gojsonschema result error into the
// engine's validation error taxonomy. The compiled schema document has
// sorted keys, so the first error is deterministic for fixed input.
func mapResultError(errs []gojsonschema.ResultError) *ValidationError {
	for _, re := range errs {
		switch re.Type() {
		case "required":
			property, _ := re.Details()["property"].(string)
			return &ValidationError{
				Code: CodeMissingRequiredField,
				Path: joinPath(re.Field(), property),
			}
		case "invalid_type":
			expected, _ := re.Details()["expected"].(string)
			given, _ := re.Details()["given"].(string)
			return &ValidationError{
				Code:     CodeTypeMismatch,
				Path:     fieldPath(re.Field()),
				Expected: expected,
				Actual:   given,
			}
		}
	}

	// Unreachable for schemas this package compiles, kept as a safety net.
	re := errs[0]
	return &ValidationError{Code: CodeTypeMismatch, Path: fieldPath(re.Field())}
}

func fieldPath(field string) string {
	if field == rootField {
		return ""
	}
	return field
}

func joinPath(field, property string) string {
	base := fieldPath(field)
	if base == "" {
		return property
	}
	return base + "." + property
}
