package proposalValidator

import (
	"fmt"
	"strings"

	"presale/models"
)

// FieldError is one missing or malformed field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries every failing field of a stage, never just the first.
type ValidationError struct {
	Stage  models.Stage `json:"stage,omitempty"`
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Stage, strings.Join(e.FieldNames(), ", "))
	}
	return "validation failed: " + strings.Join(e.FieldNames(), ", ")
}

// FieldNames lists the failing fields in report order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return names
}

// Has reports whether field is among the failures.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// AsMap flattens the failures into the field→message shape the API returns.
func (e *ValidationError) AsMap() map[string]string {
	out := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func (e *ValidationError) add(field, rule, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Rule: rule, Message: message})
}

// orNil keeps callers from returning a typed nil inside an error interface.
func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Missing builds a ValidationError for fields that are simply absent.
func Missing(stage models.Stage, fields ...string) *ValidationError {
	e := &ValidationError{Stage: stage}
	for _, f := range fields {
		e.add(f, "required", fmt.Sprintf("%s is required!", f))
	}
	return e
}
