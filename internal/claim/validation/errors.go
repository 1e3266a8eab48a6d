package validation

import (
	"fmt"
	"strings"
)

const (
	CodeRequired             = "required"
	CodeInvalid              = "invalid_value"
	CodeTooShort             = "too_short"
	CodeTooLong              = "too_long"
	CodeInvalidDate          = "invalid_date"
	CodeInvalidImage         = "invalid_image"
	CodeDateOrder            = "date_order"
	CodeNotInFuture          = "not_in_future"
	CodeInvalidTransition    = "invalid_transition"
	CodeDeliveryNotConfirmed = "delivery_not_confirmed"
	CodeForbidden            = "forbidden"
	CodeUnknownReference     = "unknown_reference"
)

// FieldError is one problem with one payload field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Errors is a field-keyed validation failure.
type Errors struct {
	Fields []FieldError
}

func (e *Errors) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Code))
	}
	return "validation error: " + strings.Join(parts, ", ")
}

// Has reports whether field carries an error with code.
func (e *Errors) Has(field, code string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == field && f.Code == code {
			return true
		}
	}
	return false
}

// AuthorizationError lists the fields the actor may not change.
type AuthorizationError struct {
	Fields []FieldError
}

func (e *AuthorizationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "forbidden"
	}
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return "forbidden: " + strings.Join(names, ", ")
}

func forbidden(field string) FieldError {
	return FieldError{
		Field:   field,
		Code:    CodeForbidden,
		Message: "not allowed to change " + field,
	}
}
