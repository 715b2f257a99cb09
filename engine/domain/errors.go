package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for schema and input failures.
var (
	ErrEmptySchema   = errors.New("empty feature schema")
	ErrInvalidSchema = errors.New("invalid feature schema")
	ErrInvalidNumber = errors.New("invalid number")
	ErrNotInteger    = errors.New("not an integer")
)

// ValidationError wraps a sentinel with the offending form field.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ValidationErrors flattens err (including errors.Join trees) into the
// ValidationErrors it contains, in order.
func ValidationErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}
	var out []*ValidationError
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case *ValidationError:
			out = append(out, x)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(x.Unwrap())
		}
	}
	walk(err)
	return out
}
