package domain

import (
	"errors"
	"fmt"
)

// Parameter error kinds. Use errors.Is against these.
var (
	// ErrPreconditionViolation is returned when a parameter is outside its declared
	// range or the scenario is economically infeasible.
	ErrPreconditionViolation = errors.New("precondition violation")

	// ErrDegenerateInput is returned for inputs that would divide by zero
	// inside the cost model.
	ErrDegenerateInput = errors.New("degenerate input")
)

// ParamError describes which parameter failed and why.
type ParamError struct {
	Kind   error
	Field  string
	Value  float64
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%v: %s=%g %s", e.Kind, e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return e.Kind
}

func precondition(field string, v float64, reason string) error {
	return &ParamError{Kind: ErrPreconditionViolation, Field: field, Value: v, Reason: reason}
}

func degenerate(field string, v float64, reason string) error {
	return &ParamError{Kind: ErrDegenerateInput, Field: field, Value: v, Reason: reason}
}

// NewPreconditionError builds a ParamError of kind ErrPreconditionViolation.
func NewPreconditionError(field string, v float64, reason string) error {
	return precondition(field, v, reason)
}

// NewDegenerateError builds a ParamError of kind ErrDegenerateInput.
func NewDegenerateError(field string, v float64, reason string) error {
	return degenerate(field, v, reason)
}
