package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrShape is matched by every *ShapeError.
	ErrShape = errors.New("shape mismatch")
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("invalid configuration")
)

// ShapeError reports a buffer whose dimension, sample count or type does not
// match what shape inference predicted.
type ShapeError struct {
	Component string
	What      string
	Expected  any
	Actual    any
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s mismatch: expected %v, got %v", e.Component, e.What, e.Expected, e.Actual)
}

// Is allows errors.Is(err, ErrShape).
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

// NewShapeError is a shorthand for &ShapeError{...}.
func NewShapeError(component, what string, expected, actual any) *ShapeError {
	return &ShapeError{Component: component, What: what, Expected: expected, Actual: actual}
}

// ConfigError reports an invalid numeric option detected before a pipeline is
// entered.
type ConfigError struct {
	Component string
	Option    string
	Value     any
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid %s=%v: %s", e.Component, e.Option, e.Value, e.Reason)
}

// Is allows errors.Is(err, ErrConfig).
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NewConfigError is a shorthand for &ConfigError{...}.
func NewConfigError(component, option string, value any, reason string) *ConfigError {
	return &ConfigError{Component: component, Option: option, Value: value, Reason: reason}
}
