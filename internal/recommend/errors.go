// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

package recommend

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure states.
var (
	// ErrNoPersona indicates a request carried neither a persona vector,
	// quiz scores, nor a user with a stored persona.
	ErrNoPersona = errors.New("no persona available for request")

	// ErrNoCatalog indicates the engine has no catalog provider and the
	// request supplied no inline candidates.
	ErrNoCatalog = errors.New("no catalog provider configured")
)

// ValidationError describes an invalid candidate or request field.
type ValidationError struct {
	// Field is the offending field, in json-tag notation.
	Field string
	// Reason explains what is wrong with the value.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// ConfigurationError describes an invalid engine configuration value.
type ConfigurationError struct {
	// Param is the configuration parameter name.
	Param string
	// Value is the rejected value.
	Value any
	// Reason explains the constraint that was violated.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s=%v: %s", e.Param, e.Value, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
