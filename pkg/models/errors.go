package models

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is matched by errors returned when a field is read or
	// written with an expected type that differs from the stored variant
	ErrTypeMismatch = errors.New("field type mismatch")

	// ErrFieldNotFound is matched by errors returned when removing a field
	// that does not exist
	ErrFieldNotFound = errors.New("field not found")
)

// TypeMismatchError describes a typed field access against the wrong variant
type TypeMismatchError struct {
	Field    string
	Expected FieldType
	Actual   FieldType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %q has type %s, expected %s", e.Field, e.Actual, e.Expected)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// FieldNotFoundError names the missing field
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found", e.Field)
}

func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}
