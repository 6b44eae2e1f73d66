// Package ormerr defines the errors raised while building entity schemas and
// while converting values through serializers.
package ormerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every typed error below matches exactly one of them via errors.Is.
var (
	// ErrConfiguration is returned when an entity declaration is invalid.
	ErrConfiguration = errors.New("invalid entity configuration")

	// ErrUnsupportedType is returned when no serializer exists for a value type.
	ErrUnsupportedType = errors.New("unsupported value type")

	// ErrTypeMismatch is returned when a value does not match the serializer type.
	ErrTypeMismatch = errors.New("value type mismatch")

	// ErrFormat is returned when a textual or stored value cannot be parsed.
	ErrFormat = errors.New("malformed value")

	// ErrOutOfRange is returned when a stored enum value matches no variant.
	ErrOutOfRange = errors.New("value out of range")
)

// ConfigError is a schema-build time failure.
type ConfigError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("entity %s field %s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("entity %s: %s", e.Entity, e.Message)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// UnsupportedTypeError reports a value type with neither a custom nor a default serializer.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no serializer found for type %s", e.Type)
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// TypeMismatchError reports a write of a value the serializer cannot handle.
type TypeMismatchError struct {
	Entity   string
	Column   string
	Key      string
	Expected string
	Value    any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field value for entity %s column %s can't be considered a %s for key %s: %v (%T)",
		e.Entity, e.Column, e.Expected, e.Key, e.Value, e.Value)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// FormatError reports a value that could not be parsed as Kind.
type FormatError struct {
	Entity string
	Field  string
	Kind   string
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("value %q can't be converted to %s", e.Value, e.Kind)
	if e.Entity != "" || e.Field != "" {
		msg = fmt.Sprintf("entity %s field %s: %s", e.Entity, e.Field, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// OutOfRangeError reports an enum name or ordinal with no matching variant.
type OutOfRangeError struct {
	Entity string
	Field  string
	Enum   string
	Value  string
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("entity %s field %s: %q is not a variant of %s",
		e.Entity, e.Field, e.Value, e.Enum)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Configf creates a ConfigError with a formatted message.
func Configf(entity, field, format string, args ...any) error {
	return &ConfigError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewUnsupportedTypeError creates a new UnsupportedTypeError
func NewUnsupportedTypeError(typeName string) error {
	return &UnsupportedTypeError{Type: typeName}
}

// IsConfiguration checks if an error is a configuration error
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsUnsupportedType checks if an error is an unsupported type error
func IsUnsupportedType(err error) bool {
	return errors.Is(err, ErrUnsupportedType)
}

// IsTypeMismatch checks if an error is a type mismatch error
func IsTypeMismatch(err error) bool {
	return errors.Is(err, ErrTypeMismatch)
}

// IsFormat checks if an error is a format error
func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat)
}

// IsOutOfRange checks if an error is an out of range error
func IsOutOfRange(err error) bool {
	return errors.Is(err, ErrOutOfRange)
}
