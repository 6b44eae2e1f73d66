// Package codec converts native Go values to and from the column representation
// of a SQLite-style store.
//
// Every supported value type has one Serializer. Serializers are stateless and
// shared; per-field information (entity, column, enum fallback) is passed in on
// every call through the Field interface. The Registry maps value types to
// serializers and accepts process-wide overrides.
package codec

import (
	"database/sql"
	"fmt"

	"github.com/koba/sqlentity/internal/ormerr"
)

// Affinity is the declared storage class of a column.
type Affinity int

const (
	AffinityNone Affinity = iota
	AffinityText
	AffinityInteger
	AffinityReal
	AffinityNumeric
)

func (a Affinity) String() string {
	switch a {
	case AffinityText:
		return "TEXT"
	case AffinityInteger:
		return "INTEGER"
	case AffinityReal:
		return "REAL"
	case AffinityNumeric:
		return "NUMERIC"
	default:
		return "NONE"
	}
}

// NullToken is the raw SQL literal for a missing value.
const NullToken = "NULL"

// Field is the view of a field schema a serializer needs to report errors and
// to apply the enum fallback.
type Field interface {
	EntityName() string
	FieldName() string
	ColumnName() string
	FallbackEnumName() string
}

// Values holds column values ready for a write operation, keyed by column name.
// A nil value is stored as SQL NULL.
type Values map[string]any

// Serializer is the codec for one value type.
type Serializer interface {
	// Affinity returns the column affinity used when declaring the column.
	Affinity() Affinity

	// Nullable reports whether the serializer accepts and produces nil.
	Nullable() bool

	// Read decodes one column of row. Nullable serializers return nil for SQL NULL.
	Read(row Row, column int, f Field) (any, error)

	// Literal converts a textual value into a raw SQL literal ready to be
	// embedded in a statement. A null text yields NullToken for nullable
	// serializers and a format error for primitive ones.
	Literal(text sql.NullString, f Field) (string, error)

	// Write stores value into values under key.
	Write(key string, values Values, value any, f Field) error
}

func describe(f Field) (entity, field, column string) {
	if f == nil {
		return "?", "?", "?"
	}
	return f.EntityName(), f.FieldName(), f.ColumnName()
}

func mismatch(key string, value any, expected string, f Field) error {
	entity, _, column := describe(f)
	return &ormerr.TypeMismatchError{Entity: entity, Column: column, Key: key, Expected: expected, Value: value}
}

func malformed(kind, value string, err error, f Field) error {
	entity, field, _ := describe(f)
	return &ormerr.FormatError{Entity: entity, Field: field, Kind: kind, Value: value, Err: err}
}

// readFailed reports a stored value that could not be decoded as kind.
func readFailed(kind string, row Row, column int, err error, f Field) error {
	raw, textErr := row.Text(column)
	if textErr != nil {
		raw = row.ColumnName(column)
	}
	return malformed(kind, raw, err, f)
}

func typeName[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}
