package codec

import (
	"database/sql"
	"errors"
	"math"
	"strconv"
)

// Built-in scalar serializers. The Nullable* variants exchange nil for SQL NULL;
// the others are primitive and never accept or produce nil.
var (
	String          Serializer = stringCodec{}
	Bool            Serializer = boolCodec{}
	NullableBool    Serializer = boolCodec{nullable: true}
	Int32           Serializer = intCodec[int32]{}
	NullableInt32   Serializer = intCodec[int32]{nullable: true}
	Int64           Serializer = intCodec[int64]{}
	NullableInt64   Serializer = intCodec[int64]{nullable: true}
	Float64         Serializer = floatCodec{}
	NullableFloat64 Serializer = floatCodec{nullable: true}
)

const (
	boolTrue  = "1"
	boolFalse = "0"
)

var errNullPrimitive = errors.New("primitive value can't be null")

// unwrapNullable resolves the accepted shapes of a nullable write: nil, T or *T.
// ok is false when value has any other type.
func unwrapNullable[T any](value any) (v T, isNull bool, ok bool) {
	switch tv := value.(type) {
	case nil:
		return v, true, true
	case T:
		return tv, false, true
	case *T:
		if tv == nil {
			return v, true, true
		}
		return *tv, false, true
	default:
		return v, false, false
	}
}

// writeScalar implements Write for codecs whose stored form is a function of T.
func writeScalar[T any](key string, values Values, value any, f Field, nullable bool, store func(T) any) error {
	if !nullable {
		tv, ok := value.(T)
		if !ok {
			return mismatch(key, value, "primitive "+typeName[T](), f)
		}
		values[key] = store(tv)
		return nil
	}
	tv, isNull, ok := unwrapNullable[T](value)
	if !ok {
		return mismatch(key, value, typeName[T](), f)
	}
	if isNull {
		values[key] = nil
		return nil
	}
	values[key] = store(tv)
	return nil
}

type stringCodec struct{}

func (stringCodec) Affinity() Affinity { return AffinityText }

func (stringCodec) Nullable() bool { return true }

func (stringCodec) Read(row Row, column int, _ Field) (any, error) {
	if row.IsNull(column) {
		return nil, nil
	}
	return row.Text(column)
}

func (stringCodec) Literal(text sql.NullString, _ Field) (string, error) {
	if !text.Valid {
		return NullToken, nil
	}
	return QuoteString(text.String), nil
}

func (stringCodec) Write(key string, values Values, value any, f Field) error {
	return writeScalar(key, values, value, f, true, func(s string) any { return s })
}

type boolCodec struct {
	nullable bool
}

func (boolCodec) Affinity() Affinity { return AffinityInteger }

func (c boolCodec) Nullable() bool { return c.nullable }

func (c boolCodec) Read(row Row, column int, f Field) (any, error) {
	if c.nullable && row.IsNull(column) {
		return nil, nil
	}
	v, err := row.Int64(column)
	if err != nil {
		return nil, readFailed("bool", row, column, err, f)
	}
	return v == 1, nil
}

func (c boolCodec) Literal(text sql.NullString, f Field) (string, error) {
	if !text.Valid {
		if c.nullable {
			return NullToken, nil
		}
		return "", malformed("bool", "", errNullPrimitive, f)
	}
	b, err := strconv.ParseBool(text.String)
	if err != nil {
		return "", malformed("bool", text.String, err, f)
	}
	if b {
		return boolTrue, nil
	}
	return boolFalse, nil
}

func (c boolCodec) Write(key string, values Values, value any, f Field) error {
	return writeScalar(key, values, value, f, c.nullable, func(b bool) any {
		if b {
			return int64(1)
		}
		return int64(0)
	})
}

type intCodec[T int32 | int64] struct {
	nullable bool
}

func (intCodec[T]) Affinity() Affinity { return AffinityInteger }

func (c intCodec[T]) Nullable() bool { return c.nullable }

func (c intCodec[T]) parse(s string, f Field) (T, error) {
	var zero T
	bits := 64
	if _, is32 := any(zero).(int32); is32 {
		bits = 32
	}
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return zero, malformed(typeName[T](), s, err, f)
	}
	return T(v), nil
}

func (c intCodec[T]) Read(row Row, column int, f Field) (any, error) {
	if c.nullable && row.IsNull(column) {
		return nil, nil
	}
	v, err := row.Int64(column)
	if err != nil {
		return nil, readFailed(typeName[T](), row, column, err, f)
	}
	if int64(T(v)) != v {
		return nil, malformed(typeName[T](), strconv.FormatInt(v, 10), strconv.ErrRange, f)
	}
	return T(v), nil
}

func (c intCodec[T]) Literal(text sql.NullString, f Field) (string, error) {
	if !text.Valid {
		if c.nullable {
			return NullToken, nil
		}
		return "", malformed(typeName[T](), "", errNullPrimitive, f)
	}
	v, err := c.parse(text.String, f)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(int64(v), 10), nil
}

func (c intCodec[T]) Write(key string, values Values, value any, f Field) error {
	return writeScalar(key, values, value, f, c.nullable, func(v T) any { return int64(v) })
}

type floatCodec struct {
	nullable bool
}

func (floatCodec) Affinity() Affinity { return AffinityReal }

func (c floatCodec) Nullable() bool { return c.nullable }

func (c floatCodec) Read(row Row, column int, f Field) (any, error) {
	if c.nullable && row.IsNull(column) {
		return nil, nil
	}
	v, err := row.Float64(column)
	if err != nil {
		return nil, readFailed("float64", row, column, err, f)
	}
	return v, nil
}

func (c floatCodec) Literal(text sql.NullString, f Field) (string, error) {
	if !text.Valid {
		if c.nullable {
			return NullToken, nil
		}
		return "", malformed("float64", "", errNullPrimitive, f)
	}
	v, err := strconv.ParseFloat(text.String, 64)
	if err != nil {
		return "", malformed("float64", text.String, err, f)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", malformed("float64", text.String, strconv.ErrRange, f)
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (c floatCodec) Write(key string, values Values, value any, f Field) error {
	return writeScalar(key, values, value, f, c.nullable, func(v float64) any { return v })
}
