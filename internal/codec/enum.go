package codec

import (
	"database/sql"
	"fmt"
	"reflect"
	"strconv"

	"go.uber.org/zap"

	"github.com/koba/sqlentity/internal/ormerr"
)

// Enum describes a named Go integer type whose values are the ordinals of an
// ordered list of variant names.
type Enum struct {
	typ      reflect.Type
	variants []string
	ordinals map[string]int
}

// NewEnum describes T with the given variant names; variant i has value T(i).
// It panics on an empty or duplicated variant name.
func NewEnum[T ~int | ~int8 | ~int16 | ~int32 | ~int64](variants ...string) *Enum {
	e := &Enum{
		typ:      reflect.TypeOf((*T)(nil)).Elem(),
		variants: append([]string(nil), variants...),
		ordinals: make(map[string]int, len(variants)),
	}
	for i, v := range variants {
		if v == "" {
			panic(fmt.Sprintf("codec: enum %s: empty variant name at ordinal %d", e.typ, i))
		}
		if _, dup := e.ordinals[v]; dup {
			panic(fmt.Sprintf("codec: enum %s: duplicated variant %q", e.typ, v))
		}
		e.ordinals[v] = i
	}
	return e
}

// Type returns the Go type described by e.
func (e *Enum) Type() reflect.Type { return e.typ }

// Name returns the Go type name.
func (e *Enum) Name() string { return e.typ.Name() }

// Variants returns the variant names in ordinal order.
func (e *Enum) Variants() []string {
	return append([]string(nil), e.variants...)
}

// Ordinal returns the ordinal of the named variant.
func (e *Enum) Ordinal(name string) (int, bool) {
	o, ok := e.ordinals[name]
	return o, ok
}

// Variant returns the name of the variant at ordinal.
func (e *Enum) Variant(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(e.variants) {
		return "", false
	}
	return e.variants[ordinal], true
}

// Value returns the Go value of the variant at ordinal.
func (e *Enum) Value(ordinal int) any {
	v := reflect.New(e.typ).Elem()
	v.SetInt(int64(ordinal))
	return v.Interface()
}

// ordinalOf returns the ordinal held by value, which must be of type e.typ
// or a pointer to it.
func (e *Enum) ordinalOf(value any) (ordinal int, isNull bool, ok bool) {
	if value == nil {
		return 0, true, true
	}
	rv := reflect.ValueOf(value)
	if rv.Type() == reflect.PointerTo(e.typ) {
		if rv.IsNil() {
			return 0, true, true
		}
		rv = rv.Elem()
	}
	if rv.Type() != e.typ {
		return 0, false, false
	}
	return int(rv.Int()), false, true
}

// resolve maps a raw stored or textual value to an ordinal, applying the field
// fallback when raw names no variant.
func (e *Enum) resolve(raw string, ordinal int, found bool, f Field) (int, error) {
	if found {
		return ordinal, nil
	}
	entity, field, _ := describe(f)
	if f != nil && f.FallbackEnumName() != "" {
		if fb, ok := e.Ordinal(f.FallbackEnumName()); ok {
			zap.L().Named("codec").Warn("enum value replaced by fallback",
				zap.String("entity", entity),
				zap.String("field", field),
				zap.String("enum", e.Name()),
				zap.String("value", raw),
				zap.String("fallback", f.FallbackEnumName()),
			)
			return fb, nil
		}
	}
	return 0, &ormerr.OutOfRangeError{Entity: entity, Field: field, Enum: e.Name(), Value: raw}
}

// NewEnumString returns a serializer storing e by variant name. It is the
// default serializer of every registered enum.
func NewEnumString(e *Enum) Serializer {
	return enumStringCodec{enum: e}
}

// NewEnumInt returns a serializer storing e by ordinal.
func NewEnumInt(e *Enum) Serializer {
	return enumIntCodec{enum: e}
}

type enumStringCodec struct {
	enum *Enum
}

func (enumStringCodec) Affinity() Affinity { return AffinityText }

func (enumStringCodec) Nullable() bool { return true }

func (c enumStringCodec) Read(row Row, column int, f Field) (any, error) {
	if row.IsNull(column) {
		return nil, nil
	}
	name, err := row.Text(column)
	if err != nil {
		return nil, readFailed(c.enum.Name(), row, column, err, f)
	}
	o, found := c.enum.Ordinal(name)
	o, err = c.enum.resolve(name, o, found, f)
	if err != nil {
		return nil, err
	}
	return c.enum.Value(o), nil
}

func (c enumStringCodec) Literal(text sql.NullString, f Field) (string, error) {
	if !text.Valid {
		return NullToken, nil
	}
	o, found := c.enum.Ordinal(text.String)
	o, err := c.enum.resolve(text.String, o, found, f)
	if err != nil {
		return "", malformed(c.enum.Name(), text.String, err, f)
	}
	name, _ := c.enum.Variant(o)
	return QuoteString(name), nil
}

func (c enumStringCodec) Write(key string, values Values, value any, f Field) error {
	o, isNull, ok := c.enum.ordinalOf(value)
	if !ok {
		return mismatch(key, value, c.enum.typ.String(), f)
	}
	if isNull {
		values[key] = nil
		return nil
	}
	name, valid := c.enum.Variant(o)
	if !valid {
		entity, field, _ := describe(f)
		return &ormerr.OutOfRangeError{Entity: entity, Field: field, Enum: c.enum.Name(), Value: strconv.Itoa(o)}
	}
	values[key] = name
	return nil
}

type enumIntCodec struct {
	enum *Enum
}

func (enumIntCodec) Affinity() Affinity { return AffinityInteger }

func (enumIntCodec) Nullable() bool { return true }

func (c enumIntCodec) Read(row Row, column int, f Field) (any, error) {
	if row.IsNull(column) {
		return nil, nil
	}
	v, err := row.Int64(column)
	if err != nil {
		return nil, readFailed(c.enum.Name(), row, column, err, f)
	}
	_, found := c.enum.Variant(int(v))
	o, err := c.enum.resolve(strconv.FormatInt(v, 10), int(v), found, f)
	if err != nil {
		return nil, err
	}
	return c.enum.Value(o), nil
}

// Literal accepts an ordinal or a variant name.
func (c enumIntCodec) Literal(text sql.NullString, f Field) (string, error) {
	if !text.Valid {
		return NullToken, nil
	}
	o, found := c.enum.Ordinal(text.String)
	if !found {
		if n, err := strconv.Atoi(text.String); err == nil {
			_, found = c.enum.Variant(n)
			o = n
		}
	}
	o, err := c.enum.resolve(text.String, o, found, f)
	if err != nil {
		return "", malformed(c.enum.Name(), text.String, err, f)
	}
	return strconv.Itoa(o), nil
}

func (c enumIntCodec) Write(key string, values Values, value any, f Field) error {
	o, isNull, ok := c.enum.ordinalOf(value)
	if !ok {
		return mismatch(key, value, c.enum.typ.String(), f)
	}
	if isNull {
		values[key] = nil
		return nil
	}
	if _, valid := c.enum.Variant(o); !valid {
		entity, field, _ := describe(f)
		return &ormerr.OutOfRangeError{Entity: entity, Field: field, Enum: c.enum.Name(), Value: strconv.Itoa(o)}
	}
	values[key] = int64(o)
	return nil
}
