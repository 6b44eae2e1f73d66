package schema

import (
	"fmt"
	"reflect"
	"sync/atomic"

	"github.com/koba/sqlentity/internal/codec"
)

// Entity is the validated, immutable schema of one entity type.
type Entity struct {
	name     string
	typ      reflect.Type
	fields   []*Field
	byColumn map[string]*Field
	byName   map[string]*Field
	id       *Field
	indexes  []*IndexConstraint
}

func (e *Entity) Name() string       { return e.name }
func (e *Entity) Type() reflect.Type { return e.typ }
func (e *Entity) IDField() *Field    { return e.id }

// Fields returns the fields in column order: inherited groups first, then the
// entity's own fields, each in declaration order.
func (e *Entity) Fields() []*Field {
	return append([]*Field(nil), e.fields...)
}

// Indexes returns single-field indexes in field order followed by the
// multi-field indexes in declaration order.
func (e *Entity) Indexes() []*IndexConstraint {
	return append([]*IndexConstraint(nil), e.indexes...)
}

// Field returns the field stored in column.
func (e *Entity) Field(column string) (*Field, bool) {
	f, ok := e.byColumn[column]
	return f, ok
}

// FieldByName returns the field declared with name.
func (e *Entity) FieldByName(name string) (*Field, bool) {
	f, ok := e.byName[name]
	return f, ok
}

// Columns returns the column names in field order, optionally without the id column.
func (e *Entity) Columns(includeID bool) []string {
	cols := make([]string, 0, len(e.fields))
	for _, f := range e.fields {
		if f.id && !includeID {
			continue
		}
		cols = append(cols, f.column)
	}
	return cols
}

// Resolve forces the foreign reference and serializer of every foreign field.
func (e *Entity) Resolve() error {
	for _, f := range e.fields {
		if !f.foreign {
			continue
		}
		if _, err := f.Serializer(); err != nil {
			return err
		}
	}
	return nil
}

// Encode converts an object keyed by field name into column values. Fields
// absent from object are left out so the store applies its defaults.
func (e *Entity) Encode(object map[string]any) (codec.Values, error) {
	for name := range object {
		if _, ok := e.byName[name]; !ok {
			return nil, fmt.Errorf("entity %s has no field %s", e.name, name)
		}
	}
	values := make(codec.Values, len(object))
	for _, f := range e.fields {
		v, ok := object[f.name]
		if !ok {
			continue
		}
		s, err := f.Serializer()
		if err != nil {
			return nil, err
		}
		if err := s.Write(f.column, values, v, f); err != nil {
			return nil, err
		}
	}
	return values, nil
}

// Decode reads every column of row that belongs to e into an object keyed by
// field name. Unknown columns are ignored.
func (e *Entity) Decode(row codec.Row) (map[string]any, error) {
	object := make(map[string]any, row.ColumnCount())
	for i := 0; i < row.ColumnCount(); i++ {
		f, ok := e.byColumn[row.ColumnName(i)]
		if !ok {
			continue
		}
		s, err := f.Serializer()
		if err != nil {
			return nil, err
		}
		v, err := s.Read(row, i, f)
		if err != nil {
			return nil, err
		}
		object[f.name] = v
	}
	return object, nil
}

// Field is the schema of one persisted field.
type Field struct {
	entity       string
	name         string
	typ          reflect.Type
	column       string
	id           bool
	generatedID  bool
	nullable     bool
	def          *string
	foreign      bool
	onUpdate     ForeignAction
	onDelete     ForeignAction
	fallbackEnum string
	index        *IndexConstraint

	// serializer is bound at build time for non-foreign fields.
	serializer codec.Serializer

	// cache resolves foreign fields on first use.
	cache             *Cache
	foreignField      atomic.Pointer[Field]
	foreignSerializer atomic.Pointer[serializerCell]
}

type serializerCell struct {
	s codec.Serializer
}

func (f *Field) EntityName() string       { return f.entity }
func (f *Field) FieldName() string        { return f.name }
func (f *Field) ColumnName() string       { return f.column }
func (f *Field) FallbackEnumName() string { return f.fallbackEnum }

func (f *Field) Name() string            { return f.name }
func (f *Field) Type() reflect.Type      { return f.typ }
func (f *Field) IsID() bool              { return f.id }
func (f *Field) IsGeneratedID() bool     { return f.generatedID }
func (f *Field) Nullable() bool          { return f.nullable }
func (f *Field) IsForeign() bool         { return f.foreign }
func (f *Field) OnUpdate() ForeignAction { return f.onUpdate }
func (f *Field) OnDelete() ForeignAction { return f.onDelete }
func (f *Field) Index() *IndexConstraint { return f.index }

// Default returns the declared default value in text form.
func (f *Field) Default() (string, bool) {
	if f.def == nil {
		return "", false
	}
	return *f.def, true
}

// ForeignField returns the id field of the referenced entity. The reference
// is resolved on first call and kept.
func (f *Field) ForeignField() (*Field, error) {
	if !f.foreign {
		return nil, nil
	}
	if ff := f.foreignField.Load(); ff != nil {
		return ff, nil
	}
	target, err := f.cache.Lookup(f.typ)
	if err != nil {
		return nil, fmt.Errorf("entity %s field %s: resolve foreign entity %s: %w", f.entity, f.name, f.typ, err)
	}
	f.foreignField.CompareAndSwap(nil, target.IDField())
	return f.foreignField.Load(), nil
}

// ForeignEntity returns the referenced entity.
func (f *Field) ForeignEntity() (*Entity, error) {
	if !f.foreign {
		return nil, nil
	}
	return f.cache.Lookup(f.typ)
}

// Serializer returns the codec of the field. A foreign field uses the codec of
// the referenced id type, made nullable when the field itself is nullable.
func (f *Field) Serializer() (codec.Serializer, error) {
	if !f.foreign {
		return f.serializer, nil
	}
	if cell := f.foreignSerializer.Load(); cell != nil {
		return cell.s, nil
	}
	ff, err := f.ForeignField()
	if err != nil {
		return nil, err
	}
	s, err := f.cache.Registry().Lookup(ff.typ, f.nullable)
	if err != nil {
		return nil, fmt.Errorf("entity %s field %s: %w", f.entity, f.name, err)
	}
	f.foreignSerializer.CompareAndSwap(nil, &serializerCell{s: s})
	return f.foreignSerializer.Load().s, nil
}

// IndexConstraint is a named index and/or uniqueness constraint.
type IndexConstraint struct {
	name   string
	fields []*Field
	index  bool
	unique bool
	single bool
}

func (c *IndexConstraint) Name() string        { return c.name }
func (c *IndexConstraint) IsIndex() bool       { return c.index }
func (c *IndexConstraint) IsUnique() bool      { return c.unique }
func (c *IndexConstraint) IsSingleField() bool { return c.single }

func (c *IndexConstraint) Fields() []*Field {
	return append([]*Field(nil), c.fields...)
}

func (c *IndexConstraint) Columns() []string {
	cols := make([]string, len(c.fields))
	for i, f := range c.fields {
		cols[i] = f.column
	}
	return cols
}
