package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/koba/sqlentity/internal/ormerr"
)

// builder turns one EntityDecl into an Entity. It never looks up other
// entities; foreign targets are only checked for a declaration.
type builder struct {
	cache  *Cache
	decl   EntityDecl
	entity *Entity
}

func build(c *Cache, t reflect.Type, decl EntityDecl) (*Entity, error) {
	name := decl.Name
	if name == "" {
		name = t.Name()
	}
	b := &builder{
		cache: c,
		decl:  decl,
		entity: &Entity{
			name:     name,
			typ:      t,
			byColumn: make(map[string]*Field),
			byName:   make(map[string]*Field),
		},
	}

	levels, err := b.levels()
	if err != nil {
		return nil, err
	}
	for _, fields := range levels {
		for _, fd := range fields {
			if err := b.addField(fd); err != nil {
				return nil, err
			}
		}
	}
	if b.entity.id == nil {
		return nil, ormerr.Configf(name, "", "no field is marked as id")
	}
	for _, id := range decl.Indexes {
		if err := b.addMultiFieldIndex(id); err != nil {
			return nil, err
		}
	}
	return b.entity, nil
}

// levels returns the field lists to walk, most distant group first and the
// entity's own fields last.
func (b *builder) levels() ([][]FieldDecl, error) {
	var groups []*FieldGroup
	seen := make(map[*FieldGroup]bool)
	for g := b.decl.Extends; g != nil; g = g.Extends {
		if seen[g] {
			return nil, ormerr.Configf(b.entity.name, "", "field group %s extends itself", g.Name)
		}
		seen[g] = true
		groups = append(groups, g)
	}

	levels := make([][]FieldDecl, 0, len(groups)+1)
	for i := len(groups) - 1; i >= 0; i-- {
		levels = append(levels, groups[i].Fields)
	}
	return append(levels, b.decl.Fields), nil
}

func (b *builder) addField(fd FieldDecl) error {
	entity := b.entity.name
	if fd.Name == "" {
		return ormerr.Configf(entity, "", "field declared without a name")
	}
	if fd.Type == nil {
		return ormerr.Configf(entity, fd.Name, "field declared without a type")
	}
	if _, dup := b.entity.byName[fd.Name]; dup {
		return ormerr.Configf(entity, fd.Name, "field declared twice")
	}

	f := &Field{
		entity:       entity,
		name:         fd.Name,
		typ:          fd.Type,
		id:           fd.ID || fd.GeneratedID,
		generatedID:  fd.GeneratedID,
		nullable:     !fd.NotNull,
		def:          fd.Default,
		foreign:      fd.Foreign,
		onUpdate:     fd.OnUpdate,
		onDelete:     fd.OnDelete,
		fallbackEnum: fd.FallbackEnum,
		cache:        b.cache,
	}

	if f.generatedID && !isIntegerType(f.typ) {
		return ormerr.Configf(entity, f.name, "generated id requires an integer or long type, got %s", f.typ)
	}

	f.column = fd.Column
	if f.column == "" {
		f.column = f.name
		if f.foreign {
			f.column += ForeignKeySuffix
		}
	}
	if other, dup := b.entity.byColumn[f.column]; dup {
		return ormerr.Configf(entity, f.name, "column %s is already used by field %s", f.column, other.name)
	}

	if f.fallbackEnum != "" {
		e, ok := b.cache.Registry().Enum(f.typ)
		if !ok {
			return ormerr.Configf(entity, f.name, "fallback enum name %s set on non-enum type %s", f.fallbackEnum, f.typ)
		}
		if _, ok := e.Ordinal(f.fallbackEnum); !ok {
			return ormerr.Configf(entity, f.name, "fallback enum name %s is not a variant of %s", f.fallbackEnum, e.Name())
		}
	}

	if f.foreign {
		f.typ = entityType(f.typ)
		if !b.cache.declared(f.typ) {
			return ormerr.Configf(entity, f.name, "foreign type %s has no entity declaration", f.typ)
		}
	} else {
		s, err := b.cache.Registry().Lookup(f.typ, false)
		if err != nil {
			return fmt.Errorf("entity %s field %s: %w", entity, f.name, err)
		}
		f.serializer = s
	}

	if fd.Index != nil {
		if err := b.addSingleFieldIndex(f, *fd.Index); err != nil {
			return err
		}
	}

	if f.id {
		if b.entity.id != nil {
			return ormerr.Configf(entity, "", "fields %s and %s are both marked as id", b.entity.id.name, f.name)
		}
		b.entity.id = f
	}

	b.entity.fields = append(b.entity.fields, f)
	b.entity.byName[f.name] = f
	b.entity.byColumn[f.column] = f
	return nil
}

func (b *builder) addSingleFieldIndex(f *Field, decl IndexDecl) error {
	if len(decl.Columns) > 0 {
		return ormerr.Configf(b.entity.name, f.name, "single-field index must not list columns")
	}
	if !decl.Index && !decl.Unique {
		return ormerr.Configf(b.entity.name, f.name, "index declaration sets neither index nor unique")
	}
	ic := &IndexConstraint{
		name:   decl.Name,
		fields: []*Field{f},
		index:  decl.Index,
		unique: decl.Unique,
		single: true,
	}
	if ic.name == "" {
		ic.name = IndexName(b.entity.name, decl.Unique, f.column)
	}
	f.index = ic
	b.entity.indexes = append(b.entity.indexes, ic)
	return nil
}

func (b *builder) addMultiFieldIndex(decl IndexDecl) error {
	if len(decl.Columns) < 2 {
		return ormerr.Configf(b.entity.name, "", "multi-field index needs at least 2 columns, got %d", len(decl.Columns))
	}
	if !decl.Index && !decl.Unique {
		return ormerr.Configf(b.entity.name, "", "index on %s sets neither index nor unique", strings.Join(decl.Columns, ", "))
	}
	ic := &IndexConstraint{
		name:   decl.Name,
		index:  decl.Index,
		unique: decl.Unique,
	}
	for _, col := range decl.Columns {
		f, ok := b.entity.byColumn[col]
		if !ok {
			return ormerr.Configf(b.entity.name, "", "index column %s does not match any field", col)
		}
		ic.fields = append(ic.fields, f)
	}
	if ic.name == "" {
		ic.name = IndexName(b.entity.name, decl.Unique, decl.Columns...)
	}
	b.entity.indexes = append(b.entity.indexes, ic)
	return nil
}

// IndexName returns the generated name of an index over columns of entity.
func IndexName(entity string, unique bool, columns ...string) string {
	prefix := IndexPrefix
	if unique {
		prefix = UniqueIndexPrefix
	}
	return prefix + entity + "_" + strings.Join(columns, "_")
}

func isIntegerType(t reflect.Type) bool {
	switch t {
	case reflect.TypeOf((*int32)(nil)).Elem(), reflect.TypeOf((*int64)(nil)).Elem(), reflect.TypeOf((**int32)(nil)).Elem(), reflect.TypeOf((**int64)(nil)).Elem():
		return true
	}
	return false
}
