package schema

import (
	"reflect"
	"strings"
)

// ForeignKeySuffix is appended to the field name to derive the column of a
// foreign field declared without an explicit column.
const ForeignKeySuffix = "_id"

// Generated index name prefixes.
const (
	IndexPrefix       = "__idx_"
	UniqueIndexPrefix = "__uidx_"
)

// ForeignAction is the referential action of a foreign key.
type ForeignAction int

const (
	NoAction ForeignAction = iota
	SetNull
	SetDefault
	Cascade
	Restrict
)

// SQL returns the action as written in ON UPDATE / ON DELETE clauses.
func (a ForeignAction) SQL() string {
	switch a {
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	case Cascade:
		return "CASCADE"
	case Restrict:
		return "RESTRICT"
	default:
		return "NO ACTION"
	}
}

func (a ForeignAction) String() string {
	return a.SQL()
}

// ParseForeignAction parses the SQL form of an action, case-insensitively.
func ParseForeignAction(s string) (ForeignAction, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NO ACTION", "":
		return NoAction, true
	case "SET NULL":
		return SetNull, true
	case "SET DEFAULT":
		return SetDefault, true
	case "CASCADE":
		return Cascade, true
	case "RESTRICT":
		return Restrict, true
	}
	return NoAction, false
}

// IndexDecl declares an index and/or a uniqueness constraint.
//
// On a field, Columns must be empty. On an entity, Columns names two or more
// columns.
type IndexDecl struct {
	Name    string
	Columns []string
	Index   bool
	Unique  bool
}

// FieldDecl declares one persisted field.
type FieldDecl struct {
	Name string
	// Type is the Go value type, or the referenced entity type when Foreign is set.
	Type   reflect.Type
	Column string
	// Default is nil when no default is declared. An empty string is a real default.
	Default      *string
	NotNull      bool
	ID           bool
	GeneratedID  bool
	Foreign      bool
	OnUpdate     ForeignAction
	OnDelete     ForeignAction
	FallbackEnum string
	Index        *IndexDecl
}

// FieldGroup is a reusable, ordered set of fields shared by several entities.
// A group may extend another; the most distant group's fields come first.
type FieldGroup struct {
	Name    string
	Extends *FieldGroup
	Fields  []FieldDecl
}

// EntityDecl declares one entity.
type EntityDecl struct {
	// Name overrides the entity name, which defaults to the Go type name.
	Name    string
	Extends *FieldGroup
	Fields  []FieldDecl
	Indexes []IndexDecl
}

// Declarer is implemented by Go types that declare themselves as entities.
type Declarer interface {
	EntityDeclaration() EntityDecl
}

// DefaultValue returns a pointer to s for FieldDecl.Default.
func DefaultValue(s string) *string {
	return &s
}

// FieldOf returns a declaration of a field named name with value type T.
func FieldOf[T any](name string) FieldDecl {
	return FieldDecl{Name: name, Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// ForeignOf returns a declaration of a foreign field named name referencing the entity T.
func ForeignOf[T any](name string) FieldDecl {
	return FieldDecl{Name: name, Type: reflect.TypeOf((*T)(nil)).Elem(), Foreign: true}
}

var declarerType = reflect.TypeOf((*Declarer)(nil)).Elem()

// declarationOf returns the declaration t carries through Declarer, with a
// value or pointer receiver.
func declarationOf(t reflect.Type) (EntityDecl, bool) {
	if t.Implements(declarerType) {
		return reflect.Zero(t).Interface().(Declarer).EntityDeclaration(), true
	}
	if t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(declarerType) {
		return reflect.New(t).Interface().(Declarer).EntityDeclaration(), true
	}
	return EntityDecl{}, false
}

// entityType strips a pointer so that T and *T name the same entity.
func entityType(t reflect.Type) reflect.Type {
	if t != nil && t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}
