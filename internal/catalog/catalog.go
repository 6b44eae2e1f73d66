// Package catalog declares the entities of a small book catalog. The CLI uses
// it to generate, apply and check a schema.
package catalog

import (
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/schema"
)

// Genre classifies a book.
type Genre int32

const (
	GenreUnknown Genre = iota
	GenreFiction
	GenreScience
	GenreHistory
	GenrePoetry
)

// GenreEnum describes Genre. Unknown stored names read as GenreUnknown on
// fields declaring that fallback.
var GenreEnum = codec.NewEnum[Genre]("UNKNOWN", "FICTION", "SCIENCE", "HISTORY", "POETRY")

// Audited holds the bookkeeping columns shared by every catalog entity.
var Audited = &schema.FieldGroup{
	Name: "audited",
	Fields: []schema.FieldDecl{
		schema.FieldOf[time.Time]("created_at"),
		schema.FieldOf[time.Time]("updated_at"),
	},
}

// Publisher is identified by its own code.
type Publisher struct{}

func (Publisher) EntityDeclaration() schema.EntityDecl {
	return schema.EntityDecl{
		Extends: Audited,
		Fields: []schema.FieldDecl{
			{Name: "code", Type: reflect.TypeOf((*string)(nil)).Elem(), ID: true},
			{Name: "name", Type: reflect.TypeOf((*string)(nil)).Elem(), NotNull: true},
			{Name: "ref", Type: reflect.TypeOf((*uuid.UUID)(nil)).Elem(), Index: &schema.IndexDecl{Unique: true}},
			{Name: "currency", Type: reflect.TypeOf((*currency.Unit)(nil)).Elem(), Default: schema.DefaultValue("EUR")},
		},
	}
}

// Author writes books and may mark one of them as a favourite.
type Author struct{}

func (Author) EntityDeclaration() schema.EntityDecl {
	return schema.EntityDecl{
		Extends: Audited,
		Fields: []schema.FieldDecl{
			{Name: "id", Type: reflect.TypeOf((**int64)(nil)).Elem(), GeneratedID: true},
			{Name: "name", Type: reflect.TypeOf((*string)(nil)).Elem(), NotNull: true, Index: &schema.IndexDecl{Index: true}},
			schema.FieldOf[time.Time]("born"),
			{Name: "favourite", Type: reflect.TypeOf((*Book)(nil)).Elem(), Foreign: true, OnDelete: schema.SetNull},
		},
	}
}

// Book is a published title.
type Book struct{}

func (Book) EntityDeclaration() schema.EntityDecl {
	return schema.EntityDecl{
		Extends: Audited,
		Fields: []schema.FieldDecl{
			{Name: "id", Type: reflect.TypeOf((**int64)(nil)).Elem(), GeneratedID: true},
			{Name: "title", Type: reflect.TypeOf((*string)(nil)).Elem(), NotNull: true},
			{Name: "author", Type: reflect.TypeOf((*Author)(nil)).Elem(), Foreign: true, OnDelete: schema.Cascade},
			{
				Name:     "publisher",
				Type:     reflect.TypeOf((*Publisher)(nil)).Elem(),
				Column:   "publisher_code",
				Foreign:  true,
				OnUpdate: schema.Cascade,
				OnDelete: schema.Restrict,
			},
			{
				Name:         "genre",
				Type:         reflect.TypeOf((*Genre)(nil)).Elem(),
				Default:      schema.DefaultValue("UNKNOWN"),
				FallbackEnum: "UNKNOWN",
			},
			{Name: "isbn", Type: reflect.TypeOf((*string)(nil)).Elem(), Index: &schema.IndexDecl{Unique: true}},
			schema.FieldOf[*int32]("pages"),
			schema.FieldOf[decimal.Decimal]("price"),
			schema.FieldOf[*float64]("rating"),
			{Name: "in_print", Type: reflect.TypeOf((**bool)(nil)).Elem(), Default: schema.DefaultValue("true")},
			schema.FieldOf[ulid.ULID]("trace"),
		},
		Indexes: []schema.IndexDecl{
			{Unique: true, Columns: []string{"title", "author_id"}},
			{Index: true, Columns: []string{"genre", "pages"}},
		},
	}
}

// Types returns the catalog entity types in creation order.
func Types() []reflect.Type {
	return []reflect.Type{
		reflect.TypeOf((*Publisher)(nil)).Elem(),
		reflect.TypeOf((*Author)(nil)).Elem(),
		reflect.TypeOf((*Book)(nil)).Elem(),
	}
}

// Register installs the catalog enums on r.
func Register(r *codec.Registry) {
	r.RegisterEnum(GenreEnum)
}
