package snapshot

import (
	"reflect"
	"time"

	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/ddl"
	"github.com/koba/sqlentity/internal/schema"
)

// Entities of a snapshot file.
type (
	metadataRecord    struct{}
	tableSchemaRecord struct{}
)

var (
	metadataType    = reflect.TypeOf((*metadataRecord)(nil)).Elem()
	tableSchemaType = reflect.TypeOf((*tableSchemaRecord)(nil)).Elem()
)

// entities declares the snapshot file layout on its own cache, so that
// snapshot files do not depend on the process-wide registry.
func entities() (metadata, tables *schema.Entity, err error) {
	c := schema.NewCache(codec.NewRegistry())
	c.Declare(metadataType, schema.EntityDecl{
		Name: "metadata",
		Fields: []schema.FieldDecl{
			{Name: "key", Type: reflect.TypeOf((*string)(nil)).Elem(), ID: true},
			{Name: "value", Type: reflect.TypeOf((*string)(nil)).Elem(), NotNull: true},
		},
	})
	c.Declare(tableSchemaType, schema.EntityDecl{
		Name: "table_schemas",
		Fields: []schema.FieldDecl{
			{Name: "table_name", Type: reflect.TypeOf((*string)(nil)).Elem(), ID: true},
			{Name: "schema_json", Type: reflect.TypeOf((*string)(nil)).Elem(), NotNull: true},
			{Name: "captured_at", Type: reflect.TypeOf((*time.Time)(nil)).Elem(), NotNull: true},
		},
	})

	if metadata, err = c.Lookup(metadataType); err != nil {
		return nil, nil, err
	}
	if tables, err = c.Lookup(tableSchemaType); err != nil {
		return nil, nil, err
	}
	return metadata, tables, nil
}

// initializeSchema returns the statements creating the snapshot tables
func initializeSchema(entities ...*schema.Entity) ([]string, error) {
	gen := ddl.NewDDLGenerator(true)
	var statements []string
	for _, e := range entities {
		table, err := ddl.FromEntity(e)
		if err != nil {
			return nil, err
		}
		statements = append(statements, gen.Generate(table)...)
	}
	return statements, nil
}
