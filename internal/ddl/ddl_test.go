package ddl

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/sqlentity/internal/catalog"
	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/ormerr"
	"github.com/koba/sqlentity/internal/schema"
)

func catalogCache() *schema.Cache {
	r := codec.NewRegistry()
	catalog.Register(r)
	return schema.NewCache(r)
}

func catalogTables(t *testing.T) map[string]*TableSchema {
	t.Helper()
	tables, err := FromTypes(catalogCache(), catalog.Types()...)
	require.NoError(t, err)
	byName := make(map[string]*TableSchema, len(tables))
	for _, table := range tables {
		byName[table.Name] = table
	}
	return byName
}

func TestFromEntity(t *testing.T) {
	book := catalogTables(t)["Book"]
	require.NotNil(t, book)

	var names, types []string
	for _, c := range book.Columns {
		names = append(names, c.Name)
		types = append(types, c.Type)
	}
	assert.Equal(t, []string{
		"created_at", "updated_at", "id", "title", "author_id", "publisher_code",
		"genre", "isbn", "pages", "price", "rating", "in_print", "trace",
	}, names)
	assert.Equal(t, []string{
		"TEXT", "TEXT", "INTEGER", "TEXT", "INTEGER", "TEXT",
		"TEXT", "TEXT", "INTEGER", "TEXT", "REAL", "INTEGER", "TEXT",
	}, types)

	id, ok := book.Column("id")
	require.True(t, ok)
	assert.True(t, id.PrimaryKey)
	assert.True(t, id.AutoIncrement)
	assert.False(t, id.Nullable)
	assert.Equal(t, 3, id.Position)

	genre, _ := book.Column("genre")
	require.NotNil(t, genre.DefaultValue)
	assert.Equal(t, "'UNKNOWN'", *genre.DefaultValue)

	inPrint, _ := book.Column("in_print")
	require.NotNil(t, inPrint.DefaultValue)
	assert.Equal(t, "1", *inPrint.DefaultValue)

	assert.Equal(t, []ForeignKey{
		{
			Name:             "fk_Book_author_id",
			Column:           "author_id",
			ReferencedTable:  "Author",
			ReferencedColumn: "id",
			OnDelete:         "CASCADE",
			OnUpdate:         "NO ACTION",
		},
		{
			Name:             "fk_Book_publisher_code",
			Column:           "publisher_code",
			ReferencedTable:  "Publisher",
			ReferencedColumn: "code",
			OnDelete:         "RESTRICT",
			OnUpdate:         "CASCADE",
		},
	}, book.ForeignKeys)

	assert.Equal(t, []Index{
		{Name: "__uidx_Book_isbn", Columns: []string{"isbn"}, Unique: true},
		{Name: "__uidx_Book_title_author_id", Columns: []string{"title", "author_id"}, Unique: true},
		{Name: "__idx_Book_genre_pages", Columns: []string{"genre", "pages"}},
	}, book.Indexes)
}

func TestGenerate(t *testing.T) {
	author := catalogTables(t)["Author"]

	statements := NewDDLGenerator(false).Generate(author)
	require.Len(t, statements, 2)
	assert.Equal(t, `CREATE TABLE "Author" (
  "created_at" TEXT,
  "updated_at" TEXT,
  "id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
  "name" TEXT NOT NULL,
  "born" TEXT,
  "favourite_id" INTEGER,
  CONSTRAINT "fk_Author_favourite_id" FOREIGN KEY ("favourite_id") REFERENCES "Book"("id") ON DELETE SET NULL
);`, statements[0])
	assert.Equal(t, `CREATE INDEX "__idx_Author_name" ON "Author" ("name");`, statements[1])
}

func TestGenerateIfNotExists(t *testing.T) {
	publisher := catalogTables(t)["Publisher"]

	statements := NewDDLGenerator(true).Generate(publisher)
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], `CREATE TABLE IF NOT EXISTS "Publisher"`)
	assert.Contains(t, statements[0], `"code" TEXT NOT NULL PRIMARY KEY,`)
	assert.Contains(t, statements[0], `"currency" TEXT DEFAULT 'EUR'`)
	assert.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "__uidx_Publisher_ref" ON "Publisher" ("ref");`, statements[1])
}

func TestScript(t *testing.T) {
	tables, err := FromTypes(catalogCache(), catalog.Types()...)
	require.NoError(t, err)

	script := NewDDLGenerator(false).Script(tables)
	assert.Contains(t, script, `ON UPDATE CASCADE ON DELETE RESTRICT`)
	assert.Contains(t, script, "\n\nCREATE TABLE \"Author\"")
}

type badDefault struct{}

func (badDefault) EntityDeclaration() schema.EntityDecl {
	return schema.EntityDecl{Fields: []schema.FieldDecl{
		{Name: "id", Type: reflect.TypeOf((*int64)(nil)).Elem(), ID: true},
		{Name: "pages", Type: reflect.TypeOf((*int32)(nil)).Elem(), Default: schema.DefaultValue("many")},
	}}
}

func TestFromEntityBadDefault(t *testing.T) {
	_, err := FromTypes(catalogCache(), reflect.TypeOf((*badDefault)(nil)).Elem())
	require.Error(t, err)
	assert.True(t, ormerr.IsFormat(err))
	assert.Contains(t, err.Error(), "default value of badDefault.pages")
}
