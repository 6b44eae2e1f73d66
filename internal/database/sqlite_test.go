package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"

	"github.com/koba/sqlentity/internal/catalog"
	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/ddl"
	"github.com/koba/sqlentity/internal/diff"
	"github.com/koba/sqlentity/internal/ormerr"
	"github.com/koba/sqlentity/internal/schema"
)

type fixture struct {
	db        *SQLite
	cache     *schema.Cache
	publisher *schema.Entity
	author    *schema.Entity
	book      *schema.Entity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	r := codec.NewRegistry()
	catalog.Register(r)
	c := schema.NewCache(r)

	tables, err := ddl.FromTypes(c, catalog.Types()...)
	require.NoError(t, err)
	gen := ddl.NewDDLGenerator(false)
	var statements []string
	for _, table := range tables {
		statements = append(statements, gen.Generate(table)...)
	}

	db := NewSQLite(Config{Path: filepath.Join(t.TempDir(), "catalog.db"), BusyTimeoutMillis: 1000})
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Apply(ctx, statements))

	f := &fixture{db: db, cache: c}
	f.publisher, err = schema.LookupFor[catalog.Publisher](c)
	require.NoError(t, err)
	f.author, err = schema.LookupFor[catalog.Author](c)
	require.NoError(t, err)
	f.book, err = schema.LookupFor[catalog.Book](c)
	require.NoError(t, err)
	return f
}

func TestNewDatabase(t *testing.T) {
	_, err := NewDatabase(Config{Path: "  "})
	assert.Error(t, err)

	db, err := NewDatabase(Config{Path: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, db)
}

func TestIntrospection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tables, err := f.db.GetAllTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Author", "Book", "Publisher"}, tables)

	live := make([]*ddl.TableSchema, 0, len(tables))
	for _, name := range tables {
		table, err := f.db.GetTableSchema(ctx, name)
		require.NoError(t, err)
		live = append(live, table)
	}
	declared, err := ddl.FromTypes(f.cache, catalog.Types()...)
	require.NoError(t, err)

	result := diff.Compare(live, declared)
	assert.True(t, result.Empty(), "unexpected drift in %v", result.Tables())

	book := live[1]
	id, ok := book.Column("id")
	require.True(t, ok)
	assert.True(t, id.PrimaryKey)
	assert.True(t, id.AutoIncrement)

	_, err = f.db.GetTableSchema(ctx, "Missing")
	assert.ErrorIs(t, err, ErrNoTable)
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ref := uuid.New()
	_, err := f.db.Insert(ctx, f.publisher, map[string]any{
		"code":     "ACME",
		"name":     "Acme Books",
		"ref":      ref,
		"currency": currency.GBP,
	})
	require.NoError(t, err)

	born := time.Date(1947, time.September, 21, 6, 30, 0, 0, time.UTC)
	authorID, err := f.db.Insert(ctx, f.author, map[string]any{"name": "Stephen", "born": born})
	require.NoError(t, err)

	rating := 4.5
	trace := ulid.Make()
	bookID, err := f.db.Insert(ctx, f.book, map[string]any{
		"title":     "The Stand",
		"author":    authorID,
		"publisher": "ACME",
		"isbn":      "978-0385121682",
		"pages":     int32(823),
		"price":     decimal.RequireFromString("12.50"),
		"rating":    &rating,
		"trace":     trace,
	})
	require.NoError(t, err)

	publisher, err := f.db.FindByID(ctx, f.publisher, "ACME")
	require.NoError(t, err)
	assert.Equal(t, ref, publisher["ref"])
	assert.Equal(t, currency.GBP, publisher["currency"])

	author, err := f.db.FindByID(ctx, f.author, authorID)
	require.NoError(t, err)
	assert.Equal(t, authorID, author["id"])
	assert.Equal(t, born, author["born"])
	assert.Nil(t, author["favourite"])
	assert.Nil(t, author["created_at"])

	book, err := f.db.FindByID(ctx, f.book, bookID)
	require.NoError(t, err)
	assert.Equal(t, "The Stand", book["title"])
	assert.Equal(t, authorID, book["author"])
	assert.Equal(t, "ACME", book["publisher"])
	assert.Equal(t, catalog.GenreUnknown, book["genre"])
	assert.Equal(t, true, book["in_print"])
	assert.Equal(t, int32(823), book["pages"])
	assert.Equal(t, 4.5, book["rating"])
	assert.Equal(t, trace, book["trace"])
	price, ok := book["price"].(decimal.Decimal)
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("12.5")))
}

func TestInsertDefaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.db.Insert(ctx, f.publisher, map[string]any{"code": "P1", "name": "One"})
	require.NoError(t, err)

	publisher, err := f.db.FindByID(ctx, f.publisher, "P1")
	require.NoError(t, err)
	assert.Equal(t, currency.EUR, publisher["currency"])
	assert.Nil(t, publisher["ref"])

	id, err := f.db.Insert(ctx, f.author, map[string]any{"name": "Anon"})
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestFindAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, name := range []string{"Ann", "Bob", "Cid"} {
		_, err := f.db.Insert(ctx, f.author, map[string]any{"name": name})
		require.NoError(t, err)
	}

	authors, err := f.db.FindAll(ctx, f.author)
	require.NoError(t, err)
	require.Len(t, authors, 3)
	assert.Equal(t, "Ann", authors[0]["name"])
	assert.Equal(t, "Cid", authors[2]["name"])
	assert.Equal(t, int64(1), authors[0]["id"])
}

func TestEnumFallbackOnRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	authorID, err := f.db.Insert(ctx, f.author, map[string]any{"name": "Ann"})
	require.NoError(t, err)
	bookID, err := f.db.Insert(ctx, f.book, map[string]any{
		"title":  "Odes",
		"author": authorID,
		"genre":  catalog.GenrePoetry,
	})
	require.NoError(t, err)

	book, err := f.db.FindByID(ctx, f.book, bookID)
	require.NoError(t, err)
	assert.Equal(t, catalog.GenrePoetry, book["genre"])

	_, err = f.db.DB().ExecContext(ctx, `UPDATE "Book" SET "genre" = 'EPIC' WHERE "id" = ?`, bookID)
	require.NoError(t, err)

	book, err = f.db.FindByID(ctx, f.book, bookID)
	require.NoError(t, err)
	assert.Equal(t, catalog.GenreUnknown, book["genre"])
}

func TestInsertErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.db.Insert(ctx, f.author, map[string]any{"nickname": "x"})
	assert.ErrorContains(t, err, "entity Author has no field nickname")

	_, err = f.db.Insert(ctx, f.author, map[string]any{"name": 42})
	assert.True(t, ormerr.IsTypeMismatch(err))

	// foreign keys are enforced
	_, err = f.db.Insert(ctx, f.book, map[string]any{"title": "Orphan", "author": int64(999)})
	assert.ErrorContains(t, err, "FOREIGN KEY constraint failed")

	authorID, err := f.db.Insert(ctx, f.author, map[string]any{"name": "Ann"})
	require.NoError(t, err)
	_, err = f.db.Insert(ctx, f.book, map[string]any{"author": authorID})
	assert.ErrorContains(t, err, "NOT NULL constraint failed")

	// name has no default
	_, err = f.db.Insert(ctx, f.author, map[string]any{})
	assert.ErrorContains(t, err, "NOT NULL constraint failed")
}

func TestFindByIDMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.db.FindByID(ctx, f.author, int64(7))
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = f.db.FindByID(ctx, f.author, "seven")
	assert.True(t, ormerr.IsTypeMismatch(err))
}

func TestApplyRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.db.Apply(ctx, []string{
		`CREATE TABLE "Scratch" ("x" INTEGER)`,
		"CREATE TABLE broken (",
	})
	assert.ErrorContains(t, err, `failed to execute "CREATE TABLE broken ("`)

	tables, err := f.db.GetAllTables(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tables, "Scratch")
}
