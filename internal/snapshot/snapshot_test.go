package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/sqlentity/internal/catalog"
	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/database"
	"github.com/koba/sqlentity/internal/ddl"
	"github.com/koba/sqlentity/internal/diff"
	"github.com/koba/sqlentity/internal/schema"
)

func catalogDB(t *testing.T) *database.SQLite {
	t.Helper()
	ctx := context.Background()

	r := codec.NewRegistry()
	catalog.Register(r)
	tables, err := ddl.FromTypes(schema.NewCache(r), catalog.Types()...)
	require.NoError(t, err)

	gen := ddl.NewDDLGenerator(false)
	var statements []string
	for _, table := range tables {
		statements = append(statements, gen.Generate(table)...)
	}

	db := database.NewSQLite(database.Config{Path: filepath.Join(t.TempDir(), "live.db")})
	require.NoError(t, db.Connect(ctx))
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Apply(ctx, statements))
	return db
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := catalogDB(t)

	snap, err := Capture(ctx, db, nil)
	require.NoError(t, err)
	require.Len(t, snap.Tables, 3)
	assert.Contains(t, snap.Metadata, "created_at")

	path := filepath.Join(t.TempDir(), "nested", "schema.snapshot")
	require.NoError(t, Save(ctx, snap, path))
	// saving twice replaces the file
	require.NoError(t, Save(ctx, snap, path))

	loaded, err := LoadSnapshot(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, snap.Metadata, loaded.Metadata)
	require.Len(t, loaded.Tables, 3)

	result := diff.Compare(snap.TableList(), loaded.TableList())
	assert.True(t, result.Empty(), "loaded snapshot differs: %v", result.Tables())

	book := loaded.Tables["Book"]
	require.NotNil(t, book)
	assert.Len(t, book.ForeignKeys, 2)
}

func TestCaptureSelectedTables(t *testing.T) {
	ctx := context.Background()
	db := catalogDB(t)

	snap, err := Capture(ctx, db, []string{"Author"})
	require.NoError(t, err)
	assert.Len(t, snap.Tables, 1)
	assert.Equal(t, "Author", snap.TableList()[0].Name)

	_, err = Capture(ctx, db, []string{"Missing"})
	assert.ErrorIs(t, err, database.ErrNoTable)
}

func TestCreateSnapshot(t *testing.T) {
	ctx := context.Background()
	db := catalogDB(t)
	path := filepath.Join(t.TempDir(), "schema.snapshot")

	require.NoError(t, CreateSnapshot(ctx, db, nil, path))

	loaded, err := LoadSnapshot(ctx, path)
	require.NoError(t, err)
	names := make([]string, 0, len(loaded.Tables))
	for _, table := range loaded.TableList() {
		names = append(names, table.Name)
	}
	assert.Equal(t, []string{"Author", "Book", "Publisher"}, names)
}

func TestLoadMissingSnapshot(t *testing.T) {
	_, err := LoadSnapshot(context.Background(), filepath.Join(t.TempDir(), "absent.snapshot"))
	assert.ErrorContains(t, err, "snapshot file does not exist")
}

func TestSnapshotEntities(t *testing.T) {
	metadata, tables, err := entities()
	require.NoError(t, err)
	assert.Equal(t, "key", metadata.IDField().Name())
	assert.Equal(t, []string{"table_name", "schema_json", "captured_at"}, tables.Columns(true))

	statements, err := initializeSchema(metadata)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE TABLE IF NOT EXISTS \"metadata\" (\n" +
			"  \"key\" TEXT NOT NULL PRIMARY KEY,\n" +
			"  \"value\" TEXT NOT NULL\n" +
			");",
	}, statements)
}
