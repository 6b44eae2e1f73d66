// Package snapshot saves the live schema of a database to a SQLite file so
// that drift can be checked later without access to the database.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/database"
	"github.com/koba/sqlentity/internal/ddl"
)

// Snapshot represents the schema of a database at one point in time
type Snapshot struct {
	Metadata map[string]string
	Tables   map[string]*ddl.TableSchema
}

// TableList returns the tables sorted by name.
func (s *Snapshot) TableList() []*ddl.TableSchema {
	tables := make([]*ddl.TableSchema, 0, len(s.Tables))
	for _, t := range s.Tables {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables
}

// Capture reads the schema of tables from db, or of every table when tables is empty.
func Capture(ctx context.Context, db database.Database, tables []string) (*Snapshot, error) {
	var err error
	if len(tables) == 0 {
		tables, err = db.GetAllTables(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get all tables: %w", err)
		}
	}

	snap := &Snapshot{
		Metadata: map[string]string{
			"created_at": codec.FormatUTC(time.Now()),
		},
		Tables: make(map[string]*ddl.TableSchema, len(tables)),
	}
	for _, tableName := range tables {
		tableSchema, err := db.GetTableSchema(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to get schema of %s: %w", tableName, err)
		}
		snap.Tables[tableName] = tableSchema
	}
	return snap, nil
}

// CreateSnapshot captures the schema of db and saves it to outputPath
func CreateSnapshot(ctx context.Context, db database.Database, tables []string, outputPath string) error {
	snap, err := Capture(ctx, db, tables)
	if err != nil {
		return err
	}
	return Save(ctx, snap, outputPath)
}

// Save writes snap to a new SQLite file at outputPath, replacing any existing file.
func Save(ctx context.Context, snap *Snapshot, outputPath string) error {
	// Ensure output directory exists
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Remove existing snapshot file if it exists
	if _, err := os.Stat(outputPath); err == nil {
		if err := os.Remove(outputPath); err != nil {
			return fmt.Errorf("failed to remove existing snapshot: %w", err)
		}
	}

	metadata, tables, err := entities()
	if err != nil {
		return err
	}
	statements, err := initializeSchema(metadata, tables)
	if err != nil {
		return fmt.Errorf("failed to build snapshot schema: %w", err)
	}

	snapshotDB := database.NewSQLite(database.Config{Path: outputPath})
	if err := snapshotDB.Connect(ctx); err != nil {
		return fmt.Errorf("failed to create snapshot database: %w", err)
	}
	defer snapshotDB.Close()

	if err := snapshotDB.Apply(ctx, statements); err != nil {
		return fmt.Errorf("failed to initialize snapshot schema: %w", err)
	}

	for key, value := range snap.Metadata {
		if _, err := snapshotDB.Insert(ctx, metadata, map[string]any{"key": key, "value": value}); err != nil {
			return fmt.Errorf("failed to insert metadata: %w", err)
		}
	}

	capturedAt := time.Now()
	for _, tableSchema := range snap.TableList() {
		schemaJSON, err := json.Marshal(tableSchema)
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		_, err = snapshotDB.Insert(ctx, tables, map[string]any{
			"table_name":  tableSchema.Name,
			"schema_json": string(schemaJSON),
			"captured_at": capturedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to insert schema of %s: %w", tableSchema.Name, err)
		}
	}

	return nil
}

// LoadSnapshot loads a snapshot from a SQLite file
func LoadSnapshot(ctx context.Context, snapshotPath string) (*Snapshot, error) {
	// Check if file exists
	if _, err := os.Stat(snapshotPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot file does not exist: %s", snapshotPath)
	}

	metadata, tables, err := entities()
	if err != nil {
		return nil, err
	}

	db := database.NewSQLite(database.Config{Path: snapshotPath})
	if err := db.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	defer db.Close()

	snap := &Snapshot{
		Metadata: make(map[string]string),
		Tables:   make(map[string]*ddl.TableSchema),
	}

	metaRows, err := db.FindAll(ctx, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	for _, row := range metaRows {
		key, _ := row["key"].(string)
		value, _ := row["value"].(string)
		snap.Metadata[key] = value
	}

	schemaRows, err := db.FindAll(ctx, tables)
	if err != nil {
		return nil, fmt.Errorf("failed to query table schemas: %w", err)
	}
	for _, row := range schemaRows {
		tableName, _ := row["table_name"].(string)
		schemaJSON, _ := row["schema_json"].(string)

		var tableSchema ddl.TableSchema
		if err := json.Unmarshal([]byte(schemaJSON), &tableSchema); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schema of %s: %w", tableName, err)
		}
		snap.Tables[tableName] = &tableSchema
	}

	return snap, nil
}
