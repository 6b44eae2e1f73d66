package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/koba/sqlentity/internal/ddl"
	"github.com/koba/sqlentity/internal/schema"
)

// ErrNoTable is returned when an introspected table does not exist.
var ErrNoTable = errors.New("table does not exist")

// Config holds database connection configuration
type Config struct {
	// Path is the SQLite database file, or ":memory:".
	Path string
	// BusyTimeoutMillis bounds the wait on a locked database file.
	BusyTimeoutMillis int
}

// Database defines the operations the CLI runs against a store
type Database interface {
	Connect(ctx context.Context) error
	Close() error
	GetAllTables(ctx context.Context) ([]string, error)
	GetTableSchema(ctx context.Context, tableName string) (*ddl.TableSchema, error)
	Apply(ctx context.Context, statements []string) error
	Insert(ctx context.Context, e *schema.Entity, object map[string]any) (int64, error)
	FindByID(ctx context.Context, e *schema.Entity, id any) (map[string]any, error)
	FindAll(ctx context.Context, e *schema.Entity) ([]map[string]any, error)
}

// NewDatabase creates a new database connection for config
func NewDatabase(config Config) (Database, error) {
	if strings.TrimSpace(config.Path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return NewSQLite(config), nil
}
