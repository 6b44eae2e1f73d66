package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/ddl"
	"github.com/koba/sqlentity/internal/schema"
)

// SQLite implements the Database interface on a SQLite file
type SQLite struct {
	config Config
	db     *sql.DB
}

// NewSQLite creates a new SQLite database connection
func NewSQLite(config Config) *SQLite {
	return &SQLite{config: config}
}

// dsn enables foreign key enforcement on every pooled connection.
func (s *SQLite) dsn() string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	if s.config.BusyTimeoutMillis > 0 {
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", s.config.BusyTimeoutMillis))
	}
	return "file:" + s.config.Path + "?" + q.Encode()
}

// Connect opens the database file, creating it if needed
func (s *SQLite) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping SQLite: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the SQLite connection
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// Apply runs statements in one transaction.
func (s *SQLite) Apply(ctx context.Context, statements []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	log := zap.L().Named("database")
	for _, stmt := range statements {
		log.Debug("exec", zap.String("sql", stmt))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetAllTables retrieves all user table names
func (s *SQLite) GetAllTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, tableName)
	}

	return tables, rows.Err()
}

// GetTableSchema retrieves the schema for a specific table
func (s *SQLite) GetTableSchema(ctx context.Context, tableName string) (*ddl.TableSchema, error) {
	tableSchema := &ddl.TableSchema{
		Name:        tableName,
		Columns:     []ddl.Column{},
		Indexes:     []ddl.Index{},
		ForeignKeys: []ddl.ForeignKey{},
	}

	columns, err := s.getColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s: %w", tableName, ErrNoTable)
	}
	tableSchema.Columns = columns

	indexes, err := s.getIndexes(ctx, tableName)
	if err != nil {
		return nil, err
	}
	tableSchema.Indexes = indexes

	foreignKeys, err := s.getForeignKeys(ctx, tableName)
	if err != nil {
		return nil, err
	}
	tableSchema.ForeignKeys = foreignKeys

	return tableSchema, nil
}

func (s *SQLite) getColumns(ctx context.Context, tableName string) ([]ddl.Column, error) {
	query := `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`
	rows, err := s.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	var columns []ddl.Column
	for rows.Next() {
		var (
			col      ddl.Column
			cid      int
			notNull  int
			pk       int
			defValue sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &col.Type, &notNull, &defValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Nullable = notNull == 0
		col.PrimaryKey = pk > 0
		col.Position = cid + 1
		if defValue.Valid {
			col.DefaultValue = &defValue.String
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	autoIncrement, err := s.hasAutoIncrement(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if autoIncrement {
		for i := range columns {
			if columns[i].PrimaryKey && strings.EqualFold(columns[i].Type, "INTEGER") {
				columns[i].AutoIncrement = true
			}
		}
	}

	return columns, nil
}

// hasAutoIncrement reports whether the table was declared with AUTOINCREMENT,
// which PRAGMA table_info does not expose.
func (s *SQLite) hasAutoIncrement(ctx context.Context, tableName string) (bool, error) {
	var createSQL sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", tableName,
	).Scan(&createSQL)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get table definition: %w", err)
	}
	return strings.Contains(strings.ToUpper(createSQL.String), "AUTOINCREMENT"), nil
}

func (s *SQLite) getIndexes(ctx context.Context, tableName string) ([]ddl.Index, error) {
	query := `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`
	rows, err := s.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get indexes: %w", err)
	}

	var indexes []ddl.Index
	for rows.Next() {
		var (
			idx    ddl.Index
			unique int
			origin string
		)
		if err := rows.Scan(&idx.Name, &unique, &origin); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		// only indexes created with CREATE INDEX; "pk" and "u" back constraints
		if origin != "c" {
			continue
		}
		idx.Unique = unique == 1
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range indexes {
		cols, err := s.getIndexColumns(ctx, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = cols
	}

	return indexes, nil
}

func (s *SQLite) getIndexColumns(ctx context.Context, indexName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to get index columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index column: %w", err)
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

func (s *SQLite) getForeignKeys(ctx context.Context, tableName string) ([]ddl.ForeignKey, error) {
	query := `SELECT "table", "from", "to", on_update, on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`
	rows, err := s.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	defer rows.Close()

	var foreignKeys []ddl.ForeignKey
	for rows.Next() {
		var (
			fk ddl.ForeignKey
			to sql.NullString
		)
		if err := rows.Scan(&fk.ReferencedTable, &fk.Column, &to, &fk.OnUpdate, &fk.OnDelete); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fk.ReferencedColumn = to.String
		fk.Name = ddl.ForeignKeyName(tableName, fk.Column)
		foreignKeys = append(foreignKeys, fk)
	}

	return foreignKeys, rows.Err()
}

// Insert stores object, keyed by field name, as a new row of e and returns
// the row id. Fields missing from object take their column default.
func (s *SQLite) Insert(ctx context.Context, e *schema.Entity, object map[string]any) (int64, error) {
	values, err := e.Encode(object)
	if err != nil {
		return 0, err
	}

	var (
		columns []string
		marks   []string
		args    []any
	)
	for _, col := range e.Columns(true) {
		v, ok := values[col]
		if !ok {
			continue
		}
		columns = append(columns, codec.QuoteIdentifier(col))
		marks = append(marks, "?")
		args = append(args, v)
	}

	query := fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", codec.QuoteIdentifier(e.Name()))
	if len(columns) > 0 {
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			codec.QuoteIdentifier(e.Name()),
			strings.Join(columns, ", "),
			strings.Join(marks, ", "),
		)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", e.Name(), err)
	}
	return res.LastInsertId()
}

// FindByID reads the row of e whose id equals id. It returns sql.ErrNoRows,
// wrapped, when there is none.
func (s *SQLite) FindByID(ctx context.Context, e *schema.Entity, id any) (map[string]any, error) {
	idField := e.IDField()
	serializer, err := idField.Serializer()
	if err != nil {
		return nil, err
	}
	key := codec.Values{}
	if err := serializer.Write(idField.ColumnName(), key, id, idField); err != nil {
		return nil, err
	}

	columns := e.Columns(true)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = codec.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(quoted, ", "),
		codec.QuoteIdentifier(e.Name()),
		codec.QuoteIdentifier(idField.ColumnName()),
	)

	rows, err := s.db.QueryContext(ctx, query, key[idField.ColumnName()])
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", e.Name(), err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s %v: %w", e.Name(), id, sql.ErrNoRows)
	}
	record, err := ScanRecord(rows)
	if err != nil {
		return nil, err
	}
	return e.Decode(record)
}

// FindAll reads every row of e in id order.
func (s *SQLite) FindAll(ctx context.Context, e *schema.Entity) ([]map[string]any, error) {
	columns := e.Columns(true)
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = codec.QuoteIdentifier(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(quoted, ", "),
		codec.QuoteIdentifier(e.Name()),
		codec.QuoteIdentifier(e.IDField().ColumnName()),
	)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", e.Name(), err)
	}
	defer rows.Close()

	var objects []map[string]any
	for rows.Next() {
		record, err := ScanRecord(rows)
		if err != nil {
			return nil, err
		}
		object, err := e.Decode(record)
		if err != nil {
			return nil, err
		}
		objects = append(objects, object)
	}
	return objects, rows.Err()
}

// ScanRecord scans the current row of rows into a codec.Record.
func ScanRecord(rows *sql.Rows) (*codec.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return codec.NewRecord(columns, values), nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
