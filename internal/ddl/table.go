package ddl

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/koba/sqlentity/internal/schema"
)

// Column represents a table column
type Column struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Nullable      bool    `json:"nullable"`
	DefaultValue  *string `json:"default_value,omitempty"`
	PrimaryKey    bool    `json:"primary_key"`
	AutoIncrement bool    `json:"auto_increment"`
	Position      int     `json:"position"`
}

// Index represents a named index created with CREATE [UNIQUE] INDEX
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ForeignKey represents a single-column foreign key constraint
type ForeignKey struct {
	Name             string `json:"name"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
	OnDelete         string `json:"on_delete"` // CASCADE, SET NULL, etc.
	OnUpdate         string `json:"on_update"`
}

// TableSchema represents a complete table schema
type TableSchema struct {
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	Indexes     []Index      `json:"indexes"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Column returns the column named name.
func (t *TableSchema) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ForeignKeyName returns the constraint name of a foreign key on column of table.
func ForeignKeyName(table, column string) string {
	return "fk_" + table + "_" + column
}

// FromEntity projects an entity schema onto a table. Foreign fields are
// resolved, so the referenced entities must be declared.
func FromEntity(e *schema.Entity) (*TableSchema, error) {
	if err := e.Resolve(); err != nil {
		return nil, err
	}

	table := &TableSchema{
		Name:        e.Name(),
		Columns:     []Column{},
		Indexes:     []Index{},
		ForeignKeys: []ForeignKey{},
	}

	for i, f := range e.Fields() {
		s, err := f.Serializer()
		if err != nil {
			return nil, err
		}
		col := Column{
			Name:          f.ColumnName(),
			Type:          s.Affinity().String(),
			Nullable:      f.Nullable() && !f.IsID(),
			PrimaryKey:    f.IsID(),
			AutoIncrement: f.IsGeneratedID(),
			Position:      i + 1,
		}
		if def, ok := f.Default(); ok {
			literal, err := s.Literal(sql.NullString{String: def, Valid: true}, f)
			if err != nil {
				return nil, fmt.Errorf("default value of %s.%s: %w", e.Name(), f.Name(), err)
			}
			col.DefaultValue = &literal
		}
		table.Columns = append(table.Columns, col)

		if !f.IsForeign() {
			continue
		}
		target, err := f.ForeignEntity()
		if err != nil {
			return nil, err
		}
		table.ForeignKeys = append(table.ForeignKeys, ForeignKey{
			Name:             ForeignKeyName(e.Name(), f.ColumnName()),
			Column:           f.ColumnName(),
			ReferencedTable:  target.Name(),
			ReferencedColumn: target.IDField().ColumnName(),
			OnDelete:         f.OnDelete().SQL(),
			OnUpdate:         f.OnUpdate().SQL(),
		})
	}

	for _, ic := range e.Indexes() {
		table.Indexes = append(table.Indexes, Index{
			Name:    ic.Name(),
			Columns: ic.Columns(),
			Unique:  ic.IsUnique(),
		})
	}

	return table, nil
}

// FromTypes looks up every type in c and projects it onto a table, keeping
// the order of types.
func FromTypes(c *schema.Cache, types ...reflect.Type) ([]*TableSchema, error) {
	tables := make([]*TableSchema, 0, len(types))
	for _, t := range types {
		e, err := c.Lookup(t)
		if err != nil {
			return nil, err
		}
		table, err := FromEntity(e)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}
