package ddl

import (
	"fmt"
	"strings"

	"github.com/koba/sqlentity/internal/codec"
)

// DDLGenerator generates SQLite DDL statements
type DDLGenerator struct {
	ifNotExists bool
}

// NewDDLGenerator creates a new DDL generator. With ifNotExists the statements
// can be applied to a database that already holds the tables.
func NewDDLGenerator(ifNotExists bool) *DDLGenerator {
	return &DDLGenerator{ifNotExists: ifNotExists}
}

// Generate returns the CREATE TABLE statement of table followed by one
// CREATE INDEX statement per index.
func (g *DDLGenerator) Generate(table *TableSchema) []string {
	statements := []string{g.generateCreateTable(table)}
	for i := range table.Indexes {
		statements = append(statements, g.generateCreateIndex(table.Name, &table.Indexes[i]))
	}
	return statements
}

// Script joins the statements of every table into one script.
func (g *DDLGenerator) Script(tables []*TableSchema) string {
	var statements []string
	for _, table := range tables {
		statements = append(statements, g.Generate(table)...)
	}
	return strings.Join(statements, "\n\n")
}

func (g *DDLGenerator) generateCreateTable(table *TableSchema) string {
	var parts []string

	// Column definitions
	for i := range table.Columns {
		parts = append(parts, g.columnDefinition(&table.Columns[i]))
	}

	// Foreign keys
	for _, fk := range table.ForeignKeys {
		fkDef := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
			codec.QuoteIdentifier(fk.Name),
			codec.QuoteIdentifier(fk.Column),
			codec.QuoteIdentifier(fk.ReferencedTable),
			codec.QuoteIdentifier(fk.ReferencedColumn),
		)
		if fk.OnUpdate != "" && fk.OnUpdate != "NO ACTION" {
			fkDef += fmt.Sprintf(" ON UPDATE %s", fk.OnUpdate)
		}
		if fk.OnDelete != "" && fk.OnDelete != "NO ACTION" {
			fkDef += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
		}
		parts = append(parts, fkDef)
	}

	return fmt.Sprintf("CREATE TABLE %s%s (\n  %s\n);", g.existsClause(), codec.QuoteIdentifier(table.Name), strings.Join(parts, ",\n  "))
}

func (g *DDLGenerator) generateCreateIndex(tableName string, idx *Index) string {
	indexType := ""
	if idx.Unique {
		indexType = "UNIQUE "
	}

	columns := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		columns[i] = codec.QuoteIdentifier(c)
	}
	return fmt.Sprintf("CREATE %sINDEX %s%s ON %s (%s);",
		indexType,
		g.existsClause(),
		codec.QuoteIdentifier(idx.Name),
		codec.QuoteIdentifier(tableName),
		strings.Join(columns, ", "),
	)
}

func (g *DDLGenerator) columnDefinition(col *Column) string {
	def := codec.QuoteIdentifier(col.Name) + " " + col.Type

	if !col.Nullable {
		def += " NOT NULL"
	}

	if col.PrimaryKey {
		def += " PRIMARY KEY"
		if col.AutoIncrement {
			def += " AUTOINCREMENT"
		}
	}

	if col.DefaultValue != nil {
		def += fmt.Sprintf(" DEFAULT %s", *col.DefaultValue)
	}

	return def
}

func (g *DDLGenerator) existsClause() string {
	if g.ifNotExists {
		return "IF NOT EXISTS "
	}
	return ""
}
