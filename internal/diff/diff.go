// Package diff reports drift between declared tables and a live database. It
// never changes the database.
package diff

import (
	"fmt"
	"io"
	"sort"

	"github.com/koba/sqlentity/internal/ddl"
)

// DiffResult holds the complete comparison result
type DiffResult struct {
	SchemaDiffs map[string]*SchemaDiff
}

// Empty reports whether the live database matches the declarations.
func (r *DiffResult) Empty() bool {
	return len(r.SchemaDiffs) == 0
}

// Tables returns the names of the tables with differences, sorted.
func (r *DiffResult) Tables() []string {
	names := make([]string, 0, len(r.SchemaDiffs))
	for name := range r.SchemaDiffs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compare compares the live tables with the declared ones
func Compare(live, declared []*ddl.TableSchema) *DiffResult {
	result := &DiffResult{
		SchemaDiffs: make(map[string]*SchemaDiff),
	}

	liveByName := make(map[string]*ddl.TableSchema, len(live))
	for _, t := range live {
		liveByName[t.Name] = t
	}
	declaredByName := make(map[string]*ddl.TableSchema, len(declared))
	for _, t := range declared {
		declaredByName[t.Name] = t
	}

	for name, want := range declaredByName {
		got, exists := liveByName[name]
		if !exists {
			// Declared table missing from the database
			result.SchemaDiffs[name] = &SchemaDiff{
				TableName: name,
				Action:    ActionAdd,
				NewSchema: want,
			}
			continue
		}

		if schemaDiff := compareSchemas(got, want); schemaDiff != nil {
			result.SchemaDiffs[name] = schemaDiff
		}
	}

	for name, got := range liveByName {
		if _, exists := declaredByName[name]; !exists {
			// Table in the database with no declaration
			result.SchemaDiffs[name] = &SchemaDiff{
				TableName: name,
				Action:    ActionDrop,
				OldSchema: got,
			}
		}
	}

	return result
}

// Display prints the diff result in a human-readable format
func Display(w io.Writer, result *DiffResult) {
	if result.Empty() {
		fmt.Fprintln(w, "No differences found.")
		return
	}

	fmt.Fprintln(w, "=== Schema Differences ===")
	fmt.Fprintln(w)
	for _, tableName := range result.Tables() {
		displaySchemaDiff(w, tableName, result.SchemaDiffs[tableName])
	}
}

func displaySchemaDiff(w io.Writer, tableName string, diff *SchemaDiff) {
	fmt.Fprintf(w, "Table: %s\n", tableName)

	switch diff.Action {
	case ActionAdd:
		fmt.Fprintf(w, "  Action: ADD (declared, missing from database)\n")
		fmt.Fprintf(w, "  Columns: %d\n", len(diff.NewSchema.Columns))
	case ActionDrop:
		fmt.Fprintf(w, "  Action: DROP (not declared)\n")
	case ActionModify:
		fmt.Fprintf(w, "  Action: MODIFY\n")
		if len(diff.ColumnChanges) > 0 {
			fmt.Fprintf(w, "  Column changes:\n")
			for _, change := range diff.ColumnChanges {
				fmt.Fprintf(w, "    - %s: %s\n", change.ColumnName, change.Action)
			}
		}
		if len(diff.IndexChanges) > 0 {
			fmt.Fprintf(w, "  Index changes:\n")
			for _, change := range diff.IndexChanges {
				fmt.Fprintf(w, "    - %s: %s\n", change.IndexName, change.Action)
			}
		}
		if len(diff.ForeignKeyChanges) > 0 {
			fmt.Fprintf(w, "  Foreign key changes:\n")
			for _, change := range diff.ForeignKeyChanges {
				fmt.Fprintf(w, "    - %s: %s\n", change.FKName, change.Action)
			}
		}
	}
	fmt.Fprintln(w)
}
