package diff

import (
	"sort"
	"strings"

	"github.com/koba/sqlentity/internal/ddl"
)

// Action represents the change that would bring the live table to its declaration
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionDrop   Action = "DROP"
	ActionModify Action = "MODIFY"
)

// SchemaDiff represents schema differences for a table. OldSchema is the live
// table, NewSchema the declared one.
type SchemaDiff struct {
	TableName         string
	Action            Action
	OldSchema         *ddl.TableSchema
	NewSchema         *ddl.TableSchema
	ColumnChanges     []ColumnChange
	IndexChanges      []IndexChange
	ForeignKeyChanges []ForeignKeyChange
}

// ColumnChange represents a change to a column
type ColumnChange struct {
	ColumnName string
	Action     Action
	OldColumn  *ddl.Column
	NewColumn  *ddl.Column
}

// IndexChange represents a change to an index
type IndexChange struct {
	IndexName string
	Action    Action
	OldIndex  *ddl.Index
	NewIndex  *ddl.Index
}

// ForeignKeyChange represents a change to a foreign key
type ForeignKeyChange struct {
	FKName        string
	Action        Action
	OldForeignKey *ddl.ForeignKey
	NewForeignKey *ddl.ForeignKey
}

// changes pairs the items of two lists by key and reports additions, drops
// and modifications in key order.
func changes[T any](old, new []T, key func(*T) string, equal func(a, b *T) bool, report func(name string, action Action, a, b *T)) {
	oldByKey := make(map[string]*T, len(old))
	for i := range old {
		oldByKey[key(&old[i])] = &old[i]
	}
	newByKey := make(map[string]*T, len(new))
	for i := range new {
		newByKey[key(&new[i])] = &new[i]
	}

	names := make([]string, 0, len(oldByKey)+len(newByKey))
	for name := range newByKey {
		names = append(names, name)
	}
	for name := range oldByKey {
		if _, exists := newByKey[name]; !exists {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		a, inOld := oldByKey[name]
		b, inNew := newByKey[name]
		switch {
		case !inOld:
			report(name, ActionAdd, nil, b)
		case !inNew:
			report(name, ActionDrop, a, nil)
		case !equal(a, b):
			report(name, ActionModify, a, b)
		}
	}
}

// compareSchemas compares a live table with its declaration
func compareSchemas(old, new *ddl.TableSchema) *SchemaDiff {
	diff := &SchemaDiff{
		TableName: new.Name,
		Action:    ActionModify,
		OldSchema: old,
		NewSchema: new,
	}

	changes(old.Columns, new.Columns,
		func(c *ddl.Column) string { return c.Name },
		columnsEqual,
		func(name string, action Action, a, b *ddl.Column) {
			diff.ColumnChanges = append(diff.ColumnChanges, ColumnChange{ColumnName: name, Action: action, OldColumn: a, NewColumn: b})
		})

	changes(old.Indexes, new.Indexes,
		func(i *ddl.Index) string { return i.Name },
		indexesEqual,
		func(name string, action Action, a, b *ddl.Index) {
			diff.IndexChanges = append(diff.IndexChanges, IndexChange{IndexName: name, Action: action, OldIndex: a, NewIndex: b})
		})

	changes(old.ForeignKeys, new.ForeignKeys,
		func(fk *ddl.ForeignKey) string { return fk.Name },
		foreignKeysEqual,
		func(name string, action Action, a, b *ddl.ForeignKey) {
			diff.ForeignKeyChanges = append(diff.ForeignKeyChanges, ForeignKeyChange{FKName: name, Action: action, OldForeignKey: a, NewForeignKey: b})
		})

	// Return nil if no changes
	if len(diff.ColumnChanges) == 0 && len(diff.IndexChanges) == 0 && len(diff.ForeignKeyChanges) == 0 {
		return nil
	}

	return diff
}

func columnsEqual(a, b *ddl.Column) bool {
	if a.Name != b.Name || !strings.EqualFold(a.Type, b.Type) || a.Nullable != b.Nullable ||
		a.PrimaryKey != b.PrimaryKey || a.AutoIncrement != b.AutoIncrement {
		return false
	}

	// Compare default values
	if (a.DefaultValue == nil) != (b.DefaultValue == nil) {
		return false
	}
	if a.DefaultValue != nil && b.DefaultValue != nil && *a.DefaultValue != *b.DefaultValue {
		return false
	}

	return true
}

func indexesEqual(a, b *ddl.Index) bool {
	if a.Name != b.Name || a.Unique != b.Unique {
		return false
	}

	if len(a.Columns) != len(b.Columns) {
		return false
	}

	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}

	return true
}

func foreignKeysEqual(a, b *ddl.ForeignKey) bool {
	return a.Name == b.Name &&
		a.Column == b.Column &&
		a.ReferencedTable == b.ReferencedTable &&
		a.ReferencedColumn == b.ReferencedColumn &&
		strings.EqualFold(a.OnDelete, b.OnDelete) &&
		strings.EqualFold(a.OnUpdate, b.OnUpdate)
}
