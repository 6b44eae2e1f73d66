package codec

import (
	"fmt"
	"strconv"
	"time"
)

// Row is a read cursor positioned on one result row.
//
// Numeric accessors coerce the stored value the way SQLite does: a NULL reads
// as zero and numeric text is parsed.
type Row interface {
	ColumnCount() int
	ColumnName(column int) string
	IsNull(column int) bool
	Int64(column int) (int64, error)
	Float64(column int) (float64, error)
	Text(column int) (string, error)
}

// Record is a Row over values already scanned from a result set.
type Record struct {
	Columns []string
	Values  []any
}

// NewRecord creates a Record. columns and values must have the same length.
func NewRecord(columns []string, values []any) *Record {
	return &Record{Columns: columns, Values: values}
}

// RecordFromValues builds a single-row Record from values using the given column order.
func RecordFromValues(values Values, columns ...string) *Record {
	vals := make([]any, len(columns))
	for i, c := range columns {
		vals[i] = values[c]
	}
	return NewRecord(columns, vals)
}

// Index returns the position of column, or -1.
func (r *Record) Index(column string) int {
	for i, c := range r.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

func (r *Record) ColumnCount() int {
	return len(r.Columns)
}

func (r *Record) ColumnName(column int) string {
	if column < 0 || column >= len(r.Columns) {
		return ""
	}
	return r.Columns[column]
}

func (r *Record) value(column int) (any, error) {
	if column < 0 || column >= len(r.Values) {
		return nil, fmt.Errorf("column index %d out of bounds (%d columns)", column, len(r.Values))
	}
	return r.Values[column], nil
}

func (r *Record) IsNull(column int) bool {
	v, err := r.value(column)
	return err == nil && v == nil
}

func (r *Record) Int64(column int) (int64, error) {
	v, err := r.value(column)
	if err != nil {
		return 0, err
	}
	switch tv := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return tv, nil
	case int:
		return int64(tv), nil
	case int32:
		return int64(tv), nil
	case float64:
		return int64(tv), nil
	case bool:
		if tv {
			return 1, nil
		}
		return 0, nil
	case string:
		return strconv.ParseInt(tv, 10, 64)
	case []byte:
		return strconv.ParseInt(string(tv), 10, 64)
	default:
		return 0, fmt.Errorf("column %s: %T is not an integer", r.ColumnName(column), v)
	}
}

func (r *Record) Float64(column int) (float64, error) {
	v, err := r.value(column)
	if err != nil {
		return 0, err
	}
	switch tv := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return tv, nil
	case float32:
		return float64(tv), nil
	case int64:
		return float64(tv), nil
	case int:
		return float64(tv), nil
	case string:
		return strconv.ParseFloat(tv, 64)
	case []byte:
		return strconv.ParseFloat(string(tv), 64)
	default:
		return 0, fmt.Errorf("column %s: %T is not a real", r.ColumnName(column), v)
	}
}

func (r *Record) Text(column int) (string, error) {
	v, err := r.value(column)
	if err != nil {
		return "", err
	}
	switch tv := v.(type) {
	case nil:
		return "", nil
	case string:
		return tv, nil
	case []byte:
		return string(tv), nil
	case int64:
		return strconv.FormatInt(tv, 10), nil
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64), nil
	case time.Time:
		return FormatUTC(tv), nil
	default:
		return fmt.Sprint(tv), nil
	}
}
