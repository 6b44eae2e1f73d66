package codec

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/sqlentity/internal/ormerr"
)

type shelf int32

const (
	shelfFiction shelf = iota
	shelfScience
	shelfHistory
)

var shelfEnum = NewEnum[shelf]("FICTION", "SCIENCE", "HISTORY")

func TestNewEnum(t *testing.T) {
	assert.Equal(t, "shelf", shelfEnum.Name())
	assert.Equal(t, []string{"FICTION", "SCIENCE", "HISTORY"}, shelfEnum.Variants())

	o, ok := shelfEnum.Ordinal("HISTORY")
	assert.True(t, ok)
	assert.Equal(t, 2, o)

	_, ok = shelfEnum.Variant(3)
	assert.False(t, ok)
	assert.Equal(t, shelfScience, shelfEnum.Value(1))

	assert.Panics(t, func() { NewEnum[shelf]("A", "A") })
	assert.Panics(t, func() { NewEnum[shelf]("A", "") })
}

func TestEnumRoundTrip(t *testing.T) {
	for name, s := range map[string]Serializer{
		"by name":    NewEnumString(shelfEnum),
		"by ordinal": NewEnumInt(shelfEnum),
	} {
		t.Run(name, func(t *testing.T) {
			for _, v := range []shelf{shelfFiction, shelfScience, shelfHistory} {
				assert.Equal(t, v, roundTrip(t, s, v))
			}
			p := shelfHistory
			assert.Equal(t, shelfHistory, roundTrip(t, s, &p))
			assert.Nil(t, roundTrip(t, s, nil))
		})
	}
}

func TestEnumStoredForm(t *testing.T) {
	values := Values{}
	require.NoError(t, NewEnumString(shelfEnum).Write("by_name", values, shelfScience, nil))
	require.NoError(t, NewEnumInt(shelfEnum).Write("by_ordinal", values, shelfScience, nil))
	assert.Equal(t, Values{"by_name": "SCIENCE", "by_ordinal": int64(1)}, values)
}

func TestEnumWriteErrors(t *testing.T) {
	f := testField{entity: "Book", field: "shelf", column: "shelf"}

	for name, s := range map[string]Serializer{
		"by name":    NewEnumString(shelfEnum),
		"by ordinal": NewEnumInt(shelfEnum),
	} {
		t.Run(name, func(t *testing.T) {
			err := s.Write("shelf", Values{}, "SCIENCE", f)
			assert.True(t, ormerr.IsTypeMismatch(err))

			err = s.Write("shelf", Values{}, int32(1), f)
			assert.True(t, ormerr.IsTypeMismatch(err))

			err = s.Write("shelf", Values{}, shelf(9), f)
			assert.True(t, ormerr.IsOutOfRange(err))
		})
	}
}

func TestEnumReadFallback(t *testing.T) {
	withFallback := testField{entity: "Book", field: "shelf", column: "shelf", fallback: "FICTION"}
	without := testField{entity: "Book", field: "shelf", column: "shelf"}

	tests := []struct {
		name       string
		serializer Serializer
		stored     any
	}{
		{name: "unknown name", serializer: NewEnumString(shelfEnum), stored: "POETRY"},
		{name: "ordinal out of range", serializer: NewEnumInt(shelfEnum), stored: int64(7)},
		{name: "negative ordinal", serializer: NewEnumInt(shelfEnum), stored: int64(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := NewRecord([]string{"shelf"}, []any{tt.stored})

			v, err := tt.serializer.Read(row, 0, withFallback)
			require.NoError(t, err)
			assert.Equal(t, shelfFiction, v)

			_, err = tt.serializer.Read(row, 0, without)
			require.Error(t, err)
			assert.True(t, ormerr.IsOutOfRange(err))
			assert.Contains(t, err.Error(), "entity Book field shelf")
		})
	}
}

func TestEnumLiteral(t *testing.T) {
	text := func(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }
	f := testField{entity: "Book", field: "shelf", column: "shelf"}
	withFallback := testField{entity: "Book", field: "shelf", column: "shelf", fallback: "HISTORY"}

	byName := NewEnumString(shelfEnum)
	byOrdinal := NewEnumInt(shelfEnum)

	got, err := byName.Literal(text("SCIENCE"), f)
	require.NoError(t, err)
	assert.Equal(t, "'SCIENCE'", got)

	got, err = byName.Literal(sql.NullString{}, f)
	require.NoError(t, err)
	assert.Equal(t, NullToken, got)

	_, err = byName.Literal(text("science"), f)
	assert.True(t, ormerr.IsFormat(err))

	got, err = byName.Literal(text("POETRY"), withFallback)
	require.NoError(t, err)
	assert.Equal(t, "'HISTORY'", got)

	got, err = byOrdinal.Literal(text("SCIENCE"), f)
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	got, err = byOrdinal.Literal(text("2"), f)
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	_, err = byOrdinal.Literal(text("9"), f)
	assert.True(t, ormerr.IsFormat(err))
	assert.True(t, ormerr.IsOutOfRange(err))
}
