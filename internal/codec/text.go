package codec

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Nullable serializers stored as canonical text.
var (
	// DateString stores time.Time as DateTimeLayout text in UTC. It is the default for time.Time.
	DateString Serializer = &textCodec[time.Time]{kind: "ISO-8601 date", parse: ParseUTC, format: FormatUTC}

	// Decimal stores decimal.Decimal as a plain decimal string.
	Decimal Serializer = &textCodec[decimal.Decimal]{kind: "decimal", parse: decimal.NewFromString, format: decimal.Decimal.String}

	// Currency stores currency.Unit as its ISO 4217 code.
	Currency Serializer = &textCodec[currency.Unit]{kind: "ISO 4217 currency", parse: parseCurrency, format: currency.Unit.String}

	// UUID stores uuid.UUID in its canonical hyphenated form.
	UUID Serializer = &textCodec[uuid.UUID]{kind: "UUID", parse: uuid.Parse, format: uuid.UUID.String}

	// ULID stores ulid.ULID in its canonical Crockford base32 form.
	ULID Serializer = &textCodec[ulid.ULID]{kind: "ULID", parse: ulid.ParseStrict, format: ulid.ULID.String}

	// DateTimestamp stores time.Time as epoch milliseconds. It is an alternative
	// to DateString and must be registered explicitly.
	DateTimestamp Serializer = timestampCodec{}
)

func parseCurrency(s string) (currency.Unit, error) {
	return currency.ParseISO(strings.ToUpper(strings.TrimSpace(s)))
}

// textCodec is a nullable serializer whose stored form is format(v) and whose
// text input is validated with parse on both literal conversion and read.
type textCodec[T any] struct {
	kind   string
	parse  func(string) (T, error)
	format func(T) string
}

func (textCodec[T]) Affinity() Affinity { return AffinityText }

func (textCodec[T]) Nullable() bool { return true }

func (c textCodec[T]) Read(row Row, column int, f Field) (any, error) {
	if row.IsNull(column) {
		return nil, nil
	}
	s, err := row.Text(column)
	if err != nil {
		return nil, readFailed(c.kind, row, column, err, f)
	}
	v, err := c.parse(s)
	if err != nil {
		return nil, malformed(c.kind, s, err, f)
	}
	return v, nil
}

func (c textCodec[T]) Literal(text sql.NullString, f Field) (string, error) {
	if !text.Valid {
		return NullToken, nil
	}
	v, err := c.parse(text.String)
	if err != nil {
		return "", malformed(c.kind, text.String, err, f)
	}
	return QuoteString(c.format(v)), nil
}

func (c textCodec[T]) Write(key string, values Values, value any, f Field) error {
	return writeScalar(key, values, value, f, true, func(v T) any { return c.format(v) })
}

type timestampCodec struct{}

func (timestampCodec) Affinity() Affinity { return AffinityInteger }

func (timestampCodec) Nullable() bool { return true }

func (timestampCodec) Read(row Row, column int, f Field) (any, error) {
	if row.IsNull(column) {
		return nil, nil
	}
	ms, err := row.Int64(column)
	if err != nil {
		return nil, readFailed("epoch milliseconds", row, column, err, f)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Literal accepts epoch milliseconds or a DateTimeLayout date.
func (timestampCodec) Literal(text sql.NullString, f Field) (string, error) {
	if !text.Valid {
		return NullToken, nil
	}
	if ms, err := strconv.ParseInt(text.String, 10, 64); err == nil {
		return strconv.FormatInt(ms, 10), nil
	}
	t, err := ParseUTC(text.String)
	if err != nil {
		return "", malformed("epoch milliseconds", text.String, err, f)
	}
	return strconv.FormatInt(t.UnixMilli(), 10), nil
}

func (timestampCodec) Write(key string, values Values, value any, f Field) error {
	return writeScalar(key, values, value, f, true, func(t time.Time) any { return t.UnixMilli() })
}
