package ormerr

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "with field",
			err:      Configf("Book", "title", "generated id requires %s", "int64"),
			expected: "entity Book field title: generated id requires int64",
		},
		{
			name:     "without field",
			err:      Configf("Book", "", "no field marked as id"),
			expected: "entity Book: no field marked as id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
			assert.True(t, errors.Is(tt.err, ErrConfiguration))
			assert.True(t, IsConfiguration(tt.err))
			assert.False(t, IsFormat(tt.err))
		})
	}
}

func TestTypeMismatchError(t *testing.T) {
	err := &TypeMismatchError{Entity: "Book", Column: "pages", Key: "pages", Expected: "int64", Value: "ten"}

	assert.Equal(t, `field value for entity Book column pages can't be considered a int64 for key pages: ten (string)`, err.Error())
	assert.True(t, IsTypeMismatch(err))
}

func TestFormatErrorUnwrap(t *testing.T) {
	_, cause := strconv.ParseInt("x", 10, 64)
	err := &FormatError{Entity: "Book", Field: "pages", Kind: "int64", Value: "x", Err: cause}

	assert.True(t, IsFormat(err))
	assert.ErrorIs(t, err, strconv.ErrSyntax)
	assert.Contains(t, err.Error(), `entity Book field pages: value "x" can't be converted to int64`)
}

func TestErrorWrapping(t *testing.T) {
	wrapped := fmt.Errorf("lookup failed: %w", NewUnsupportedTypeError("complex128"))
	assert.True(t, IsUnsupportedType(wrapped))

	outOfRange := fmt.Errorf("decode: %w", &OutOfRangeError{Entity: "Book", Field: "genre", Enum: "Genre", Value: "9"})
	assert.True(t, IsOutOfRange(outOfRange))
	assert.False(t, IsConfiguration(outOfRange))
}
