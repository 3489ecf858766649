package wal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePosition(t *testing.T) {
	pos, err := ParsePosition("5364755")
	require.NoError(t, err)
	assert.Equal(t, Position(5364755), pos)
	assert.Equal(t, "5364755", pos.String())

	pos, err = ParsePosition("0")
	require.NoError(t, err)
	assert.True(t, pos.IsZero())
	assert.False(t, pos.Check())
}

func TestParsePositionRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "-1", "12.5", "18446744073709551616"} {
		_, err := ParsePosition(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestPositionOrdering(t *testing.T) {
	a, b := Position(10), Position(11)
	assert.True(t, a < b)
	assert.True(t, b.Check())
}
