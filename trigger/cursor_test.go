package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

func TestCursorBootstrapFromHead(t *testing.T) {
	c := NewCursor()
	assert.False(t, c.Bootstrapped())

	c.Bootstrap(0, wal.Position(100))
	assert.True(t, c.Bootstrapped())
	assert.Equal(t, wal.Position(100), c.Current())
}

func TestCursorBootstrapResumesPrior(t *testing.T) {
	c := NewCursor()
	c.Bootstrap(wal.Position(42), wal.Position(100))
	assert.Equal(t, wal.Position(42), c.Current())
}

func TestCursorAdvanceMonotonic(t *testing.T) {
	c := NewCursor()
	c.Bootstrap(0, wal.Position(10))

	require.NoError(t, c.Advance(wal.Position(11)))
	assert.Equal(t, wal.Position(11), c.Current())

	err := c.Advance(wal.Position(11))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeOutOfOrder))

	err = c.Advance(wal.Position(5))
	require.Error(t, err)
	assert.Equal(t, wal.Position(11), c.Current())
}

func TestCursorReset(t *testing.T) {
	c := NewCursor()
	c.Bootstrap(0, wal.Position(10))
	old := c.Reset(wal.Position(500))
	assert.Equal(t, wal.Position(10), old)
	assert.Equal(t, wal.Position(500), c.Current())
}
