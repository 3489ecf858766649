package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForetagInc/arangodb-events-go/wal"
)

func TestEventKinds(t *testing.T) {
	assert.ElementsMatch(t,
		[]wal.OperationKind{wal.KindInsert, wal.KindReplace, wal.KindUpdate},
		EventInsertOrReplace.Kinds(true))
	assert.ElementsMatch(t,
		[]wal.OperationKind{wal.KindInsert, wal.KindReplace},
		EventInsertOrReplace.Kinds(false))

	assert.Equal(t, []wal.OperationKind{wal.KindRemove}, EventRemove.Kinds(true))
	assert.Equal(t, []wal.OperationKind{wal.KindUpdate}, EventUpdate.Kinds(false))
}

func TestParseEvent(t *testing.T) {
	cases := map[string]Event{
		"insert/update":     EventInsertOrReplace,
		"insert-or-replace": EventInsertOrReplace,
		"remove":            EventRemove,
		"delete":            EventRemove,
		"insert":            EventInsert,
		"update":            EventUpdate,
		"replace":           EventReplace,
	}
	for s, want := range cases {
		ev, err := ParseEvent(s)
		require.NoError(t, err, "input %q", s)
		assert.Equal(t, want, ev, "input %q", s)
	}

	_, err := ParseEvent("truncate")
	assert.Error(t, err)
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "remove", EventRemove.String())
	assert.Equal(t, "insert-or-replace", EventInsertOrReplace.String())
}
