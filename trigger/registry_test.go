package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForetagInc/arangodb-events-go/wal"
)

func nopHandler() Handler {
	return HandlerFunc(func(*HandlerContext, *wal.DocumentOperation) error { return nil })
}

func docOp(collection, key string, kind wal.OperationKind, tick uint64) *wal.DocumentOperation {
	return &wal.DocumentOperation{
		Collection: collection,
		Key:        key,
		Kind:       kind,
		Tick:       wal.Position(tick),
	}
}

func TestRegistryGlobalAndScopedAreIndependent(t *testing.T) {
	r := NewRegistry()
	global := newSubscription("", []wal.OperationKind{wal.KindReplace}, nil, nopHandler(), nil)
	scoped := newSubscription("users", []wal.OperationKind{wal.KindReplace}, nil, nopHandler(), nil)
	r.Add(global)
	r.Add(scoped)

	matched := r.Match(docOp("users", "1", wal.KindReplace, 5))
	require.Len(t, matched, 2)

	matched = r.Match(docOp("orders", "9", wal.KindReplace, 6))
	require.Len(t, matched, 1)
	assert.True(t, matched[0] == global)
}

func TestRegistryKindFilter(t *testing.T) {
	r := NewRegistry()
	r.Add(newSubscription("", []wal.OperationKind{wal.KindRemove}, nil, nopHandler(), nil))

	assert.Len(t, r.Match(docOp("users", "1", wal.KindReplace, 5)), 0)
	assert.Len(t, r.Match(docOp("users", "1", wal.KindRemove, 6)), 1)
}

func TestRegistryKeyFilter(t *testing.T) {
	r := NewRegistry()
	r.Add(newSubscription("users", []wal.OperationKind{wal.KindRemove}, []string{"252525"}, nopHandler(), nil))

	assert.Len(t, r.Match(docOp("users", "252525", wal.KindRemove, 1)), 1)
	assert.Len(t, r.Match(docOp("users", "9", wal.KindRemove, 2)), 0)
	assert.Len(t, r.Match(docOp("orders", "252525", wal.KindRemove, 3)), 0)
}

func TestRegistryMatchKeepsRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	first := newSubscription("", []wal.OperationKind{wal.KindReplace}, nil, nopHandler(), nil)
	second := newSubscription("users", []wal.OperationKind{wal.KindReplace}, nil, nopHandler(), nil)
	third := newSubscription("", []wal.OperationKind{wal.KindReplace}, nil, nopHandler(), nil)
	r.Add(first)
	r.Add(second)
	r.Add(third)

	matched := r.Match(docOp("users", "1", wal.KindReplace, 5))
	require.Len(t, matched, 3)
	assert.True(t, matched[0] == first && matched[1] == second && matched[2] == third)
}

func TestRegistryRemoveExactShape(t *testing.T) {
	r := NewRegistry()
	kinds := []wal.OperationKind{wal.KindInsert, wal.KindReplace}
	r.Add(newSubscription("users", kinds, []string{"a", "b"}, nopHandler(), nil))
	r.Add(newSubscription("users", kinds, []string{"a"}, nopHandler(), nil))
	r.Add(newSubscription("users", kinds, []string{"b", "a"}, nopHandler(), nil))

	// key order is irrelevant, the sets match
	removed := r.Remove("users", []wal.OperationKind{wal.KindReplace, wal.KindInsert}, []string{"b", "a"})
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, r.Len())

	// narrower shape is not the registered shape
	removed = r.Remove("users", []wal.OperationKind{wal.KindInsert}, []string{"a"})
	assert.Equal(t, 0, removed)

	removed = r.Remove("users", kinds, []string{"a"})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRemoveByID(t *testing.T) {
	r := NewRegistry()
	sub := newSubscription("users", []wal.OperationKind{wal.KindRemove}, nil, nopHandler(), nil)
	r.Add(sub)

	assert.True(t, r.RemoveByID(sub.ID()))
	assert.False(t, r.RemoveByID(sub.ID()))
	assert.Equal(t, 0, r.Len())
}
