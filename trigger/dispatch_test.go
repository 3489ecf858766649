package trigger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

func TestDispatchSequentialOrder(t *testing.T) {
	r := NewRegistry()
	var calls []string
	for _, name := range []string{"a", "b", "c"} {
		r.Add(newSubscription("", []wal.OperationKind{wal.KindReplace}, nil,
			HandlerFunc(func(*HandlerContext, *wal.DocumentOperation) error {
				calls = append(calls, name)
				return nil
			}), nil))
	}

	d := NewDispatcher(r, DispatchSequential)
	errs := d.Dispatch(docOp("users", "1", wal.KindReplace, 5))
	assert.Empty(t, errs)
	assert.Equal(t, []string{"a", "b", "c"}, calls)
}

func TestDispatchFaultIsolation(t *testing.T) {
	r := NewRegistry()
	invoked := false
	r.Add(newSubscription("", []wal.OperationKind{wal.KindReplace}, nil,
		HandlerFunc(func(*HandlerContext, *wal.DocumentOperation) error {
			return errors.New("boom")
		}), nil))
	r.Add(newSubscription("", []wal.OperationKind{wal.KindReplace}, nil,
		HandlerFunc(func(*HandlerContext, *wal.DocumentOperation) error {
			invoked = true
			return nil
		}), nil))

	d := NewDispatcher(r, DispatchSequential)
	errs := d.Dispatch(docOp("users", "1", wal.KindReplace, 5))
	require.Len(t, errs, 1)
	assert.True(t, invoked, "a failing handler must not starve later handlers")
	assert.Equal(t, "users", errs[0].Collection)
	assert.Equal(t, wal.Position(5), errs[0].Tick)
}

func TestDispatchConcurrentJoinsAll(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	seen := 0
	for i := 0; i < 8; i++ {
		r.Add(newSubscription("", []wal.OperationKind{wal.KindReplace}, nil,
			HandlerFunc(func(*HandlerContext, *wal.DocumentOperation) error {
				mu.Lock()
				seen++
				mu.Unlock()
				return nil
			}), nil))
	}

	d := NewDispatcher(r, DispatchConcurrent)
	errs := d.Dispatch(docOp("users", "1", wal.KindReplace, 5))
	assert.Empty(t, errs)
	assert.Equal(t, 8, seen, "Dispatch must return only after every handler finished")
}

func TestDispatchRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Add(newSubscription("", []wal.OperationKind{wal.KindReplace}, nil,
		HandlerFunc(func(*HandlerContext, *wal.DocumentOperation) error {
			panic("handler bug")
		}), nil))

	d := NewDispatcher(r, DispatchSequential)
	errs := d.Dispatch(docOp("users", "1", wal.KindReplace, 5))
	require.Len(t, errs, 1)
	assert.True(t, errors.HasCode(errs[0].Cause, errors.ErrCodePanic))
}

func TestHandlerContextValue(t *testing.T) {
	hctx := NewHandlerContext(42)
	v, ok := ContextValue[int](hctx)
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = ContextValue[string](hctx)
	assert.False(t, ok)

	var nilCtx *HandlerContext
	assert.Nil(t, nilCtx.Value())
}
