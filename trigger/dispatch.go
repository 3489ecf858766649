package trigger

import (
	"fmt"
	"sync"

	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

type DispatchMode int

const (
	// DispatchSequential runs matched handlers one after another in
	// registration order.
	DispatchSequential DispatchMode = iota
	// DispatchConcurrent starts all matched handlers of one operation
	// together and joins them before the cursor advances. Operations are
	// still strictly sequential relative to each other.
	DispatchConcurrent
)

// HandlerError reports one failed handler invocation. It is non-fatal: the
// remaining handlers for the operation and all later operations proceed.
type HandlerError struct {
	Collection string
	Key        string
	Tick       wal.Position
	Cause      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed for %s/%s at tick %s: %v", e.Collection, e.Key, e.Tick, e.Cause)
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

type Dispatcher struct {
	registry *Registry
	mode     DispatchMode
}

func NewDispatcher(registry *Registry, mode DispatchMode) *Dispatcher {
	return &Dispatcher{registry: registry, mode: mode}
}

// Dispatch invokes every matching handler for op and returns the per-handler
// failures. It does not return until all handlers have finished, so the
// caller may advance the cursor as soon as it returns.
func (d *Dispatcher) Dispatch(op *wal.DocumentOperation) []*HandlerError {
	subs := d.registry.Match(op)
	if len(subs) == 0 {
		return nil
	}
	if d.mode == DispatchConcurrent && len(subs) > 1 {
		return d.dispatchConcurrent(subs, op)
	}
	var herrs []*HandlerError
	for _, sub := range subs {
		if herr := invoke(sub, op); herr != nil {
			herrs = append(herrs, herr)
		}
	}
	return herrs
}

func (d *Dispatcher) dispatchConcurrent(subs []*Subscription, op *wal.DocumentOperation) []*HandlerError {
	results := make([]*HandlerError, len(subs))
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(slot int, sub *Subscription) {
			defer wg.Done()
			results[slot] = invoke(sub, op)
		}(i, sub)
	}
	wg.Wait()

	var herrs []*HandlerError
	for _, herr := range results {
		if herr != nil {
			herrs = append(herrs, herr)
		}
	}
	return herrs
}

// invoke runs one handler, converting panics into handler errors so a
// misbehaving handler can never take down the poll loop.
func invoke(sub *Subscription, op *wal.DocumentOperation) (herr *HandlerError) {
	defer func() {
		if p := recover(); p != nil {
			herr = &HandlerError{
				Collection: op.Collection,
				Key:        op.Key,
				Tick:       op.Tick,
				Cause:      errors.NewTriggerError(errors.ErrCodePanic, errors.Errorf("handler panic: %v", p)),
			}
		}
	}()
	if err := sub.handler.Invoke(sub.context, op); err != nil {
		return &HandlerError{
			Collection: op.Collection,
			Key:        op.Key,
			Tick:       op.Tick,
			Cause:      err,
		}
	}
	return nil
}
