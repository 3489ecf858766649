package trigger

import (
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/ForetagInc/arangodb-events-go/wal"
)

// Subscription is an immutable interest registration. An empty collection
// means global scope; empty kind/key sets match everything.
type Subscription struct {
	id         uuid.UUID
	collection string
	kinds      map[wal.OperationKind]struct{}
	keys       map[string]struct{}
	handler    Handler
	context    *HandlerContext
}

func newSubscription(collection string, kinds []wal.OperationKind, keys []string, h Handler, ctx *HandlerContext) *Subscription {
	s := &Subscription{
		id:         uuid.NewV4(),
		collection: collection,
		handler:    h,
		context:    ctx,
	}
	if len(kinds) > 0 {
		s.kinds = make(map[wal.OperationKind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	if len(keys) > 0 {
		s.keys = make(map[string]struct{}, len(keys))
		for _, k := range keys {
			s.keys[k] = struct{}{}
		}
	}
	return s
}

func (s *Subscription) ID() uuid.UUID {
	return s.id
}

func (s *Subscription) Collection() string {
	return s.collection
}

func (s *Subscription) matches(op *wal.DocumentOperation) bool {
	if s.collection != "" && s.collection != op.Collection {
		return false
	}
	if s.kinds != nil {
		if _, ok := s.kinds[op.Kind]; !ok {
			return false
		}
	}
	if s.keys != nil {
		if _, ok := s.keys[op.Key]; !ok {
			return false
		}
	}
	return true
}

// sameShape reports registration-shape equality: scope, expanded kind set
// and key set. The bound handler is deliberately not part of the shape.
func (s *Subscription) sameShape(collection string, kinds map[wal.OperationKind]struct{}, keys map[string]struct{}) bool {
	if s.collection != collection {
		return false
	}
	if len(s.kinds) != len(kinds) {
		return false
	}
	for k := range kinds {
		if _, ok := s.kinds[k]; !ok {
			return false
		}
	}
	if len(s.keys) != len(keys) {
		return false
	}
	for k := range keys {
		if _, ok := s.keys[k]; !ok {
			return false
		}
	}
	return true
}

// Registry holds the active subscriptions. Matching is a linear scan in
// registration order; mutation is safe against the poll loop's readers and
// takes effect no later than the next cycle's matching pass.
type Registry struct {
	mu   sync.RWMutex
	subs []*Subscription
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
}

// Remove drops every subscription whose registered shape matches exactly
// and returns how many were dropped.
func (r *Registry) Remove(collection string, kinds []wal.OperationKind, keys []string) int {
	shape := newSubscription(collection, kinds, keys, nil, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.subs[:0]
	removed := 0
	for _, sub := range r.subs {
		if sub.sameShape(shape.collection, shape.kinds, shape.keys) {
			removed++
			continue
		}
		kept = append(kept, sub)
	}
	r.subs = kept
	return removed
}

func (r *Registry) RemoveByID(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, sub := range r.subs {
		if uuid.Equal(sub.id, id) {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Match returns the subscriptions matching op, in registration order.
func (r *Registry) Match(op *wal.DocumentOperation) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Subscription
	for _, sub := range r.subs {
		if sub.matches(op) {
			out = append(out, sub)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
