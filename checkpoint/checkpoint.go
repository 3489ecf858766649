package checkpoint

import (
	"context"
	"sync"

	"github.com/ForetagInc/arangodb-events-go/wal"
)

// Store persists the last fully dispatched log tick so a restarted trigger
// resumes where the previous run left off. A zero loaded position means no
// checkpoint exists yet and the trigger bootstraps from the log head.
type Store interface {
	Load(ctx context.Context) (wal.Position, error)
	Save(ctx context.Context, pos wal.Position) error
}

// MemoryStore keeps the checkpoint in process memory. Useful for tests and
// for callers that only need at-least-once delivery within one run.
type MemoryStore struct {
	mu  sync.Mutex
	pos wal.Position
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (wal.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}

func (s *MemoryStore) Save(_ context.Context, pos wal.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
	return nil
}
