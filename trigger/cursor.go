package trigger

import (
	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

// Cursor tracks the last log position whose operations have all been
// dispatched. It only ever moves forward; a non-monotonic advance is a
// protocol bug upstream and is fatal for the trigger.
type Cursor struct {
	pos          wal.Position
	bootstrapped bool
}

func NewCursor() *Cursor {
	return &Cursor{}
}

// Bootstrap picks the starting position once, before the first poll. A zero
// prior starts at the server's current head so history before the client
// existed is never replayed; a non-zero prior resumes from it verbatim.
func (c *Cursor) Bootstrap(prior, head wal.Position) {
	if prior.Check() {
		c.pos = prior
	} else {
		c.pos = head
	}
	c.bootstrapped = true
}

func (c *Cursor) Bootstrapped() bool {
	return c.bootstrapped
}

func (c *Cursor) Current() wal.Position {
	return c.pos
}

func (c *Cursor) Advance(p wal.Position) error {
	if p <= c.pos {
		return errors.NewTriggerError(errors.ErrCodeOutOfOrder,
			errors.Errorf("cursor advance to tick %s is not past %s", p, c.pos))
	}
	c.pos = p
	return nil
}

// Reset re-bootstraps from the current head after the server pruned the held
// position out of its log window. Everything between the old position and
// head is unrecoverably lost; the caller must surface that.
func (c *Cursor) Reset(head wal.Position) wal.Position {
	old := c.pos
	c.pos = head
	return old
}
