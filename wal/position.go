package wal

import (
	"strconv"

	"github.com/ForetagInc/arangodb-events-go/errors"
)

// Position is one tick in the server's replication log. Ticks travel as
// decimal uint64 strings on the wire and are totally ordered.
type Position uint64

func ParsePosition(s string) (Position, error) {
	if s == "" {
		return 0, errors.New("empty log tick")
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Annotatef(err, "invalid log tick %q", s)
	}
	return Position(v), nil
}

func (p Position) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

func (p Position) IsZero() bool {
	return p == 0
}

// Check reports whether the position denotes a real log point. Tick zero is
// the "start from the current head" marker, not a valid resume point.
func (p Position) Check() bool {
	return p != 0
}
