package trigger

import (
	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

// Event is the caller-facing subscription taxonomy. The grouped events are
// expanded into concrete operation kinds at registration time; the registry
// never sees a group.
type Event int

const (
	// EventInsertOrReplace matches document writes. Under the legacy
	// grouping (the default) it also matches updates.
	EventInsertOrReplace Event = iota
	EventRemove
	EventInsert
	EventUpdate
	EventReplace
)

func (e Event) String() string {
	switch e {
	case EventInsertOrReplace:
		return "insert-or-replace"
	case EventRemove:
		return "remove"
	case EventInsert:
		return "insert"
	case EventUpdate:
		return "update"
	case EventReplace:
		return "replace"
	}
	return "unknown"
}

// ParseEvent reads the config-file spelling of an event. "insert/update" is
// the historical spelling of the insert-or-replace group.
func ParseEvent(s string) (Event, error) {
	switch s {
	case "insert/update", "insert-or-replace":
		return EventInsertOrReplace, nil
	case "remove", "delete":
		return EventRemove, nil
	case "insert":
		return EventInsert, nil
	case "update":
		return EventUpdate, nil
	case "replace":
		return EventReplace, nil
	}
	return 0, errors.Errorf("unknown event %q", s)
}

// Kinds expands the event into concrete operation kinds. legacyUpdate folds
// KindUpdate into the insert-or-replace group.
func (e Event) Kinds(legacyUpdate bool) []wal.OperationKind {
	switch e {
	case EventInsertOrReplace:
		if legacyUpdate {
			return []wal.OperationKind{wal.KindInsert, wal.KindReplace, wal.KindUpdate}
		}
		return []wal.OperationKind{wal.KindInsert, wal.KindReplace}
	case EventRemove:
		return []wal.OperationKind{wal.KindRemove}
	case EventInsert:
		return []wal.OperationKind{wal.KindInsert}
	case EventUpdate:
		return []wal.OperationKind{wal.KindUpdate}
	case EventReplace:
		return []wal.OperationKind{wal.KindReplace}
	}
	return nil
}
