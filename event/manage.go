package event

import (
	"fmt"
	"sync"
)

var EventAdmin EventManage

type EventManage struct {
	mu       sync.Mutex
	Observer map[Type][]ObserverFunc
}

func (e *EventManage) Register(et Type, observer ObserverFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Observer == nil {
		e.Observer = map[Type][]ObserverFunc{}
	}
	e.Observer[et] = append(e.Observer[et], observer)
}

func (e *EventManage) Upload(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if observer, ok := e.Observer[event.Type]; ok {
		for _, fn := range observer {
			go fn(event)
		}
	}
}

const (
	Error      = "error"
	Collection = "collection"
	DocKey     = "key"
	Tick       = "tick"
	FromTick   = "from"
	ToTick     = "to"
)

func ErrorEvent(t Type, err error) Event {
	return Event{
		Type:  t,
		Value: errorValue(err),
	}
}

// GapEvent marks a data-loss window: the log was pruned past the held
// position and tailing restarted from the current head.
func GapEvent(from, to string) Event {
	return Event{
		Type: PositionGap,
		Value: map[string]any{
			FromTick: from,
			ToTick:   to,
		},
	}
}

func errorValue(err error) map[string]any {
	return map[string]any{
		Error: err.Error(),
	}
}

func ValueError(data map[string]any) error {
	if data == nil {
		return nil
	}
	if err, ok := data[Error]; ok {
		return fmt.Errorf("%v", err)
	}
	return nil
}
