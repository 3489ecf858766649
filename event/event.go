package event

type Type int

// Non-fatal runtime reports uploaded by the trigger loop. Observers are the
// caller-facing channel for failures that keep the loop running.
const (
	PanicExit      Type = 1000
	DecodeFailure  Type = 2000
	HandlerFailure Type = 3000
	PositionGap    Type = 4000
	TransportRetry Type = 5000
)

type Event struct {
	Type  Type
	Key   string
	Value map[string]any
}

type ObserverFunc func(e Event)

type Subject interface {
	Register(et Type, observer ObserverFunc)
	Upload(event Event)
}
