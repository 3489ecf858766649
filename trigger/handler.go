package trigger

import (
	"github.com/ForetagInc/arangodb-events-go/wal"
)

// HandlerContext carries the caller-supplied value bound to a subscription.
// The dispatch engine passes it back unchanged on every invocation; it never
// inspects the value.
type HandlerContext struct {
	value any
}

func NewHandlerContext(value any) *HandlerContext {
	return &HandlerContext{value: value}
}

func (c *HandlerContext) Value() any {
	if c == nil {
		return nil
	}
	return c.value
}

// ContextValue recovers the typed value bound at subscription time.
func ContextValue[T any](c *HandlerContext) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	v, ok := c.value.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

type Handler interface {
	Invoke(ctx *HandlerContext, op *wal.DocumentOperation) error
}

type HandlerFunc func(ctx *HandlerContext, op *wal.DocumentOperation) error

func (f HandlerFunc) Invoke(ctx *HandlerContext, op *wal.DocumentOperation) error {
	return f(ctx, op)
}
