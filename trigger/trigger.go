package trigger

import (
	"context"
	"sync/atomic"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/ForetagInc/arangodb-events-go/data_source/arangodb"
	"github.com/ForetagInc/arangodb-events-go/errors"
	"github.com/ForetagInc/arangodb-events-go/event"
	"github.com/ForetagInc/arangodb-events-go/log"
	"github.com/ForetagInc/arangodb-events-go/telemetry"
	"github.com/ForetagInc/arangodb-events-go/wal"
)

type Phase int32

const (
	PhaseUninitialized Phase = iota
	PhaseRunning
	PhaseStopped
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// LogClient is the transport the trigger polls. data_source/arangodb
// provides the HTTP implementation; tests substitute fakes.
type LogClient interface {
	LoggerState(ctx context.Context) (*wal.LoggerState, error)
	LoggerFollow(ctx context.Context, from wal.Position) (*wal.FollowBatch, error)
}

type Authentication struct {
	Username string
	Password string
}

type Config struct {
	Connection arangodb.Config `mapstructure:"connection" json:"connection" toml:"connection" yaml:"connection"`

	// Dispatch selects the handler invocation discipline for one operation.
	Dispatch DispatchMode `mapstructure:"-" json:"-" toml:"-" yaml:"-"`

	// StrictEventGrouping stops the insert-or-replace group from also
	// matching updates. Off by default, which is the legacy grouping.
	StrictEventGrouping bool `mapstructure:"strict-event-grouping" json:"strict-event-grouping" toml:"strict-event-grouping" yaml:"strict-event-grouping"`

	// StartPosition resumes from a previously recorded tick. Zero means
	// bootstrap from the server's current log head.
	StartPosition wal.Position `mapstructure:"start-tick" json:"start-tick" toml:"start-tick" yaml:"start-tick"`

	IdleDelay     time.Duration `mapstructure:"idle-delay" json:"idle-delay" toml:"idle-delay" yaml:"idle-delay"`
	RetryDelay    time.Duration `mapstructure:"retry-delay" json:"retry-delay" toml:"retry-delay" yaml:"retry-delay"`
	MaxRetryDelay time.Duration `mapstructure:"max-retry-delay" json:"max-retry-delay" toml:"max-retry-delay" yaml:"max-retry-delay"`
}

const (
	defaultIdleDelay     = 2 * time.Second
	defaultRetryDelay    = 500 * time.Millisecond
	defaultMaxRetryDelay = 30 * time.Second
)

func (c *Config) setDefault() {
	if c.IdleDelay <= 0 {
		c.IdleDelay = defaultIdleDelay
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = defaultMaxRetryDelay
	}
}

// Trigger owns one replication-log tail: the poll loop, the cursor and the
// subscription registry. Construct a fresh instance after a fatal failure,
// passing the last known position to avoid replay.
type Trigger struct {
	cfg        Config
	client     LogClient
	registry   *Registry
	dispatcher *Dispatcher
	cursor     *Cursor

	phase      atomic.Int32
	stopping   atomic.Bool
	lastPos    atomic.Uint64
	retryDelay time.Duration
}

func New(endpoint, database string) (*Trigger, error) {
	return NewAuth(endpoint, database, Authentication{})
}

func NewAuth(endpoint, database string, auth Authentication) (*Trigger, error) {
	return NewWithConfig(Config{
		Connection: arangodb.Config{
			Endpoint: endpoint,
			Database: database,
			Username: auth.Username,
			Password: auth.Password,
		},
	})
}

func NewWithConfig(cfg Config) (*Trigger, error) {
	client, err := cfg.Connection.Connect()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewWithClient(cfg, client), nil
}

// NewWithClient builds a trigger on a caller-supplied transport.
func NewWithClient(cfg Config, client LogClient) *Trigger {
	cfg.setDefault()
	t := &Trigger{
		cfg:        cfg,
		client:     client,
		registry:   NewRegistry(),
		cursor:     NewCursor(),
		retryDelay: cfg.RetryDelay,
	}
	t.dispatcher = NewDispatcher(t.registry, cfg.Dispatch)
	return t
}

func (t *Trigger) legacyGrouping() bool {
	return !t.cfg.StrictEventGrouping
}

// Subscribe registers a global subscription. An optional key list restricts
// matching to those document keys.
func (t *Trigger) Subscribe(ev Event, h Handler, hctx *HandlerContext, keys ...string) uuid.UUID {
	return t.addSubscription("", ev, h, hctx, keys)
}

// SubscribeTo registers a subscription scoped to one collection.
func (t *Trigger) SubscribeTo(ev Event, collection string, h Handler, hctx *HandlerContext, keys ...string) uuid.UUID {
	return t.addSubscription(collection, ev, h, hctx, keys)
}

func (t *Trigger) addSubscription(collection string, ev Event, h Handler, hctx *HandlerContext, keys []string) uuid.UUID {
	sub := newSubscription(collection, ev.Kinds(t.legacyGrouping()), keys, h, hctx)
	t.registry.Add(sub)
	return sub.ID()
}

// Unsubscribe removes global subscriptions whose registered shape (event
// expansion plus key list) matches exactly, and returns how many.
func (t *Trigger) Unsubscribe(ev Event, keys ...string) int {
	return t.registry.Remove("", ev.Kinds(t.legacyGrouping()), keys)
}

func (t *Trigger) UnsubscribeFrom(ev Event, collection string, keys ...string) int {
	return t.registry.Remove(collection, ev.Kinds(t.legacyGrouping()), keys)
}

func (t *Trigger) UnsubscribeID(id uuid.UUID) bool {
	return t.registry.RemoveByID(id)
}

func (t *Trigger) Phase() Phase {
	return Phase(t.phase.Load())
}

// CurrentPosition is the last tick whose operations have all been
// dispatched. Callers persist it to resume after a restart.
func (t *Trigger) CurrentPosition() wal.Position {
	return wal.Position(t.lastPos.Load())
}

// Init validates connectivity, bootstraps the cursor and moves the trigger
// to running. Must complete once before Listen or Start.
func (t *Trigger) Init(ctx context.Context) error {
	if Phase(t.phase.Load()) != PhaseUninitialized {
		return errors.Errorf("trigger already initialized, phase %s", t.Phase())
	}
	state, err := t.client.LoggerState(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	head, err := state.HeadPosition()
	if err != nil {
		return errors.NewTriggerError(errors.ErrCodeTransport,
			errors.Annotate(err, "bad logger-state head tick"))
	}
	t.cursor.Bootstrap(t.cfg.StartPosition, head)
	t.lastPos.Store(uint64(t.cursor.Current()))
	t.phase.Store(int32(PhaseRunning))
	log.Infof("trigger initialized on database %q from tick %s (head %s, logger running=%v)",
		t.cfg.Connection.Database, t.cursor.Current(), head, state.Running)
	return nil
}

// Listen runs one poll cycle: fetch the records past the current position,
// decode and dispatch each, then advance the cursor. Transport failures
// back off and come back as retryable errors with the cursor untouched.
func (t *Trigger) Listen(ctx context.Context) error {
	switch Phase(t.phase.Load()) {
	case PhaseUninitialized:
		return errors.Trace(errors.ErrNotInitialized)
	case PhaseStopped:
		return errors.New("trigger is stopped")
	case PhaseFailed:
		return errors.New("trigger has failed, construct a new instance")
	}
	if t.stopping.Load() {
		t.phase.Store(int32(PhaseStopped))
		return nil
	}

	from := t.cursor.Current()
	batch, err := t.client.LoggerFollow(ctx, from)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeUnauthorized) {
			t.phase.Store(int32(PhaseFailed))
			return errors.Trace(err)
		}
		telemetry.TransportRetries.Inc()
		event.EventAdmin.Upload(event.ErrorEvent(event.TransportRetry, err))
		log.Warnf("logger-follow from tick %s failed: %v", from, err)
		if serr := sleepContext(ctx, t.nextRetryDelay()); serr != nil {
			return serr
		}
		return errors.Trace(err)
	}
	t.retryDelay = t.cfg.RetryDelay

	if !batch.FromPresent && from.Check() {
		return t.recoverGap(ctx, from)
	}

	if batch.LastIncluded.IsZero() {
		telemetry.PollCycles.Inc()
		if serr := sleepContext(ctx, t.cfg.IdleDelay); serr != nil {
			return serr
		}
		t.finishCycle()
		return nil
	}

	prev := from
	for _, rec := range batch.Records {
		op, ok, derr := wal.DecodeRecord(rec)
		if derr != nil {
			telemetry.DecodeFailures.Inc()
			event.EventAdmin.Upload(event.ErrorEvent(event.DecodeFailure, derr))
			log.Errorf("skipping record: %v", derr)
			continue
		}
		if !ok {
			telemetry.RecordsIgnored.Inc()
			continue
		}
		if op.Tick <= prev {
			t.phase.Store(int32(PhaseFailed))
			return errors.NewTriggerError(errors.ErrCodeOutOfOrder,
				errors.Errorf("record tick %s is not past %s, transport delivered out of order", op.Tick, prev))
		}
		prev = op.Tick
		telemetry.OperationsDispatched.Inc()
		for _, herr := range t.dispatcher.Dispatch(op) {
			telemetry.HandlerFailures.Inc()
			event.EventAdmin.Upload(handlerFailureEvent(herr))
			log.Errorf("%v", herr)
		}
	}

	if err = t.cursor.Advance(batch.LastIncluded); err != nil {
		t.phase.Store(int32(PhaseFailed))
		return errors.Trace(err)
	}
	t.lastPos.Store(uint64(t.cursor.Current()))
	telemetry.LastLogTick.Set(float64(t.cursor.Current()))
	telemetry.PollCycles.Inc()
	t.finishCycle()
	return nil
}

// recoverGap re-bootstraps after the server pruned the held position out of
// its log window. The skipped range is lost data and is surfaced through
// the event bus and the returned position-expired error; the trigger itself
// stays running.
func (t *Trigger) recoverGap(ctx context.Context, from wal.Position) error {
	state, err := t.client.LoggerState(ctx)
	if err != nil {
		telemetry.TransportRetries.Inc()
		if serr := sleepContext(ctx, t.nextRetryDelay()); serr != nil {
			return serr
		}
		return errors.Trace(err)
	}
	head, err := state.HeadPosition()
	if err != nil {
		return errors.NewTriggerError(errors.ErrCodeTransport,
			errors.Annotate(err, "bad logger-state head tick"))
	}
	old := t.cursor.Reset(head)
	t.lastPos.Store(uint64(head))
	telemetry.PositionGaps.Inc()
	event.EventAdmin.Upload(event.GapEvent(old.String(), head.String()))
	log.Warnf("log pruned past tick %s, resuming from head %s; operations in between are lost", old, head)
	return errors.NewTriggerError(errors.ErrCodePositionExpired,
		errors.Errorf("log position %s expired, re-bootstrapped at %s", from, head))
}

func (t *Trigger) finishCycle() {
	if t.stopping.Load() {
		t.phase.Store(int32(PhaseStopped))
	}
}

// Start polls until Stop or context cancellation. Retryable transport
// failures and recovered position gaps keep the loop going; everything else
// ends it with the trigger phase telling why.
func (t *Trigger) Start(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			perr := errors.NewTriggerError(errors.ErrCodePanic, errors.Errorf("trigger loop panic: %v", p))
			event.EventAdmin.Upload(event.ErrorEvent(event.PanicExit, perr))
			t.phase.Store(int32(PhaseFailed))
			err = perr
		}
	}()

	for {
		select {
		case <-ctx.Done():
			t.phase.Store(int32(PhaseStopped))
			return ctx.Err()
		default:
		}
		if Phase(t.phase.Load()) == PhaseStopped {
			return nil
		}
		err = t.Listen(ctx)
		switch {
		case err == nil:
		case errors.IsRetryable(err):
		case errors.HasCode(err, errors.ErrCodePositionExpired):
		default:
			if ctx.Err() != nil {
				t.phase.Store(int32(PhaseStopped))
				return ctx.Err()
			}
			return errors.Trace(err)
		}
	}
}

// Stop is observed at the next suspension point: the in-flight cycle
// finishes, no further fetch is issued.
func (t *Trigger) Stop() {
	t.stopping.Store(true)
}

func (t *Trigger) nextRetryDelay() time.Duration {
	d := t.retryDelay
	t.retryDelay *= 2
	if t.retryDelay > t.cfg.MaxRetryDelay {
		t.retryDelay = t.cfg.MaxRetryDelay
	}
	return d
}

func handlerFailureEvent(herr *HandlerError) event.Event {
	return event.Event{
		Type: event.HandlerFailure,
		Key:  herr.Collection,
		Value: map[string]any{
			event.Error:      herr.Cause.Error(),
			event.Collection: herr.Collection,
			event.DocKey:     herr.Key,
			event.Tick:       herr.Tick.String(),
		},
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
