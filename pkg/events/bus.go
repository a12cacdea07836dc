// Package events implements the in-process operation event bus. Every
// completed or failed KV operation produces one Event, fanned out
// synchronously to the listeners registered for its kind. Listeners are
// registered at setup time; the listener list is read-only during dispatch.
package events

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/cfapi"
)

// Kind routes events by the classified outcome of the operation.
type Kind string

const (
	// KindSuccess receives operations classified as successful.
	KindSuccess Kind = "success"
	// KindErr receives failed operations and transport failures.
	KindErr Kind = "err"
	// KindUnknown receives operations with an uncertain outcome.
	KindUnknown Kind = "unknown"
)

// Event is the payload delivered to listeners. It is shared by reference
// across all listeners of a dispatch; listeners must not mutate it.
type Event struct {
	ID        uuid.UUID
	Timestamp time.Time
	Kind      Kind
	Command   cfapi.Command
	// Result is nil when the request never produced an HTTP response.
	Result    *cfapi.Result
	ErrDetail *cfapi.ErrorDetail
}

// ListenerFunc handles events of a single kind.
type ListenerFunc func(Event)

// Listener handles all three event kinds. SubscribeAll registers one method
// per kind, which forces implementations to consider the uncertain case.
type Listener interface {
	OnSuccess(Event)
	OnErr(Event)
	OnUnknown(Event)
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger overrides the logger used to surface swallowed listener
// panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bus broadcasts operation events to registered listeners. Registration is
// expected to happen before operations begin; Notify never blocks on
// anything but the listeners themselves.
type Bus struct {
	logger    *slog.Logger
	listeners map[Kind][]ListenerFunc
}

var _ cfapi.Notifier = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		logger:    slog.Default(),
		listeners: make(map[Kind][]ListenerFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers fn for events of the given kind. Listeners fire in
// registration order. A listener registered after an event never sees it.
func (b *Bus) Subscribe(kind Kind, fn ListenerFunc) {
	if fn == nil {
		return
	}
	b.listeners[kind] = append(b.listeners[kind], fn)
}

// SubscribeAll registers l for all three kinds.
func (b *Bus) SubscribeAll(l Listener) {
	if l == nil {
		return
	}
	b.Subscribe(KindSuccess, l.OnSuccess)
	b.Subscribe(KindErr, l.OnErr)
	b.Subscribe(KindUnknown, l.OnUnknown)
}

// Notify builds one event from the operation outcome and delivers it to
// every listener of the computed kind, in order. A panicking listener is
// logged and skipped; it never prevents later listeners from running and
// never fails the operation.
func (b *Bus) Notify(cmd cfapi.Command, res *cfapi.Result, detail *cfapi.ErrorDetail) {
	kind := KindErr
	if res != nil {
		switch res.Outcome {
		case cfapi.OutcomeSuccess:
			kind = KindSuccess
		case cfapi.OutcomeUncertain:
			kind = KindUnknown
		}
	}

	ev := Event{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Kind:      kind,
		Command:   cmd,
		Result:    res,
		ErrDetail: detail,
	}
	for _, fn := range b.listeners[kind] {
		b.dispatch(fn, ev)
	}
}

func (b *Bus) dispatch(fn ListenerFunc, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("kv event listener panicked",
				"kind", string(ev.Kind),
				"command", ev.Command.Name,
				"panic", r,
			)
		}
	}()
	fn(ev)
}
