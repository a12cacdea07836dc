package events

import (
	"log/slog"
	"testing"

	"github.com/ansleehk/Cloudflare-KV-Driver/pkg/cfapi"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testResult(outcome cfapi.Outcome) *cfapi.Result {
	return &cfapi.Result{Outcome: outcome, HTTP: cfapi.HTTPMeta{Status: 200}}
}

func TestNotifyRoutesByOutcome(t *testing.T) {
	tests := []struct {
		name     string
		result   *cfapi.Result
		expected Kind
	}{
		{"success outcome", testResult(cfapi.OutcomeSuccess), KindSuccess},
		{"failure outcome", testResult(cfapi.OutcomeFailure), KindErr},
		{"uncertain outcome", testResult(cfapi.OutcomeUncertain), KindUnknown},
		{"nil result routes to err", nil, KindErr},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bus := NewBus(WithLogger(quietLogger()))
			got := map[Kind]int{}
			for _, kind := range []Kind{KindSuccess, KindErr, KindUnknown} {
				kind := kind
				bus.Subscribe(kind, func(Event) { got[kind]++ })
			}

			bus.Notify(cfapi.Command{Name: "write key-value pair"}, tc.result, nil)

			for kind, count := range got {
				want := 0
				if kind == tc.expected {
					want = 1
				}
				if count != want {
					t.Fatalf("kind %s fired %d times, want %d", kind, count, want)
				}
			}
		})
	}
}

func TestNotifyFanOutOrderSurvivesPanic(t *testing.T) {
	bus := NewBus(WithLogger(quietLogger()))

	var order []int
	bus.Subscribe(KindSuccess, func(Event) { order = append(order, 1) })
	bus.Subscribe(KindSuccess, func(Event) {
		order = append(order, 2)
		panic("listener blew up")
	})
	bus.Subscribe(KindSuccess, func(Event) { order = append(order, 3) })

	bus.Notify(cfapi.Command{Name: "create namespace"}, testResult(cfapi.OutcomeSuccess), nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("listeners fired %v, want [1 2 3] despite the panic", order)
	}
}

func TestListenersShareOnePayload(t *testing.T) {
	bus := NewBus(WithLogger(quietLogger()))
	res := testResult(cfapi.OutcomeSuccess)

	var events []Event
	bus.Subscribe(KindSuccess, func(ev Event) { events = append(events, ev) })
	bus.Subscribe(KindSuccess, func(ev Event) { events = append(events, ev) })

	bus.Notify(cfapi.Command{Name: "read key-value pair"}, res, nil)

	if len(events) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(events))
	}
	if events[0].Result != res || events[1].Result != res {
		t.Fatal("all listeners must receive the identical result by reference")
	}
	if events[0].ID != events[1].ID {
		t.Fatal("one dispatch must carry one event ID")
	}
	if events[0].ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("event ID must be populated")
	}
	if events[0].Timestamp.IsZero() {
		t.Fatal("event timestamp must be populated")
	}
}

func TestNoReplayForLateSubscribers(t *testing.T) {
	bus := NewBus(WithLogger(quietLogger()))
	bus.Notify(cfapi.Command{Name: "delete key-value pair"}, testResult(cfapi.OutcomeSuccess), nil)

	fired := false
	bus.Subscribe(KindSuccess, func(Event) { fired = true })
	if fired {
		t.Fatal("a listener registered after an event must never see it")
	}
}

// tally implements Listener counting calls per kind.
type tally struct {
	success, err, unknown int
}

func (l *tally) OnSuccess(Event) { l.success++ }
func (l *tally) OnErr(Event)     { l.err++ }
func (l *tally) OnUnknown(Event) { l.unknown++ }

func TestSubscribeAll(t *testing.T) {
	bus := NewBus(WithLogger(quietLogger()))
	l := &tally{}
	bus.SubscribeAll(l)

	bus.Notify(cfapi.Command{}, testResult(cfapi.OutcomeSuccess), nil)
	bus.Notify(cfapi.Command{}, testResult(cfapi.OutcomeFailure), nil)
	bus.Notify(cfapi.Command{}, testResult(cfapi.OutcomeUncertain), nil)
	bus.Notify(cfapi.Command{}, nil, &cfapi.ErrorDetail{Message: "connection reset"})

	if l.success != 1 || l.err != 2 || l.unknown != 1 {
		t.Fatalf("tally = %+v, want success=1 err=2 unknown=1", l)
	}
}
