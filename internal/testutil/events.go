package testutil

import (
	"context"
	"sync"

	"github.com/dalemusser/tripledger/internal/app/notify"
)

// EventRecorder is a publisher that keeps every event it is given.
type EventRecorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *EventRecorder) Publish(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *EventRecorder) Kinds() []notify.Kind {
	evs := r.Events()
	out := make([]notify.Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}
