package eventsfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-token-exchange/events"
)

var _ events.Sink = (*Recorder)(nil)

// Recorder keeps every event it receives, for assertions in tests.
type Recorder struct {
	lock   sync.Mutex
	events []events.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(_ context.Context, e events.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e.Clone())
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []events.Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event and false when none was recorded.
func (r *Recorder) Last() (events.Event, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if len(r.events) == 0 {
		return events.Event{}, false
	}
	return r.events[len(r.events)-1], true
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = nil
}
