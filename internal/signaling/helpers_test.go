package signaling

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeParticipant records every message it is sent.
type fakeParticipant struct {
	id   string
	dead atomic.Bool

	mu   sync.Mutex
	msgs []*Message
}

func newFake(id string) *fakeParticipant {
	return &fakeParticipant{id: id}
}

func (f *fakeParticipant) ID() string  { return f.id }
func (f *fakeParticipant) Alive() bool { return !f.dead.Load() }

func (f *fakeParticipant) Send(msg *Message) error {
	if f.dead.Load() {
		return ErrClosed
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeParticipant) kill() { f.dead.Store(true) }

func (f *fakeParticipant) messages() []*Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Message, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *fakeParticipant) ofType(typ string) []*Message {
	var out []*Message
	for _, m := range f.messages() {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeParticipant) reset() {
	f.mu.Lock()
	f.msgs = nil
	f.mu.Unlock()
}

// manualClock fires timers only when Advance moves past their deadline.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// pending returns the number of timers that are neither stopped nor fired.
func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func newTestCoordinator(t *testing.T) (*Coordinator, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	c := NewCoordinator(NewRegistry(), Options{Clock: clock})
	return c, clock
}

func memberIDs(ps []Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID()
	}
	return out
}

func wantReady(t *testing.T, p *fakeParticipant, wantInitiator bool) {
	t.Helper()
	ready := p.ofType(TypeReady)
	if len(ready) != 1 {
		t.Fatalf("%s got %d ready messages, want 1", p.id, len(ready))
	}
	got, ok := ready[0].IsInitiator()
	if !ok {
		t.Fatalf("%s ready message has no isInitiator: %v", p.id, ready[0])
	}
	if got != wantInitiator {
		t.Fatalf("%s isInitiator=%v, want %v", p.id, got, wantInitiator)
	}
}
