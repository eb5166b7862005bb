package signaling

import (
	"errors"
	"time"
)

var (
	ErrClosed         = errors.New("participant connection closed")
	ErrSendBufferFull = errors.New("participant send buffer full")
)

// Participant is one transport session as seen by the coordinator. The
// transport owns it; the coordinator only holds references.
//
// Send must not block: it either queues msg for delivery or returns an error.
type Participant interface {
	ID() string
	Alive() bool
	Send(msg *Message) error
}

// Clock schedules deferred work. Tests swap in a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled call that can be cancelled.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
