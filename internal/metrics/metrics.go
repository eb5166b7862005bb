package metrics

import "sync"

// Event names counted by the signaling server.
const (
	EventConnectionOpened = "connection_opened"
	EventConnectionClosed = "connection_closed"
	EventJoin             = "join"
	EventRoomSwitch       = "room_switch"
	EventRoomFull         = "room_full"
	EventPairing          = "pairing"
	EventRelayed          = "relayed"
	EventRelayNoRoom      = "relay_no_room"
	EventLeave            = "leave"
	EventStalePruned      = "stale_pruned"
	EventRoomCreated      = "room_created"
	EventRoomReaped       = "room_reaped"
	EventMalformed        = "malformed_message"
	EventUnknownType      = "unknown_message_type"
	EventSendFailed       = "send_failed"
)

// Metrics is a concurrency-safe counter registry. A nil *Metrics is valid and
// discards every increment.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.m == nil {
		m.m = make(map[string]uint64)
	}
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return map[string]uint64{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
