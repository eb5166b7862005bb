package signaling

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/infinitybuddha29/caller/internal/metrics"
)

// DefaultGracePeriod is how long an empty room survives waiting for a rejoin.
const DefaultGracePeriod = 2 * time.Minute

// Options configures a Coordinator. Zero values select defaults.
type Options struct {
	GracePeriod time.Duration
	Clock       Clock
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
}

// Coordinator pairs participants per room and relays signaling between them.
//
// Join, Relay and Leave are safe for concurrent use. They never block on
// network I/O: outbound messages are handed to Participant.Send after the
// room lock is released.
type Coordinator struct {
	registry *Registry
	grace    time.Duration
	clock    Clock
	log      *slog.Logger
	metrics  *metrics.Metrics

	// rooms maps participant ID to the room ID it joined.
	rooms sync.Map
}

// NewCoordinator creates a coordinator over registry. A nil registry gets a
// fresh one.
func NewCoordinator(registry *Registry, opts Options) *Coordinator {
	if registry == nil {
		registry = NewRegistry()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Coordinator{
		registry: registry,
		grace:    opts.GracePeriod,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
	registry.onEvict = c.evict
	return c
}

// Registry returns the registry the coordinator mutates.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// RoomOf returns the room p is associated with.
func (c *Coordinator) RoomOf(p Participant) (string, bool) {
	v, ok := c.rooms.Load(p.ID())
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Handle dispatches one inbound message from p.
func (c *Coordinator) Handle(p Participant, msg *Message) {
	switch {
	case msg.Type == TypeJoin:
		roomID := msg.RoomID()
		if roomID == "" {
			c.metrics.Inc(metrics.EventMalformed)
			c.log.Warn("join without room id dropped", "participant", p.ID())
			return
		}
		c.Join(p, roomID)

	case msg.IsSignal():
		c.Relay(p, msg)

	default:
		c.metrics.Inc(metrics.EventUnknownType)
		c.log.Debug("unknown message type dropped", "participant", p.ID(), "type", msg.Type)
	}
}

// Join adds p to roomID and pairs the room once it holds two live
// participants. Joining a different room first leaves the current one.
func (c *Coordinator) Join(p Participant, roomID string) {
	c.metrics.Inc(metrics.EventJoin)

	if prev, loaded := c.rooms.Swap(p.ID(), roomID); loaded {
		if prevID := prev.(string); prevID != roomID {
			c.metrics.Inc(metrics.EventRoomSwitch)
			c.log.Info("participant switched rooms without leaving",
				"participant", p.ID(), "from", prevID, "to", roomID)
			c.leaveRoom(prevID, p)
		}
	}

	var (
		room  *Room
		pair  []Participant
		full  bool
		added bool
	)
	for {
		var created bool
		room, created = c.registry.GetOrCreate(roomID)
		room.mu.Lock()
		if room.removed {
			// Lost a race with the reaper; the next lookup creates a fresh room.
			room.mu.Unlock()
			continue
		}
		if created {
			c.metrics.Inc(metrics.EventRoomCreated)
		}
		room.cancelReapLocked()

		if dropped := room.pruneLocked(); dropped > 0 {
			c.metrics.Add(metrics.EventStalePruned, uint64(dropped))
			c.log.Debug("pruned stale participants", "room", roomID, "count", dropped)
		}

		if !room.containsLocked(p) && len(room.members) >= maxLive {
			full = true
		} else {
			added = room.addLocked(p)
			room.pruneLocked()
			if len(room.members) == maxLive {
				pair = room.snapshotLocked()
			}
		}
		if len(room.members) == 0 {
			c.scheduleReapLocked(room)
		}
		size := len(room.members)
		room.mu.Unlock()

		c.log.Info("participant joined room",
			"participant", p.ID(), "room", roomID, "size", size, "added", added, "full", full)
		break
	}

	// A participant that died while joining may have had its Leave run
	// before the association above existed.
	defer c.dropIfDead(p, roomID)

	if full {
		c.rooms.CompareAndDelete(p.ID(), roomID)
		c.metrics.Inc(metrics.EventRoomFull)
		c.send(p, RoomFull(roomID))
		return
	}

	if pair != nil {
		c.metrics.Inc(metrics.EventPairing)
		c.log.Info("room paired", "room", roomID, "initiator", pair[0].ID(), "non_initiator", pair[1].ID())
		c.send(pair[0], Ready(true))
		c.send(pair[1], Ready(false))
	}
}

// Relay forwards msg from p to every other live participant of its room.
// Without a room association the message is dropped.
func (c *Coordinator) Relay(p Participant, msg *Message) {
	roomID, ok := c.RoomOf(p)
	if !ok {
		c.metrics.Inc(metrics.EventRelayNoRoom)
		c.log.Debug("relay without room dropped", "participant", p.ID(), "type", msg.Type)
		return
	}

	room, ok := c.registry.Get(roomID)
	if !ok {
		c.metrics.Inc(metrics.EventRelayNoRoom)
		return
	}

	room.mu.Lock()
	targets := room.othersLocked(p)
	room.mu.Unlock()

	for _, t := range targets {
		c.metrics.Inc(metrics.EventRelayed)
		c.send(t, msg)
	}
}

// Leave removes p from its room and notifies the remaining peer. It is safe
// to call on a participant without a room, and repeated calls are no-ops.
func (c *Coordinator) Leave(p Participant) {
	v, ok := c.rooms.LoadAndDelete(p.ID())
	if !ok {
		return
	}
	c.metrics.Inc(metrics.EventLeave)
	c.leaveRoom(v.(string), p)
}

func (c *Coordinator) dropIfDead(p Participant, roomID string) {
	if p.Alive() || !c.rooms.CompareAndDelete(p.ID(), roomID) {
		return
	}
	c.log.Debug("dead participant dropped after join", "participant", p.ID(), "room", roomID)
	c.leaveRoom(roomID, p)
}

// evict clears the associations of participants whose room was removed
// from the registry while they were still in it.
func (c *Coordinator) evict(roomID string, members []Participant) {
	for _, m := range members {
		c.rooms.CompareAndDelete(m.ID(), roomID)
	}
	c.log.Info("occupied room removed", "room", roomID, "evicted", len(members))
}

func (c *Coordinator) leaveRoom(roomID string, p Participant) {
	room, ok := c.registry.Get(roomID)
	if !ok {
		return
	}

	room.mu.Lock()
	if !room.removeLocked(p) {
		room.mu.Unlock()
		return
	}
	if dropped := room.pruneLocked(); dropped > 0 {
		c.metrics.Add(metrics.EventStalePruned, uint64(dropped))
	}
	remaining := room.snapshotLocked()
	if len(remaining) == 0 {
		c.scheduleReapLocked(room)
	}
	room.mu.Unlock()

	c.log.Info("participant left room", "participant", p.ID(), "room", roomID, "size", len(remaining))

	left := ParticipantLeft(p.ID())
	for _, r := range remaining {
		c.send(r, left)
	}
}

// scheduleReapLocked (re)starts the deletion timer of an empty room. The
// caller holds room.mu.
func (c *Coordinator) scheduleReapLocked(room *Room) {
	room.cancelReapLocked()
	gen := room.reapGen
	room.reapTimer = c.clock.AfterFunc(c.grace, func() {
		c.reap(room, gen)
	})
	c.log.Debug("room empty, deletion scheduled", "room", room.ID, "grace", c.grace)
}

// reap deletes room if it is still empty and gen is still its current timer.
func (c *Coordinator) reap(room *Room, gen uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.removed || room.reapGen != gen || len(room.members) > 0 {
		return
	}
	room.reapTimer = nil
	if c.registry.removeLocked(room) {
		c.metrics.Inc(metrics.EventRoomReaped)
		c.log.Info("room deleted after grace period", "room", room.ID)
	}
}

// Close cancels every pending room deletion. Rooms stay in the registry.
func (c *Coordinator) Close() {
	c.registry.stopAll()
}

func (c *Coordinator) send(to Participant, msg *Message) {
	if err := to.Send(msg); err != nil {
		c.metrics.Inc(metrics.EventSendFailed)
		c.log.Warn("send to participant failed", "participant", to.ID(), "type", msg.Type, "err", err)
	}
}
