package signaling

import (
	"sort"
	"sync"
)

// RoomInfo is a read-only summary of one room.
type RoomInfo struct {
	ID           string   `json:"id"`
	Participants []string `json:"participants"`
	Emptying     bool     `json:"emptying"`
}

// Registry maps room IDs to rooms. The map itself is guarded by one mutex;
// each room carries its own lock so rooms never contend with each other.
//
// Lock order: a room lock may be held while taking the registry lock, never
// the other way around.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	// onEvict sees the members of a room removed while still occupied.
	onEvict func(roomID string, members []Participant)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

// GetOrCreate returns the room for id, inserting an empty one if absent.
// The second result reports whether the room was created.
func (r *Registry) GetOrCreate(id string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[id]; ok {
		return room, false
	}
	room := newRoom(id)
	r.rooms[id] = room
	return room, true
}

// Get returns the room for id if present.
func (r *Registry) Get(id string) (*Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	return room, ok
}

// Remove deletes the room for id unconditionally. It is a no-op if absent.
// Members of the deleted room are handed to the eviction hook.
func (r *Registry) Remove(id string) {
	for {
		room, ok := r.Get(id)
		if !ok {
			return
		}

		room.mu.Lock()
		if !r.removeLocked(room) {
			// Replaced or already gone; look again.
			room.mu.Unlock()
			continue
		}
		room.cancelReapLocked()
		evicted := room.members
		room.members = nil
		room.mu.Unlock()

		if len(evicted) > 0 && r.onEvict != nil {
			r.onEvict(id, evicted)
		}
		return
	}
}

// removeLocked drops room from the map if it is still the current entry for
// its ID. The caller holds room.mu.
func (r *Registry) removeLocked(room *Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.rooms[room.ID]; !ok || cur != room {
		return false
	}
	delete(r.rooms, room.ID)
	room.removed = true
	return true
}

// Snapshot returns the ordered membership of id, or nil if the room is absent.
func (r *Registry) Snapshot(id string) []Participant {
	room, ok := r.Get(id)
	if !ok {
		return nil
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshotLocked()
}

// Len returns the number of rooms, including rooms waiting for deletion.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Rooms summarises every room, sorted by ID.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		info := RoomInfo{
			ID:           room.ID,
			Participants: make([]string, 0, len(room.members)),
			Emptying:     room.reapTimer != nil,
		}
		for _, m := range room.members {
			info.Participants = append(info.Participants, m.ID())
		}
		room.mu.Unlock()
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// stopAll cancels every pending deletion timer.
func (r *Registry) stopAll() {
	r.mu.Lock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	for _, room := range rooms {
		room.mu.Lock()
		room.cancelReapLocked()
		room.mu.Unlock()
	}
}
