package signaling

import "sync"

// maxLive is the number of live participants a room pairs.
const maxLive = 2

// Room is a rendezvous point for at most two live participants.
type Room struct {
	// ID is the caller-chosen room identifier.
	ID string

	mu sync.Mutex

	// members is ordered by join time.
	members []Participant

	// reapTimer is non-nil while the room is empty and waiting for deletion.
	reapTimer Timer

	// reapGen invalidates timers that fire after being superseded.
	reapGen uint64

	// removed is set once the room left the registry. A removed room must
	// not be mutated again; callers fetch a fresh one instead.
	removed bool
}

func newRoom(id string) *Room {
	return &Room{ID: id}
}

func (r *Room) indexLocked(p Participant) int {
	id := p.ID()
	for i, m := range r.members {
		if m.ID() == id {
			return i
		}
	}
	return -1
}

func (r *Room) containsLocked(p Participant) bool {
	return r.indexLocked(p) >= 0
}

// addLocked appends p unless it is already a member.
func (r *Room) addLocked(p Participant) bool {
	if r.containsLocked(p) {
		return false
	}
	r.members = append(r.members, p)
	return true
}

func (r *Room) removeLocked(p Participant) bool {
	i := r.indexLocked(p)
	if i < 0 {
		return false
	}
	r.members = append(r.members[:i], r.members[i+1:]...)
	return true
}

// pruneLocked drops members whose transport is gone and returns how many
// were dropped. Afterwards every member is live.
func (r *Room) pruneLocked() int {
	kept := r.members[:0]
	for _, m := range r.members {
		if m.Alive() {
			kept = append(kept, m)
		}
	}
	dropped := len(r.members) - len(kept)
	for i := len(kept); i < len(r.members); i++ {
		r.members[i] = nil
	}
	r.members = kept
	return dropped
}

// othersLocked returns the live members other than p, in join order.
func (r *Room) othersLocked(p Participant) []Participant {
	id := p.ID()
	var out []Participant
	for _, m := range r.members {
		if m.ID() != id && m.Alive() {
			out = append(out, m)
		}
	}
	return out
}

func (r *Room) snapshotLocked() []Participant {
	out := make([]Participant, len(r.members))
	copy(out, r.members)
	return out
}

// cancelReapLocked stops a pending deletion. Bumping the generation also
// neutralises a timer that already fired and is waiting on the lock.
func (r *Room) cancelReapLocked() {
	if r.reapTimer != nil {
		r.reapTimer.Stop()
		r.reapTimer = nil
	}
	r.reapGen++
}
