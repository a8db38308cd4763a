// Package registry holds the in-memory mapping from rooms to their
// current members. It is deliberately lock-free: the relay's event loop
// is the sole owner and every operation runs on that goroutine.
package registry

import (
	"sort"

	"github.com/samber/lo"
)

// Participant is one member of a room as seen by every broadcast.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RoomInfo is the operator-facing summary of one active room.
type RoomInfo struct {
	ID          string `json:"id"`
	MemberCount int    `json:"memberCount"`
}

type room struct {
	members map[string]*Participant
	order   []string // participant ids in join order
}

// Registry maps room ids to live member sets. A room exists exactly as
// long as it has at least one member; empty entries are never retained.
type Registry struct {
	rooms map[string]*room
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

// Ensure creates the room if absent and returns its members. Callers
// must populate a freshly created room within the same action; only the
// relay loop calls this, so no empty room is ever observable between
// actions.
func (r *Registry) Ensure(roomID string) []Participant {
	r.ensure(roomID)
	return r.Members(roomID)
}

func (r *Registry) ensure(roomID string) *room {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{members: make(map[string]*Participant)}
		r.rooms[roomID] = rm
	}
	return rm
}

// UpsertMember inserts or renames a participant, creating the room when
// needed. Re-upserting an existing id keeps its position in join order.
func (r *Registry) UpsertMember(roomID, participantID, name string) {
	rm := r.ensure(roomID)
	if p, ok := rm.members[participantID]; ok {
		p.Name = name
		return
	}
	rm.members[participantID] = &Participant{ID: participantID, Name: name}
	rm.order = append(rm.order, participantID)
}

// RemoveMember drops a participant. Removing the last member removes the
// room entry itself. Unknown rooms and unknown participants are no-ops.
func (r *Registry) RemoveMember(roomID, participantID string) {
	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := rm.members[participantID]; !ok {
		return
	}
	delete(rm.members, participantID)
	rm.order = lo.Without(rm.order, participantID)
	if len(rm.members) == 0 {
		delete(r.rooms, roomID)
	}
}

// Members returns a join-ordered snapshot of a room's participants.
// Unknown rooms yield an empty slice.
func (r *Registry) Members(roomID string) []Participant {
	rm, ok := r.rooms[roomID]
	if !ok {
		return []Participant{}
	}
	return lo.Map(rm.order, func(id string, _ int) Participant {
		return *rm.members[id]
	})
}

// Has reports whether the room currently exists.
func (r *Registry) Has(roomID string) bool {
	_, ok := r.rooms[roomID]
	return ok
}

// Rooms returns a snapshot of every active room, sorted by id so the
// listing is stable for operators and tests.
func (r *Registry) Rooms() []RoomInfo {
	infos := lo.MapToSlice(r.rooms, func(id string, rm *room) RoomInfo {
		return RoomInfo{ID: id, MemberCount: len(rm.members)}
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
