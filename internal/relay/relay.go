// Package relay interprets participant actions against the room
// registry and fans the resulting events out to the right connections.
//
// All state mutation happens on a single goroutine draining one action
// channel, so a join's registry update and its presence broadcast always
// complete before the next action from any connection is looked at. The
// registry needs no locks for the same reason.
package relay

import (
	"context"

	"github.com/rs/zerolog/log"

	"jamroom/internal/models"
	"jamroom/internal/registry"
)

// AnonymousName stands in for every blank or missing display name.
const AnonymousName = "Anonymous"

type actionKind int

const (
	actJoin actionKind = iota
	actRename
	actNoteOn
	actNoteOff
	actDisconnect
	actCloseRoom
	actListRooms
	actListMembers
)

type action struct {
	kind     actionKind
	client   *Client
	roomID   string
	name     string
	note     string
	velocity float64

	// Reply channels for synchronous queries from HTTP handlers.
	rooms   chan []registry.RoomInfo
	members chan []registry.Participant
	ok      chan bool
}

// Relay owns the registry and a per-room index of live connections,
// kept in lockstep with registry membership.
type Relay struct {
	reg     *registry.Registry
	conns   map[string]map[*Client]struct{}
	actions chan action
}

func New(reg *registry.Registry) *Relay {
	return &Relay{
		reg:     reg,
		conns:   make(map[string]map[*Client]struct{}),
		actions: make(chan action, 256),
	}
}

// Run drains the action channel until ctx is cancelled. Exactly one
// Run per relay; everything else just enqueues.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-r.actions:
			r.dispatch(a)
		}
	}
}

func (r *Relay) dispatch(a action) {
	switch a.kind {
	case actJoin:
		r.handleJoin(a.client, a.roomID, a.name)
	case actRename:
		r.handleRename(a.client, a.name)
	case actNoteOn:
		r.handleNoteOn(a.client, a.note, a.velocity)
	case actNoteOff:
		r.handleNoteOff(a.client, a.note)
	case actDisconnect:
		r.handleDisconnect(a.client)
	case actCloseRoom:
		a.ok <- r.handleCloseRoom(a.roomID)
	case actListRooms:
		a.rooms <- r.reg.Rooms()
	case actListMembers:
		a.members <- r.reg.Members(a.roomID)
	}
}

// Join binds the client to a room and announces it. Invalid room ids
// and repeat joins are dropped inside the loop.
func (r *Relay) Join(c *Client, roomID, name string) {
	r.actions <- action{kind: actJoin, client: c, roomID: roomID, name: name}
}

// Rename updates the client's display name and re-announces the list.
func (r *Relay) Rename(c *Client, name string) {
	r.actions <- action{kind: actRename, client: c, name: name}
}

// NoteOn relays a key press to everyone else in the client's room.
func (r *Relay) NoteOn(c *Client, note string, velocity float64) {
	r.actions <- action{kind: actNoteOn, client: c, note: note, velocity: velocity}
}

// NoteOff relays a key release to everyone else in the client's room.
func (r *Relay) NoteOff(c *Client, note string) {
	r.actions <- action{kind: actNoteOff, client: c, note: note}
}

// Disconnect removes the client from its room and notifies the rest.
// The transport must call it exactly once per connection; later calls
// for the same client are absorbed by the gone flag.
func (r *Relay) Disconnect(c *Client) {
	r.actions <- action{kind: actDisconnect, client: c}
}

// CloseRoom evicts every member and removes the room. Reports whether
// the room existed.
func (r *Relay) CloseRoom(roomID string) bool {
	ok := make(chan bool, 1)
	r.actions <- action{kind: actCloseRoom, roomID: roomID, ok: ok}
	return <-ok
}

// Rooms snapshots the active rooms through the loop, preserving the
// registry's single-owner rule for HTTP readers.
func (r *Relay) Rooms() []registry.RoomInfo {
	reply := make(chan []registry.RoomInfo, 1)
	r.actions <- action{kind: actListRooms, rooms: reply}
	return <-reply
}

// Members snapshots one room's member list through the loop.
func (r *Relay) Members(roomID string) []registry.Participant {
	reply := make(chan []registry.Participant, 1)
	r.actions <- action{kind: actListMembers, roomID: roomID, members: reply}
	return <-reply
}

func validRoomID(roomID string) bool {
	// "null"/"undefined" show up when a broken client stringifies a
	// missing id into the join payload.
	return roomID != "" && roomID != "null" && roomID != "undefined"
}

func orAnonymous(name string) string {
	if name == "" {
		return AnonymousName
	}
	return name
}

func (r *Relay) handleJoin(c *Client, roomID, name string) {
	if c.gone {
		return
	}
	if !validRoomID(roomID) {
		log.Warn().Str("module", "relay").Str("participant", c.ID).Str("room", roomID).Msg("join rejected: invalid room id")
		return
	}
	if c.room != "" {
		log.Warn().Str("module", "relay").Str("participant", c.ID).Str("room", c.room).Msg("join rejected: already in a room")
		return
	}

	already := r.reg.Ensure(roomID)
	c.room = roomID
	c.name = orAnonymous(name)
	r.reg.UpsertMember(roomID, c.ID, c.name)

	peers, ok := r.conns[roomID]
	if !ok {
		peers = make(map[*Client]struct{})
		r.conns[roomID] = peers
	}
	peers[c] = struct{}{}

	c.enqueue(models.EventYourID, c.ID)
	r.broadcastUserList(roomID)

	log.Info().Str("module", "relay").Str("participant", c.ID).Str("name", c.name).
		Str("room", roomID).Int("members", len(already)+1).Msg("joined")
}

func (r *Relay) handleRename(c *Client, name string) {
	if c.gone || c.room == "" {
		log.Warn().Str("module", "relay").Str("participant", c.ID).Msg("setName before join, dropped")
		return
	}
	c.name = orAnonymous(name)
	r.reg.UpsertMember(c.room, c.ID, c.name)
	r.broadcastUserList(c.room)
	log.Info().Str("module", "relay").Str("participant", c.ID).Str("name", c.name).Msg("renamed")
}

func (r *Relay) handleNoteOn(c *Client, note string, velocity float64) {
	if c.gone || c.room == "" {
		log.Warn().Str("module", "relay").Str("participant", c.ID).Msg("noteOn before join, dropped")
		return
	}
	r.broadcastExcept(c, models.EventNoteOn, models.NoteOn{
		Note:     note,
		Velocity: velocity,
		UserID:   c.ID,
	})
}

func (r *Relay) handleNoteOff(c *Client, note string) {
	if c.gone || c.room == "" {
		log.Warn().Str("module", "relay").Str("participant", c.ID).Msg("noteOff before join, dropped")
		return
	}
	r.broadcastExcept(c, models.EventNoteOff, models.NoteOff{
		Note:   note,
		UserID: c.ID,
	})
}

func (r *Relay) handleDisconnect(c *Client) {
	if c.gone {
		return
	}
	c.gone = true
	defer close(c.Send)

	if c.room == "" {
		return
	}
	roomID := c.room
	r.reg.RemoveMember(roomID, c.ID)
	r.dropConn(roomID, c)

	for peer := range r.conns[roomID] {
		peer.enqueue(models.EventUserLeft, models.UserLeft{UserID: c.ID})
	}
	if len(r.conns[roomID]) > 0 {
		r.broadcastUserList(roomID)
	}
	log.Info().Str("module", "relay").Str("participant", c.ID).Str("name", c.name).Str("room", roomID).Msg("left")
}

func (r *Relay) handleCloseRoom(roomID string) bool {
	peers, ok := r.conns[roomID]
	if !ok {
		return false
	}
	for peer := range peers {
		peer.enqueue(models.EventRoomClosed, models.RoomClosed{RoomID: roomID})
		peer.gone = true
		r.reg.RemoveMember(roomID, peer.ID)
		close(peer.Send)
	}
	delete(r.conns, roomID)
	log.Info().Str("module", "relay").Str("room", roomID).Int("evicted", len(peers)).Msg("room closed")
	return true
}

// broadcastUserList sends the full refreshed member list to everyone in
// the room, the actor included: clients reconcile presence against the
// authoritative list rather than local state.
func (r *Relay) broadcastUserList(roomID string) {
	members := r.reg.Members(roomID)
	for peer := range r.conns[roomID] {
		peer.enqueue(models.EventUserList, members)
	}
}

// broadcastExcept sends to every room peer but the sender. Note events
// skip the sender because its own playback is already local.
func (r *Relay) broadcastExcept(sender *Client, event models.EventType, data any) {
	for peer := range r.conns[sender.room] {
		if peer != sender {
			peer.enqueue(event, data)
		}
	}
}

func (r *Relay) dropConn(roomID string, c *Client) {
	peers, ok := r.conns[roomID]
	if !ok {
		return
	}
	delete(peers, c)
	if len(peers) == 0 {
		delete(r.conns, roomID)
	}
}
