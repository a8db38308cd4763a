package models

import "encoding/json"

// EventType names a message on the wire, both directions.
type EventType string

const (
	// Client -> server.
	EventJoin    EventType = "join"
	EventSetName EventType = "setName"

	// Server -> client.
	EventYourID     EventType = "yourId"
	EventUserList   EventType = "userList"
	EventUserLeft   EventType = "userLeft"
	EventRoomClosed EventType = "roomClosed"

	// Both directions: inbound without userId, outbound tagged with it.
	EventNoteOn  EventType = "noteOn"
	EventNoteOff EventType = "noteOff"
)

// Envelope is the framing shared by every message.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps a payload in an envelope and marshals the whole frame.
func Encode(event EventType, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// JoinRequest is the object form of a join. Older clients send a bare
// JSON string carrying just the room id; DecodeJoin accepts both.
type JoinRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// DecodeJoin parses join payloads in either the object or the legacy
// bare-string form. Malformed payloads come back with an empty room id,
// which the relay treats as an invalid join.
func DecodeJoin(data json.RawMessage) JoinRequest {
	var req JoinRequest
	if err := json.Unmarshal(data, &req); err == nil {
		return req
	}
	var roomID string
	if err := json.Unmarshal(data, &roomID); err == nil {
		return JoinRequest{RoomID: roomID}
	}
	return JoinRequest{}
}

// NoteOn carries a key press. UserID is empty inbound and filled with
// the sender's participant id on the way out.
type NoteOn struct {
	Note     string  `json:"note"`
	Velocity float64 `json:"velocity"`
	UserID   string  `json:"userId,omitempty"`
}

// NoteOff carries a key release.
type NoteOff struct {
	Note   string `json:"note"`
	UserID string `json:"userId,omitempty"`
}

// UserLeft tells remaining members to clear the departed player's notes.
type UserLeft struct {
	UserID string `json:"userId"`
}

// RoomClosed tells members their room was shut down by an operator.
type RoomClosed struct {
	RoomID string `json:"roomId"`
}
