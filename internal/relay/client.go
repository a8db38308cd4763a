package relay

import (
	"github.com/rs/zerolog/log"

	"jamroom/internal/models"
)

// sendBuffer bounds how far a slow reader can fall behind before events
// are dropped on the floor. Delivery is best-effort; the transport's
// disconnect detection is the only liveness mechanism.
const sendBuffer = 256

// Client is one connected participant as the relay sees it. Send is
// drained by the transport's write pump. The name, room and gone fields
// are owned by the relay loop and must never be touched elsewhere.
type Client struct {
	ID   string
	Send chan []byte

	name string
	room string
	gone bool
}

// NewClient wires up a client for an already-allocated participant id.
func NewClient(id string) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, sendBuffer),
	}
}

// enqueue marshals one frame into the client's send buffer, dropping it
// if the buffer is full.
func (c *Client) enqueue(event models.EventType, data any) {
	frame, err := models.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Str("event", string(event)).Msg("encode frame")
		return
	}
	select {
	case c.Send <- frame:
	default:
		log.Warn().Str("module", "relay").Str("participant", c.ID).Str("event", string(event)).Msg("send buffer full, frame dropped")
	}
}
