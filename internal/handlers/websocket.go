package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"jamroom/internal/ident"
	"jamroom/internal/models"
	"jamroom/internal/relay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by the OriginFilter middleware.
		return true
	},
}

// wsSession binds one socket to one participant identity for the life
// of the connection.
type wsSession struct {
	conn   *websocket.Conn
	client *relay.Client
	relay  *relay.Relay
	log    zerolog.Logger
}

// ServeWS upgrades the connection, allocates the participant id and
// starts the read/write pumps. The participant exists before any join;
// membership only starts once the client sends one.
func ServeWS(rly *relay.Relay) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
			return
		}

		client := relay.NewClient(ident.NewParticipantID())
		sess := &wsSession{
			conn:   conn,
			client: client,
			relay:  rly,
			log: log.With().Str("module", "ws").
				Str("conn", uuid.NewString()).
				Str("participant", client.ID).Logger(),
		}
		sess.log.Info().Msg("connected")

		go sess.writePump()
		go sess.readPump()
	}
}

// readPump parses inbound frames and forwards them into the relay. It
// is the single place that fires disconnect, so the relay sees it
// exactly once per connection.
func (s *wsSession) readPump() {
	defer func() {
		s.relay.Disconnect(s.client)
		s.conn.Close()
		s.log.Info().Msg("disconnected")
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn().Err(err).Msg("read error")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.log.Warn().Err(err).Msg("malformed frame, dropped")
			continue
		}
		s.handle(env)
	}
}

func (s *wsSession) handle(env models.Envelope) {
	switch env.Event {
	case models.EventJoin:
		req := models.DecodeJoin(env.Data)
		s.relay.Join(s.client, req.RoomID, req.Name)

	case models.EventSetName:
		var name string
		if err := json.Unmarshal(env.Data, &name); err != nil {
			s.log.Warn().Err(err).Msg("malformed setName, dropped")
			return
		}
		s.relay.Rename(s.client, name)

	case models.EventNoteOn:
		var p models.NoteOn
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.log.Warn().Err(err).Msg("malformed noteOn, dropped")
			return
		}
		s.relay.NoteOn(s.client, p.Note, p.Velocity)

	case models.EventNoteOff:
		var p models.NoteOff
		if err := json.Unmarshal(env.Data, &p); err != nil {
			s.log.Warn().Err(err).Msg("malformed noteOff, dropped")
			return
		}
		s.relay.NoteOff(s.client, p.Note)

	default:
		s.log.Warn().Str("event", string(env.Event)).Msg("unknown event, dropped")
	}
}

// writePump drains the client's send buffer onto the socket and keeps
// the connection alive with pings. It exits when the relay closes the
// send channel or a write fails.
func (s *wsSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.client.Send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Warn().Err(err).Msg("write failed")
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
