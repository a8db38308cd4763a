package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"jamroom/internal/models"
	"jamroom/internal/registry"
	"jamroom/internal/relay"
)

func newWSServer(t *testing.T) (*httptest.Server, *relay.Relay) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rly := relay.New(registry.New())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go rly.Run(ctx)

	r := gin.New()
	r.GET("/ws", ServeWS(rly))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, rly
}

func wsDial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event models.EventType, data string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(models.Envelope{
		Event: event,
		Data:  json.RawMessage(data),
	}))
}

func read(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func readUserList(t *testing.T, conn *websocket.Conn) []registry.Participant {
	t.Helper()
	env := read(t, conn)
	require.Equal(t, models.EventUserList, env.Event)
	var members []registry.Participant
	require.NoError(t, json.Unmarshal(env.Data, &members))
	return members
}

func readYourID(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	env := read(t, conn)
	require.Equal(t, models.EventYourID, env.Event)
	var id string
	require.NoError(t, json.Unmarshal(env.Data, &id))
	return id
}

func TestJoinHandshakeOverSocket(t *testing.T) {
	srv, _ := newWSServer(t)

	alice := wsDial(t, srv)
	send(t, alice, models.EventJoin, `{"roomId":"abc123","name":"Alice"}`)

	aliceID := readYourID(t, alice)
	require.Len(t, aliceID, 6)
	require.Equal(t, []registry.Participant{{ID: aliceID, Name: "Alice"}}, readUserList(t, alice))

	bob := wsDial(t, srv)
	send(t, bob, models.EventJoin, `{"roomId":"abc123","name":"Bob"}`)

	bobID := readYourID(t, bob)
	want := []registry.Participant{{ID: aliceID, Name: "Alice"}, {ID: bobID, Name: "Bob"}}
	require.Equal(t, want, readUserList(t, alice))
	require.Equal(t, want, readUserList(t, bob))
}

func TestLegacyBareStringJoin(t *testing.T) {
	srv, _ := newWSServer(t)

	conn := wsDial(t, srv)
	send(t, conn, models.EventJoin, `"oldroom1"`)

	id := readYourID(t, conn)
	require.Equal(t, []registry.Participant{{ID: id, Name: relay.AnonymousName}}, readUserList(t, conn))
}

func TestSetNameOverSocket(t *testing.T) {
	srv, _ := newWSServer(t)

	conn := wsDial(t, srv)
	send(t, conn, models.EventJoin, `{"roomId":"abc123","name":"Alice"}`)
	id := readYourID(t, conn)
	readUserList(t, conn)

	send(t, conn, models.EventSetName, `"Alicia"`)
	require.Equal(t, []registry.Participant{{ID: id, Name: "Alicia"}}, readUserList(t, conn))
}

func TestNoteRelayOverSocket(t *testing.T) {
	srv, _ := newWSServer(t)

	alice := wsDial(t, srv)
	send(t, alice, models.EventJoin, `{"roomId":"abc123","name":"Alice"}`)
	aliceID := readYourID(t, alice)
	readUserList(t, alice)

	bob := wsDial(t, srv)
	send(t, bob, models.EventJoin, `{"roomId":"abc123","name":"Bob"}`)
	readYourID(t, bob)
	readUserList(t, alice)
	readUserList(t, bob)

	send(t, alice, models.EventNoteOn, `{"note":"C4","velocity":0.8}`)

	env := read(t, bob)
	require.Equal(t, models.EventNoteOn, env.Event)
	var p models.NoteOn
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Equal(t, models.NoteOn{Note: "C4", Velocity: 0.8, UserID: aliceID}, p)

	// The sender hears nothing back; its own playback is local.
	require.NoError(t, alice.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	var echo models.Envelope
	require.Error(t, alice.ReadJSON(&echo))
}

func TestDisconnectOverSocket(t *testing.T) {
	srv, rly := newWSServer(t)

	alice := wsDial(t, srv)
	send(t, alice, models.EventJoin, `{"roomId":"abc123","name":"Alice"}`)
	aliceID := readYourID(t, alice)
	readUserList(t, alice)

	bob := wsDial(t, srv)
	send(t, bob, models.EventJoin, `{"roomId":"abc123","name":"Bob"}`)
	bobID := readYourID(t, bob)
	readUserList(t, alice)
	readUserList(t, bob)

	require.NoError(t, alice.Close())

	env := read(t, bob)
	require.Equal(t, models.EventUserLeft, env.Event)
	var left models.UserLeft
	require.NoError(t, json.Unmarshal(env.Data, &left))
	require.Equal(t, aliceID, left.UserID)

	require.Equal(t, []registry.Participant{{ID: bobID, Name: "Bob"}}, readUserList(t, bob))

	require.Eventually(t, func() bool {
		return len(rly.Members("abc123")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMalformedFramesAreDropped(t *testing.T) {
	srv, rly := newWSServer(t)

	conn := wsDial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, conn, models.EventJoin, `{"roomId":"","name":"Alice"}`)
	send(t, conn, models.EventJoin, `{"roomId":"abc123","name":"Alice"}`)

	// The two bad frames are silently dropped; the valid join still lands.
	readYourID(t, conn)
	require.Equal(t, 1, len(rly.Members("abc123")))
}
