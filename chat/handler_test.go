package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/auth"
)

type wsEnv struct {
	hub    *Hub
	tokens *auth.TokenService
	server *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	hub := newTestHub()
	tokens := auth.NewTokenService("secret", time.Hour, false)
	srv := httptest.NewServer(NewHandler(hub, hub, tokens, "*", hub.log))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &wsEnv{hub: hub, tokens: tokens, server: srv}
}

func (e *wsEnv) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	token, err := e.tokens.Generate(userID)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	env := readEvent(t, conn)
	require.Equal(t, EventConnected, env.Event)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func TestUpgradeRequiresToken(t *testing.T) {
	e := newWSEnv(t)

	resp, err := http.Get(e.server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(e.server.URL + "?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpgradeRejectsDeletedUser(t *testing.T) {
	e := newWSEnv(t)
	e.tokens.CheckUsers(func(ctx context.Context, id int64) (bool, error) { return id != 8, nil })

	token, err := e.tokens.Generate(8)
	require.NoError(t, err)
	resp, err := http.Get(e.server.URL + "?token=" + token)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, e.hub.IsOnline(8))
}

func TestSocketJoinsPersonalRoom(t *testing.T) {
	e := newWSEnv(t)
	conn := e.dial(t, 5)

	require.Eventually(t, func() bool { return e.hub.IsOnline(5) }, time.Second, 10*time.Millisecond)
	require.NoError(t, e.hub.Emit(context.Background(), UserRoom(5), EventNewNotification, map[string]string{"type": "follow"}))

	env := readEvent(t, conn)
	assert.Equal(t, EventNewNotification, env.Event)
	assert.JSONEq(t, `{"type":"follow"}`, string(env.Data))
}

func TestTypingGoesToPartnerOnly(t *testing.T) {
	e := newWSEnv(t)
	alice := e.dial(t, 1)
	bob := e.dial(t, 2)

	send(t, alice, EventJoinChat, map[string]interface{}{"userId": 1, "partnerId": 2})
	send(t, bob, EventJoinChat, map[string]interface{}{"userId": "2", "partnerId": "1"})
	require.Eventually(t, func() bool { return e.hub.RoomSize(ConversationRoom(1, 2)) == 2 }, time.Second, 10*time.Millisecond)

	send(t, alice, EventTypingStart, map[string]interface{}{"userId": 1, "partnerId": 2})

	env := readEvent(t, bob)
	require.Equal(t, EventUserTyping, env.Event)
	var typing TypingEvent
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	assert.Equal(t, TypingEvent{UserID: 1, IsTyping: true}, typing)

	send(t, alice, EventTypingStop, map[string]interface{}{"userId": 1, "partnerId": 2})
	env = readEvent(t, bob)
	require.NoError(t, json.Unmarshal(env.Data, &typing))
	assert.False(t, typing.IsTyping)

	// alice never hears her own typing events
	alice.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	var none Envelope
	assert.Error(t, alice.ReadJSON(&none))
}

func TestJoinChatAsSomeoneElseRejected(t *testing.T) {
	e := newWSEnv(t)
	conn := e.dial(t, 1)

	send(t, conn, EventJoinChat, map[string]interface{}{"userId": 3, "partnerId": 2})

	env := readEvent(t, conn)
	assert.Equal(t, EventError, env.Event)
	assert.Zero(t, e.hub.RoomSize(ConversationRoom(2, 3)))
}

func TestDisconnectClearsPresence(t *testing.T) {
	e := newWSEnv(t)
	conn := e.dial(t, 8)
	require.Eventually(t, func() bool { return e.hub.IsOnline(8) }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return !e.hub.IsOnline(8) }, 2*time.Second, 10*time.Millisecond)
}
