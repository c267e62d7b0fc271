package message

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/auth"
	"socialhub/chat"
	"socialhub/chat/chattest"
	"socialhub/media"
	"socialhub/notification"
	"socialhub/pkg/testutil"
	"socialhub/user"
)

type presence map[int64]bool

func (p presence) IsOnline(id int64) bool { return p[id] }

type env struct {
	conn    *sqlx.DB
	store   *Store
	service *Service
	media   *media.DiskStore
	pub     *chattest.Recorder
	online  presence
	h       *Handler

	alice, bob int64
}

func newEnv(t *testing.T, delay time.Duration) *env {
	t.Helper()
	conn := testutil.NewDB(t)
	log := testutil.Log()
	mediaStore, err := media.NewDiskStore(t.TempDir(), "/uploads", log)
	require.NoError(t, err)

	pub := &chattest.Recorder{}
	store := NewStore(conn)
	notifications := notification.NewService(notification.NewStore(conn), pub, log)
	service := NewService(store, notifications, pub, delay, log)
	t.Cleanup(service.Stop)

	online := presence{}
	e := &env{
		conn:    conn,
		store:   store,
		service: service,
		media:   mediaStore,
		pub:     pub,
		online:  online,
		h:       NewHandler(store, service, user.NewStore(conn), mediaStore, online, log),
	}
	e.alice = testutil.CreateUser(t, conn, "alice")
	e.bob = testutil.CreateUser(t, conn, "bob")
	return e
}

func call(h http.HandlerFunc, userID int64, body interface{}, vars map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest("POST", "/", &buf)
	req = req.WithContext(auth.WithUserID(req.Context(), userID))
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func (e *env) send(t *testing.T, from, to int64, content string) Message {
	t.Helper()
	w := call(e.h.Send, from, map[string]interface{}{"receiverId": to, "content": content}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var m Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestSendDeliversAfterDelay(t *testing.T) {
	e := newEnv(t, 10*time.Millisecond)

	m := e.send(t, e.alice, e.bob, "hi bob")
	assert.Equal(t, StatusSent, m.Status)
	assert.Equal(t, e.alice, m.SenderID)
	assert.Empty(t, m.Reactions)

	assert.ElementsMatch(t, []string{chat.UserRoom(e.alice), chat.UserRoom(e.bob)}, e.pub.Rooms(chat.EventNewMessage))
	assert.Equal(t, []string{chat.UserRoom(e.bob)}, e.pub.Rooms(chat.EventNewNotification))

	e.service.Wait()
	got, err := e.store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, got.Status)

	updates := e.pub.Events(chat.EventMessageStatusUpdate)
	require.Len(t, updates, 2)
	var ev StatusEvent
	require.NoError(t, json.Unmarshal(updates[0].Data, &ev))
	assert.Equal(t, StatusEvent{MessageID: m.ID, Status: StatusDelivered}, ev)
}

func TestDeliveryDoesNotDowngradeRead(t *testing.T) {
	e := newEnv(t, time.Hour)
	m := e.send(t, e.alice, e.bob, "read me")
	assert.Equal(t, 1, e.service.Pending())

	w := call(e.h.MarkRead, e.bob, nil, map[string]string{"userId": itoa(e.alice)})
	require.Equal(t, http.StatusOK, w.Code)

	e.service.deliver(m.ID, e.alice, e.bob)
	got, err := e.store.Get(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRead, got.Status)
	assert.True(t, got.Read)

	for _, ev := range e.pub.Events(chat.EventMessageStatusUpdate) {
		var se StatusEvent
		require.NoError(t, json.Unmarshal(ev.Data, &se))
		assert.Equal(t, StatusRead, se.Status)
	}

	e.service.Stop()
	assert.Zero(t, e.service.Pending())
}

func TestSendValidation(t *testing.T) {
	e := newEnv(t, time.Hour)

	w := call(e.h.Send, e.alice, map[string]interface{}{"receiverId": e.bob, "content": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(e.h.Send, e.alice, map[string]interface{}{"receiverId": 999, "content": "hi"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(e.h.Send, e.alice, map[string]interface{}{"receiverId": e.alice, "content": "hi"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(e.h.Send, e.alice, map[string]interface{}{"receiverId": itoa(e.bob), "content": "string id"}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSendImage(t *testing.T) {
	e := newEnv(t, time.Hour)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("receiverId", itoa(e.bob)))
	fw, err := mw.CreateFormFile("image", "cat.png")
	require.NoError(t, err)
	fw.Write([]byte("png"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(auth.WithUserID(req.Context(), e.alice))
	w := httptest.NewRecorder()
	e.h.SendImage(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var m Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Regexp(t, `^/uploads/.+\.png$`, m.ImageURL)
	assert.Empty(t, m.Content)
	require.FileExists(t, filepath.Join(e.media.Dir(), filepath.Base(m.ImageURL)))

	// clearing the conversation removes the stored image
	w = call(e.h.Clear, e.bob, nil, map[string]string{"userId": itoa(e.alice)})
	require.Equal(t, http.StatusOK, w.Code)
	_, err = os.Stat(filepath.Join(e.media.Dir(), filepath.Base(m.ImageURL)))
	assert.True(t, os.IsNotExist(err))
}

func TestConversationAndClear(t *testing.T) {
	e := newEnv(t, time.Hour)
	carol := testutil.CreateUser(t, e.conn, "carol")

	w := call(e.h.LastMessageTime, e.alice, nil, map[string]string{"userId": itoa(e.bob)})
	assert.JSONEq(t, `{"last_message_time":null}`, w.Body.String())

	first := e.send(t, e.alice, e.bob, "one")
	second := e.send(t, e.bob, e.alice, "two")
	e.send(t, e.alice, carol, "elsewhere")

	w = call(e.h.Conversation, e.alice, nil, map[string]string{"userId": itoa(e.bob)})
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, first.ID, msgs[0].ID)
	assert.Equal(t, second.ID, msgs[1].ID)

	w = call(e.h.LastMessageTime, e.alice, nil, map[string]string{"userId": itoa(e.bob)})
	var last struct {
		LastMessageTime *time.Time `json:"last_message_time"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &last))
	require.NotNil(t, last.LastMessageTime)

	w = call(e.h.Clear, e.alice, nil, map[string]string{"userId": itoa(e.bob)})
	require.Equal(t, http.StatusOK, w.Code)

	msgs, err := e.store.Conversation(context.Background(), e.bob, e.alice)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	msgs, err = e.store.Conversation(context.Background(), e.alice, carol)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestEditAndDeleteAreSenderOnly(t *testing.T) {
	e := newEnv(t, time.Hour)
	m := e.send(t, e.alice, e.bob, "original")
	vars := map[string]string{"messageId": itoa(m.ID)}

	w := call(e.h.Edit, e.bob, map[string]string{"content": "hacked"}, vars)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(e.h.Edit, e.alice, map[string]string{"content": ""}, vars)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(e.h.Edit, e.alice, map[string]string{"content": " fixed "}, vars)
	require.Equal(t, http.StatusOK, w.Code)
	var edited Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &edited))
	assert.Equal(t, "fixed", edited.Content)
	assert.True(t, edited.Edited)
	assert.Len(t, e.pub.Events(chat.EventMessageEdited), 2)

	w = call(e.h.Delete, e.bob, nil, vars)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(e.h.Delete, e.alice, nil, vars)
	require.Equal(t, http.StatusOK, w.Code)
	deleted := e.pub.Events(chat.EventMessageDeleted)
	require.Len(t, deleted, 2)
	var ev DeletedEvent
	require.NoError(t, json.Unmarshal(deleted[0].Data, &ev))
	assert.Equal(t, DeletedEvent{MessageID: m.ID, DeletedBy: e.alice}, ev)

	w = call(e.h.Delete, e.alice, nil, vars)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReactions(t *testing.T) {
	e := newEnv(t, time.Hour)
	m := e.send(t, e.alice, e.bob, "react")
	vars := map[string]string{"messageId": itoa(m.ID)}

	react := func(userID int64, emoji string) *httptest.ResponseRecorder {
		return call(e.h.React, userID, map[string]string{"emoji": emoji}, vars)
	}

	assert.Equal(t, http.StatusBadRequest, react(e.bob, "🍕").Code)

	carol := testutil.CreateUser(t, e.conn, "carol")
	assert.Equal(t, http.StatusForbidden, react(carol, "👍").Code)

	w := react(e.bob, "👍")
	require.Equal(t, http.StatusOK, w.Code)
	var got Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []Reaction{{UserID: e.bob, Emoji: "👍"}}, got.Reactions)

	// a different emoji replaces the previous one
	w = react(e.bob, "🔥")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []Reaction{{UserID: e.bob, Emoji: "🔥"}}, got.Reactions)

	react(e.alice, "❤️")
	// the same emoji again removes it
	w = react(e.bob, "🔥")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []Reaction{{UserID: e.alice, Emoji: "❤️"}}, got.Reactions)

	assert.Len(t, e.pub.Events(chat.EventMessageReaction), 8)
}

func TestPinning(t *testing.T) {
	e := newEnv(t, time.Hour)
	m := e.send(t, e.alice, e.bob, "pin me")
	e.send(t, e.alice, e.bob, "not pinned")
	vars := map[string]string{"messageId": itoa(m.ID)}

	w := call(e.h.Pin, e.bob, nil, vars)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(e.h.Pin, e.alice, nil, vars)
	require.Equal(t, http.StatusOK, w.Code)
	var pinned Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pinned))
	assert.True(t, pinned.IsPinned)

	w = call(e.h.Pinned, e.bob, nil, map[string]string{"userId": itoa(e.alice)})
	require.Equal(t, http.StatusOK, w.Code)
	var list []Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, m.ID, list[0].ID)
	require.NotNil(t, list[0].Sender)
	assert.Equal(t, "alice", list[0].Sender.Username)

	w = call(e.h.Pin, e.alice, nil, vars)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pinned))
	assert.False(t, pinned.IsPinned)
	assert.Len(t, e.pub.Events(chat.EventMessagePinned), 4)
}

func TestUnreadAndPartners(t *testing.T) {
	e := newEnv(t, time.Hour)
	carol := testutil.CreateUser(t, e.conn, "carol")

	e.send(t, e.bob, e.alice, "1")
	e.send(t, e.bob, e.alice, "2")
	e.send(t, carol, e.alice, "3")
	e.send(t, e.alice, carol, "reply")

	w := call(e.h.Unread, e.alice, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"`+itoa(e.bob)+`":2,"`+itoa(carol)+`":1}`, w.Body.String())

	e.online[carol] = true
	w = call(e.h.Partners, e.alice, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var partners []Partner
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &partners))
	require.Len(t, partners, 2)
	byName := map[string]bool{}
	for _, p := range partners {
		byName[p.Username] = p.Online
	}
	assert.Equal(t, map[string]bool{"bob": false, "carol": true}, byName)

	call(e.h.MarkRead, e.alice, nil, map[string]string{"userId": itoa(e.bob)})
	w = call(e.h.Unread, e.alice, nil, nil)
	assert.JSONEq(t, `{"`+itoa(carol)+`":1}`, w.Body.String())
	assert.Len(t, e.pub.Events(chat.EventMessageStatusUpdate), 4)
}
