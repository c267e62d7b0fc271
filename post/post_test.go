package post

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

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

type env struct {
	conn  *sqlx.DB
	store *Store
	media *media.DiskStore
	pub   *chattest.Recorder
	h     *Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	conn := testutil.NewDB(t)
	log := testutil.Log()
	mediaStore, err := media.NewDiskStore(t.TempDir(), "/uploads", log)
	require.NoError(t, err)

	users := user.NewStore(conn)
	pub := &chattest.Recorder{}
	store := NewStore(conn, users)
	notifications := notification.NewService(notification.NewStore(conn), pub, log)
	return &env{
		conn:  conn,
		store: store,
		media: mediaStore,
		pub:   pub,
		h:     NewHandler(store, users, notifications, mediaStore, log),
	}
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

func idVars(id int64) map[string]string {
	return map[string]string{"id": strconv.FormatInt(id, 10)}
}

func (e *env) create(t *testing.T, userID int64, text string) Post {
	t.Helper()
	w := call(e.h.Create, userID, map[string]string{"text": text}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func decodePosts(t *testing.T, w *httptest.ResponseRecorder) []Post {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var posts []Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	return posts
}

func TestCreatePost(t *testing.T) {
	e := newEnv(t)
	alice := testutil.CreateUser(t, e.conn, "alice")

	w := call(e.h.Create, alice, map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	p := e.create(t, alice, "hello")
	assert.Equal(t, "hello", p.Text)
	assert.Equal(t, "alice", p.User.Username)
	assert.Empty(t, p.Likes)
	assert.Nil(t, p.RepostedFrom)

	img := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpg"))
	w = call(e.h.Create, alice, map[string]string{"img": img}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Regexp(t, `^/uploads/.+\.jpg$`, p.Img)
}

func TestDeletePost(t *testing.T) {
	e := newEnv(t)
	alice := testutil.CreateUser(t, e.conn, "alice")
	bob := testutil.CreateUser(t, e.conn, "bob")

	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	w := call(e.h.Create, alice, map[string]string{"text": "pic", "img": img}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var p Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	file := filepath.Join(e.media.Dir(), filepath.Base(p.Img))
	require.FileExists(t, file)

	w = call(e.h.Delete, bob, nil, idVars(p.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(e.h.Delete, alice, nil, idVars(999))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(e.h.Delete, alice, nil, idVars(p.ID))
	require.Equal(t, http.StatusOK, w.Code)
	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err))
}

func TestPostCannotClaimAnotherUsersImage(t *testing.T) {
	e := newEnv(t)
	alice := testutil.CreateUser(t, e.conn, "alice")
	bob := testutil.CreateUser(t, e.conn, "bob")

	img := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	w := call(e.h.Create, alice, map[string]string{"text": "pic", "img": img}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var orig Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orig))
	file := filepath.Join(e.media.Dir(), filepath.Base(orig.Img))

	w = call(e.h.Create, bob, map[string]string{"img": orig.Img}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = call(e.h.Create, bob, map[string]string{"img": "https://example.com/x.png"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a repost may carry the original's image, deleting it leaves the file alone
	w = call(e.h.Repost, bob, map[string]interface{}{"repostedFrom": orig.ID, "img": orig.Img}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var repost Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &repost))
	assert.Equal(t, orig.Img, repost.Img)
	require.Equal(t, http.StatusOK, call(e.h.Delete, bob, nil, idVars(repost.ID)).Code)
	assert.FileExists(t, file)

	var n int
	require.NoError(t, e.conn.Get(&n, `SELECT COUNT(*) FROM posts WHERE user_id = ?`, bob))
	assert.Zero(t, n)
}

func TestToggleLikeNotifiesOwner(t *testing.T) {
	e := newEnv(t)
	alice := testutil.CreateUser(t, e.conn, "alice")
	bob := testutil.CreateUser(t, e.conn, "bob")
	p := e.create(t, alice, "like me")

	w := call(e.h.ToggleLike, bob, nil, idVars(p.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[`+strconv.FormatInt(bob, 10)+`]`, w.Body.String())
	assert.Equal(t, []string{chat.UserRoom(alice)}, e.pub.Rooms(chat.EventNewNotification))

	w = call(e.h.ToggleLike, bob, nil, idVars(p.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	// liking your own post does not notify
	w = call(e.h.ToggleLike, alice, nil, idVars(p.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, e.pub.Events(chat.EventNewNotification), 1)

	w = call(e.h.ToggleLike, bob, nil, idVars(404))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeeds(t *testing.T) {
	e := newEnv(t)
	alice := testutil.CreateUser(t, e.conn, "alice")
	bob := testutil.CreateUser(t, e.conn, "bob")
	carol := testutil.CreateUser(t, e.conn, "carol")
	testutil.Follow(t, e.conn, alice, bob)

	first := e.create(t, bob, "first")
	second := e.create(t, bob, "second")
	e.create(t, carol, "carol's")

	all := decodePosts(t, call(e.h.All, alice, nil, nil))
	require.Len(t, all, 3)
	assert.Equal(t, "carol's", all[0].Text, "newest first")

	following := decodePosts(t, call(e.h.Following, alice, nil, nil))
	require.Len(t, following, 2)
	assert.Equal(t, second.ID, following[0].ID)
	assert.Equal(t, first.ID, following[1].ID)

	byName := decodePosts(t, call(e.h.ByUsername, alice, nil, map[string]string{"username": "bob"}))
	assert.Len(t, byName, 2)
	w := call(e.h.ByUsername, alice, nil, map[string]string{"username": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	call(e.h.ToggleLike, alice, nil, idVars(first.ID))
	liked := decodePosts(t, call(e.h.Liked, carol, nil, idVars(alice)))
	require.Len(t, liked, 1)
	assert.Equal(t, first.ID, liked[0].ID)
	assert.Equal(t, []int64{alice}, liked[0].Likes)

	w = call(e.h.Liked, carol, nil, idVars(999))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRepost(t *testing.T) {
	e := newEnv(t)
	alice := testutil.CreateUser(t, e.conn, "alice")
	bob := testutil.CreateUser(t, e.conn, "bob")
	orig := e.create(t, alice, "original text")

	w := call(e.h.Repost, bob, map[string]interface{}{"repostedFrom": 999}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(e.h.Repost, bob, map[string]interface{}{"repostedFrom": strconv.FormatInt(orig.ID, 10)}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var repost Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &repost))
	assert.Equal(t, "original text", repost.Text)
	require.NotNil(t, repost.RepostedFrom)
	assert.Equal(t, orig.ID, *repost.RepostedFrom)
	assert.Equal(t, "bob", repost.User.Username)

	w = call(e.h.Repost, bob, map[string]interface{}{"repostedFrom": orig.ID}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	updated, err := e.store.Get(context.Background(), orig.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{bob}, updated.Reposts)

	w = call(e.h.Repost, bob, map[string]interface{}{"text": "plain"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var plain Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plain))
	assert.Nil(t, plain.RepostedFrom)

	// deleting the original keeps the repost
	require.Equal(t, http.StatusOK, call(e.h.Delete, alice, nil, idVars(orig.ID)).Code)
	kept, err := e.store.Get(context.Background(), repost.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.RepostedFrom)
}

func TestBookmarks(t *testing.T) {
	e := newEnv(t)
	alice := testutil.CreateUser(t, e.conn, "alice")
	p := e.create(t, alice, "save me")

	w := call(e.h.ToggleBookmark, alice, nil, idVars(p.ID))
	assert.JSONEq(t, `{"message":"Bookmarked"}`, w.Body.String())

	saved := decodePosts(t, call(e.h.Bookmarks, alice, nil, nil))
	require.Len(t, saved, 1)

	w = call(e.h.ToggleBookmark, alice, nil, idVars(p.ID))
	assert.JSONEq(t, `{"message":"Bookmark removed"}`, w.Body.String())
	assert.Empty(t, decodePosts(t, call(e.h.Bookmarks, alice, nil, nil)))

	w = call(e.h.ToggleBookmark, alice, nil, idVars(77))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
