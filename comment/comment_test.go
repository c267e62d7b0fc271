package comment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/auth"
	"socialhub/chat/chattest"
	"socialhub/media"
	"socialhub/notification"
	"socialhub/pkg/testutil"
	"socialhub/post"
	"socialhub/user"
)

func call(h http.HandlerFunc, userID int64, body interface{}, vars map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest("POST", "/", &buf)
	req = req.WithContext(auth.WithUserID(req.Context(), userID))
	req = mux.SetURLVars(req, vars)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func TestCommentLifecycle(t *testing.T) {
	conn := testutil.NewDB(t)
	log := testutil.Log()
	mediaStore, err := media.NewDiskStore(t.TempDir(), "/uploads", log)
	require.NoError(t, err)
	users := user.NewStore(conn)
	posts := post.NewStore(conn, users)
	notifications := notification.NewService(notification.NewStore(conn), &chattest.Recorder{}, log)
	h := NewHandler(NewStore(conn), posts, post.NewHandler(posts, users, notifications, mediaStore, log), log)

	owner := testutil.CreateUser(t, conn, "owner")
	author := testutil.CreateUser(t, conn, "author")
	stranger := testutil.CreateUser(t, conn, "stranger")
	p, err := posts.Create(context.Background(), &post.Post{UserID: owner, Text: "hi"})
	require.NoError(t, err)

	w := call(h.Create, author, map[string]string{"text": "  "}, map[string]string{"id": itoa(p.ID)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(h.Create, author, map[string]string{"text": "nice"}, map[string]string{"id": "999"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(h.Create, author, map[string]string{"text": "nice"}, map[string]string{"id": itoa(p.ID)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated post.Post
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	require.Len(t, updated.Comments, 1)
	c := updated.Comments[0]
	assert.Equal(t, "nice", c.Text)
	assert.Equal(t, "author", c.User.Username)

	vars := map[string]string{"postId": itoa(p.ID), "commentId": itoa(c.ID)}
	w = call(h.Delete, stranger, nil, vars)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(h.Delete, owner, nil, map[string]string{"postId": itoa(p.ID), "commentId": "999"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(h.Delete, owner, nil, vars)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := posts.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Comments)
}

func TestAuthorMayDeleteOwnComment(t *testing.T) {
	conn := testutil.NewDB(t)
	log := testutil.Log()
	users := user.NewStore(conn)
	posts := post.NewStore(conn, users)
	store := NewStore(conn)
	h := NewHandler(store, posts, post.NewHandler(posts, users, nil, nil, log), log)

	owner := testutil.CreateUser(t, conn, "owner")
	author := testutil.CreateUser(t, conn, "author")
	p, err := posts.Create(context.Background(), &post.Post{UserID: owner, Text: "hi"})
	require.NoError(t, err)
	cid, err := store.Insert(context.Background(), p.ID, author, "mine")
	require.NoError(t, err)

	w := call(h.Delete, author, nil, map[string]string{"postId": itoa(p.ID), "commentId": itoa(cid)})
	assert.Equal(t, http.StatusOK, w.Code)
}
