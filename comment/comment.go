// Package comment adds and removes comments on posts.
package comment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/db"
	"socialhub/httputil"
	"socialhub/post"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Insert(ctx context.Context, postID, userID int64, text string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO comments (post_id, user_id, text) VALUES (?, ?, ?)`, postID, userID, text)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	return res.LastInsertId()
}

// Get returns the comment only if it belongs to postID.
func (s *Store) Get(ctx context.Context, postID, commentID int64) (*post.Comment, error) {
	var c post.Comment
	err := s.db.GetContext(ctx, &c,
		`SELECT id, post_id, user_id, text, created_at FROM comments WHERE id = ? AND post_id = ?`, commentID, postID)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &c, nil
}

func (s *Store) Delete(ctx context.Context, commentID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, commentID)
	return err
}

type Handler struct {
	store *Store
	posts *post.Store
	post  *post.Handler
	log   *logrus.Entry
}

func NewHandler(store *Store, posts *post.Store, postHandler *post.Handler, log *logrus.Entry) *Handler {
	return &Handler{store: store, posts: posts, post: postHandler, log: log}
}

// Create comments on the post and returns the updated post.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		httputil.BadRequest(w, "Text field is required")
		return
	}

	p, ok := h.post.LoadPost(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.store.Insert(r.Context(), p.ID, auth.UserID(r.Context()), strings.TrimSpace(req.Text)); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	updated, err := h.posts.Get(r.Context(), p.ID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// Delete removes a comment. The post owner and the comment author may do so.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.post.LoadPost(w, r, "postId")
	if !ok {
		return
	}
	commentID, ok := httputil.PathID(w, r, "commentId")
	if !ok {
		return
	}

	c, err := h.store.Get(r.Context(), p.ID, commentID)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "Comment not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	me := auth.UserID(r.Context())
	if p.UserID != me && c.UserID != me {
		httputil.Forbidden(w, "You are not authorized to delete this comment")
		return
	}
	if err := h.store.Delete(r.Context(), c.ID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.Message(w, http.StatusOK, "Comment deleted successfully")
}
