package post

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/db"
	"socialhub/httputil"
	"socialhub/media"
	"socialhub/notification"
	"socialhub/user"
)

type Handler struct {
	store         *Store
	users         *user.Store
	notifications *notification.Service
	media         media.Store
	log           *logrus.Entry
}

func NewHandler(store *Store, users *user.Store, notifications *notification.Service, mediaStore media.Store, log *logrus.Entry) *Handler {
	return &Handler{store: store, users: users, notifications: notifications, media: mediaStore, log: log}
}

type createRequest struct {
	Text         string           `json:"text"`
	Img          string           `json:"img"`
	RepostedFrom *httputil.FlexID `json:"repostedFrom"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	h.createPlain(w, r, req)
}

// Delete removes the caller's own post and its image.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.LoadPost(w, r, "id")
	if !ok {
		return
	}
	if p.UserID != auth.UserID(r.Context()) {
		httputil.Forbidden(w, "You are not authorized to delete this post")
		return
	}

	if err := h.store.Delete(r.Context(), p.ID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.deleteImage(r.Context(), p)

	h.log.WithField("post_id", p.ID).Info("[Posts] post deleted")
	httputil.Message(w, http.StatusOK, "Post deleted successfully")
}

func (h *Handler) deleteImage(ctx context.Context, p *Post) {
	if p.Img == "" {
		return
	}
	shared, err := h.store.ImageShared(ctx, p.Img, p.ID)
	if err != nil || shared {
		return
	}
	if err := h.media.Delete(ctx, p.Img); err != nil {
		h.log.WithError(err).WithField("post_id", p.ID).Warn("[Posts] image delete failed")
	}
}

// discardUpload removes an image uploaded for a post that was never stored.
func (h *Handler) discardUpload(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := h.media.Delete(ctx, url); err != nil {
		h.log.WithError(err).WithField("url", url).Warn("[Posts] image delete failed")
	}
}

// ToggleLike likes or unlikes a post and returns the ids of everyone who
// likes it now.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	p, ok := h.LoadPost(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	me := auth.UserID(ctx)

	liked, err := h.store.ToggleLike(ctx, p.ID, me)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if liked {
		if _, err := h.notifications.Create(ctx, me, p.UserID, notification.TypeLike); err != nil {
			h.log.WithError(err).Warn("[Posts] like notification failed")
		}
	}

	likes, err := h.store.LikeIDs(ctx, p.ID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, likes)
}

// Repost shares an existing post when repostedFrom is given. Without it the
// request creates a plain post.
func (h *Handler) Repost(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.RepostedFrom == nil || *req.RepostedFrom == 0 {
		h.createPlain(w, r, req)
		return
	}
	ctx := r.Context()
	me := auth.UserID(ctx)

	original, err := h.store.Get(ctx, int64(*req.RepostedFrom))
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "Original post not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	for _, id := range original.Reposts {
		if id == me {
			httputil.BadRequest(w, "You have already reposted this post")
			return
		}
	}

	img, err := media.Resolve(ctx, h.media, req.Img, original.Img)
	if err != nil {
		httputil.BadRequest(w, "Invalid image")
		return
	}
	p := &Post{
		UserID: me,
		Text:   firstNonEmpty(strings.TrimSpace(req.Text), original.Text),
		Img:    firstNonEmpty(img, original.Img),
	}

	created, err := h.store.Repost(ctx, original.ID, p)
	if err != nil && img != original.Img {
		h.discardUpload(ctx, img)
	}
	if errors.Is(err, db.ErrConflict) {
		httputil.BadRequest(w, "You have already reposted this post")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.log.WithFields(logrus.Fields{"post_id": created.ID, "original": original.ID}).Info("[Posts] reposted")
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) createPlain(w http.ResponseWriter, r *http.Request, req createRequest) {
	text := strings.TrimSpace(req.Text)
	if text == "" && req.Img == "" {
		httputil.BadRequest(w, "Post must have text or image")
		return
	}
	img, err := media.Resolve(r.Context(), h.media, req.Img)
	if err != nil {
		httputil.BadRequest(w, "Invalid image")
		return
	}

	p, err := h.store.Create(r.Context(), &Post{UserID: auth.UserID(r.Context()), Text: text, Img: img})
	if err != nil {
		h.discardUpload(r.Context(), img)
		httputil.InternalError(w, h.log, err)
		return
	}
	h.log.WithFields(logrus.Fields{"post_id": p.ID, "user_id": p.UserID}).Info("[Posts] post created")
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	p, ok := h.LoadPost(w, r, "id")
	if !ok {
		return
	}
	bookmarked, err := h.store.ToggleBookmark(r.Context(), p.ID, auth.UserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if bookmarked {
		httputil.Message(w, http.StatusOK, "Bookmarked")
		return
	}
	httputil.Message(w, http.StatusOK, "Bookmark removed")
}

func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	h.writePosts(w, func() ([]Post, error) { return h.store.All(r.Context()) })
}

func (h *Handler) Following(w http.ResponseWriter, r *http.Request) {
	h.writePosts(w, func() ([]Post, error) { return h.store.Following(r.Context(), auth.UserID(r.Context())) })
}

func (h *Handler) Bookmarks(w http.ResponseWriter, r *http.Request) {
	h.writePosts(w, func() ([]Post, error) { return h.store.BookmarkedBy(r.Context(), auth.UserID(r.Context())) })
}

// Liked lists the posts liked by the user in the path.
func (h *Handler) Liked(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		h.userError(w, err)
		return
	}
	h.writePosts(w, func() ([]Post, error) { return h.store.LikedBy(r.Context(), userID) })
}

func (h *Handler) ByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetByUsername(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		h.userError(w, err)
		return
	}
	h.writePosts(w, func() ([]Post, error) { return h.store.ByUser(r.Context(), u.ID) })
}

func (h *Handler) writePosts(w http.ResponseWriter, load func() ([]Post, error)) {
	posts, err := load()
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, posts)
}

func (h *Handler) userError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "User not found")
		return
	}
	httputil.InternalError(w, h.log, err)
}

// LoadPost resolves the post named by the path variable, answering 400/404
// itself when it cannot.
func (h *Handler) LoadPost(w http.ResponseWriter, r *http.Request, name string) (*Post, bool) {
	id, ok := httputil.PathID(w, r, name)
	if !ok {
		return nil, false
	}
	p, err := h.store.Get(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "Post not found")
		return nil, false
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return nil, false
	}
	return p, true
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
