package follower

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/db"
	"socialhub/httputil"
	"socialhub/notification"
	"socialhub/user"
)

const suggestedLimit = 4

type Handler struct {
	store         *Store
	users         *user.Store
	notifications *notification.Service
	log           *logrus.Entry
}

func NewHandler(store *Store, users *user.Store, notifications *notification.Service, log *logrus.Entry) *Handler {
	return &Handler{store: store, users: users, notifications: notifications, log: log}
}

// Toggle follows the user in the path, or unfollows them when already
// followed. Following sends a follow notification.
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	targetID, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	me := auth.UserID(ctx)

	if targetID == me {
		httputil.BadRequest(w, "You can't follow/unfollow yourself")
		return
	}
	if _, err := h.users.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, "User not found")
			return
		}
		httputil.InternalError(w, h.log, err)
		return
	}

	following, err := h.store.IsFollowing(ctx, me, targetID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	if following {
		if err := h.store.Unfollow(ctx, me, targetID); err != nil {
			httputil.InternalError(w, h.log, err)
			return
		}
		h.log.WithFields(logrus.Fields{"follower": me, "following": targetID}).Info("[Follow] unfollowed")
		httputil.Message(w, http.StatusOK, "User unfollowed successfully")
		return
	}

	if err := h.store.Follow(ctx, me, targetID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if _, err := h.notifications.Create(ctx, me, targetID, notification.TypeFollow); err != nil {
		h.log.WithError(err).Warn("[Follow] notification failed")
	}
	h.log.WithFields(logrus.Fields{"follower": me, "following": targetID}).Info("[Follow] followed")
	httputil.Message(w, http.StatusOK, "User followed successfully")
}

// Suggested returns a few random users the caller does not follow yet.
func (h *Handler) Suggested(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Suggested(r.Context(), auth.UserID(r.Context()), suggestedLimit)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) FollowingUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.Following(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}
