package notification

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/httputil"
)

type Handler struct {
	store *Store
	log   *logrus.Entry
}

func NewHandler(store *Store, log *logrus.Entry) *Handler {
	return &Handler{store: store, log: log}
}

// List returns the caller's notifications and marks them all read.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	list, err := h.store.List(r.Context(), userID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if err := h.store.MarkAllRead(r.Context(), userID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAll(r.Context(), auth.UserID(r.Context())); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.Message(w, http.StatusOK, "Notifications deleted successfully")
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.UnreadCount(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) UnreadCountFrom(w http.ResponseWriter, r *http.Request) {
	fromID, ok := httputil.PathID(w, r, "userId")
	if !ok {
		return
	}
	n, err := h.store.UnreadCountFrom(r.Context(), auth.UserID(r.Context()), fromID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (h *Handler) MarkReadFrom(w http.ResponseWriter, r *http.Request) {
	fromID, ok := httputil.PathID(w, r, "userId")
	if !ok {
		return
	}
	n, err := h.store.MarkReadFrom(r.Context(), auth.UserID(r.Context()), fromID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Notifications marked as read",
		"count":   n,
	})
}
