package message

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/chat"
	"socialhub/db"
	"socialhub/httputil"
	"socialhub/media"
	"socialhub/user"
)

// Presence reports whether a user has a live socket.
type Presence interface {
	IsOnline(userID int64) bool
}

type Handler struct {
	store    *Store
	service  *Service
	users    *user.Store
	media    media.Store
	presence Presence
	log      *logrus.Entry
}

func NewHandler(store *Store, service *Service, users *user.Store, mediaStore media.Store, presence Presence, log *logrus.Entry) *Handler {
	return &Handler{store: store, service: service, users: users, media: mediaStore, presence: presence, log: log}
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverID httputil.FlexID `json:"receiverId"`
		Content    string          `json:"content"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		httputil.BadRequest(w, "Message content is required")
		return
	}
	if !h.checkReceiver(w, r, int64(req.ReceiverID)) {
		return
	}
	h.send(w, r, &Message{SenderID: auth.UserID(r.Context()), ReceiverID: int64(req.ReceiverID), Content: req.Content})
}

// SendImage accepts a multipart form with an image file and receiverId.
func (h *Handler) SendImage(w http.ResponseWriter, r *http.Request) {
	receiverID, err := strconv.ParseInt(r.FormValue("receiverId"), 10, 64)
	if err != nil {
		httputil.BadRequest(w, "Invalid receiverId")
		return
	}
	if !h.checkReceiver(w, r, receiverID) {
		return
	}

	url, err := media.SaveFormFile(r.Context(), h.media, r, "image")
	if errors.Is(err, media.ErrUnsupported) {
		httputil.BadRequest(w, "Unsupported image type")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if url == "" {
		httputil.BadRequest(w, "No image uploaded")
		return
	}
	h.send(w, r, &Message{SenderID: auth.UserID(r.Context()), ReceiverID: receiverID, ImageURL: url})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, m *Message) {
	saved, err := h.service.Send(r.Context(), m)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, saved)
}

func (h *Handler) checkReceiver(w http.ResponseWriter, r *http.Request, id int64) bool {
	if id <= 0 {
		httputil.BadRequest(w, "Invalid receiverId")
		return false
	}
	if id == auth.UserID(r.Context()) {
		httputil.BadRequest(w, "You cannot message yourself")
		return false
	}
	_, err := h.users.GetByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "User not found")
		return false
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return false
	}
	return true
}

// Conversation lists the messages exchanged with {userId}, oldest first.
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	partner, ok := httputil.PathID(w, r, "userId")
	if !ok {
		return
	}
	msgs, err := h.store.Conversation(r.Context(), auth.UserID(r.Context()), partner)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, msgs)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	me := auth.UserID(r.Context())
	m, ok := h.ownMessage(w, r, "You can only delete your own messages")
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), m.ID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.deleteImages(r.Context(), m.ImageURL)
	h.service.emit(r.Context(), m, chat.EventMessageDeleted, DeletedEvent{MessageID: m.ID, DeletedBy: me})
	httputil.Message(w, http.StatusOK, "Message deleted successfully")
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		httputil.BadRequest(w, "Message content cannot be empty")
		return
	}

	m, ok := h.ownMessage(w, r, "You can only edit your own messages")
	if !ok {
		return
	}
	updated, err := h.store.Edit(r.Context(), m.ID, content)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.service.emit(r.Context(), updated, chat.EventMessageEdited, EditedEvent{
		MessageID:      updated.ID,
		EditedBy:       updated.SenderID,
		NewContent:     content,
		UpdatedMessage: updated,
	})
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// Partners lists everyone the caller has messaged with, most recent
// conversation first, with their presence.
func (h *Handler) Partners(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.PartnerIDs(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	summaries, err := h.users.Summaries(r.Context(), ids)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	partners := make([]Partner, 0, len(ids))
	for _, id := range ids {
		s, ok := summaries[id]
		if !ok {
			continue
		}
		partners = append(partners, Partner{Summary: s, Online: h.presence.IsOnline(id)})
	}
	httputil.WriteJSON(w, http.StatusOK, partners)
}

// Unread returns {senderId: count} for the caller's unread messages.
func (h *Handler) Unread(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.UnreadBySender(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, counts)
}

// MarkRead marks everything {userId} sent the caller as read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	partner, ok := httputil.PathID(w, r, "userId")
	if !ok {
		return
	}
	me := auth.UserID(r.Context())
	ids, err := h.store.MarkRead(r.Context(), partner, me)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	for _, id := range ids {
		h.service.emitPair(r.Context(), partner, me, chat.EventMessageStatusUpdate, StatusEvent{MessageID: id, Status: StatusRead})
	}
	httputil.Message(w, http.StatusOK, "Messages marked as read")
}

// Clear deletes the conversation with {userId} for both participants.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	partner, ok := httputil.PathID(w, r, "userId")
	if !ok {
		return
	}
	images, err := h.store.Clear(r.Context(), auth.UserID(r.Context()), partner)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.deleteImages(r.Context(), images...)
	httputil.Message(w, http.StatusOK, "Chat history deleted")
}

func (h *Handler) LastMessageTime(w http.ResponseWriter, r *http.Request) {
	partner, ok := httputil.PathID(w, r, "userId")
	if !ok {
		return
	}
	t, err := h.store.LastMessageTime(r.Context(), auth.UserID(r.Context()), partner)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"last_message_time": t})
}

// React toggles the caller's reaction. Only participants may react.
func (h *Handler) React(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Emoji string `json:"emoji"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if !validReaction(req.Emoji) {
		httputil.BadRequest(w, "Invalid reaction")
		return
	}

	m, ok := h.loadMessage(w, r)
	if !ok {
		return
	}
	me := auth.UserID(r.Context())
	if !m.Involves(me) {
		httputil.Forbidden(w, "You can only react to messages in your conversations")
		return
	}
	if err := h.store.ToggleReaction(r.Context(), m.ID, me, req.Emoji); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	updated, err := h.store.Get(r.Context(), m.ID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.service.emit(r.Context(), updated, chat.EventMessageReaction, ReactionEvent{MessageID: updated.ID, Reactions: updated.Reactions})
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *Handler) Pin(w http.ResponseWriter, r *http.Request) {
	m, ok := h.ownMessage(w, r, "You can only pin your own messages")
	if !ok {
		return
	}
	updated, err := h.store.TogglePin(r.Context(), m.ID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.service.emit(r.Context(), updated, chat.EventMessagePinned, PinnedEvent{MessageID: updated.ID, IsPinned: updated.IsPinned})
	httputil.WriteJSON(w, http.StatusOK, updated)
}

// Pinned lists the pinned messages with {userId}, newest first, with the
// sender populated.
func (h *Handler) Pinned(w http.ResponseWriter, r *http.Request) {
	partner, ok := httputil.PathID(w, r, "userId")
	if !ok {
		return
	}
	me := auth.UserID(r.Context())
	msgs, err := h.store.Pinned(r.Context(), me, partner)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	summaries, err := h.users.Summaries(r.Context(), []int64{me, partner})
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	for i := range msgs {
		if s, ok := summaries[msgs[i].SenderID]; ok {
			msgs[i].Sender = &s
		}
	}
	httputil.WriteJSON(w, http.StatusOK, msgs)
}

func (h *Handler) loadMessage(w http.ResponseWriter, r *http.Request) (*Message, bool) {
	id, ok := httputil.PathID(w, r, "messageId")
	if !ok {
		return nil, false
	}
	m, err := h.store.Get(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "Message not found")
		return nil, false
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return nil, false
	}
	return m, true
}

// ownMessage loads {messageId} and answers 403 with denied unless the
// caller sent it.
func (h *Handler) ownMessage(w http.ResponseWriter, r *http.Request, denied string) (*Message, bool) {
	m, ok := h.loadMessage(w, r)
	if !ok {
		return nil, false
	}
	if m.SenderID != auth.UserID(r.Context()) {
		httputil.Forbidden(w, denied)
		return nil, false
	}
	return m, true
}

func (h *Handler) deleteImages(ctx context.Context, urls ...string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := h.media.Delete(ctx, u); err != nil {
			h.log.WithError(err).WithField("url", u).Warn("[Message] image cleanup failed")
		}
	}
}
