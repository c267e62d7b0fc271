package chat

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"socialhub/auth"
)

// Handler upgrades authenticated requests to websocket connections.
type Handler struct {
	hub      *Hub
	pub      Publisher
	tokens   *auth.TokenService
	upgrader websocket.Upgrader
	log      *logrus.Entry
}

func NewHandler(hub *Hub, pub Publisher, tokens *auth.TokenService, allowedOrigin string, log *logrus.Entry) *Handler {
	return &Handler{
		hub:    hub,
		pub:    pub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
		log: log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, err := h.tokens.Authenticate(r)
	if err != nil {
		if !errors.Is(err, auth.ErrNoToken) && !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrUnknownUser) {
			h.log.WithError(err).Error("websocket authentication failed")
		}
		auth.Reject(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := newClient(h.hub, h.pub, conn, userID, h.log)
	h.hub.register(c)
	h.hub.Join(c, UserRoom(userID))

	if msg, err := encode(EventConnected, map[string]interface{}{"userId": userID, "connId": c.ID}); err == nil {
		c.send <- msg
	}

	go c.writePump()
	go c.readPump()
}
