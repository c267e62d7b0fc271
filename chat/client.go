package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"socialhub/httputil"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	ID     string
	UserID int64

	hub  *Hub
	pub  Publisher
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	log  *logrus.Entry

	// guarded by hub.mu
	rooms map[string]struct{}

	closeOnce sync.Once
}

func newClient(hub *Hub, pub Publisher, conn *websocket.Conn, userID int64, log *logrus.Entry) *Client {
	id := uuid.NewString()
	return &Client{
		ID:     id,
		UserID: userID,
		hub:    hub,
		pub:    pub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		rooms:  make(map[string]struct{}),
		log:    log.WithFields(logrus.Fields{"conn_id": id, "user_id": userID}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump processes client events until the socket fails.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Warn("read failed")
			}
			return
		}
		c.handle(env)
	}
}

// writePump owns all writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.WithError(err).Debug("write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *Client) handle(env Envelope) {
	switch env.Event {
	case EventJoinUser:
		var id httputil.FlexID
		if err := json.Unmarshal(env.Data, &id); err != nil || int64(id) != c.UserID {
			c.reject(env.Event, "cannot join another user's room")
			return
		}
		c.hub.Join(c, UserRoom(c.UserID))

	case EventJoinChat:
		data, ok := c.chatData(env)
		if !ok {
			return
		}
		room := ConversationRoom(int64(data.UserID), int64(data.PartnerID))
		c.hub.Join(c, room)
		c.log.WithField("room", room).Debug("joined chat room")

	case EventTypingStart, EventTypingStop:
		data, ok := c.chatData(env)
		if !ok {
			return
		}
		room := ConversationRoom(int64(data.UserID), int64(data.PartnerID))
		typing := TypingEvent{UserID: c.UserID, IsTyping: env.Event == EventTypingStart}
		if err := c.pub.EmitExcept(context.Background(), room, c.ID, EventUserTyping, typing); err != nil {
			c.log.WithError(err).Warn("emit typing")
		}

	default:
		c.log.WithField("event", env.Event).Debug("unknown event ignored")
	}
}

func (c *Client) chatData(env Envelope) (chatData, bool) {
	var data chatData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		c.reject(env.Event, "invalid payload")
		return data, false
	}
	if int64(data.UserID) != c.UserID || data.PartnerID <= 0 {
		c.reject(env.Event, "invalid participants")
		return data, false
	}
	return data, true
}

func (c *Client) reject(event, reason string) {
	c.log.WithFields(logrus.Fields{"event": event, "reason": reason}).Debug("client event rejected")
	msg, err := encode(EventError, map[string]string{"event": event, "error": reason})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
