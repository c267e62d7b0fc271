package chat

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"socialhub/metrics"
)

// Publisher emits events to every socket in a room. Delivery is best effort:
// sockets that are offline or too slow simply miss the event.
type Publisher interface {
	Emit(ctx context.Context, room, event string, data interface{}) error
	EmitExcept(ctx context.Context, room, exceptConn, event string, data interface{}) error
}

// Hub is the registry of sockets connected to this instance, keyed by room.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	online  map[int64]int
	log     *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		online:  make(map[int64]int),
		log:     log,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.online[c.UserID]++
	h.mu.Unlock()

	metrics.SocketsConnected.Inc()
	h.log.WithFields(logrus.Fields{"user_id": c.UserID, "conn_id": c.ID}).Info("socket connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if h.online[c.UserID]--; h.online[c.UserID] <= 0 {
		delete(h.online, c.UserID)
	}
	h.mu.Unlock()

	metrics.SocketsConnected.Dec()
	h.log.WithFields(logrus.Fields{"user_id": c.UserID, "conn_id": c.ID}).Info("socket disconnected")
}

// Join adds c to room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Emit(ctx context.Context, room, event string, data interface{}) error {
	return h.EmitExcept(ctx, room, "", event, data)
}

// EmitExcept is Emit skipping the connection whose id is exceptConn.
func (h *Hub) EmitExcept(_ context.Context, room, exceptConn, event string, data interface{}) error {
	msg, err := encode(event, data)
	if err != nil {
		return err
	}
	h.Deliver(room, exceptConn, event, msg)
	return nil
}

// Deliver queues an encoded envelope on every socket in room without
// blocking. A full queue drops the event for that socket.
func (h *Hub) Deliver(room, exceptConn, event string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		if c.ID == exceptConn {
			continue
		}
		select {
		case c.send <- msg:
			metrics.EventsDelivered.WithLabelValues(event).Inc()
		default:
			metrics.EventsDropped.WithLabelValues(event).Inc()
			h.log.WithFields(logrus.Fields{"conn_id": c.ID, "event": event}).Warn("send queue full, event dropped")
		}
	}
}

// IsOnline reports whether userID has at least one socket on this instance.
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.online[userID] > 0
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every socket.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
