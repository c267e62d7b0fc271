package chat

import (
	"encoding/json"
	"fmt"

	"socialhub/httputil"
)

// Events pushed by the server.
const (
	EventNewNotification     = "newNotification"
	EventNewMessage          = "newMessage"
	EventMessageStatusUpdate = "messageStatusUpdate"
	EventMessageDeleted      = "messageDeleted"
	EventMessageEdited       = "messageEdited"
	EventMessageReaction     = "messageReaction"
	EventMessagePinned       = "messagePinned"
	EventUserTyping          = "user-typing"
	EventConnected           = "connected"
	EventError               = "error"
)

// Events sent by clients.
const (
	EventJoinUser    = "join-user"
	EventJoinChat    = "join-chat"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
)

// Envelope is the frame exchanged over the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type chatData struct {
	UserID    httputil.FlexID `json:"userId"`
	PartnerID httputil.FlexID `json:"partnerId"`
}

type TypingEvent struct {
	UserID   int64 `json:"userId"`
	IsTyping bool  `json:"isTyping"`
}

func encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
