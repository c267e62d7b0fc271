package message

import (
	"time"

	"socialhub/user"
)

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// Reactions lists the emoji a message may be reacted with.
var Reactions = []string{"❤️", "👍", "👎", "😂", "😮", "😢", "😡", "🎉", "👏", "🔥"}

func validReaction(emoji string) bool {
	for _, r := range Reactions {
		if r == emoji {
			return true
		}
	}
	return false
}

type Reaction struct {
	MessageID int64  `db:"message_id" json:"-"`
	UserID    int64  `db:"user_id" json:"user"`
	Emoji     string `db:"emoji" json:"emoji"`
}

type Message struct {
	ID         int64         `db:"id" json:"id"`
	SenderID   int64         `db:"sender_id" json:"sender"`
	ReceiverID int64         `db:"receiver_id" json:"receiver"`
	Content    string        `db:"content" json:"content"`
	ImageURL   string        `db:"image_url" json:"image_url,omitempty"`
	Read       bool          `db:"read" json:"read"`
	Edited     bool          `db:"edited" json:"edited"`
	Status     Status        `db:"status" json:"status"`
	IsPinned   bool          `db:"is_pinned" json:"is_pinned"`
	Reactions  []Reaction    `db:"-" json:"reactions"`
	Sender     *user.Summary `db:"-" json:"sender_user,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// Involves reports whether userID sent or received m.
func (m *Message) Involves(userID int64) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Partner is a user the caller has exchanged messages with.
type Partner struct {
	user.Summary
	Online bool `json:"online"`
}

// Event payloads. Keys follow the socket client contract.
type (
	StatusEvent struct {
		MessageID int64  `json:"messageId"`
		Status    Status `json:"status"`
	}

	DeletedEvent struct {
		MessageID int64 `json:"messageId"`
		DeletedBy int64 `json:"deletedBy"`
	}

	EditedEvent struct {
		MessageID      int64    `json:"messageId"`
		EditedBy       int64    `json:"editedBy"`
		NewContent     string   `json:"newContent"`
		UpdatedMessage *Message `json:"updatedMessage"`
	}

	ReactionEvent struct {
		MessageID int64      `json:"messageId"`
		Reactions []Reaction `json:"reactions"`
	}

	PinnedEvent struct {
		MessageID int64 `json:"messageId"`
		IsPinned  bool  `json:"isPinned"`
	}
)
