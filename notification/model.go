package notification

import "time"

type Type string

const (
	TypeFollow  Type = "follow"
	TypeLike    Type = "like"
	TypeMessage Type = "message"
)

// Sender is the part of the notifying user shown to the recipient.
type Sender struct {
	ID         int64  `db:"id" json:"id"`
	Username   string `db:"username" json:"username"`
	ProfileImg string `db:"profile_img" json:"profile_img"`
}

type Notification struct {
	ID        int64     `db:"id" json:"id"`
	ToID      int64     `db:"to_id" json:"to"`
	Type      Type      `db:"type" json:"type"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	From      Sender    `db:"from" json:"from"`
}

// Event is the newNotification payload pushed to the recipient's room.
// Socket payloads use camelCase keys like the message events.
type Event struct {
	Type           Type        `json:"type"`
	From           EventSender `json:"from"`
	To             int64       `json:"to"`
	NotificationID int64       `json:"notificationId"`
}

type EventSender struct {
	ID         int64  `json:"id"`
	Username   string `json:"username"`
	ProfileImg string `json:"profileImg"`
}
