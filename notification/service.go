package notification

import (
	"context"

	"github.com/sirupsen/logrus"

	"socialhub/chat"
)

// Service persists notifications and pushes them to the recipient.
type Service struct {
	store *Store
	pub   chat.Publisher
	log   *logrus.Entry
}

func NewService(store *Store, pub chat.Publisher, log *logrus.Entry) *Service {
	return &Service{store: store, pub: pub, log: log}
}

// Create stores a notification and emits newNotification to the
// recipient's room. Notifying oneself is a no-op. A failed push is logged
// and does not fail the call; the client picks the notification up on its
// next poll.
func (s *Service) Create(ctx context.Context, from, to int64, typ Type) (*Event, error) {
	if from == to {
		return nil, nil
	}

	id, err := s.store.Insert(ctx, from, to, typ)
	if err != nil {
		return nil, err
	}
	sender, err := s.store.Sender(ctx, from)
	if err != nil {
		return nil, err
	}

	ev := &Event{
		Type:           typ,
		From:           EventSender{ID: sender.ID, Username: sender.Username, ProfileImg: sender.ProfileImg},
		To:             to,
		NotificationID: id,
	}
	if err := s.pub.Emit(ctx, chat.UserRoom(to), chat.EventNewNotification, ev); err != nil {
		s.log.WithError(err).WithField("to", to).Warn("[Notification] push failed")
	}
	s.log.WithFields(logrus.Fields{"type": typ, "from": from, "to": to}).Debug("[Notification] created")
	return ev, nil
}
