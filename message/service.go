package message

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"socialhub/chat"
	"socialhub/notification"
)

const deliveryTimeout = 5 * time.Second

// Service stores messages, pushes message events to both participants and
// advances the delivery status on a timer.
type Service struct {
	store         *Store
	notifications *notification.Service
	pub           chat.Publisher
	delay         time.Duration
	log           *logrus.Entry

	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
	wg     sync.WaitGroup
}

func NewService(store *Store, notifications *notification.Service, pub chat.Publisher, delay time.Duration, log *logrus.Entry) *Service {
	return &Service{
		store:         store,
		notifications: notifications,
		pub:           pub,
		delay:         delay,
		log:           log,
		timers:        make(map[int64]*time.Timer),
	}
}

// Send persists m with status sent, notifies the receiver and emits
// newMessage to both participants. Delivery is marked after the configured
// delay.
func (s *Service) Send(ctx context.Context, m *Message) (*Message, error) {
	saved, err := s.store.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	if _, err := s.notifications.Create(ctx, saved.SenderID, saved.ReceiverID, notification.TypeMessage); err != nil {
		s.log.WithError(err).WithField("message_id", saved.ID).Warn("[Message] notification failed")
	}
	s.emit(ctx, saved, chat.EventNewMessage, saved)
	s.scheduleDelivery(saved)
	return saved, nil
}

func (s *Service) scheduleDelivery(m *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	id, sender, receiver := m.ID, m.SenderID, m.ReceiverID
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.deliver(id, sender, receiver)
	})
}

// deliver marks the message delivered unless it was read or deleted in
// the meantime.
func (s *Service) deliver(id, sender, receiver int64) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	ok, err := s.store.MarkDelivered(ctx, id)
	if err != nil {
		s.log.WithError(err).WithField("message_id", id).Error("[Message] mark delivered failed")
		return
	}
	if !ok {
		return
	}
	s.emitPair(ctx, sender, receiver, chat.EventMessageStatusUpdate, StatusEvent{MessageID: id, Status: StatusDelivered})
}

// Pending returns the number of deliveries still waiting on their timer.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels the pending delivery timers and waits for running ones.
// Messages that were never advanced stay sent.
func (s *Service) Stop() {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Wait blocks until every scheduled delivery has run.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) emit(ctx context.Context, m *Message, event string, data interface{}) {
	s.emitPair(ctx, m.SenderID, m.ReceiverID, event, data)
}

func (s *Service) emitPair(ctx context.Context, a, b int64, event string, data interface{}) {
	for _, id := range []int64{a, b} {
		if err := s.pub.Emit(ctx, chat.UserRoom(id), event, data); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"event": event, "user": id}).Warn("[Message] push failed")
		}
	}
}
