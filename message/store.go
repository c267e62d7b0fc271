package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"socialhub/db"
)

const messageColumns = `id, sender_id, receiver_id, content, image_url, read, edited, status, is_pinned, created_at, updated_at`

// conversation matches both directions between two users.
const conversation = `((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))`

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func pair(a, b int64) []interface{} {
	return []interface{}{a, b, b, a}
}

func (s *Store) Create(ctx context.Context, m *Message) (*Message, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content, image_url, status) VALUES (?, ?, ?, ?, ?)`,
		m.SenderID, m.ReceiverID, m.Content, m.ImageURL, StatusSent)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Store) Get(ctx context.Context, id int64) (*Message, error) {
	msgs, err := s.list(ctx, `id = ?`, ``, id)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, db.ErrNotFound
	}
	return &msgs[0], nil
}

// Conversation returns the messages between a and b, oldest first.
func (s *Store) Conversation(ctx context.Context, a, b int64) ([]Message, error) {
	return s.list(ctx, conversation, `created_at, id`, pair(a, b)...)
}

// Pinned returns the pinned messages between a and b, newest first.
func (s *Store) Pinned(ctx context.Context, a, b int64) ([]Message, error) {
	return s.list(ctx, conversation+` AND is_pinned = 1`, `created_at DESC, id DESC`, pair(a, b)...)
}

func (s *Store) list(ctx context.Context, where, order string, args ...interface{}) ([]Message, error) {
	if order == "" {
		order = `id`
	}
	msgs := []Message{}
	err := s.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE `+where+` ORDER BY `+order, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if err := s.loadReactions(ctx, msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Store) loadReactions(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int64, len(msgs))
	index := make(map[int64]*Message, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
		index[msgs[i].ID] = &msgs[i]
		msgs[i].Reactions = []Reaction{}
	}

	query, args, err := sqlx.In(`
		SELECT message_id, user_id, emoji FROM message_reactions
		WHERE message_id IN (?) ORDER BY created_at, rowid`, ids)
	if err != nil {
		return err
	}
	var reactions []Reaction
	if err := s.db.SelectContext(ctx, &reactions, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load reactions: %w", err)
	}
	for _, r := range reactions {
		index[r.MessageID].Reactions = append(index[r.MessageID].Reactions, r)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	return err
}

func (s *Store) Edit(ctx context.Context, id int64, content string) (*Message, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, edited = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, content, id)
	if err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	return s.Get(ctx, id)
}

// MarkDelivered advances a message from sent to delivered. It reports false
// when the message is gone or already past sent.
func (s *Store) MarkDelivered(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		StatusDelivered, id, StatusSent)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkRead marks every unread message from sender to receiver as read and
// returns their ids.
func (s *Store) MarkRead(ctx context.Context, sender, receiver int64) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	ids := []int64{}
	err = tx.SelectContext(ctx, &ids,
		`SELECT id FROM messages WHERE sender_id = ? AND receiver_id = ? AND read = 0 ORDER BY id`, sender, receiver)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE messages SET read = 1, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE sender_id = ? AND receiver_id = ? AND read = 0`, StatusRead, sender, receiver)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return ids, tx.Commit()
}

// UnreadBySender counts the unread messages addressed to userID per sender.
func (s *Store) UnreadBySender(ctx context.Context, userID int64) (map[int64]int, error) {
	var rows []struct {
		SenderID int64 `db:"sender_id"`
		Count    int   `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT sender_id, COUNT(*) AS n FROM messages WHERE receiver_id = ? AND read = 0 GROUP BY sender_id`, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(rows))
	for _, r := range rows {
		out[r.SenderID] = r.Count
	}
	return out, nil
}

// PartnerIDs returns everyone userID has exchanged a message with.
func (s *Store) PartnerIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, `
		SELECT partner FROM (
			SELECT receiver_id AS partner, MAX(created_at) AS last FROM messages WHERE sender_id = ? GROUP BY receiver_id
			UNION ALL
			SELECT sender_id AS partner, MAX(created_at) AS last FROM messages WHERE receiver_id = ? GROUP BY sender_id
		)
		WHERE partner != ?
		GROUP BY partner
		ORDER BY MAX(last) DESC, partner`, userID, userID, userID)
	return ids, err
}

// Clear deletes the whole conversation between a and b for both sides and
// returns the image urls the deleted messages referenced.
func (s *Store) Clear(ctx context.Context, a, b int64) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	images := []string{}
	err = tx.SelectContext(ctx, &images,
		`SELECT image_url FROM messages WHERE `+conversation+` AND image_url != ''`, pair(a, b)...)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE `+conversation, pair(a, b)...); err != nil {
		return nil, fmt.Errorf("clear conversation: %w", err)
	}
	return images, tx.Commit()
}

// LastMessageTime returns the creation time of the newest message between
// a and b, or nil when they never talked.
func (s *Store) LastMessageTime(ctx context.Context, a, b int64) (*time.Time, error) {
	var t time.Time
	err := s.db.GetContext(ctx, &t,
		`SELECT created_at FROM messages WHERE `+conversation+` ORDER BY created_at DESC, id DESC LIMIT 1`, pair(a, b)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ToggleReaction sets userID's reaction on a message. Reacting again with
// the same emoji removes it; a different emoji replaces the previous one.
func (s *Store) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	err = tx.GetContext(ctx, &current,
		`SELECT emoji FROM message_reactions WHERE message_id = ? AND user_id = ?`, messageID, userID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	}

	if current == emoji {
		_, err = tx.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id = ? AND user_id = ?`, messageID, userID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_reactions (message_id, user_id, emoji) VALUES (?, ?, ?)
			ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = excluded.emoji, created_at = CURRENT_TIMESTAMP`,
			messageID, userID, emoji)
	}
	if err != nil {
		return fmt.Errorf("toggle reaction: %w", err)
	}
	return tx.Commit()
}

func (s *Store) TogglePin(ctx context.Context, id int64) (*Message, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_pinned = NOT is_pinned, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle pin: %w", err)
	}
	return s.Get(ctx, id)
}
