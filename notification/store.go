package notification

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"socialhub/db"
)

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Insert(ctx context.Context, from, to int64, typ Type) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO notifications (from_id, to_id, type) VALUES (?, ?, ?)`, from, to, typ)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) Sender(ctx context.Context, userID int64) (Sender, error) {
	var snd Sender
	err := s.db.GetContext(ctx, &snd, `SELECT id, username, profile_img FROM users WHERE id = ?`, userID)
	return snd, db.NotFound(err)
}

// List returns the notifications addressed to userID, newest first, with
// the sender populated.
func (s *Store) List(ctx context.Context, userID int64) ([]Notification, error) {
	out := []Notification{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT n.id, n.to_id, n.type, n.read, n.created_at,
			u.id AS "from.id", u.username AS "from.username", u.profile_img AS "from.profile_img"
		FROM notifications n
		JOIN users u ON u.id = n.from_id
		WHERE n.to_id = ?
		ORDER BY n.created_at DESC, n.id DESC`, userID)
	return out, err
}

func (s *Store) MarkAllRead(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE to_id = ? AND read = 0`, userID)
	return err
}

func (s *Store) DeleteAll(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE to_id = ?`, userID)
	return err
}

func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE to_id = ? AND read = 0`, userID)
	return n, err
}

func (s *Store) UnreadCountFrom(ctx context.Context, userID, fromID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM notifications WHERE to_id = ? AND from_id = ? AND read = 0`, userID, fromID)
	return n, err
}

func (s *Store) MarkReadFrom(ctx context.Context, userID, fromID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE to_id = ? AND from_id = ? AND read = 0`, userID, fromID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
