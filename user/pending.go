package user

import (
	"context"
	"fmt"
	"time"

	"socialhub/db"
)

// SavePending replaces any pending signup using the same email or username.
func (s *Store) SavePending(ctx context.Context, p *PendingUser) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_users WHERE email = ? OR username = ?`, p.Email, p.Username); err != nil {
		return fmt.Errorf("clear pending: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO pending_users (fullname, username, email, password, otp, otp_expires)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.Fullname, p.Username, p.Email, p.Password, p.OTP, p.OTPExpires.UTC())
	if err != nil {
		return fmt.Errorf("insert pending: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetPendingByEmail(ctx context.Context, email string) (*PendingUser, error) {
	var p PendingUser
	err := s.db.GetContext(ctx, &p, `
		SELECT id, fullname, username, email, password, otp, otp_expires, created_at
		FROM pending_users WHERE email = ?`, email)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &p, nil
}

func (s *Store) SetPendingOTP(ctx context.Context, id int64, otp string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pending_users SET otp = ?, otp_expires = ? WHERE id = ?`, otp, expires.UTC(), id)
	return err
}

// Promote turns a confirmed signup into a verified user.
func (s *Store) Promote(ctx context.Context, p *PendingUser) (*User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, fullname, email, password, is_verified)
		VALUES (?, ?, ?, ?, 1)`, p.Username, p.Fullname, p.Email, p.Password)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, db.ErrConflict
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_users WHERE id = ?`, p.ID); err != nil {
		return nil, fmt.Errorf("delete pending: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// PurgeExpiredPending deletes signups whose OTP has expired.
func (s *Store) PurgeExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_users WHERE otp_expires < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
