package user

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"socialhub/db"
)

const userColumns = `id, username, fullname, email, password, profile_img, cover_img, bio, link,
	is_verified, otp, otp_expires, reset_password_token, reset_password_expires, created_at, updated_at`

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) get(ctx context.Context, where string, arg interface{}) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return nil, db.NotFound(err)
	}
	return &u, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.get(ctx, "id = ?", id)
}

// Exists reports whether a user with id is still registered.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.db.GetContext(ctx, &ok, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id)
	return ok, err
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.get(ctx, "username = ?", username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.get(ctx, "email = ?", email)
}

func (s *Store) GetByResetToken(ctx context.Context, token string) (*User, error) {
	return s.get(ctx, "reset_password_token = ?", token)
}

// Taken reports whether username or email already belong to a user other
// than exceptID.
func (s *Store) Taken(ctx context.Context, username, email string, exceptID int64) (usernameTaken, emailTaken bool, err error) {
	var n int
	if username != "" {
		if err = s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE username = ? AND id != ?`, username, exceptID); err != nil {
			return false, false, err
		}
		usernameTaken = n > 0
	}
	if email != "" {
		if err = s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE email = ? AND id != ?`, email, exceptID); err != nil {
			return false, false, err
		}
		emailTaken = n > 0
	}
	return usernameTaken, emailTaken, nil
}

func (s *Store) Create(ctx context.Context, u *User) (*User, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, fullname, email, password, is_verified)
		VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Fullname, u.Email, u.Password, u.IsVerified)
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
	return s.GetByID(ctx, id)
}

// Update writes the editable profile fields and the password hash.
func (s *Store) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE users SET
			username = :username, fullname = :fullname, email = :email, password = :password,
			profile_img = :profile_img, cover_img = :cover_img, bio = :bio, link = :link,
			updated_at = :updated_at
		WHERE id = :id`, u)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return db.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *Store) SetOTP(ctx context.Context, id int64, otp string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET otp = ?, otp_expires = ? WHERE id = ?`, otp, expires.UTC(), id)
	return err
}

func (s *Store) SetResetToken(ctx context.Context, id int64, token string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET reset_password_token = ?, reset_password_expires = ? WHERE id = ?`, token, expires.UTC(), id)
	return err
}

// SetPassword stores a new hash and invalidates any outstanding OTP or
// reset token.
func (s *Store) SetPassword(ctx context.Context, id int64, hash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = ?, otp = NULL, otp_expires = NULL,
			reset_password_token = NULL, reset_password_expires = NULL, updated_at = ?
		WHERE id = ?`, hash, time.Now().UTC(), id)
	return err
}

// Delete removes the user; follows, posts, likes, comments, bookmarks,
// notifications and messages go with it through cascading foreign keys.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// LoadRelations fills the follower, following, liked post and bookmark ids.
func (s *Store) LoadRelations(ctx context.Context, u *User) error {
	queries := []struct {
		dst   *[]int64
		query string
	}{
		{&u.Followers, `SELECT follower_id FROM follows WHERE following_id = ? ORDER BY created_at`},
		{&u.Following, `SELECT following_id FROM follows WHERE follower_id = ? ORDER BY created_at`},
		{&u.LikedPosts, `SELECT post_id FROM post_likes WHERE user_id = ? ORDER BY created_at`},
		{&u.Bookmarks, `SELECT post_id FROM bookmarks WHERE user_id = ? ORDER BY created_at`},
	}
	for _, q := range queries {
		ids := []int64{}
		if err := s.db.SelectContext(ctx, &ids, q.query, u.ID); err != nil {
			return fmt.Errorf("load relations: %w", err)
		}
		*q.dst = ids
	}
	return nil
}

// Suggested returns up to limit random users that userID does not follow.
func (s *Store) Suggested(ctx context.Context, userID int64, limit int) ([]User, error) {
	users := []User{}
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+userColumns+` FROM users
		WHERE id != ? AND id NOT IN (SELECT following_id FROM follows WHERE follower_id = ?)
		ORDER BY RANDOM() LIMIT ?`, userID, userID, limit)
	return users, err
}

// Following returns the users followed by userID.
func (s *Store) Following(ctx context.Context, userID int64) ([]User, error) {
	users := []User{}
	err := s.db.SelectContext(ctx, &users, `
		SELECT `+prefixed("u")+` FROM users u
		JOIN follows f ON f.following_id = u.id
		WHERE f.follower_id = ?
		ORDER BY f.created_at`, userID)
	return users, err
}

// Summaries maps each existing id to its public summary.
func (s *Store) Summaries(ctx context.Context, ids []int64) (map[int64]Summary, error) {
	out := make(map[int64]Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT id, username, fullname, profile_img FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []Summary
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// ClearExpiredTokens drops OTPs and reset tokens whose expiry has passed.
func (s *Store) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, q := range []string{
		`UPDATE users SET otp = NULL, otp_expires = NULL WHERE otp_expires IS NOT NULL AND otp_expires < ?`,
		`UPDATE users SET reset_password_token = NULL, reset_password_expires = NULL
			WHERE reset_password_expires IS NOT NULL AND reset_password_expires < ?`,
	} {
		res, err := s.db.ExecContext(ctx, q, now.UTC())
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func prefixed(alias string) string {
	cols := strings.Split(userColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// Valid reports whether expires is set and still in the future.
func Valid(expires sql.NullTime, now time.Time) bool {
	return expires.Valid && now.Before(expires.Time)
}

// OwnedImages lists the post and message images uploaded by userID that
// no other user's post still references.
func (s *Store) OwnedImages(ctx context.Context, userID int64) ([]string, error) {
	urls := []string{}
	err := s.db.SelectContext(ctx, &urls, `
		SELECT img FROM posts
		WHERE user_id = ? AND img != '' AND img NOT IN (SELECT img FROM posts WHERE user_id != ?)
		UNION
		SELECT image_url FROM messages WHERE sender_id = ? AND image_url != ''`, userID, userID, userID)
	return urls, err
}
