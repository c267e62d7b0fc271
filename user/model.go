package user

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int64          `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	Fullname     string         `db:"fullname" json:"fullname"`
	Email        string         `db:"email" json:"email"`
	Password     string         `db:"password" json:"-"`
	ProfileImg   string         `db:"profile_img" json:"profile_img"`
	CoverImg     string         `db:"cover_img" json:"cover_img"`
	Bio          string         `db:"bio" json:"bio"`
	Link         string         `db:"link" json:"link"`
	IsVerified   bool           `db:"is_verified" json:"is_verified"`
	OTP          sql.NullString `db:"otp" json:"-"`
	OTPExpires   sql.NullTime   `db:"otp_expires" json:"-"`
	ResetToken   sql.NullString `db:"reset_password_token" json:"-"`
	ResetExpires sql.NullTime   `db:"reset_password_expires" json:"-"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`

	Followers  []int64 `db:"-" json:"followers"`
	Following  []int64 `db:"-" json:"following"`
	LikedPosts []int64 `db:"-" json:"liked_posts"`
	Bookmarks  []int64 `db:"-" json:"bookmarks"`
}

// Summary is the public part of a user embedded in posts, comments,
// notifications and messages.
type Summary struct {
	ID         int64  `db:"id" json:"id"`
	Username   string `db:"username" json:"username"`
	Fullname   string `db:"fullname" json:"fullname"`
	ProfileImg string `db:"profile_img" json:"profile_img"`
}

func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, Fullname: u.Fullname, ProfileImg: u.ProfileImg}
}

// PendingUser is a signup waiting for its OTP confirmation.
type PendingUser struct {
	ID         int64     `db:"id"`
	Fullname   string    `db:"fullname"`
	Username   string    `db:"username"`
	Email      string    `db:"email"`
	Password   string    `db:"password"`
	OTP        string    `db:"otp"`
	OTPExpires time.Time `db:"otp_expires"`
	CreatedAt  time.Time `db:"created_at"`
}
