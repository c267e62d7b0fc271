package post

import (
	"time"

	"socialhub/user"
)

type Post struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"-"`
	Text         string    `db:"text" json:"text"`
	Img          string    `db:"img" json:"img"`
	RepostedFrom *int64    `db:"reposted_from" json:"reposted_from"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	User     user.Summary `db:"-" json:"user"`
	Likes    []int64      `db:"-" json:"likes"`
	Comments []Comment    `db:"-" json:"comments"`
	Reposts  []int64      `db:"-" json:"reposts"`
}

type Comment struct {
	ID        int64     `db:"id" json:"id"`
	PostID    int64     `db:"post_id" json:"-"`
	UserID    int64     `db:"user_id" json:"-"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	User user.Summary `db:"-" json:"user"`
}

type link struct {
	PostID int64 `db:"post_id"`
	UserID int64 `db:"user_id"`
}
