package post

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"socialhub/db"
	"socialhub/user"
)

const postColumns = `p.id, p.user_id, p.text, p.img, p.reposted_from, p.created_at, p.updated_at`

type Store struct {
	db    *sqlx.DB
	users *user.Store
}

func NewStore(conn *sqlx.DB, users *user.Store) *Store {
	return &Store{db: conn, users: users}
}

func (s *Store) Create(ctx context.Context, p *Post) (*Post, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (user_id, text, img, reposted_from) VALUES (?, ?, ?, ?)`,
		p.UserID, p.Text, p.Img, p.RepostedFrom)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Repost records userID as a reposter of original and creates the new post
// in one transaction.
func (s *Store) Repost(ctx context.Context, original int64, p *Post) (*Post, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO post_reposts (post_id, user_id) VALUES (?, ?)`, original, p.UserID); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, db.ErrConflict
		}
		return nil, fmt.Errorf("insert repost: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO posts (user_id, text, img, reposted_from) VALUES (?, ?, ?, ?)`,
		p.UserID, p.Text, p.Img, original)
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Get returns the post with its author, likes, comments and reposts.
func (s *Store) Get(ctx context.Context, id int64) (*Post, error) {
	posts, err := s.list(ctx, `p.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, db.ErrNotFound
	}
	return &posts[0], nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	return err
}

// ImageShared reports whether a post other than postID uses img.
func (s *Store) ImageShared(ctx context.Context, img string, postID int64) (bool, error) {
	var shared bool
	err := s.db.GetContext(ctx, &shared, `SELECT EXISTS(SELECT 1 FROM posts WHERE img = ? AND id != ?)`, img, postID)
	return shared, err
}

func (s *Store) All(ctx context.Context) ([]Post, error) {
	return s.list(ctx, `1 = 1`)
}

// Following returns the posts of everyone userID follows.
func (s *Store) Following(ctx context.Context, userID int64) ([]Post, error) {
	return s.list(ctx, `p.user_id IN (SELECT following_id FROM follows WHERE follower_id = ?)`, userID)
}

func (s *Store) ByUser(ctx context.Context, userID int64) ([]Post, error) {
	return s.list(ctx, `p.user_id = ?`, userID)
}

func (s *Store) LikedBy(ctx context.Context, userID int64) ([]Post, error) {
	return s.list(ctx, `p.id IN (SELECT post_id FROM post_likes WHERE user_id = ?)`, userID)
}

func (s *Store) BookmarkedBy(ctx context.Context, userID int64) ([]Post, error) {
	return s.list(ctx, `p.id IN (SELECT post_id FROM bookmarks WHERE user_id = ?)`, userID)
}

func (s *Store) list(ctx context.Context, where string, args ...interface{}) ([]Post, error) {
	posts := []Post{}
	err := s.db.SelectContext(ctx, &posts,
		`SELECT `+postColumns+` FROM posts p WHERE `+where+` ORDER BY p.created_at DESC, p.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if err := s.populate(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// populate loads likes, reposts, comments and authors for all posts with
// one query per relation.
func (s *Store) populate(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int64, len(posts))
	index := make(map[int64]*Post, len(posts))
	authors := map[int64]struct{}{}
	for i := range posts {
		p := &posts[i]
		ids[i] = p.ID
		index[p.ID] = p
		p.Likes, p.Reposts, p.Comments = []int64{}, []int64{}, []Comment{}
		authors[p.UserID] = struct{}{}
	}

	likes, err := s.links(ctx, "post_likes", ids)
	if err != nil {
		return err
	}
	for _, l := range likes {
		index[l.PostID].Likes = append(index[l.PostID].Likes, l.UserID)
	}

	reposts, err := s.links(ctx, "post_reposts", ids)
	if err != nil {
		return err
	}
	for _, l := range reposts {
		index[l.PostID].Reposts = append(index[l.PostID].Reposts, l.UserID)
	}

	query, args, err := sqlx.In(`
		SELECT id, post_id, user_id, text, created_at FROM comments
		WHERE post_id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return err
	}
	var comments []Comment
	if err := s.db.SelectContext(ctx, &comments, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	for _, c := range comments {
		authors[c.UserID] = struct{}{}
	}

	authorIDs := make([]int64, 0, len(authors))
	for id := range authors {
		authorIDs = append(authorIDs, id)
	}
	summaries, err := s.users.Summaries(ctx, authorIDs)
	if err != nil {
		return fmt.Errorf("load authors: %w", err)
	}

	for _, c := range comments {
		c.User = summaries[c.UserID]
		index[c.PostID].Comments = append(index[c.PostID].Comments, c)
	}
	for i := range posts {
		posts[i].User = summaries[posts[i].UserID]
	}
	return nil
}

func (s *Store) links(ctx context.Context, table string, ids []int64) ([]link, error) {
	query, args, err := sqlx.In(`SELECT post_id, user_id FROM `+table+` WHERE post_id IN (?) ORDER BY created_at, rowid`, ids)
	if err != nil {
		return nil, err
	}
	var out []link
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return out, nil
}

// ToggleLike likes or unlikes the post and reports whether it is now liked.
func (s *Store) ToggleLike(ctx context.Context, postID, userID int64) (bool, error) {
	return s.toggle(ctx, "post_likes", postID, userID)
}

func (s *Store) ToggleBookmark(ctx context.Context, postID, userID int64) (bool, error) {
	return s.toggle(ctx, "bookmarks", postID, userID)
}

func (s *Store) toggle(ctx context.Context, table string, postID, userID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE post_id = ? AND user_id = ?`, postID, userID)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO `+table+` (post_id, user_id) VALUES (?, ?)`, postID, userID)
	return err == nil, err
}

func (s *Store) LikeIDs(ctx context.Context, postID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM post_likes WHERE post_id = ? ORDER BY created_at, rowid`, postID)
	return ids, err
}
