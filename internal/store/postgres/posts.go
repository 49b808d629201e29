package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Up-to-code/facbbok2/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostsStore struct {
	pool *pgxpool.Pool
}

func NewPostsStore(pool *pgxpool.Pool) *PostsStore {
	return &PostsStore{pool: pool}
}

// postColumns expects the viewer id as $1.
const postColumns = `
	p.seq, p.id, p.user_id, p.content, p.image_url, p.likes_count, p.created_at,
	EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1)
`

func scanPost(row pgx.Row) (domain.Post, error) {
	var (
		p        domain.Post
		imageURL pgtype.Text
	)
	if err := row.Scan(&p.Seq, &p.ID, &p.UserID, &p.Content, &imageURL, &p.LikesCount, &p.CreatedAt, &p.LikedByViewer); err != nil {
		return domain.Post{}, err
	}
	p.ImageURL = textOrEmpty(imageURL)
	return p, nil
}

func (s *PostsStore) CreatePost(ctx context.Context, p domain.Post) (domain.Post, error) {
	const q = `
		INSERT INTO posts (id, user_id, content, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`
	if err := s.pool.QueryRow(ctx, q, p.ID, p.UserID, p.Content, nullIfEmpty(p.ImageURL), p.CreatedAt).Scan(&p.Seq); err != nil {
		if isForeignKeyViolation(err) {
			return domain.Post{}, domain.ErrNotFound
		}
		if isUniqueViolation(err, "") {
			return domain.Post{}, domain.ErrAlreadyExists
		}
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	return p, nil
}

func (s *PostsStore) GetPost(ctx context.Context, postID, viewerID string) (domain.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts p WHERE p.id = $2`

	p, err := scanPost(s.pool.QueryRow(ctx, q, viewerID, postID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Post{}, domain.ErrNotFound
		}
		return domain.Post{}, fmt.Errorf("get post: %w", err)
	}
	return p, nil
}

func (s *PostsStore) ListPosts(ctx context.Context, viewerID string, beforeSeq int64, limit int, filter domain.FeedFilter) ([]domain.Post, error) {
	q := `SELECT ` + postColumns + ` FROM posts p WHERE ($2 = 0 OR p.seq < $2)`
	switch filter {
	case domain.FeedFilterLiked:
		q += ` AND EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1)`
	case domain.FeedFilterNotLiked:
		q += ` AND NOT EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $1)`
	}
	q += ` ORDER BY p.seq DESC LIMIT $3`

	rows, err := s.pool.Query(ctx, q, viewerID, beforeSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	out := []domain.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return out, nil
}

func (s *PostsStore) IsLiked(ctx context.Context, postID, viewerID string) (bool, error) {
	const q = `
		SELECT EXISTS (SELECT 1 FROM post_likes WHERE post_id = p.id AND user_id = $2)
		FROM posts p
		WHERE p.id = $1
	`
	var liked bool
	if err := s.pool.QueryRow(ctx, q, postID, viewerID).Scan(&liked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		return false, fmt.Errorf("load like: %w", err)
	}
	return liked, nil
}

// SetLike changes like-set membership and likes_count together. The counter
// only moves when the membership row was actually inserted or deleted.
func (s *PostsStore) SetLike(ctx context.Context, postID, viewerID string, liked bool) (domain.LikeChange, error) {
	const lock = `SELECT likes_count FROM posts WHERE id = $1 FOR UPDATE`
	const insertLike = `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`
	const deleteLike = `DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`
	const bump = `
		UPDATE posts
		SET likes_count = GREATEST(likes_count + $2, 0)
		WHERE id = $1
		RETURNING likes_count
	`

	change := domain.LikeChange{Liked: liked}
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, lock, postID).Scan(&change.LikesCount); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("lock post: %w", err)
		}

		stmt, delta := deleteLike, -1
		if liked {
			stmt, delta = insertLike, 1
		}
		ct, err := tx.Exec(ctx, stmt, postID, viewerID)
		if err != nil {
			return fmt.Errorf("update like: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return nil
		}
		change.Changed = true
		if err := tx.QueryRow(ctx, bump, postID, delta).Scan(&change.LikesCount); err != nil {
			return fmt.Errorf("update likes count: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.LikeChange{}, err
	}
	return change, nil
}
