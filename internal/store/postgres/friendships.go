package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Up-to-code/facbbok2/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FriendshipsStore keeps friend_requests, user_friends and the receiver's
// notification row in step by writing them in one transaction.
type FriendshipsStore struct {
	pool *pgxpool.Pool
}

func NewFriendshipsStore(pool *pgxpool.Pool) *FriendshipsStore {
	return &FriendshipsStore{pool: pool}
}

func (s *FriendshipsStore) GetRequest(ctx context.Context, key string) (domain.FriendRequest, error) {
	const q = `
		SELECT pair_key, sender_id, receiver_id, status, created_at, updated_at
		FROM friend_requests
		WHERE pair_key = $1
	`

	var r domain.FriendRequest
	err := s.pool.QueryRow(ctx, q, key).Scan(&r.Key, &r.SenderID, &r.ReceiverID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FriendRequest{}, domain.ErrNotFound
		}
		return domain.FriendRequest{}, fmt.Errorf("get friend request: %w", err)
	}
	return r, nil
}

// CreateRequest inserts a pending request, replacing a rejected one, and
// upserts the receiver's notification in the same transaction.
func (s *FriendshipsStore) CreateRequest(ctx context.Context, req domain.FriendRequest, n domain.Notification) (domain.FriendRequest, error) {
	const upsert = `
		INSERT INTO friend_requests (pair_key, sender_id, receiver_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', $4, $4)
		ON CONFLICT (pair_key) DO UPDATE SET
			sender_id = EXCLUDED.sender_id,
			receiver_id = EXCLUDED.receiver_id,
			status = 'pending',
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at
		WHERE friend_requests.status = 'rejected'
		RETURNING pair_key, sender_id, receiver_id, status, created_at, updated_at
	`
	const current = `SELECT status FROM friend_requests WHERE pair_key = $1`

	var out domain.FriendRequest
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, upsert, req.Key, req.SenderID, req.ReceiverID, req.CreatedAt).Scan(
			&out.Key,
			&out.SenderID,
			&out.ReceiverID,
			&out.Status,
			&out.CreatedAt,
			&out.UpdatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			var status domain.RequestStatus
			if err := tx.QueryRow(ctx, current, req.Key).Scan(&status); err != nil {
				return fmt.Errorf("load friend request: %w", err)
			}
			if status == domain.RequestStatusAccepted {
				return domain.ErrAlreadyExists
			}
			return domain.ErrAlreadyRequested
		}
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("create friend request: %w", err)
		}

		_, err = upsertNotification(ctx, tx, n)
		return err
	})
	if err != nil {
		return domain.FriendRequest{}, err
	}
	return out, nil
}

func (s *FriendshipsStore) AcceptRequest(ctx context.Context, key, senderID, receiverID string, when time.Time) error {
	const link = `
		INSERT INTO user_friends (user_id, friend_id, created_at)
		VALUES ($1, $2, $3), ($2, $1, $3)
		ON CONFLICT (user_id, friend_id) DO NOTHING
	`
	const markRequest = `
		UPDATE friend_requests
		SET status = 'accepted', updated_at = $2
		WHERE pair_key = $1 AND status <> 'accepted'
	`

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, link, senderID, receiverID, when); err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("link friends: %w", err)
		}
		if _, err := tx.Exec(ctx, markRequest, key, when); err != nil {
			return fmt.Errorf("accept friend request: %w", err)
		}
		return setNotificationStatus(ctx, tx, receiverID, senderID, domain.RequestStatusAccepted, when)
	})
}

func (s *FriendshipsStore) RejectRequest(ctx context.Context, key, senderID, receiverID string, when time.Time) error {
	const markRequest = `
		UPDATE friend_requests
		SET status = 'rejected', updated_at = $2
		WHERE pair_key = $1 AND status = 'pending'
	`

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, markRequest, key, when); err != nil {
			return fmt.Errorf("reject friend request: %w", err)
		}
		return setNotificationStatus(ctx, tx, receiverID, senderID, domain.RequestStatusRejected, when)
	})
}

func (s *FriendshipsStore) RemoveFriendship(ctx context.Context, key, userID, friendID string) error {
	const unlink = `
		DELETE FROM user_friends
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
	`
	const dropRequest = `DELETE FROM friend_requests WHERE pair_key = $1`

	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, unlink, userID, friendID); err != nil {
			return fmt.Errorf("unlink friends: %w", err)
		}
		if _, err := tx.Exec(ctx, dropRequest, key); err != nil {
			return fmt.Errorf("delete friend request: %w", err)
		}
		return nil
	})
}

// setNotificationStatus leaves ts alone so the entry keeps its feed position.
// A missing row is not an error here.
func setNotificationStatus(ctx context.Context, db dbtx, receiverID, senderID string, status domain.RequestStatus, when time.Time) error {
	const q = `
		UPDATE notifications
		SET status = $3, updated_at = $4
		WHERE receiver_id = $1 AND sender_id = $2
	`
	if _, err := db.Exec(ctx, q, receiverID, senderID, status, when); err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	return nil
}
