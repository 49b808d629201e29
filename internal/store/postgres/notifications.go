package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Up-to-code/facbbok2/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationsStore struct {
	pool *pgxpool.Pool
}

func NewNotificationsStore(pool *pgxpool.Pool) *NotificationsStore {
	return &NotificationsStore{pool: pool}
}

const notificationColumns = `sender_id, receiver_id, status, body, badge, data, dir, ts, updated_at`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.SenderID, &n.ReceiverID, &n.Status, &n.Body, &n.Badge, &n.Data, &n.Dir, &n.Timestamp, &n.UpdatedAt); err != nil {
		return domain.Notification{}, err
	}
	n.ID = n.SenderID
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	return n, nil
}

func upsertNotification(ctx context.Context, db dbtx, n domain.Notification) (domain.Notification, error) {
	const q = `
		INSERT INTO notifications (receiver_id, sender_id, status, body, badge, data, dir, ts, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (receiver_id, sender_id) DO UPDATE SET
			status = EXCLUDED.status,
			body = EXCLUDED.body,
			badge = EXCLUDED.badge,
			data = EXCLUDED.data,
			dir = EXCLUDED.dir,
			ts = EXCLUDED.ts,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + notificationColumns

	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	out, err := scanNotification(db.QueryRow(ctx, q,
		n.ReceiverID,
		n.SenderID,
		n.Status,
		n.Body,
		n.Badge,
		data,
		n.Dir,
		n.Timestamp,
		n.UpdatedAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("upsert notification: %w", err)
	}
	return out, nil
}

func (s *NotificationsStore) UpsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	return upsertNotification(ctx, s.pool, n)
}

func (s *NotificationsStore) ListNotifications(ctx context.Context, receiverID string, after *domain.NotificationPosition, limit int) ([]domain.Notification, error) {
	const first = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE receiver_id = $1
		ORDER BY ts DESC, sender_id DESC
		LIMIT $2
	`
	const next = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE receiver_id = $1 AND (ts, sender_id) < ($3, $4)
		ORDER BY ts DESC, sender_id DESC
		LIMIT $2
	`

	var (
		rows pgx.Rows
		err  error
	)
	if after == nil {
		rows, err = s.pool.Query(ctx, first, receiverID, limit)
	} else {
		rows, err = s.pool.Query(ctx, next, receiverID, limit, after.Timestamp, after.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationsStore) GetNotification(ctx context.Context, receiverID, senderID string) (domain.Notification, error) {
	const q = `
		SELECT ` + notificationColumns + `
		FROM notifications
		WHERE receiver_id = $1 AND sender_id = $2
	`

	n, err := scanNotification(s.pool.QueryRow(ctx, q, receiverID, senderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}
