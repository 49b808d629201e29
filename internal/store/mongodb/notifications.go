package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

// notificationDoc lives at receiverId/senderId so a sender owns at most one
// entry per receiver. The timestamp is stored in microseconds to keep the
// keyset order exact.
type notificationDoc struct {
	ID         string         `bson:"_id"`
	ReceiverID string         `bson:"receiverId"`
	SenderID   string         `bson:"senderId"`
	Status     string         `bson:"status"`
	Body       string         `bson:"body"`
	Badge      int            `bson:"badge"`
	Data       map[string]any `bson:"data"`
	Dir        string         `bson:"dir"`
	Timestamp  int64          `bson:"timestamp"`
	UpdatedAt  time.Time      `bson:"updatedAt"`
}

func notificationID(receiverID, senderID string) string {
	return receiverID + "/" + senderID
}

func (d notificationDoc) toDomain() domain.Notification {
	n := domain.Notification{
		ID:         d.SenderID,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Status:     domain.RequestStatus(d.Status),
		Body:       d.Body,
		Badge:      d.Badge,
		Data:       d.Data,
		Dir:        d.Dir,
		Timestamp:  fromMicros(d.Timestamp),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	return n
}

func (s *Store) UpsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	return s.upsertNotification(ctx, n)
}

func (s *Store) upsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	d := notificationDoc{
		ID:         notificationID(n.ReceiverID, n.SenderID),
		ReceiverID: n.ReceiverID,
		SenderID:   n.SenderID,
		Status:     string(n.Status),
		Body:       n.Body,
		Badge:      n.Badge,
		Data:       data,
		Dir:        n.Dir,
		Timestamp:  toMicros(n.Timestamp),
		UpdatedAt:  n.UpdatedAt,
	}
	_, err := s.col(colNotifications).ReplaceOne(ctx, bson.M{"_id": d.ID}, d, options.Replace().SetUpsert(true))
	if err != nil {
		return domain.Notification{}, fmt.Errorf("upsert notification: %w", err)
	}
	return d.toDomain(), nil
}

func (s *Store) ListNotifications(ctx context.Context, receiverID string, after *domain.NotificationPosition, limit int) ([]domain.Notification, error) {
	filter := bson.M{"receiverId": receiverID}
	if after != nil {
		ts := toMicros(after.Timestamp)
		filter["$or"] = bson.A{
			bson.M{"timestamp": bson.M{"$lt": ts}},
			bson.M{"timestamp": ts, "senderId": bson.M{"$lt": after.ID}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "senderId", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.col(colNotifications).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.Notification{}
	for cur.Next(ctx) {
		var d notificationDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		out = append(out, d.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Store) GetNotification(ctx context.Context, receiverID, senderID string) (domain.Notification, error) {
	var d notificationDoc
	if err := s.col(colNotifications).FindOne(ctx, bson.M{"_id": notificationID(receiverID, senderID)}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Notification{}, domain.ErrNotFound
		}
		return domain.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return d.toDomain(), nil
}

// setNotificationStatus leaves the timestamp alone so the entry keeps its
// feed position. A missing entry is not an error.
func (s *Store) setNotificationStatus(ctx context.Context, receiverID, senderID string, status domain.RequestStatus, when time.Time) error {
	update := bson.M{"$set": bson.M{"status": string(status), "updatedAt": when}}
	_, err := s.col(colNotifications).UpdateOne(ctx, bson.M{"_id": notificationID(receiverID, senderID)}, update)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	return nil
}
