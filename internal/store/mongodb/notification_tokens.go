package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

type notificationTokenDoc struct {
	Token     string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	Platform  string    `bson:"platform"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (d notificationTokenDoc) toDomain() domain.NotificationToken {
	return domain.NotificationToken{
		ID:        d.Token,
		UserID:    d.UserID,
		Token:     d.Token,
		Platform:  d.Platform,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

// UpsertToken moves a device token to userID when the device signs in as
// someone else.
func (s *Store) UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
	update := bson.M{
		"$set":         bson.M{"userId": userID, "platform": platform, "updatedAt": when},
		"$setOnInsert": bson.M{"createdAt": when},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var d notificationTokenDoc
	if err := s.col(colNotificationTokens).FindOneAndUpdate(ctx, bson.M{"_id": token}, update, opts).Decode(&d); err != nil {
		return domain.NotificationToken{}, fmt.Errorf("upsert notification token: %w", err)
	}
	return d.toDomain(), nil
}

func (s *Store) DeleteToken(ctx context.Context, userID, token string) error {
	if _, err := s.col(colNotificationTokens).DeleteOne(ctx, bson.M{"_id": token, "userId": userID}); err != nil {
		return fmt.Errorf("delete notification token: %w", err)
	}
	return nil
}

func (s *Store) ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cur, err := s.col(colNotificationTokens).Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	defer cur.Close(ctx)

	var out []domain.NotificationToken
	for cur.Next(ctx) {
		var d notificationTokenDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode notification token: %w", err)
		}
		out = append(out, d.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list notification tokens: %w", err)
	}
	return out, nil
}
