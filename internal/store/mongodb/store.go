// Package mongodb stores the social graph in document collections keyed the
// same way as the postgres tables. Multi-document writes run in a session
// transaction when the deployment supports it; otherwise they run as ordered
// steps where the authoritative record is written last, so repeating a failed
// call converges.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colUsers              = "users"
	colExternalAccounts   = "externalAccounts"
	colFriendRequests     = "friendRequests"
	colNotifications      = "notifications"
	colNotificationTokens = "notificationTokens"
	colPosts              = "posts"
	colCounters           = "counters"
)

type Store struct {
	db    *mongo.Database
	useTx bool
}

func New(db *mongo.Database, useTx bool) *Store {
	return &Store{db: db, useTx: useTx}
}

func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(10 * time.Second)
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return cli, nil
}

// EnsureIndexes creates the indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}})},
		},
		colExternalAccounts: {
			{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "providerId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "timestamp", Value: -1}, {Key: "senderId", Value: -1}}},
		},
		colNotificationTokens: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		colPosts: {
			{Keys: bson.D{{Key: "seq", Value: -1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for col, models := range specs {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", col, err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// withTx runs fn inside a transaction when enabled, otherwise directly.
func (s *Store) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if !s.useTx {
		return fn(ctx)
	}
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func ptr[T any](v T) *T { return &v }

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }
