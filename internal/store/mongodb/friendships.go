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

type friendRequestDoc struct {
	Key        string    `bson:"_id"`
	SenderID   string    `bson:"senderId"`
	ReceiverID string    `bson:"receiverId"`
	Status     string    `bson:"status"`
	Timestamp  time.Time `bson:"timestamp"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func (d friendRequestDoc) toDomain() domain.FriendRequest {
	return domain.FriendRequest{
		Key:        d.Key,
		SenderID:   d.SenderID,
		ReceiverID: d.ReceiverID,
		Status:     domain.RequestStatus(d.Status),
		CreatedAt:  d.Timestamp.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

func (s *Store) GetRequest(ctx context.Context, key string) (domain.FriendRequest, error) {
	var d friendRequestDoc
	if err := s.col(colFriendRequests).FindOne(ctx, bson.M{"_id": key}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.FriendRequest{}, domain.ErrNotFound
		}
		return domain.FriendRequest{}, fmt.Errorf("get friend request: %w", err)
	}
	return d.toDomain(), nil
}

// requestConflict maps an existing live or accepted record to its error.
func requestConflict(r domain.FriendRequest) error {
	switch r.Status {
	case domain.RequestStatusPending:
		return domain.ErrAlreadyRequested
	case domain.RequestStatusAccepted:
		return domain.ErrAlreadyExists
	}
	return nil
}

// CreateRequest writes the receiver's notification first and the request
// last. The request write only replaces an absent or rejected record, so two
// racing senders cannot both win.
func (s *Store) CreateRequest(ctx context.Context, req domain.FriendRequest, n domain.Notification) (domain.FriendRequest, error) {
	d := friendRequestDoc{
		Key:        req.Key,
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Status:     string(domain.RequestStatusPending),
		Timestamp:  req.CreatedAt,
		UpdatedAt:  req.UpdatedAt,
	}

	err := s.withTx(ctx, func(ctx context.Context) error {
		existing, err := s.GetRequest(ctx, req.Key)
		switch {
		case err == nil:
			if err := requestConflict(existing); err != nil {
				return err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if _, err := s.upsertNotification(ctx, n); err != nil {
			return err
		}

		filter := bson.M{"_id": req.Key, "status": string(domain.RequestStatusRejected)}
		_, err = s.col(colFriendRequests).ReplaceOne(ctx, filter, d, options.Replace().SetUpsert(true))
		if err == nil {
			return nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create friend request: %w", err)
		}
		current, getErr := s.GetRequest(ctx, req.Key)
		if getErr != nil {
			return getErr
		}
		if conflict := requestConflict(current); conflict != nil {
			return conflict
		}
		return fmt.Errorf("create friend request: %w", err)
	})
	if err != nil {
		return domain.FriendRequest{}, err
	}
	return d.toDomain(), nil
}

func (s *Store) AcceptRequest(ctx context.Context, key, senderID, receiverID string, when time.Time) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		if err := s.addFriend(ctx, senderID, receiverID, when); err != nil {
			return err
		}
		if err := s.addFriend(ctx, receiverID, senderID, when); err != nil {
			return err
		}
		if err := s.setNotificationStatus(ctx, receiverID, senderID, domain.RequestStatusAccepted, when); err != nil {
			return err
		}

		filter := bson.M{"_id": key, "status": bson.M{"$ne": string(domain.RequestStatusAccepted)}}
		update := bson.M{"$set": bson.M{"status": string(domain.RequestStatusAccepted), "updatedAt": when}}
		if _, err := s.col(colFriendRequests).UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("accept friend request: %w", err)
		}
		return nil
	})
}

func (s *Store) RejectRequest(ctx context.Context, key, senderID, receiverID string, when time.Time) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		if err := s.setNotificationStatus(ctx, receiverID, senderID, domain.RequestStatusRejected, when); err != nil {
			return err
		}

		filter := bson.M{"_id": key, "status": string(domain.RequestStatusPending)}
		update := bson.M{"$set": bson.M{"status": string(domain.RequestStatusRejected), "updatedAt": when}}
		if _, err := s.col(colFriendRequests).UpdateOne(ctx, filter, update); err != nil {
			return fmt.Errorf("reject friend request: %w", err)
		}
		return nil
	})
}

// RemoveFriendship drops the request record before the friend entries so a
// retry after a partial failure still finds both links to remove.
func (s *Store) RemoveFriendship(ctx context.Context, key, userID, friendID string) error {
	return s.withTx(ctx, func(ctx context.Context) error {
		if _, err := s.col(colFriendRequests).DeleteOne(ctx, bson.M{"_id": key}); err != nil {
			return fmt.Errorf("delete friend request: %w", err)
		}
		for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
			update := bson.M{"$pull": bson.M{"friends": pair[1]}}
			if _, err := s.col(colUsers).UpdateOne(ctx, bson.M{"_id": pair[0]}, update); err != nil {
				return fmt.Errorf("unlink friends: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) addFriend(ctx context.Context, userID, friendID string, when time.Time) error {
	update := bson.M{
		"$addToSet": bson.M{"friends": friendID},
		"$set":      bson.M{"updatedAt": when},
	}
	res, err := s.col(colUsers).UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("link friends: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
