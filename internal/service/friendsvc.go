package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/Up-to-code/facbbok2/internal/domain"
	"github.com/Up-to-code/facbbok2/internal/events"
)

// RelationshipsStore persists friend requests and the friend sets they
// produce. Writes that touch several records must be applied as one unit
// where the backend allows it; otherwise each step must be safe to repeat.
type RelationshipsStore interface {
	GetRequest(ctx context.Context, key string) (domain.FriendRequest, error)
	// CreateRequest stores req together with the receiver's notification n.
	// It returns ErrAlreadyRequested while a pending record exists for the
	// key and ErrAlreadyExists once the pair is accepted.
	CreateRequest(ctx context.Context, req domain.FriendRequest, n domain.Notification) (domain.FriendRequest, error)
	// AcceptRequest unions each id into the other's friend set and marks the
	// request and the receiver's notification accepted.
	AcceptRequest(ctx context.Context, key, senderID, receiverID string, when time.Time) error
	// RejectRequest marks a pending request and its notification rejected.
	RejectRequest(ctx context.Context, key, senderID, receiverID string, when time.Time) error
	RemoveFriendship(ctx context.Context, key, userID, friendID string) error
}

type FriendUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type BadgeCounter interface {
	Incr(ctx context.Context, userID string) (int64, error)
	Decr(ctx context.Context, userID string) error
	Reset(ctx context.Context, userID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type FriendsService struct {
	Users         FriendUsersStore
	Relationships RelationshipsStore
	Badges        BadgeCounter
	Notifier      FriendRequestNotifier
	Events        EventPublisher
	Clock         *Clock
	Logger        *slog.Logger
}

func (s *FriendsService) SendRequest(ctx context.Context, senderID, receiverID string) (domain.FriendRequest, error) {
	senderID, receiverID, err := normalizePair(senderID, receiverID, "receiver_id")
	if err != nil {
		return domain.FriendRequest{}, err
	}

	if _, err := s.Users.GetUserByID(ctx, senderID); err != nil {
		return domain.FriendRequest{}, domain.OperationFailed("lookup sender", err)
	}
	if _, err := s.Users.GetUserByID(ctx, receiverID); err != nil {
		return domain.FriendRequest{}, domain.OperationFailed("lookup receiver", err)
	}

	key := domain.PairKey(senderID, receiverID)
	now := s.clock().Next()
	badge := nextBadge(ctx, s.Badges, s.logger(), receiverID)

	req := domain.FriendRequest{
		Key:        key,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     domain.RequestStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	n := domain.Notification{
		ID:         senderID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Status:     domain.RequestStatusPending,
		Body:       domain.BodyFriendRequest,
		Badge:      badge,
		Data:       map[string]any{"type": "friend_request", "request_key": key},
		Dir:        domain.DefaultNotificationDir,
		Timestamp:  now,
		UpdatedAt:  now,
	}

	out, err := s.Relationships.CreateRequest(ctx, req, n)
	if err != nil {
		releaseBadge(ctx, s.Badges, s.logger(), receiverID, badge)
		return domain.FriendRequest{}, domain.OperationFailed("send friend request", err)
	}

	if s.Notifier != nil {
		if err := s.Notifier.NotifyFriendRequest(ctx, FriendRequestNotification{
			RequestKey:  key,
			RequesterID: senderID,
			AddresseeID: receiverID,
			Badge:       badge,
		}); err != nil {
			s.logger().Error("friends: push failed", "err", err, "user_id", receiverID)
		}
	}
	s.publish(ctx, events.TypeFriendRequestSent, senderID, receiverID, key, now)

	return out, nil
}

// AcceptRequest makes senderID and receiverID friends. receiverID is the
// acting user. Repeating an accept, or finishing one that stopped half way,
// converges on both friend sets holding each other exactly once.
func (s *FriendsService) AcceptRequest(ctx context.Context, senderID, receiverID string) error {
	receiverID, senderID, err := normalizePair(receiverID, senderID, "sender_id")
	if err != nil {
		return err
	}

	key := domain.PairKey(senderID, receiverID)
	req, err := s.Relationships.GetRequest(ctx, key)
	switch {
	case err == nil:
		switch req.Status {
		case domain.RequestStatusRejected:
			return domain.ErrNotFound
		case domain.RequestStatusPending:
			if req.SenderID != senderID || req.ReceiverID != receiverID {
				return domain.ErrNotFound
			}
		case domain.RequestStatusAccepted:
			// Repairs follow the recorded roles so only the receiver's
			// entry for this request is touched.
			senderID, receiverID = req.SenderID, req.ReceiverID
		}
	case errors.Is(err, domain.ErrNotFound):
		linked, err := s.partiallyLinked(ctx, senderID, receiverID)
		if err != nil {
			return err
		}
		if !linked {
			return domain.ErrNotFound
		}
	default:
		return domain.OperationFailed("load friend request", err)
	}

	now := s.clock().Next()
	if err := s.Relationships.AcceptRequest(ctx, key, senderID, receiverID, now); err != nil {
		return domain.OperationFailed("accept friend request", err)
	}
	if req.Status != domain.RequestStatusAccepted {
		s.publish(ctx, events.TypeFriendRequestAccepted, receiverID, senderID, key, now)
	}
	return nil
}

// RejectRequest drops the live request senderID sent to receiverID.
// receiverID is the acting user. An absent or already resolved request, or
// one sent the other way, is left alone and is not an error.
func (s *FriendsService) RejectRequest(ctx context.Context, senderID, receiverID string) error {
	receiverID, senderID, err := normalizePair(receiverID, senderID, "sender_id")
	if err != nil {
		return err
	}

	key := domain.PairKey(senderID, receiverID)
	req, err := s.Relationships.GetRequest(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return domain.OperationFailed("load friend request", err)
	}
	if !req.Live() || req.ReceiverID != receiverID {
		return nil
	}

	now := s.clock().Next()
	if err := s.Relationships.RejectRequest(ctx, key, req.SenderID, req.ReceiverID, now); err != nil {
		return domain.OperationFailed("reject friend request", err)
	}
	s.publish(ctx, events.TypeFriendRequestRejected, receiverID, senderID, key, now)
	return nil
}

func (s *FriendsService) GetRequest(ctx context.Context, userID, otherID string) (domain.FriendRequest, error) {
	userID, otherID, err := normalizePair(userID, otherID, "user_id")
	if err != nil {
		return domain.FriendRequest{}, err
	}
	req, err := s.Relationships.GetRequest(ctx, domain.PairKey(userID, otherID))
	if err != nil {
		return domain.FriendRequest{}, domain.OperationFailed("load friend request", err)
	}
	return req, nil
}

func (s *FriendsService) ListFriends(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.NewValidationError(map[string]string{"user_id": "required"})
	}
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, domain.OperationFailed("list friends", err)
	}
	out := slices.Clone(u.Friends)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (s *FriendsService) Unfriend(ctx context.Context, userID, friendID string) error {
	userID, friendID, err := normalizePair(userID, friendID, "friend_id")
	if err != nil {
		return err
	}
	key := domain.PairKey(userID, friendID)
	if err := s.Relationships.RemoveFriendship(ctx, key, userID, friendID); err != nil {
		return domain.OperationFailed("remove friend", err)
	}
	s.publish(ctx, events.TypeFriendRemoved, userID, friendID, key, s.clock().Next())
	return nil
}

// partiallyLinked reports whether an earlier accept already reached either
// friend set after the request record went away.
func (s *FriendsService) partiallyLinked(ctx context.Context, senderID, receiverID string) (bool, error) {
	sender, err := s.Users.GetUserByID(ctx, senderID)
	if err != nil {
		return false, domain.OperationFailed("lookup sender", err)
	}
	if sender.HasFriend(receiverID) {
		return true, nil
	}
	receiver, err := s.Users.GetUserByID(ctx, receiverID)
	if err != nil {
		return false, domain.OperationFailed("lookup receiver", err)
	}
	return receiver.HasFriend(senderID), nil
}

func (s *FriendsService) publish(ctx context.Context, eventType, actorID, subjectID, key string, at time.Time) {
	publishEvent(ctx, s.Events, s.logger(), events.Event{
		Type:      eventType,
		ActorID:   actorID,
		SubjectID: subjectID,
		Key:       key,
		At:        at,
	})
}

func (s *FriendsService) clock() *Clock {
	if s.Clock == nil {
		return defaultClock
	}
	return s.Clock
}

func (s *FriendsService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func normalizePair(actingID, otherID, otherField string) (string, string, error) {
	actingID = strings.TrimSpace(actingID)
	otherID = strings.TrimSpace(otherID)
	if actingID == "" {
		return "", "", domain.ErrUnauthenticated
	}
	if otherID == "" {
		return "", "", domain.NewValidationError(map[string]string{otherField: "required"})
	}
	if strings.Contains(actingID, domain.PairKeySeparator) || strings.Contains(otherID, domain.PairKeySeparator) {
		return "", "", domain.NewValidationError(map[string]string{otherField: "invalid id"})
	}
	if actingID == otherID {
		return "", "", domain.NewValidationError(map[string]string{otherField: "cannot friend yourself"})
	}
	return actingID, otherID, nil
}

func publishEvent(ctx context.Context, pub EventPublisher, logger *slog.Logger, e events.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, e); err != nil {
		logger.Error("events: publish failed", "err", err, "type", e.Type, "actor_id", e.ActorID)
	}
}

func nextBadge(ctx context.Context, badges BadgeCounter, logger *slog.Logger, userID string) int {
	if badges == nil {
		return 0
	}
	n, err := badges.Incr(ctx, userID)
	if err != nil {
		logger.Error("badges: incr failed", "err", err, "user_id", userID)
		return 0
	}
	return int(n)
}

func releaseBadge(ctx context.Context, badges BadgeCounter, logger *slog.Logger, userID string, badge int) {
	if badges == nil || badge == 0 {
		return
	}
	if err := badges.Decr(ctx, userID); err != nil {
		logger.Error("badges: decr failed", "err", err, "user_id", userID)
	}
}
