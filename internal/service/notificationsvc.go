package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Up-to-code/facbbok2/internal/cursor"
	"github.com/Up-to-code/facbbok2/internal/domain"
	"github.com/Up-to-code/facbbok2/internal/notifications"
)

const pushConcurrency = 4

type NotificationsStore interface {
	UpsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	// ListNotifications returns up to limit entries for receiverID ordered by
	// (timestamp desc, id desc), strictly after the given position if any.
	ListNotifications(ctx context.Context, receiverID string, after *domain.NotificationPosition, limit int) ([]domain.Notification, error)
	GetNotification(ctx context.Context, receiverID, senderID string) (domain.Notification, error)
}

// RequestResolver applies a receiver's decision to the friend request behind
// a feed entry. The entry's status follows the request.
type RequestResolver interface {
	AcceptRequest(ctx context.Context, senderID, receiverID string) error
	RejectRequest(ctx context.Context, senderID, receiverID string) error
}

type NotificationTokensStore interface {
	UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error)
	DeleteToken(ctx context.Context, userID, token string) error
	ListTokens(ctx context.Context, userID string) ([]domain.NotificationToken, error)
}

type NotificationUsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
}

type PushSender interface {
	Send(ctx context.Context, token string, msg notifications.Message) error
}

type FriendRequestNotification struct {
	RequestKey  string
	RequesterID string
	AddresseeID string
	Badge       int
}

type FriendRequestNotifier interface {
	NotifyFriendRequest(ctx context.Context, notification FriendRequestNotification) error
}

type NotificationService struct {
	Notifications NotificationsStore
	Tokens        NotificationTokensStore
	Users         NotificationUsersStore
	Requests      RequestResolver
	Sender        PushSender
	Badges        BadgeCounter
	Cursors       cursor.Codec
	PageSize      int
	Clock         *Clock
	Logger        *slog.Logger
}

// Append upserts n into receiverID's feed. The entry is keyed by its sender,
// stamped with a fresh timestamp and carries the receiver's new unread count.
func (s *NotificationService) Append(ctx context.Context, receiverID string, n domain.Notification) (domain.Notification, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return domain.Notification{}, domain.ErrUnauthenticated
	}
	n.SenderID = strings.TrimSpace(n.SenderID)
	if n.SenderID == "" {
		return domain.Notification{}, domain.NewValidationError(map[string]string{"sender_id": "required"})
	}
	if n.Status == "" {
		n.Status = domain.RequestStatusPending
	}
	if !n.Status.Valid() {
		return domain.Notification{}, domain.NewValidationError(map[string]string{"status": "invalid"})
	}
	if n.Dir == "" {
		n.Dir = domain.DefaultNotificationDir
	}

	now := s.clock().Next()
	n.ID = n.SenderID
	n.ReceiverID = receiverID
	n.Timestamp = now
	n.UpdatedAt = now
	n.Badge = nextBadge(ctx, s.Badges, s.logger(), receiverID)

	out, err := s.Notifications.UpsertNotification(ctx, n)
	if err != nil {
		releaseBadge(ctx, s.Badges, s.logger(), receiverID, n.Badge)
		return domain.Notification{}, domain.OperationFailed("append notification", err)
	}
	return out, nil
}

// Page returns one page of receiverID's feed, newest first. An empty
// NextCursor means the feed is exhausted.
func (s *NotificationService) Page(ctx context.Context, receiverID, rawCursor string, pageSize int) (domain.NotificationPage, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return domain.NotificationPage{}, domain.ErrUnauthenticated
	}
	limit := pageLimit(pageSize, s.PageSize)

	var after *domain.NotificationPosition
	if rawCursor = strings.TrimSpace(rawCursor); rawCursor != "" {
		p, err := decodeCursor(s.Cursors, rawCursor, cursor.KindNotifications, receiverID)
		if err != nil {
			return domain.NotificationPage{}, err
		}
		after = &domain.NotificationPosition{Timestamp: microsToTime(p.Time), ID: p.ID}
	}

	items, err := s.Notifications.ListNotifications(ctx, receiverID, after, limit+1)
	if err != nil {
		return domain.NotificationPage{}, domain.OperationFailed("list notifications", err)
	}

	page := domain.NotificationPage{Notifications: items}
	if len(items) > limit {
		page.Notifications = items[:limit]
		last := page.Notifications[limit-1]
		next, err := s.Cursors.Encode(cursor.Position{
			Kind:  cursor.KindNotifications,
			Scope: receiverID,
			Time:  last.Timestamp.UnixMicro(),
			ID:    last.ID,
		})
		if err != nil {
			return domain.NotificationPage{}, domain.OperationFailed("encode cursor", err)
		}
		page.NextCursor = next
	}
	if page.Notifications == nil {
		page.Notifications = []domain.Notification{}
	}
	return page, nil
}

// Resolve accepts or rejects the friend request behind the entry senderID
// left in receiverID's feed and returns the entry as it stands afterwards.
// The entry keeps its position in the feed.
func (s *NotificationService) Resolve(ctx context.Context, receiverID, senderID string, status domain.RequestStatus) (domain.Notification, error) {
	receiverID = strings.TrimSpace(receiverID)
	senderID = strings.TrimSpace(senderID)
	if receiverID == "" {
		return domain.Notification{}, domain.ErrUnauthenticated
	}
	fields := map[string]string{}
	if senderID == "" {
		fields["sender_id"] = "required"
	}
	if status != domain.RequestStatusAccepted && status != domain.RequestStatusRejected {
		fields["status"] = "must be accepted or rejected"
	}
	if len(fields) > 0 {
		return domain.Notification{}, domain.NewValidationError(fields)
	}
	if s.Requests == nil {
		return domain.Notification{}, errors.New("friend requests unavailable")
	}

	var err error
	if status == domain.RequestStatusAccepted {
		err = s.Requests.AcceptRequest(ctx, senderID, receiverID)
	} else {
		err = s.Requests.RejectRequest(ctx, senderID, receiverID)
	}
	if err != nil {
		return domain.Notification{}, err
	}

	out, err := s.Notifications.GetNotification(ctx, receiverID, senderID)
	if err != nil {
		return domain.Notification{}, domain.OperationFailed("load notification", err)
	}
	return out, nil
}

func (s *NotificationService) ClearBadge(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrUnauthenticated
	}
	if s.Badges == nil {
		return nil
	}
	return domain.OperationFailed("clear badge", s.Badges.Reset(ctx, userID))
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID, token, platform string) (domain.NotificationToken, error) {
	if s.Tokens == nil {
		return domain.NotificationToken{}, errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	platform = strings.TrimSpace(strings.ToLower(platform))
	if token == "" || platform == "" {
		return domain.NotificationToken{}, domain.NewValidationError(map[string]string{"token": "required", "platform": "required"})
	}
	switch platform {
	case "android", "ios":
	default:
		return domain.NotificationToken{}, domain.NewValidationError(map[string]string{"platform": "must be ios or android"})
	}
	out, err := s.Tokens.UpsertToken(ctx, userID, token, platform, s.clock().Next())
	if err != nil {
		return domain.NotificationToken{}, domain.OperationFailed("register token", err)
	}
	return out, nil
}

func (s *NotificationService) DeleteToken(ctx context.Context, userID, token string) error {
	if s.Tokens == nil {
		return errors.New("notifications unavailable")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewValidationError(map[string]string{"token": "required"})
	}
	return domain.OperationFailed("delete token", s.Tokens.DeleteToken(ctx, userID, token))
}

func (s *NotificationService) NotifyFriendRequest(ctx context.Context, notification FriendRequestNotification) error {
	if s.Tokens == nil || s.Sender == nil || s.Users == nil {
		return nil
	}
	logger := s.logger()

	tokens, err := s.Tokens.ListTokens(ctx, notification.AddresseeID)
	if err != nil {
		logger.Error("notifications: list tokens failed", "err", err, "user_id", notification.AddresseeID)
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	requester, err := s.Users.GetUserByID(ctx, notification.RequesterID)
	if err != nil {
		logger.Error("notifications: requester lookup failed", "err", err, "user_id", notification.RequesterID)
		return err
	}

	display := strings.TrimSpace(requester.Name)
	payload := map[string]string{
		"type":        "friend_request",
		"sender_id":   requester.ID,
		"name":        display,
		"request_key": notification.RequestKey,
	}
	if notification.Badge > 0 {
		payload["badge"] = strconv.Itoa(notification.Badge)
	}

	body := domain.BodyFriendRequest
	if display != "" {
		body = display + " sent you a friend request."
	}
	dataOnlyMsg := notifications.Message{
		Data: payload,
	}
	iosAlertMsg := notifications.Message{
		Data: payload,
		Notification: &notifications.Notification{
			Title: "Friend request",
			Body:  body,
		},
		Badge: notification.Badge,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pushConcurrency)
	for _, token := range tokens {
		msg := dataOnlyMsg
		if strings.TrimSpace(strings.ToLower(token.Platform)) == "ios" {
			msg = iosAlertMsg
		}
		g.Go(func() error {
			err := s.Sender.Send(gctx, token.Token, msg)
			if err == nil {
				return nil
			}
			if errors.Is(err, notifications.ErrInvalidToken) {
				if delErr := s.Tokens.DeleteToken(gctx, notification.AddresseeID, token.Token); delErr != nil {
					logger.Error("notifications: delete invalid token failed", "err", delErr, "user_id", notification.AddresseeID)
				}
				return nil
			}
			logger.Error("notifications: send failed", "err", err, "user_id", notification.AddresseeID)
			return nil
		})
	}
	return g.Wait()
}

func (s *NotificationService) clock() *Clock {
	if s.Clock == nil {
		return defaultClock
	}
	return s.Clock
}

func (s *NotificationService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
