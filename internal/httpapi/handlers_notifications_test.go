package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Up-to-code/facbbok2/internal/cursor"
	"github.com/Up-to-code/facbbok2/internal/domain"
	"github.com/Up-to-code/facbbok2/internal/service"
)

type stubNotificationTokensStore struct {
	t *testing.T

	upsertFunc func(context.Context, string, string, string, time.Time) (domain.NotificationToken, error)
	deleteFunc func(context.Context, string, string) error
}

func (s *stubNotificationTokensStore) UpsertToken(ctx context.Context, userID, token, platform string, when time.Time) (domain.NotificationToken, error) {
	if s.upsertFunc != nil {
		return s.upsertFunc(ctx, userID, token, platform, when)
	}
	s.t.Fatalf("UpsertToken called unexpectedly")
	return domain.NotificationToken{}, context.Canceled
}

func (s *stubNotificationTokensStore) DeleteToken(ctx context.Context, userID, token string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, userID, token)
	}
	s.t.Fatalf("DeleteToken called unexpectedly")
	return context.Canceled
}

func (s *stubNotificationTokensStore) ListTokens(context.Context, string) ([]domain.NotificationToken, error) {
	s.t.Fatalf("ListTokens called unexpectedly")
	return nil, context.Canceled
}

type stubNotificationsStore struct {
	t *testing.T

	listFunc func(context.Context, string, *domain.NotificationPosition, int) ([]domain.Notification, error)
	getFunc  func(context.Context, string, string) (domain.Notification, error)
}

func (s *stubNotificationsStore) UpsertNotification(context.Context, domain.Notification) (domain.Notification, error) {
	s.t.Fatalf("UpsertNotification called unexpectedly")
	return domain.Notification{}, context.Canceled
}

func (s *stubNotificationsStore) ListNotifications(ctx context.Context, receiverID string, after *domain.NotificationPosition, limit int) ([]domain.Notification, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, receiverID, after, limit)
	}
	s.t.Fatalf("ListNotifications called unexpectedly")
	return nil, context.Canceled
}

func (s *stubNotificationsStore) GetNotification(ctx context.Context, receiverID, senderID string) (domain.Notification, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, receiverID, senderID)
	}
	s.t.Fatalf("GetNotification called unexpectedly")
	return domain.Notification{}, context.Canceled
}

type stubRequestResolver struct {
	t *testing.T

	acceptFunc func(context.Context, string, string) error
	rejectFunc func(context.Context, string, string) error
}

func (s *stubRequestResolver) AcceptRequest(ctx context.Context, senderID, receiverID string) error {
	if s.acceptFunc != nil {
		return s.acceptFunc(ctx, senderID, receiverID)
	}
	s.t.Fatalf("AcceptRequest called unexpectedly")
	return context.Canceled
}

func (s *stubRequestResolver) RejectRequest(ctx context.Context, senderID, receiverID string) error {
	if s.rejectFunc != nil {
		return s.rejectFunc(ctx, senderID, receiverID)
	}
	s.t.Fatalf("RejectRequest called unexpectedly")
	return context.Canceled
}

func TestNotificationsTokenUpsertRejectsInvalidPlatform(t *testing.T) {
	api := &api{
		notificationsSvc: &service.NotificationService{
			Tokens: &stubNotificationTokensStore{t: t},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/token", strings.NewReader(`{"token":"t","platform":"web"}`))
	rr := httptest.NewRecorder()
	api.handleNotificationsTokenUpsert(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if got := decodeError(t, rr); got.Code != "validation_error" || got.Fields["platform"] == "" {
		t.Fatalf("unexpected error: %+v", got)
	}
}

func TestNotificationsTokenUpsertAcceptsIOSPlatform(t *testing.T) {
	called := false
	api := &api{
		notificationsSvc: &service.NotificationService{
			Tokens: &stubNotificationTokensStore{
				t: t,
				upsertFunc: func(_ context.Context, userID, token, platform string, _ time.Time) (domain.NotificationToken, error) {
					called = true
					if userID != "user-1" || token != "t" || platform != "ios" {
						t.Fatalf("unexpected args: %s %s %s", userID, token, platform)
					}
					return domain.NotificationToken{Token: token, Platform: platform}, nil
				},
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/token", strings.NewReader(`{"token":"t","platform":"iOS"}`))
	rr := httptest.NewRecorder()
	api.handleNotificationsTokenUpsert(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if !called {
		t.Fatalf("expected token upsert to be called")
	}
}

func TestNotificationsTokenDeleteRequiresToken(t *testing.T) {
	api := &api{
		notificationsSvc: &service.NotificationService{
			Tokens: &stubNotificationTokensStore{t: t},
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/notifications/token", nil)
	rr := httptest.NewRecorder()
	api.handleNotificationsTokenDelete(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestNotificationsListPagesWithCursor(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	all := make([]domain.Notification, 0, 3)
	for i, sender := range []string{"c", "b", "a"} {
		all = append(all, domain.Notification{
			ID:         sender,
			SenderID:   sender,
			ReceiverID: "user-1",
			Status:     domain.RequestStatusPending,
			Timestamp:  base.Add(-time.Duration(i) * time.Minute),
		})
	}

	store := &stubNotificationsStore{
		t: t,
		listFunc: func(_ context.Context, receiverID string, after *domain.NotificationPosition, limit int) ([]domain.Notification, error) {
			if receiverID != "user-1" {
				t.Fatalf("unexpected receiver: %s", receiverID)
			}
			start := 0
			if after != nil {
				for i, n := range all {
					if n.ID == after.ID && n.Timestamp.Equal(after.Timestamp) {
						start = i + 1
					}
				}
			}
			end := min(start+limit, len(all))
			return all[start:end], nil
		},
	}
	api := &api{
		notificationsSvc: &service.NotificationService{
			Notifications: store,
			Cursors:       cursor.NewCodec([]byte("test-cursor-secret")),
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications?limit=2", nil)
	rr := httptest.NewRecorder()
	api.handleNotificationsList(rr, asUser(req, "user-1"))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var first domain.NotificationPage
	if err := json.NewDecoder(rr.Body).Decode(&first); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(first.Notifications) != 2 || first.NextCursor == "" {
		t.Fatalf("unexpected first page: %+v", first)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/notifications?limit=2&cursor="+first.NextCursor, nil)
	rr = httptest.NewRecorder()
	api.handleNotificationsList(rr, asUser(req, "user-1"))
	var second domain.NotificationPage
	if err := json.NewDecoder(rr.Body).Decode(&second); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(second.Notifications) != 1 || second.Notifications[0].ID != "a" || second.NextCursor != "" {
		t.Fatalf("unexpected second page: %+v", second)
	}

	// Another user's cursor is rejected.
	req = httptest.NewRequest(http.MethodGet, "/v1/notifications?cursor="+first.NextCursor, nil)
	rr = httptest.NewRecorder()
	api.handleNotificationsList(rr, asUser(req, "user-2"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for foreign cursor: %d", rr.Code)
	}
}

func TestNotificationsListRejectsBadLimit(t *testing.T) {
	api := &api{notificationsSvc: &service.NotificationService{}}

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications?limit=zero", nil)
	rr := httptest.NewRecorder()
	api.handleNotificationsList(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestNotificationsResolveAcceptsTheRequest(t *testing.T) {
	accepted := false
	requests := &stubRequestResolver{
		t: t,
		acceptFunc: func(_ context.Context, senderID, receiverID string) error {
			if senderID != "user-2" || receiverID != "user-1" {
				t.Fatalf("unexpected args: %s %s", senderID, receiverID)
			}
			accepted = true
			return nil
		},
	}
	store := &stubNotificationsStore{
		t: t,
		getFunc: func(_ context.Context, receiverID, senderID string) (domain.Notification, error) {
			if !accepted {
				t.Fatalf("notification read before the request was accepted")
			}
			return domain.Notification{ID: senderID, SenderID: senderID, ReceiverID: receiverID, Status: domain.RequestStatusAccepted}, nil
		},
	}
	api := &api{notificationsSvc: &service.NotificationService{Notifications: store, Requests: requests}}

	req := httptest.NewRequest(http.MethodPatch, "/v1/notifications/user-2", strings.NewReader(`{"status":"accepted"}`))
	req.SetPathValue("id", "user-2")
	rr := httptest.NewRecorder()
	api.handleNotificationsResolve(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var got domain.Notification
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Status != domain.RequestStatusAccepted {
		t.Fatalf("unexpected status: %s", got.Status)
	}
}

func TestNotificationsResolveMissingRequestIsNotFound(t *testing.T) {
	requests := &stubRequestResolver{
		t: t,
		acceptFunc: func(context.Context, string, string) error {
			return domain.ErrNotFound
		},
	}
	api := &api{notificationsSvc: &service.NotificationService{
		Notifications: &stubNotificationsStore{t: t},
		Requests:      requests,
	}}

	req := httptest.NewRequest(http.MethodPatch, "/v1/notifications/user-2", strings.NewReader(`{"status":"accepted"}`))
	req.SetPathValue("id", "user-2")
	rr := httptest.NewRecorder()
	api.handleNotificationsResolve(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestNotificationsResolveRejectsOtherStatuses(t *testing.T) {
	api := &api{notificationsSvc: &service.NotificationService{
		Notifications: &stubNotificationsStore{t: t},
		Requests:      &stubRequestResolver{t: t},
	}}

	for _, status := range []string{"maybe", "pending"} {
		req := httptest.NewRequest(http.MethodPatch, "/v1/notifications/user-2", strings.NewReader(`{"status":"`+status+`"}`))
		req.SetPathValue("id", "user-2")
		rr := httptest.NewRecorder()
		api.handleNotificationsResolve(rr, asUser(req, "user-1"))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: unexpected status: %d", status, rr.Code)
		}
	}
}
