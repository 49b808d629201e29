package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	users     map[string]domain.User
	listUsers func(context.Context, string, int, string) ([]domain.UserSummary, error)
}

func (s *stubUsersStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *stubUsersStore) GetUserByEmail(context.Context, string) (domain.User, error) {
	s.t.Fatalf("GetUserByEmail called unexpectedly")
	return domain.User{}, context.Canceled
}

func (s *stubUsersStore) GetUserByExternalAccount(context.Context, string, string) (domain.User, domain.ExternalAccount, error) {
	s.t.Fatalf("GetUserByExternalAccount called unexpectedly")
	return domain.User{}, domain.ExternalAccount{}, context.Canceled
}

func (s *stubUsersStore) CreateUserWithExternalAccount(context.Context, domain.User, domain.ExternalAccount) (domain.User, error) {
	s.t.Fatalf("CreateUserWithExternalAccount called unexpectedly")
	return domain.User{}, context.Canceled
}

func (s *stubUsersStore) LinkExternalAccount(context.Context, domain.ExternalAccount) error {
	s.t.Fatalf("LinkExternalAccount called unexpectedly")
	return context.Canceled
}

func (s *stubUsersStore) ListUsers(ctx context.Context, afterID string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	if s.listUsers != nil {
		return s.listUsers(ctx, afterID, limit, excludeUserID)
	}
	s.t.Fatalf("ListUsers called unexpectedly")
	return nil, context.Canceled
}

func asUser(req *http.Request, id string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), authUserKey, domain.User{ID: id}))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var resp errorEnvelope
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error
}
