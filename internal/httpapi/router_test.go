package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Up-to-code/facbbok2/internal/auth"
	"github.com/Up-to-code/facbbok2/internal/domain"
	"github.com/Up-to-code/facbbok2/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(t *testing.T, ping func(context.Context) error) (http.Handler, *auth.TokenIssuer) {
	t.Helper()
	users := &stubUsersStore{t: t, users: map[string]domain.User{
		"user-1": {ID: "user-1", Name: "Ada", Email: "ada@example.com"},
	}}
	issuer := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	h := NewRouter(RouterOpts{
		Logger: discardLogger(),
		Ping:   ping,
		Auth:   &service.AuthService{Users: users, Tokens: issuer},
		Users:  &service.UsersService{Store: users},
	})
	return h, issuer
}

func TestRouterRequiresBearerToken(t *testing.T) {
	h, _ := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if got := decodeError(t, rr); got.Code != "unauthenticated" {
		t.Fatalf("unexpected code: %s", got.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a request id header")
	}
}

func TestRouterResolvesBearerUser(t *testing.T) {
	h, issuer := testRouter(t, nil)
	token, _, err := issuer.Issue("user-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var got userResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "user-1" || got.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestRouterTokenForDeletedUserIsUnauthenticated(t *testing.T) {
	h, issuer := testRouter(t, nil)
	token, _, err := issuer.Issue("ghost")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestRouterOtherUserHidesEmail(t *testing.T) {
	h, issuer := testRouter(t, nil)
	token, _, _ := issuer.Issue("user-1")

	req := httptest.NewRequest(http.MethodGet, "/v1/users/user-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var got userResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Email != "" {
		t.Fatalf("expected email to be hidden, got %q", got.Email)
	}
}

func TestRouterUnknownV1RouteIsJSONNotFound(t *testing.T) {
	h, _ := testRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if got := decodeError(t, rr); got.Code != "not_found" {
		t.Fatalf("unexpected code: %s", got.Code)
	}
}

func TestRouterHealthz(t *testing.T) {
	h, _ := testRouter(t, func(context.Context) error { return errors.New("down") })

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	h, _ = testRouter(t, func(context.Context) error { return nil })
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("unexpected response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestWriteDomainErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.NewValidationError(map[string]string{"x": "bad"}), http.StatusBadRequest},
		{domain.ErrUnauthenticated, http.StatusUnauthorized},
		{domain.ErrInvalidToken, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrAlreadyRequested, http.StatusConflict},
		{domain.ErrAlreadyExists, http.StatusConflict},
		{domain.OperationFailed("op", errors.New("boom")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		WriteDomainError(rr, tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
		}
	}
}
