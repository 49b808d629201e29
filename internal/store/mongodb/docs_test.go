package mongodb

import (
	"errors"
	"testing"
	"time"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

func TestNotificationDocToDomain(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456000, time.UTC)
	d := notificationDoc{
		ID:         notificationID("bob", "alice"),
		ReceiverID: "bob",
		SenderID:   "alice",
		Status:     "pending",
		Badge:      3,
		Timestamp:  toMicros(ts),
	}
	if d.ID != "bob/alice" {
		t.Fatalf("unexpected doc id: %q", d.ID)
	}

	n := d.toDomain()
	if n.ID != "alice" || n.SenderID != "alice" || n.ReceiverID != "bob" {
		t.Fatalf("unexpected ids: %+v", n)
	}
	if !n.Timestamp.Equal(ts) {
		t.Fatalf("timestamp: got %s want %s", n.Timestamp, ts)
	}
	if n.Data == nil {
		t.Fatalf("expected empty data map")
	}
	if n.Status != domain.RequestStatusPending {
		t.Fatalf("unexpected status: %q", n.Status)
	}
}

func TestRequestConflict(t *testing.T) {
	cases := []struct {
		status domain.RequestStatus
		want   error
	}{
		{domain.RequestStatusPending, domain.ErrAlreadyRequested},
		{domain.RequestStatusAccepted, domain.ErrAlreadyExists},
		{domain.RequestStatusRejected, nil},
	}
	for _, tc := range cases {
		err := requestConflict(domain.FriendRequest{Status: tc.status})
		if !errors.Is(err, tc.want) || (tc.want == nil && err != nil) {
			t.Fatalf("%s: got %v want %v", tc.status, err, tc.want)
		}
	}
}

func TestUserDocToDomainDefaultsFriends(t *testing.T) {
	email := "a@example.com"
	u := userDoc{ID: "u1", Name: "A", Email: &email}.toDomain()
	if u.Email != email {
		t.Fatalf("email: got %q", u.Email)
	}
	if u.Friends == nil || len(u.Friends) != 0 {
		t.Fatalf("expected empty friends, got %v", u.Friends)
	}
}
