package domain

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusRejected:
		return true
	}
	return false
}

// PairKeySeparator joins the two sorted ids of a canonical pair key.
const PairKeySeparator = "_"

// PairKey returns the canonical key for the unordered pair {a, b}.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + PairKeySeparator + b
}

// FriendRequest is the authoritative relationship record for a pair.
// SenderID and ReceiverID keep the direction of the latest request.
type FriendRequest struct {
	Key        string        `json:"key"`
	SenderID   string        `json:"sender_id"`
	ReceiverID string        `json:"receiver_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (r FriendRequest) Live() bool { return r.Status == RequestStatusPending }

// Involves reports whether id is one side of the request.
func (r FriendRequest) Involves(id string) bool {
	return strings.TrimSpace(id) != "" && (r.SenderID == id || r.ReceiverID == id)
}
