// Package events publishes relationship and feed changes to a message broker
// so that other services can react without polling the stores.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeFriendRequestSent     = "friend_request.sent"
	TypeFriendRequestAccepted = "friend_request.accepted"
	TypeFriendRequestRejected = "friend_request.rejected"
	TypeFriendRemoved         = "friend.removed"
	TypePostCreated           = "post.created"
	TypePostLiked             = "post.liked"
	TypePostUnliked           = "post.unliked"
)

type Event struct {
	Type      string    `json:"type"`
	ActorID   string    `json:"actor_id"`
	SubjectID string    `json:"subject_id"`
	Key       string    `json:"key,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher delivers events to a broker. Implementations are safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

func encode(e Event) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return raw, nil
}

// Subject maps an event type to a broker subject under prefix.
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
func (nopPublisher) Close() error                         { return nil }

// Nop discards every event.
func Nop() Publisher { return nopPublisher{} }
