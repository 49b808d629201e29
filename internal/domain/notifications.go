package domain

import "time"

const DefaultNotificationDir = "default"

const (
	BodyFriendRequest         = "You have a new friend request"
	BodyFriendRequestAccepted = "Friend request accepted"
	BodyFriendRequestRejected = "Friend request rejected"
)

// Notification is one entry in a receiver's feed, keyed by (receiver, sender).
// Status mirrors the related FriendRequest at the time of the last write.
type Notification struct {
	ID         string         `json:"id"`
	SenderID   string         `json:"sender_id"`
	ReceiverID string         `json:"receiver_id"`
	Status     RequestStatus  `json:"status"`
	Body       string         `json:"body"`
	Badge      int            `json:"badge"`
	Data       map[string]any `json:"data"`
	Dir        string         `json:"dir"`
	Timestamp  time.Time      `json:"timestamp"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	NextCursor    string         `json:"next_cursor,omitempty"`
}

// NotificationPosition is the keyset position of a feed entry.
type NotificationPosition struct {
	Timestamp time.Time
	ID        string
}

type NotificationToken struct {
	ID        string    `json:"-"`
	UserID    string    `json:"-"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
