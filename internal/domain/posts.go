package domain

import "time"

type Post struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Content       string    `json:"content"`
	ImageURL      string    `json:"image_url,omitempty"`
	LikesCount    int64     `json:"likes_count"`
	LikedByViewer bool      `json:"liked_by_viewer"`
	Seq           int64     `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

type PostPage struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// FeedFilter narrows a feed page relative to the viewer's likes.
type FeedFilter string

const (
	FeedFilterAll      FeedFilter = "all"
	FeedFilterLiked    FeedFilter = "liked"
	FeedFilterNotLiked FeedFilter = "not_liked"
)

func ParseFeedFilter(s string) (FeedFilter, bool) {
	switch FeedFilter(s) {
	case "", FeedFilterAll:
		return FeedFilterAll, true
	case FeedFilterLiked, FeedFilterNotLiked:
		return FeedFilter(s), true
	}
	return "", false
}

// LikeState is the lifecycle of a like/unlike action as seen by a client.
type LikeState string

const (
	LikeStatePending   LikeState = "pending"
	LikeStateConfirmed LikeState = "confirmed"
	LikeStateFailed    LikeState = "failed"
)

// LikeOutcome is the result of a like or unlike. A confirmed outcome carries
// the stored state; a failed outcome carries the state to roll back to.
type LikeOutcome struct {
	PostID     string    `json:"post_id"`
	State      LikeState `json:"state"`
	Liked      bool      `json:"liked"`
	LikesCount int64     `json:"likes_count"`
}

// LikeChange is what a store reports after applying a like or unlike.
type LikeChange struct {
	Liked      bool
	LikesCount int64
	Changed    bool
}
