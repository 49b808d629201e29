package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Up-to-code/facbbok2/internal/cursor"
	"github.com/Up-to-code/facbbok2/internal/domain"
	"github.com/Up-to-code/facbbok2/internal/events"
)

const maxPostContent = 5000

type PostsStore interface {
	// CreatePost stores p and assigns its insertion sequence.
	CreatePost(ctx context.Context, p domain.Post) (domain.Post, error)
	GetPost(ctx context.Context, postID, viewerID string) (domain.Post, error)
	// ListPosts returns up to limit posts in descending insertion order,
	// strictly before beforeSeq when it is positive.
	ListPosts(ctx context.Context, viewerID string, beforeSeq int64, limit int, filter domain.FeedFilter) ([]domain.Post, error)
	IsLiked(ctx context.Context, postID, viewerID string) (bool, error)
	// SetLike adds or removes viewerID from the post's like set and moves the
	// like count with it in one atomic step. Repeating a call is a no-op.
	SetLike(ctx context.Context, postID, viewerID string, liked bool) (domain.LikeChange, error)
}

type FeedService struct {
	Posts    PostsStore
	Events   EventPublisher
	Cursors  cursor.Codec
	PageSize int
	Clock    *Clock
	Logger   *slog.Logger
	NewID    func() string
}

func (s *FeedService) CreatePost(ctx context.Context, userID, content, imageURL string) (domain.Post, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Post{}, domain.ErrUnauthenticated
	}
	content = strings.TrimSpace(content)
	imageURL = strings.TrimSpace(imageURL)
	fields := map[string]string{}
	if content == "" && imageURL == "" {
		fields["content"] = "content or image_url required"
	}
	if utf8.RuneCountInString(content) > maxPostContent {
		fields["content"] = "too long"
	}
	if len(fields) > 0 {
		return domain.Post{}, domain.NewValidationError(fields)
	}

	newID := s.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	now := s.clock().Next()
	p, err := s.Posts.CreatePost(ctx, domain.Post{
		ID:        newID(),
		UserID:    userID,
		Content:   content,
		ImageURL:  imageURL,
		CreatedAt: now,
	})
	if err != nil {
		return domain.Post{}, domain.OperationFailed("create post", err)
	}
	publishEvent(ctx, s.Events, s.logger(), events.Event{
		Type:      events.TypePostCreated,
		ActorID:   userID,
		SubjectID: p.ID,
		At:        now,
	})
	return p, nil
}

func (s *FeedService) GetPost(ctx context.Context, viewerID, postID string) (domain.Post, error) {
	if strings.TrimSpace(viewerID) == "" {
		return domain.Post{}, domain.ErrUnauthenticated
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return domain.Post{}, domain.NewValidationError(map[string]string{"post_id": "required"})
	}
	p, err := s.Posts.GetPost(ctx, postID, viewerID)
	if err != nil {
		return domain.Post{}, domain.OperationFailed("get post", err)
	}
	return p, nil
}

// FirstPage returns the newest posts. Cursors handed out here are positions,
// not snapshots: posts inserted later are not seen by the same chain.
func (s *FeedService) FirstPage(ctx context.Context, viewerID string, pageSize int, filter domain.FeedFilter) (domain.PostPage, error) {
	if strings.TrimSpace(viewerID) == "" {
		return domain.PostPage{}, domain.ErrUnauthenticated
	}
	return s.page(ctx, viewerID, 0, pageSize, filter)
}

// NextPage continues a chain started by FirstPage. An empty cursor marks the
// end of the stream and yields an empty page.
func (s *FeedService) NextPage(ctx context.Context, viewerID, rawCursor string, pageSize int, filter domain.FeedFilter) (domain.PostPage, error) {
	if strings.TrimSpace(viewerID) == "" {
		return domain.PostPage{}, domain.ErrUnauthenticated
	}
	rawCursor = strings.TrimSpace(rawCursor)
	if rawCursor == "" {
		return domain.PostPage{Posts: []domain.Post{}}, nil
	}
	p, err := decodeCursor(s.Cursors, rawCursor, cursor.KindPosts, postsScope(viewerID, filter))
	if err != nil {
		return domain.PostPage{}, err
	}
	if p.Seq <= 0 {
		return domain.PostPage{}, domain.NewValidationError(map[string]string{"cursor": "invalid"})
	}
	return s.page(ctx, viewerID, p.Seq, pageSize, filter)
}

func (s *FeedService) page(ctx context.Context, viewerID string, beforeSeq int64, pageSize int, filter domain.FeedFilter) (domain.PostPage, error) {
	if filter == "" {
		filter = domain.FeedFilterAll
	}
	limit := pageLimit(pageSize, s.PageSize)
	posts, err := s.Posts.ListPosts(ctx, viewerID, beforeSeq, limit+1, filter)
	if err != nil {
		return domain.PostPage{}, domain.OperationFailed("list posts", err)
	}

	page := domain.PostPage{Posts: posts}
	if len(posts) > limit {
		page.Posts = posts[:limit]
		next, err := s.Cursors.Encode(cursor.Position{
			Kind:  cursor.KindPosts,
			Scope: postsScope(viewerID, filter),
			Seq:   page.Posts[limit-1].Seq,
			ID:    page.Posts[limit-1].ID,
		})
		if err != nil {
			return domain.PostPage{}, domain.OperationFailed("encode cursor", err)
		}
		page.NextCursor = next
	}
	if page.Posts == nil {
		page.Posts = []domain.Post{}
	}
	return page, nil
}

func (s *FeedService) LikedByViewer(ctx context.Context, postID, viewerID string) (bool, error) {
	if strings.TrimSpace(viewerID) == "" {
		return false, domain.ErrUnauthenticated
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return false, domain.NewValidationError(map[string]string{"post_id": "required"})
	}
	liked, err := s.Posts.IsLiked(ctx, postID, viewerID)
	if err != nil {
		return false, domain.OperationFailed("load like", err)
	}
	return liked, nil
}

func (s *FeedService) Like(ctx context.Context, postID, viewerID string) (domain.LikeOutcome, error) {
	return s.setLike(ctx, postID, viewerID, true)
}

func (s *FeedService) Unlike(ctx context.Context, postID, viewerID string) (domain.LikeOutcome, error) {
	return s.setLike(ctx, postID, viewerID, false)
}

// setLike applies a like or unlike. On failure the outcome holds the state
// read before the attempt so a client can roll back to it.
func (s *FeedService) setLike(ctx context.Context, postID, viewerID string, want bool) (domain.LikeOutcome, error) {
	viewerID = strings.TrimSpace(viewerID)
	postID = strings.TrimSpace(postID)
	if viewerID == "" {
		return domain.LikeOutcome{}, domain.ErrUnauthenticated
	}
	if postID == "" {
		return domain.LikeOutcome{}, domain.NewValidationError(map[string]string{"post_id": "required"})
	}

	before, err := s.Posts.GetPost(ctx, postID, viewerID)
	if err != nil {
		return domain.LikeOutcome{
			PostID: postID,
			State:  domain.LikeStateFailed,
			Liked:  !want,
		}, domain.OperationFailed("load post", err)
	}

	change, err := s.Posts.SetLike(ctx, postID, viewerID, want)
	if err != nil {
		return domain.LikeOutcome{
			PostID:     postID,
			State:      domain.LikeStateFailed,
			Liked:      before.LikedByViewer,
			LikesCount: before.LikesCount,
		}, domain.OperationFailed("update like", err)
	}

	if change.Changed {
		eventType := events.TypePostUnliked
		if want {
			eventType = events.TypePostLiked
		}
		publishEvent(ctx, s.Events, s.logger(), events.Event{
			Type:      eventType,
			ActorID:   viewerID,
			SubjectID: postID,
			At:        s.clock().Next(),
		})
	}

	return domain.LikeOutcome{
		PostID:     postID,
		State:      domain.LikeStateConfirmed,
		Liked:      change.Liked,
		LikesCount: change.LikesCount,
	}, nil
}

func (s *FeedService) clock() *Clock {
	if s.Clock == nil {
		return defaultClock
	}
	return s.Clock
}

func (s *FeedService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func postsScope(viewerID string, filter domain.FeedFilter) string {
	if filter == "" {
		filter = domain.FeedFilterAll
	}
	return viewerID + ":" + string(filter)
}
