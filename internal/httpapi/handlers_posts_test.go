package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Up-to-code/facbbok2/internal/cursor"
	"github.com/Up-to-code/facbbok2/internal/domain"
	"github.com/Up-to-code/facbbok2/internal/service"
)

type stubPostsStore struct {
	t *testing.T

	createFunc  func(context.Context, domain.Post) (domain.Post, error)
	getFunc     func(context.Context, string, string) (domain.Post, error)
	listFunc    func(context.Context, string, int64, int, domain.FeedFilter) ([]domain.Post, error)
	isLikedFunc func(context.Context, string, string) (bool, error)
	setLikeFunc func(context.Context, string, string, bool) (domain.LikeChange, error)
}

func (s *stubPostsStore) CreatePost(ctx context.Context, p domain.Post) (domain.Post, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, p)
	}
	s.t.Fatalf("CreatePost called unexpectedly")
	return domain.Post{}, context.Canceled
}

func (s *stubPostsStore) GetPost(ctx context.Context, postID, viewerID string) (domain.Post, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, postID, viewerID)
	}
	s.t.Fatalf("GetPost called unexpectedly")
	return domain.Post{}, context.Canceled
}

func (s *stubPostsStore) ListPosts(ctx context.Context, viewerID string, beforeSeq int64, limit int, filter domain.FeedFilter) ([]domain.Post, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, viewerID, beforeSeq, limit, filter)
	}
	s.t.Fatalf("ListPosts called unexpectedly")
	return nil, context.Canceled
}

func (s *stubPostsStore) IsLiked(ctx context.Context, postID, viewerID string) (bool, error) {
	if s.isLikedFunc != nil {
		return s.isLikedFunc(ctx, postID, viewerID)
	}
	s.t.Fatalf("IsLiked called unexpectedly")
	return false, context.Canceled
}

func (s *stubPostsStore) SetLike(ctx context.Context, postID, viewerID string, liked bool) (domain.LikeChange, error) {
	if s.setLikeFunc != nil {
		return s.setLikeFunc(ctx, postID, viewerID, liked)
	}
	s.t.Fatalf("SetLike called unexpectedly")
	return domain.LikeChange{}, context.Canceled
}

func feedAPI(store *stubPostsStore) *api {
	return &api{
		logger: discardLogger(),
		feedSvc: &service.FeedService{
			Posts:   store,
			Cursors: cursor.NewCodec([]byte("test-cursor-secret")),
			NewID:   func() string { return "post-1" },
		},
	}
}

func TestPostsCreate(t *testing.T) {
	store := &stubPostsStore{
		t: t,
		createFunc: func(_ context.Context, p domain.Post) (domain.Post, error) {
			if p.ID != "post-1" || p.UserID != "user-1" || p.Content != "hello" {
				t.Fatalf("unexpected post: %+v", p)
			}
			p.Seq = 1
			return p, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(`{"content":"hello"}`))
	rr := httptest.NewRecorder()
	feedAPI(store).handlePostsCreate(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestPostsCreateRequiresContentOrImage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/posts", strings.NewReader(`{"content":"   "}`))
	rr := httptest.NewRecorder()
	feedAPI(&stubPostsStore{t: t}).handlePostsCreate(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestFeedRejectsUnknownFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/feed?filter=popular", nil)
	rr := httptest.NewRecorder()
	feedAPI(&stubPostsStore{t: t}).handleFeed(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	if got := decodeError(t, rr); got.Fields["filter"] == "" {
		t.Fatalf("expected filter field error, got %+v", got)
	}
}

func TestFeedFirstPagePassesFilter(t *testing.T) {
	store := &stubPostsStore{
		t: t,
		listFunc: func(_ context.Context, viewerID string, beforeSeq int64, limit int, filter domain.FeedFilter) ([]domain.Post, error) {
			if viewerID != "user-1" || beforeSeq != 0 || filter != domain.FeedFilterLiked {
				t.Fatalf("unexpected args: %s %d %s", viewerID, beforeSeq, filter)
			}
			if limit != service.DefaultPageSize+1 {
				t.Fatalf("unexpected limit: %d", limit)
			}
			return []domain.Post{{ID: "p2", Seq: 2, LikedByViewer: true}, {ID: "p1", Seq: 1, LikedByViewer: true}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/feed?filter=liked", nil)
	rr := httptest.NewRecorder()
	feedAPI(store).handleFeed(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var page domain.PostPage
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(page.Posts) != 2 || page.NextCursor != "" {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestPostsLikeFailureReturnsRollbackState(t *testing.T) {
	store := &stubPostsStore{
		t: t,
		getFunc: func(_ context.Context, postID, _ string) (domain.Post, error) {
			return domain.Post{ID: postID, LikesCount: 4, LikedByViewer: false}, nil
		},
		setLikeFunc: func(context.Context, string, string, bool) (domain.LikeChange, error) {
			return domain.LikeChange{}, errors.New("write timeout")
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/posts/p1/like", nil)
	req.SetPathValue("id", "p1")
	rr := httptest.NewRecorder()
	feedAPI(store).handlePostsLike(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var out domain.LikeOutcome
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.State != domain.LikeStateFailed || out.Liked || out.LikesCount != 4 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestPostsUnlikeMissingPostIsNotFound(t *testing.T) {
	store := &stubPostsStore{
		t: t,
		getFunc: func(context.Context, string, string) (domain.Post, error) {
			return domain.Post{}, domain.ErrNotFound
		},
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/posts/p404/like", nil)
	req.SetPathValue("id", "p404")
	rr := httptest.NewRecorder()
	feedAPI(store).handlePostsUnlike(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestPostsLikeConfirmed(t *testing.T) {
	store := &stubPostsStore{
		t: t,
		getFunc: func(_ context.Context, postID, _ string) (domain.Post, error) {
			return domain.Post{ID: postID, LikesCount: 4}, nil
		},
		setLikeFunc: func(_ context.Context, _, _ string, liked bool) (domain.LikeChange, error) {
			return domain.LikeChange{Liked: liked, LikesCount: 5, Changed: true}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/v1/posts/p1/like", nil)
	req.SetPathValue("id", "p1")
	rr := httptest.NewRecorder()
	feedAPI(store).handlePostsLike(rr, asUser(req, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	var out domain.LikeOutcome
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.State != domain.LikeStateConfirmed || !out.Liked || out.LikesCount != 5 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
