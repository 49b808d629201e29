package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

type createPostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

func (a *api) handlePostsCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	var req createPostRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	p, err := a.feedSvc.CreatePost(r.Context(), u.ID, req.Content, req.ImageURL)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// handleFeed serves the first page when no cursor is given and the page after
// the cursor otherwise.
func (a *api) handleFeed(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	cursor, limit, err := pageQuery(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	filter, ok := domain.ParseFeedFilter(strings.TrimSpace(r.URL.Query().Get("filter")))
	if !ok {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"filter": "must be all, liked or not_liked"}))
		return
	}

	var page domain.PostPage
	if cursor == "" {
		page, err = a.feedSvc.FirstPage(r.Context(), u.ID, limit, filter)
	} else {
		page, err = a.feedSvc.NextPage(r.Context(), u.ID, cursor, limit, filter)
	}
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, page)
}

func (a *api) handlePostsGet(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	p, err := a.feedSvc.GetPost(r.Context(), u.ID, postID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

type likedResponse struct {
	PostID string `json:"post_id"`
	Liked  bool   `json:"liked"`
}

func (a *api) handlePostsLiked(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	liked, err := a.feedSvc.LikedByViewer(r.Context(), postID, u.ID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, likedResponse{PostID: postID, Liked: liked})
}

func (a *api) handlePostsLike(w http.ResponseWriter, r *http.Request) {
	a.handleLikeChange(w, r, true)
}

func (a *api) handlePostsUnlike(w http.ResponseWriter, r *http.Request) {
	a.handleLikeChange(w, r, false)
}

// handleLikeChange answers a failed write with the outcome as the body so the
// client can roll back its optimistic state from it.
func (a *api) handleLikeChange(w http.ResponseWriter, r *http.Request, like bool) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	var out domain.LikeOutcome
	if like {
		out, err = a.feedSvc.Like(r.Context(), postID, u.ID)
	} else {
		out, err = a.feedSvc.Unlike(r.Context(), postID, u.ID)
	}
	if err != nil && (out.State != domain.LikeStateFailed || !errors.Is(err, domain.ErrOperationFailed)) {
		WriteDomainError(w, err)
		return
	}
	if err != nil {
		a.logger.Warn("posts: like change failed", "err", err, "post_id", postID, "user_id", u.ID)
		WriteJSON(w, http.StatusServiceUnavailable, out)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}
