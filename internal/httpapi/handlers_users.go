package httpapi

import (
	"net/http"
	"time"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

type userResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	ProfileImage string    `json:"profile_image"`
	Friends      []string  `json:"friends"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

func newUserResponse(u domain.User) userResponse {
	friends := u.Friends
	if friends == nil {
		friends = []string{}
	}
	return userResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		ProfileImage: u.ProfileImage,
		Friends:      friends,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    formatMillis(u.UpdatedAt),
	}
}

func (a *api) handleUsersMe(w http.ResponseWriter, r *http.Request) {
	u, ok := CurrentUser(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, newUserResponse(u))
}

func (a *api) handleUsersList(w http.ResponseWriter, r *http.Request) {
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

	page, err := a.usersSvc.List(r.Context(), u.ID, cursor, limit)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// handleUsersGet returns another user's public profile; email stays private.
func (a *api) handleUsersGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := CurrentUser(r.Context()); !ok {
		WriteDomainError(w, domain.ErrUnauthenticated)
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	other, err := a.usersSvc.Get(r.Context(), id)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	other.Email = ""
	WriteJSON(w, http.StatusOK, newUserResponse(other))
}
