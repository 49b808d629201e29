package service

import (
	"context"
	"strings"

	"github.com/Up-to-code/facbbok2/internal/cursor"
	"github.com/Up-to-code/facbbok2/internal/domain"
)

type UsersDirectoryStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	// ListUsers returns up to limit users with ids greater than afterID in
	// ascending id order, leaving out excludeUserID.
	ListUsers(ctx context.Context, afterID string, limit int, excludeUserID string) ([]domain.UserSummary, error)
}

type UsersService struct {
	Store    UsersDirectoryStore
	Cursors  cursor.Codec
	PageSize int
}

func (s *UsersService) Get(ctx context.Context, id string) (domain.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.User{}, domain.NewValidationError(map[string]string{"id": "required"})
	}
	u, err := s.Store.GetUserByID(ctx, id)
	if err != nil {
		return domain.User{}, domain.OperationFailed("get user", err)
	}
	return u, nil
}

// List pages through every user but the viewer, ordered by id.
func (s *UsersService) List(ctx context.Context, viewerID, rawCursor string, limit int) (domain.UserPage, error) {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return domain.UserPage{}, domain.ErrUnauthenticated
	}
	limit = pageLimit(limit, s.PageSize)

	afterID := ""
	if rawCursor = strings.TrimSpace(rawCursor); rawCursor != "" {
		p, err := decodeCursor(s.Cursors, rawCursor, cursor.KindUsers, viewerID)
		if err != nil {
			return domain.UserPage{}, err
		}
		afterID = p.ID
	}

	users, err := s.Store.ListUsers(ctx, afterID, limit+1, viewerID)
	if err != nil {
		return domain.UserPage{}, domain.OperationFailed("list users", err)
	}
	page := domain.UserPage{Users: users}
	if len(users) > limit {
		page.Users = users[:limit]
		next, err := s.Cursors.Encode(cursor.Position{
			Kind:  cursor.KindUsers,
			Scope: viewerID,
			ID:    page.Users[limit-1].ID,
		})
		if err != nil {
			return domain.UserPage{}, domain.OperationFailed("encode cursor", err)
		}
		page.NextCursor = next
	}
	if page.Users == nil {
		page.Users = []domain.UserSummary{}
	}
	return page, nil
}
