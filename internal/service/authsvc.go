package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Up-to-code/facbbok2/internal/auth"
	"github.com/Up-to-code/facbbok2/internal/domain"
)

const maxNameLength = 48

type UsersStore interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUserByExternalAccount(ctx context.Context, provider, providerID string) (domain.User, domain.ExternalAccount, error)
	CreateUserWithExternalAccount(ctx context.Context, u domain.User, acct domain.ExternalAccount) (domain.User, error)
	LinkExternalAccount(ctx context.Context, acct domain.ExternalAccount) error
}

type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
	Verify(token string) (string, error)
}

type AuthService struct {
	Users  UsersStore
	Tokens TokenIssuer
	Clock  *Clock
	NewID  func() string

	GoogleClientID      string
	AppleServiceID      string
	VerifyGoogleIDToken auth.IDTokenVerifier
	VerifyAppleIDToken  auth.IDTokenVerifier
}

func (s *AuthService) LoginWithGoogle(ctx context.Context, idToken, name string) (domain.User, domain.AccessToken, error) {
	verify := s.VerifyGoogleIDToken
	if verify == nil {
		verify = auth.VerifyGoogleIDToken
	}
	return s.loginWithProvider(ctx, auth.ProviderGoogle, s.GoogleClientID, verify, idToken, name)
}

func (s *AuthService) LoginWithApple(ctx context.Context, idToken, name string) (domain.User, domain.AccessToken, error) {
	verify := s.VerifyAppleIDToken
	if verify == nil {
		verify = auth.VerifyAppleIDToken
	}
	return s.loginWithProvider(ctx, auth.ProviderApple, s.AppleServiceID, verify, idToken, name)
}

// loginWithProvider verifies the provider token and finds the user behind it.
// Unknown accounts are linked to a user with the same email, or create one.
func (s *AuthService) loginWithProvider(ctx context.Context, provider, audience string, verify auth.IDTokenVerifier, idToken, name string) (domain.User, domain.AccessToken, error) {
	if strings.TrimSpace(idToken) == "" {
		return domain.User{}, domain.AccessToken{}, domain.NewValidationError(map[string]string{"id_token": "required"})
	}
	claims, err := verify(ctx, idToken, audience)
	if err != nil || claims == nil || strings.TrimSpace(claims.Subject) == "" {
		return domain.User{}, domain.AccessToken{}, domain.ErrInvalidToken
	}

	u, _, err := s.Users.GetUserByExternalAccount(ctx, provider, claims.Subject)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		u, err = s.linkOrCreate(ctx, provider, claims, name)
		if err != nil {
			return domain.User{}, domain.AccessToken{}, err
		}
	default:
		return domain.User{}, domain.AccessToken{}, domain.OperationFailed("lookup external account", err)
	}

	tok, err := s.issue(u.ID)
	if err != nil {
		return domain.User{}, domain.AccessToken{}, err
	}
	return u, tok, nil
}

func (s *AuthService) linkOrCreate(ctx context.Context, provider string, claims *auth.ExternalTokenClaims, name string) (domain.User, error) {
	now := s.clock().Next()
	acct := domain.ExternalAccount{
		Provider:   provider,
		ProviderID: claims.Subject,
		Email:      claims.Email,
		CreatedAt:  now,
	}

	if claims.Email != "" {
		existing, err := s.Users.GetUserByEmail(ctx, claims.Email)
		switch {
		case err == nil:
			acct.ID = s.newID()
			acct.UserID = existing.ID
			if err := s.Users.LinkExternalAccount(ctx, acct); err != nil {
				return domain.User{}, domain.OperationFailed("link external account", err)
			}
			return existing, nil
		case !errors.Is(err, domain.ErrNotFound):
			return domain.User{}, domain.OperationFailed("lookup user by email", err)
		}
	}

	display := cleanName(name)
	if display == "" {
		display = cleanName(claims.Name)
	}
	if display == "" && claims.Email != "" {
		display, _, _ = strings.Cut(claims.Email, "@")
	}

	u := domain.User{
		ID:        s.newID(),
		Name:      display,
		Email:     claims.Email,
		Friends:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	acct.ID = s.newID()
	acct.UserID = u.ID
	created, err := s.Users.CreateUserWithExternalAccount(ctx, u, acct)
	if err != nil {
		return domain.User{}, domain.OperationFailed("create user", err)
	}
	return created, nil
}

// Authenticate resolves a bearer token to the acting user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.User, error) {
	userID, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.User{}, domain.ErrUnauthenticated
	}
	u, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthenticated
		}
		return domain.User{}, domain.OperationFailed("load user", err)
	}
	return u, nil
}

func (s *AuthService) issue(userID string) (domain.AccessToken, error) {
	token, exp, err := s.Tokens.Issue(userID)
	if err != nil {
		return domain.AccessToken{}, domain.OperationFailed("issue token", err)
	}
	return domain.AccessToken{Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *AuthService) clock() *Clock {
	if s.Clock == nil {
		return defaultClock
	}
	return s.Clock
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	n := 0
	for _, r := range name {
		if r < 32 {
			continue
		}
		if n == maxNameLength {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}
