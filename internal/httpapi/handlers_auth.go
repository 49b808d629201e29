package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

type externalLoginRequest struct {
	IDToken string `json:"id_token"`
	Name    string `json:"name"`
}

type loginResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   string       `json:"expires_at"`
}

type externalLoginFunc func(ctx context.Context, idToken, name string) (domain.User, domain.AccessToken, error)

func (a *api) handleAuthLoginGoogle(w http.ResponseWriter, r *http.Request) {
	a.handleExternalLogin(w, r, a.authSvc.LoginWithGoogle)
}

func (a *api) handleAuthLoginApple(w http.ResponseWriter, r *http.Request) {
	a.handleExternalLogin(w, r, a.authSvc.LoginWithApple)
}

func (a *api) handleExternalLogin(w http.ResponseWriter, r *http.Request, login externalLoginFunc) {
	var req externalLoginRequest
	if err := decodeJSONAllowUnknownFields(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}
	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"id_token": "required"}))
		return
	}

	u, tok, err := login(r.Context(), req.IDToken, req.Name)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, loginResponse{
		User:        newUserResponse(u),
		AccessToken: tok.Token,
		ExpiresAt:   formatMillis(tok.ExpiresAt),
	})
}
