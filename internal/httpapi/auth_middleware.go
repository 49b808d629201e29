package httpapi

import (
	"context"
	"net/http"

	"github.com/Up-to-code/facbbok2/internal/auth"
	"github.com/Up-to-code/facbbok2/internal/domain"
)

type authCtxKey int

const authUserKey authCtxKey = iota

func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r)
		if !ok {
			WriteDomainError(w, domain.ErrUnauthenticated)
			return
		}

		u, err := a.authSvc.Authenticate(r.Context(), token)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authUserKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func CurrentUser(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(authUserKey).(domain.User)
	return u, ok
}
