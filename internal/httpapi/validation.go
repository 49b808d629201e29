package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

// pageQuery reads ?cursor= and ?limit=. A missing limit is 0, which the
// services replace with their default page size.
func pageQuery(r *http.Request) (cursor string, limit int, err error) {
	q := r.URL.Query()
	cursor = strings.TrimSpace(q.Get("cursor"))
	raw := strings.TrimSpace(q.Get("limit"))
	if raw == "" {
		return cursor, 0, nil
	}
	limit, convErr := strconv.Atoi(raw)
	if convErr != nil || limit < 1 {
		return "", 0, domain.NewValidationError(map[string]string{"limit": "must be a positive integer"})
	}
	return cursor, limit, nil
}

func pathID(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		return "", domain.NewValidationError(map[string]string{name: "required"})
	}
	return id, nil
}
