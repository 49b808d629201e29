package service

import (
	"time"

	"github.com/Up-to-code/facbbok2/internal/cursor"
	"github.com/Up-to-code/facbbok2/internal/domain"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

func pageLimit(requested, fallback int) int {
	if fallback <= 0 {
		fallback = DefaultPageSize
	}
	if requested <= 0 {
		requested = fallback
	}
	if requested > MaxPageSize {
		requested = MaxPageSize
	}
	return requested
}

func decodeCursor(c cursor.Codec, raw, kind, scope string) (cursor.Position, error) {
	p, err := c.Decode(raw, kind, scope)
	if err != nil {
		return cursor.Position{}, domain.NewValidationError(map[string]string{"cursor": "invalid"})
	}
	return p, nil
}

func microsToTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
