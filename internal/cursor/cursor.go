// Package cursor encodes opaque, tamper-evident pagination positions.
//
// A cursor names the last item a page returned, the feed it belongs to and
// the scope (usually the owning user) it was issued for. Cursors are
// forward-only positions, not snapshots: records inserted ahead of a
// position are not seen by that chain and records deleted behind it can
// shift page boundaries.
package cursor

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	KindNotifications = "notifications"
	KindPosts         = "posts"
	KindUsers         = "users"
)

var ErrInvalid = errors.New("invalid cursor")

// Position is the keyset position a cursor resumes after.
type Position struct {
	Kind  string `json:"k"`
	Scope string `json:"s,omitempty"`
	// Time is a Unix timestamp in microseconds.
	Time int64  `json:"t,omitempty"`
	Seq  int64  `json:"n,omitempty"`
	ID   string `json:"i,omitempty"`
}

type Codec struct {
	key []byte
}

func NewCodec(secret []byte) Codec {
	key := make([]byte, len(secret))
	copy(key, secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return Codec{key: key}
}

func (c Codec) Encode(p Position) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	mac, err := c.sum(raw)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(raw) + "." + enc.EncodeToString(mac), nil
}

// Decode verifies s and checks that it was issued for kind and scope.
func (c Codec) Decode(s, kind, scope string) (Position, error) {
	body, sig, ok := strings.Cut(s, ".")
	if !ok || body == "" || sig == "" {
		return Position{}, ErrInvalid
	}
	enc := base64.RawURLEncoding
	raw, err := enc.DecodeString(body)
	if err != nil {
		return Position{}, ErrInvalid
	}
	got, err := enc.DecodeString(sig)
	if err != nil {
		return Position{}, ErrInvalid
	}
	want, err := c.sum(raw)
	if err != nil {
		return Position{}, err
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return Position{}, ErrInvalid
	}

	var p Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return Position{}, ErrInvalid
	}
	if p.Kind != kind || p.Scope != scope {
		return Position{}, ErrInvalid
	}
	return p, nil
}

func (c Codec) sum(raw []byte) ([]byte, error) {
	var key []byte
	if len(c.key) > 0 {
		key = c.key
	}
	h, err := blake2b.New256(key)
	if err != nil {
		return nil, fmt.Errorf("cursor mac: %w", err)
	}
	_, _ = h.Write(raw)
	return h.Sum(nil), nil
}
