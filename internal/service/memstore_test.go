package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

// memStore is an in-memory backend shared by the service tests.
type memStore struct {
	mu sync.Mutex

	users         map[string]domain.User
	requests      map[string]domain.FriendRequest
	notifications map[string]map[string]domain.Notification
	posts         map[string]*memPost
	seq           int64

	failCreateRequest error
	failSetLike       error
}

type memPost struct {
	post  domain.Post
	likes map[string]bool
}

func newMemStore(userIDs ...string) *memStore {
	m := &memStore{
		users:         map[string]domain.User{},
		requests:      map[string]domain.FriendRequest{},
		notifications: map[string]map[string]domain.Notification{},
		posts:         map[string]*memPost{},
	}
	for _, id := range userIDs {
		m.users[id] = domain.User{ID: id, Name: strings.ToUpper(id), Friends: []string{}}
	}
	return m
}

func (m *memStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	u.Friends = slices.Clone(u.Friends)
	return u, nil
}

func (m *memStore) ListUsers(_ context.Context, afterID string, limit int, excludeUserID string) ([]domain.UserSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		if id > afterID && id != excludeUserID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := []domain.UserSummary{}
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, domain.UserSummary{ID: id, Name: m.users[id].Name})
	}
	return out, nil
}

func (m *memStore) GetRequest(_ context.Context, key string) (domain.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[key]
	if !ok {
		return domain.FriendRequest{}, domain.ErrNotFound
	}
	return r, nil
}

func (m *memStore) CreateRequest(_ context.Context, req domain.FriendRequest, n domain.Notification) (domain.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateRequest != nil {
		return domain.FriendRequest{}, m.failCreateRequest
	}
	if cur, ok := m.requests[req.Key]; ok {
		switch cur.Status {
		case domain.RequestStatusPending:
			return domain.FriendRequest{}, domain.ErrAlreadyRequested
		case domain.RequestStatusAccepted:
			return domain.FriendRequest{}, domain.ErrAlreadyExists
		}
	}
	m.requests[req.Key] = req
	m.upsertLocked(n)
	return req, nil
}

func (m *memStore) AcceptRequest(_ context.Context, key, senderID, receiverID string, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addFriendLocked(senderID, receiverID)
	m.addFriendLocked(receiverID, senderID)
	if r, ok := m.requests[key]; ok {
		r.Status = domain.RequestStatusAccepted
		r.UpdatedAt = when
		m.requests[key] = r
	}
	if n, ok := m.notifications[receiverID][senderID]; ok {
		n.Status = domain.RequestStatusAccepted
		n.UpdatedAt = when
		m.notifications[receiverID][senderID] = n
	}
	return nil
}

func (m *memStore) RejectRequest(_ context.Context, key, senderID, receiverID string, when time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.requests[key]; ok && r.Status == domain.RequestStatusPending {
		r.Status = domain.RequestStatusRejected
		r.UpdatedAt = when
		m.requests[key] = r
	}
	if n, ok := m.notifications[receiverID][senderID]; ok {
		n.Status = domain.RequestStatusRejected
		n.UpdatedAt = when
		m.notifications[receiverID][senderID] = n
	}
	return nil
}

func (m *memStore) RemoveFriendship(_ context.Context, key, userID, friendID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pair := range [][2]string{{userID, friendID}, {friendID, userID}} {
		u, ok := m.users[pair[0]]
		if !ok {
			continue
		}
		u.Friends = slices.DeleteFunc(u.Friends, func(id string) bool { return id == pair[1] })
		m.users[pair[0]] = u
	}
	delete(m.requests, key)
	return nil
}

func (m *memStore) addFriendLocked(userID, friendID string) {
	u, ok := m.users[userID]
	if !ok || u.HasFriend(friendID) {
		return
	}
	u.Friends = append(u.Friends, friendID)
	m.users[userID] = u
}

func (m *memStore) UpsertNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(n)
	return n, nil
}

func (m *memStore) upsertLocked(n domain.Notification) {
	feed, ok := m.notifications[n.ReceiverID]
	if !ok {
		feed = map[string]domain.Notification{}
		m.notifications[n.ReceiverID] = feed
	}
	feed[n.ID] = n
}

func (m *memStore) ListNotifications(_ context.Context, receiverID string, after *domain.NotificationPosition, limit int) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.Notification, 0, len(m.notifications[receiverID]))
	for _, n := range m.notifications[receiverID] {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.After(all[j].Timestamp)
		}
		return all[i].ID > all[j].ID
	})
	out := []domain.Notification{}
	for _, n := range all {
		if after != nil {
			if n.Timestamp.After(after.Timestamp) {
				continue
			}
			if n.Timestamp.Equal(after.Timestamp) && n.ID >= after.ID {
				continue
			}
		}
		if len(out) == limit {
			break
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memStore) GetNotification(_ context.Context, receiverID, senderID string) (domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[receiverID][senderID]
	if !ok {
		return domain.Notification{}, domain.ErrNotFound
	}
	return n, nil
}

func (m *memStore) CreatePost(_ context.Context, p domain.Post) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.Seq = m.seq
	m.posts[p.ID] = &memPost{post: p, likes: map[string]bool{}}
	return p, nil
}

func (m *memStore) GetPost(_ context.Context, postID, viewerID string) (domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.posts[postID]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	p := mp.post
	p.LikedByViewer = mp.likes[viewerID]
	return p, nil
}

func (m *memStore) ListPosts(_ context.Context, viewerID string, beforeSeq int64, limit int, filter domain.FeedFilter) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]domain.Post, 0, len(m.posts))
	for _, mp := range m.posts {
		p := mp.post
		p.LikedByViewer = mp.likes[viewerID]
		if beforeSeq > 0 && p.Seq >= beforeSeq {
			continue
		}
		if filter == domain.FeedFilterLiked && !p.LikedByViewer {
			continue
		}
		if filter == domain.FeedFilterNotLiked && p.LikedByViewer {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Seq > all[j].Seq })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) IsLiked(_ context.Context, postID, viewerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.posts[postID]
	if !ok {
		return false, domain.ErrNotFound
	}
	return mp.likes[viewerID], nil
}

func (m *memStore) SetLike(_ context.Context, postID, viewerID string, liked bool) (domain.LikeChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetLike != nil {
		return domain.LikeChange{}, m.failSetLike
	}
	mp, ok := m.posts[postID]
	if !ok {
		return domain.LikeChange{}, domain.ErrNotFound
	}
	changed := mp.likes[viewerID] != liked
	if changed {
		if liked {
			mp.likes[viewerID] = true
			mp.post.LikesCount++
		} else {
			delete(mp.likes, viewerID)
			mp.post.LikesCount--
		}
	}
	return domain.LikeChange{Liked: liked, LikesCount: mp.post.LikesCount, Changed: changed}, nil
}

type memBadges struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (b *memBadges) Incr(_ context.Context, userID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counts == nil {
		b.counts = map[string]int64{}
	}
	b.counts[userID]++
	return b.counts[userID], nil
}

func (b *memBadges) Decr(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counts[userID] > 0 {
		b.counts[userID]--
	}
	return nil
}

func (b *memBadges) Reset(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.counts, userID)
	return nil
}
