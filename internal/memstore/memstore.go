// Package memstore is an in-process persistence backend for development and
// tests. It implements store.Store and auth.UserStore.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
	"github.com/google/uuid"
)

// Store keeps chatrooms, messages and users in memory.
type Store struct {
	mu       sync.RWMutex
	rooms    map[string]models.Chatroom
	messages map[string][]models.Message
	users    map[string]*auth.User
	profiles map[string]models.UserProfile
	watchers map[string]map[chan struct{}]struct{}
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:    make(map[string]models.Chatroom),
		messages: make(map[string][]models.Message),
		users:    make(map[string]*auth.User),
		profiles: make(map[string]models.UserProfile),
		watchers: make(map[string]map[chan struct{}]struct{}),
		now:      time.Now,
	}
}

// ListChatrooms implements store.Store.
func (s *Store) ListChatrooms(ctx context.Context, identity models.Identity) ([]models.Chatroom, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]models.Chatroom, 0)
	for _, r := range s.rooms {
		if r.UserID == identity.UserID {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// CreateChatroom implements store.Store.
func (s *Store) CreateChatroom(ctx context.Context, identity models.Identity, title string) (*models.Chatroom, error) {
	room := models.Chatroom{
		ID:        uuid.New().String(),
		Title:     title,
		UserID:    identity.UserID,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.rooms[room.ID] = room
	s.mu.Unlock()

	return &room, nil
}

// RenameChatroom implements store.Store.
func (s *Store) RenameChatroom(ctx context.Context, identity models.Identity, roomID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || room.UserID != identity.UserID {
		return store.ErrNotFound
	}
	room.Title = title
	s.rooms[roomID] = room
	return nil
}

// DeleteChatroom implements store.Store. Messages go with the room.
func (s *Store) DeleteChatroom(ctx context.Context, identity models.Identity, roomID string) error {
	s.mu.Lock()
	room, ok := s.rooms[roomID]
	if !ok || room.UserID != identity.UserID {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	delete(s.rooms, roomID)
	delete(s.messages, roomID)
	s.mu.Unlock()

	s.notify(roomID)
	return nil
}

// AddMessage implements store.Store.
func (s *Store) AddMessage(ctx context.Context, identity models.Identity, roomID string, msg models.Message) (*models.Message, error) {
	s.mu.Lock()
	room, ok := s.rooms[roomID]
	if !ok || room.UserID != identity.UserID {
		s.mu.Unlock()
		return nil, store.ErrNotFound
	}
	msg.ID = uuid.New().String()
	msg.LocalID = ""
	msg.CreatedAt = s.now()
	msg.Status = models.StatusConfirmed
	s.messages[roomID] = append(s.messages[roomID], msg)
	s.mu.Unlock()

	s.notify(roomID)
	return &msg, nil
}

// ListMessages implements store.Store.
func (s *Store) ListMessages(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok || room.UserID != identity.UserID {
		return nil, store.ErrNotFound
	}
	return s.snapshotLocked(roomID), nil
}

// WatchMessages implements store.Store. Every write to the room publishes a
// fresh snapshot.
func (s *Store) WatchMessages(ctx context.Context, identity models.Identity, roomID string) (store.Subscription, error) {
	if _, err := s.ListMessages(ctx, identity, roomID); err != nil {
		return nil, err
	}

	signal := make(chan struct{}, 1)
	s.mu.Lock()
	if s.watchers[roomID] == nil {
		s.watchers[roomID] = make(map[chan struct{}]struct{})
	}
	s.watchers[roomID][signal] = struct{}{}
	s.mu.Unlock()

	return store.NewFeed(func(ctx context.Context, publish func([]models.Message)) {
		defer s.unwatch(roomID, signal)

		for {
			s.mu.RLock()
			msgs := s.snapshotLocked(roomID)
			s.mu.RUnlock()
			publish(msgs)

			select {
			case <-ctx.Done():
				return
			case <-signal:
			}
		}
	}), nil
}

// UpsertUser implements store.Store.
func (s *Store) UpsertUser(ctx context.Context, identity models.Identity, profile models.UserProfile) error {
	s.mu.Lock()
	s.profiles[profile.ID] = profile
	s.mu.Unlock()
	return nil
}

// Profile returns the stored profile for a user id.
func (s *Store) Profile(userID string) (models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	return p, ok
}

// CreateUser implements auth.UserStore.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return nil, auth.ErrUserExists
	}
	u := &auth.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.users[email] = u
	return u, nil
}

// GetUserByEmail implements auth.UserStore.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[email]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

// Watchers reports the number of open subscriptions on a room.
func (s *Store) Watchers(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers[roomID])
}

func (s *Store) snapshotLocked(roomID string) []models.Message {
	msgs := make([]models.Message, len(s.messages[roomID]))
	copy(msgs, s.messages[roomID])
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
	return msgs
}

func (s *Store) notify(roomID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.watchers[roomID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) unwatch(roomID string, ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watchers[roomID], ch)
	if len(s.watchers[roomID]) == 0 {
		delete(s.watchers, roomID)
	}
}
