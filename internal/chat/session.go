// Package chat holds the per-client conversation state: session, room
// directory, message stream and the controller that drives AI replies.
package chat

import (
	"errors"
	"sync"

	"github.com/clxsh19/llm-chat/internal/models"
)

var (
	// ErrEmptyMessage is returned when a blank message is sent
	ErrEmptyMessage = errors.New("message is empty")
	// ErrAIBusy is returned while a previous AI request is still outstanding
	ErrAIBusy = errors.New("AI is still responding")
	// ErrNoIdentity is returned by operations that need a signed-in user
	ErrNoIdentity = errors.New("not signed in")
)

// notifyFunc is called after a component changed its state, outside any of
// the component's locks.
type notifyFunc func()

func (f notifyFunc) fire() {
	if f != nil {
		f()
	}
}

// Session tracks the current identity. It starts in the loading state until
// the first identity is resolved.
type Session struct {
	mu        sync.RWMutex
	identity  *models.Identity
	loading   bool
	nextID    int
	listeners map[int]func(*models.Identity)
}

// NewSession returns a session that is still loading.
func NewSession() *Session {
	return &Session{
		loading:   true,
		listeners: make(map[int]func(*models.Identity)),
	}
}

// CurrentIdentity returns a copy of the signed-in identity, or nil.
func (s *Session) CurrentIdentity() *models.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

// Loading reports whether the identity has not been resolved yet.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// OnIdentityChange registers cb to run on every identity change and returns
// a function that removes it.
func (s *Session) OnIdentityChange(cb func(*models.Identity)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = cb
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// set replaces the identity and notifies listeners. Only the auth
// passthrough on Workspace calls it.
func (s *Session) set(identity *models.Identity) {
	var next *models.Identity
	if identity != nil {
		copied := *identity
		next = &copied
	}

	s.mu.Lock()
	s.identity = next
	s.loading = false
	listeners := make([]func(*models.Identity), 0, len(s.listeners))
	for _, cb := range s.listeners {
		listeners = append(listeners, cb)
	}
	s.mu.Unlock()

	for _, cb := range listeners {
		if next == nil {
			cb(nil)
			continue
		}
		id := *next
		cb(&id)
	}
}
