package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/chat"
	"github.com/clxsh19/llm-chat/internal/store"
)

// WorkspaceService owns the live workspaces, one per browser client.
type WorkspaceService struct {
	mu         sync.RWMutex
	workspaces map[string]*chat.Workspace

	store store.Store
	auth  auth.Provider
	ai    chat.Responder

	// publisher receives every State change of every workspace
	publisher func(workspaceID string, state chat.State)
}

// NewWorkspaceService creates a new WorkspaceService instance.
func NewWorkspaceService(st store.Store, provider auth.Provider, ai chat.Responder) *WorkspaceService {
	return &WorkspaceService{
		workspaces: make(map[string]*chat.Workspace),
		store:      st,
		auth:       provider,
		ai:         ai,
	}
}

// SetPublisher installs the fan-out for State changes. It applies to
// workspaces opened afterwards.
func (s *WorkspaceService) SetPublisher(fn func(workspaceID string, state chat.State)) {
	s.mu.Lock()
	s.publisher = fn
	s.mu.Unlock()
}

// Get returns a live workspace and marks it active.
func (s *WorkspaceService) Get(id string) (*chat.Workspace, bool) {
	s.mu.RLock()
	w, ok := s.workspaces[id]
	s.mu.RUnlock()

	if ok {
		w.Touch()
	}
	return w, ok
}

// Open returns the workspace with the given id, or creates a new one and
// resumes its session from accessToken. The second result reports whether
// a workspace was created.
func (s *WorkspaceService) Open(ctx context.Context, id, accessToken string) (*chat.Workspace, bool) {
	if id != "" {
		if w, ok := s.Get(id); ok {
			return w, false
		}
	}

	w := chat.NewWorkspace(uuid.New().String(), s.store, s.auth, s.ai)

	s.mu.Lock()
	if publish := s.publisher; publish != nil {
		wsID := w.ID
		w.SetPublisher(func(state chat.State) { publish(wsID, state) })
	}
	s.workspaces[w.ID] = w
	count := len(s.workspaces)
	s.mu.Unlock()

	log.Printf("[Workspace] Opened %s (total: %d)", w.ID, count)

	w.Resume(ctx, accessToken)
	return w, true
}

// Remove closes and forgets a workspace. Unknown ids are ignored.
func (s *WorkspaceService) Remove(id string) {
	s.mu.Lock()
	w, ok := s.workspaces[id]
	delete(s.workspaces, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	w.Close()
	log.Printf("[Workspace] Closed %s", id)
}

// Idle returns the ids of workspaces inactive since before threshold.
func (s *WorkspaceService) Idle(threshold time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id, w := range s.workspaces {
		if w.LastActive().Before(threshold) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Count returns the number of live workspaces.
func (s *WorkspaceService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}

// CloseAll closes every workspace. Used on shutdown.
func (s *WorkspaceService) CloseAll() {
	s.mu.Lock()
	all := s.workspaces
	s.workspaces = make(map[string]*chat.Workspace)
	s.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
}
