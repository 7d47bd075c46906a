package services

import (
	"log"
	"time"
)

// Presence reports how many live connections a workspace has.
type Presence interface {
	ClientCount(workspaceID string) int
}

// CleanupService evicts workspaces nobody has used for a while.
// It runs as a background goroutine and periodically checks for idle ones.
type CleanupService struct {
	workspaces *WorkspaceService
	presence   Presence
	interval   time.Duration
	timeout    time.Duration
	stopChan   chan struct{}
}

// NewCleanupService creates a new cleanup service.
// - interval: how often to check for idle workspaces (e.g., 1 minute)
// - timeout: how long a workspace can be idle before eviction
// presence may be nil; otherwise workspaces with an open websocket are kept.
func NewCleanupService(workspaces *WorkspaceService, presence Presence, interval, timeout time.Duration) *CleanupService {
	return &CleanupService{
		workspaces: workspaces,
		presence:   presence,
		interval:   interval,
		timeout:    timeout,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background cleanup worker.
// This method runs in its own goroutine and should be called with 'go'.
func (s *CleanupService) Start() {
	log.Printf("Cleanup service started (interval: %v, timeout: %v)", s.interval, s.timeout)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			log.Println("Cleanup service stopped")
			return
		}
	}
}

// Stop gracefully shuts down the cleanup service.
func (s *CleanupService) Stop() {
	close(s.stopChan)
}

// cleanup closes every workspace idle past the timeout threshold. Closing a
// workspace releases its live message subscription.
func (s *CleanupService) cleanup() int {
	threshold := time.Now().Add(-s.timeout)

	idle := s.workspaces.Idle(threshold)
	if len(idle) == 0 {
		return 0
	}

	removed := 0
	for _, id := range idle {
		if s.presence != nil && s.presence.ClientCount(id) > 0 {
			continue
		}
		s.workspaces.Remove(id)
		removed++
	}

	if removed > 0 {
		log.Printf("Evicted %d idle workspaces", removed)
	}
	return removed
}
