package chat

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
)

// Stream owns the transcript of the selected room and its single live
// subscription.
type Stream struct {
	store   store.Store
	session *Session
	notify  notifyFunc

	// opMu serializes Select and Close so teardown always completes before
	// the next subscription opens
	opMu sync.Mutex

	mu       sync.Mutex
	selected *string
	messages []models.Message
	sub      store.Subscription
	pumpDone chan struct{}
	gen      uint64
}

// NewStream returns an idle stream.
func NewStream(st store.Store, session *Session, notify func()) *Stream {
	return &Stream{
		store:   st,
		session: session,
		notify:  notify,
	}
}

// Select switches the transcript to roomID, or clears it when roomID is nil.
// The previous subscription is closed and its pump has exited before the new
// one opens. The guest room and signed-out sessions get no subscription.
func (s *Stream) Select(ctx context.Context, roomID *string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.teardown()

	var selected *string
	if roomID != nil {
		id := *roomID
		selected = &id
	}

	s.mu.Lock()
	s.selected = selected
	s.messages = nil
	s.mu.Unlock()

	identity := s.session.CurrentIdentity()
	if selected == nil || *selected == models.GuestRoomID || identity == nil {
		s.notify.fire()
		return nil
	}

	sub, err := s.store.WatchMessages(ctx, *identity, *selected)
	if err != nil {
		log.Printf("[Stream] Failed to subscribe to room %s: %v", *selected, err)
		s.notify.fire()
		return fmt.Errorf("failed to subscribe to room: %w", err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.sub = sub
	s.pumpDone = done
	gen := s.gen
	s.mu.Unlock()

	go s.pump(sub, gen, done)

	log.Printf("[Stream] Subscribed to room %s", *selected)
	s.notify.fire()
	return nil
}

// Close tears down the subscription and clears the selection.
func (s *Stream) Close() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.teardown()

	s.mu.Lock()
	s.selected = nil
	s.messages = nil
	s.mu.Unlock()
}

// Selected returns the selected room id, or nil.
func (s *Stream) Selected() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	id := *s.selected
	return &id
}

// Messages returns a copy of the visible transcript.
func (s *Stream) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Subscribed reports whether a live subscription is open.
func (s *Stream) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// teardown closes the active subscription and waits for its pump. Callers
// hold opMu.
func (s *Stream) teardown() {
	s.mu.Lock()
	sub, done := s.sub, s.pumpDone
	s.sub, s.pumpDone = nil, nil
	s.gen++
	s.mu.Unlock()

	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		log.Printf("[Stream] Error closing subscription: %v", err)
	}
	<-done
}

func (s *Stream) pump(sub store.Subscription, gen uint64, done chan struct{}) {
	defer close(done)

	for snapshot := range sub.Updates() {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			continue
		}
		s.messages = reconcile(snapshot, s.messages)
		s.mu.Unlock()

		s.notify.fire()
	}
}

// appendLocal adds an optimistic entry to the transcript.
func (s *Stream) appendLocal(msg models.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify.fire()
}

// appendIfShowing adds msg only when roomID is still on screen. The guest
// room is on screen when nothing is selected.
func (s *Stream) appendIfShowing(roomID string, msg models.Message) bool {
	s.mu.Lock()
	showing := (roomID == models.GuestRoomID && s.selected == nil) ||
		(s.selected != nil && *s.selected == roomID)
	if showing {
		s.messages = append(s.messages, msg)
	}
	s.mu.Unlock()

	if showing {
		s.notify.fire()
	}
	return showing
}

// setStatus updates the status of the optimistic entry localID, if it is
// still in the transcript.
func (s *Stream) setStatus(localID string, status models.MessageStatus) {
	s.mu.Lock()
	changed := false
	for i := range s.messages {
		if s.messages[i].LocalID == localID {
			s.messages[i].Status = status
			changed = true
			break
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify.fire()
	}
}

// markStored records the id the store assigned to the optimistic entry
// localID. The entry is dropped right away when a snapshot already carried
// that id; otherwise the next snapshot containing it replaces the entry.
func (s *Stream) markStored(localID, id string) {
	s.mu.Lock()
	changed := false
	for i := range s.messages {
		if s.messages[i].LocalID != localID {
			continue
		}
		if containsID(s.messages, id) {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
		} else {
			s.messages[i].ID = id
		}
		changed = true
		break
	}
	s.mu.Unlock()

	if changed {
		s.notify.fire()
	}
}

// containsID reports whether a snapshot entry with id is in msgs.
func containsID(msgs []models.Message, id string) bool {
	for _, m := range msgs {
		if m.LocalID == "" && m.ID == id {
			return true
		}
	}
	return false
}

// reconcile replaces the transcript with snapshot. Optimistic entries are
// carried over until the snapshot holds the id their write was stored under:
// a pending entry whose write has not returned yet always stays, and failed
// entries stay until the room changes.
func reconcile(snapshot, current []models.Message) []models.Message {
	ids := make(map[string]struct{}, len(snapshot))
	next := make([]models.Message, 0, len(snapshot))

	for _, m := range snapshot {
		m.Status = models.StatusConfirmed
		m.LocalID = ""
		next = append(next, m)
		if m.ID != "" {
			ids[m.ID] = struct{}{}
		}
	}

	for _, m := range current {
		if m.LocalID == "" {
			continue
		}
		switch m.Status {
		case models.StatusPending:
			if _, stored := ids[m.ID]; m.ID != "" && stored {
				continue
			}
			next = append(next, m)
		case models.StatusFailed:
			next = append(next, m)
		}
	}

	return next
}
