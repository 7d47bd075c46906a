package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
)

const untitled = "Untitled"

// Directory is the set of chatrooms visible to the current identity. Every
// mutation is applied locally before the store call settles and is never
// rolled back.
type Directory struct {
	store   store.Store
	session *Session
	stream  *Stream
	notify  notifyFunc
	now     func() time.Time

	mu    sync.Mutex
	rooms []models.Chatroom
}

// NewDirectory returns an empty directory. Deleting the selected room clears
// it from stream.
func NewDirectory(st store.Store, session *Session, stream *Stream, notify func()) *Directory {
	return &Directory{
		store:   st,
		session: session,
		stream:  stream,
		notify:  notify,
		now:     time.Now,
	}
}

// Load replaces the room set with the rooms owned by identity. A nil
// identity empties it; a store failure is logged and also leaves it empty.
func (d *Directory) Load(ctx context.Context, identity *models.Identity) {
	d.mu.Lock()
	d.rooms = nil
	d.mu.Unlock()

	if identity == nil {
		d.notify.fire()
		return
	}

	rooms, err := d.store.ListChatrooms(ctx, *identity)
	if err != nil {
		log.Printf("[Chat] Failed to load chatrooms for %s: %v", identity.UserID, err)
		d.notify.fire()
		return
	}

	// The identity may have changed while the list was in flight
	current := d.session.CurrentIdentity()
	if current == nil || current.UserID != identity.UserID {
		return
	}

	loaded := make([]models.Chatroom, 0, len(rooms))
	for _, r := range rooms {
		if r.Title == "" {
			r.Title = untitled
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = d.now()
		}
		loaded = append(loaded, r)
	}

	d.mu.Lock()
	d.rooms = loaded
	d.mu.Unlock()

	log.Printf("[Chat] Loaded %d chatrooms for %s", len(loaded), identity.UserID)
	d.notify.fire()
}

// Create persists a new room owned by the current identity and appends it
// locally with a client-side timestamp. It returns ErrNoIdentity for guests.
func (d *Directory) Create(ctx context.Context, title string) (string, error) {
	identity := d.session.CurrentIdentity()
	if identity == nil {
		return "", ErrNoIdentity
	}

	room, err := d.store.CreateChatroom(ctx, *identity, title)
	if err != nil {
		log.Printf("[Chat] Failed to create chatroom: %v", err)
		return "", fmt.Errorf("failed to create chatroom: %w", err)
	}

	d.mu.Lock()
	d.rooms = append(d.rooms, models.Chatroom{
		ID:        room.ID,
		Title:     title,
		UserID:    identity.UserID,
		CreatedAt: d.now(),
	})
	d.mu.Unlock()

	log.Printf("[Chat] Created chatroom %s", room.ID)
	d.notify.fire()
	return room.ID, nil
}

// Rename changes the title locally, then in the store. A store failure is
// returned but the local title is kept.
func (d *Directory) Rename(ctx context.Context, roomID, title string) error {
	identity := d.session.CurrentIdentity()
	if identity == nil {
		return ErrNoIdentity
	}

	d.mu.Lock()
	found := false
	for i := range d.rooms {
		if d.rooms[i].ID == roomID {
			d.rooms[i].Title = title
			found = true
		}
	}
	d.mu.Unlock()

	if !found {
		return store.ErrNotFound
	}
	d.notify.fire()

	if err := d.store.RenameChatroom(ctx, *identity, roomID, title); err != nil {
		log.Printf("[Chat] Failed to rename chatroom %s: %v", roomID, err)
		return fmt.Errorf("failed to rename chatroom: %w", err)
	}
	return nil
}

// Delete removes the room locally, clears the transcript if it was selected,
// then deletes the room and its messages from the store.
func (d *Directory) Delete(ctx context.Context, roomID string) error {
	identity := d.session.CurrentIdentity()
	if identity == nil {
		return ErrNoIdentity
	}

	d.mu.Lock()
	kept := d.rooms[:0:0]
	for _, r := range d.rooms {
		if r.ID != roomID {
			kept = append(kept, r)
		}
	}
	found := len(kept) != len(d.rooms)
	d.rooms = kept
	d.mu.Unlock()

	if !found {
		return store.ErrNotFound
	}
	d.notify.fire()

	if sel := d.stream.Selected(); sel != nil && *sel == roomID {
		_ = d.stream.Select(ctx, nil)
	}

	if err := d.store.DeleteChatroom(ctx, *identity, roomID); err != nil {
		log.Printf("[Chat] Failed to delete chatroom %s: %v", roomID, err)
		return fmt.Errorf("failed to delete chatroom: %w", err)
	}

	log.Printf("[Chat] Deleted chatroom %s", roomID)
	return nil
}

// Rooms returns the rooms owned by the current identity.
func (d *Directory) Rooms() []models.Chatroom {
	identity := d.session.CurrentIdentity()
	if identity == nil {
		return []models.Chatroom{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Chatroom, 0, len(d.rooms))
	for _, r := range d.rooms {
		if r.UserID == identity.UserID {
			out = append(out, r)
		}
	}
	return out
}

// Search returns the visible rooms whose title contains query, ignoring
// case. A blank query matches nothing.
func (d *Directory) Search(query string) []models.Chatroom {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []models.Chatroom{}
	}

	out := make([]models.Chatroom, 0)
	for _, r := range d.Rooms() {
		if strings.Contains(strings.ToLower(r.Title), q) {
			out = append(out, r)
		}
	}
	return out
}
