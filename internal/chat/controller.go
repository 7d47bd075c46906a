package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
	"github.com/google/uuid"
)

// Responder produces an AI reply for a prompt. An empty reply with a nil
// error means the worker had nothing to say.
type Responder interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ThinkingState is the AI request state machine.
type ThinkingState string

const (
	ThinkingIdle          ThinkingState = "idle"
	ThinkingAwaitingReply ThinkingState = "awaiting_reply"
)

// Controller turns user send intents into transcript entries, store writes
// and AI requests. At most one AI request is outstanding at a time.
type Controller struct {
	session   *Session
	directory *Directory
	stream    *Stream
	store     store.Store
	ai        Responder
	notify    notifyFunc
	now       func() time.Time

	mu       sync.Mutex
	inFlight bool
	thinking ThinkingState
}

// NewController wires a controller to its collaborators.
func NewController(session *Session, directory *Directory, stream *Stream, st store.Store, ai Responder, notify func()) *Controller {
	return &Controller{
		session:   session,
		directory: directory,
		stream:    stream,
		store:     st,
		ai:        ai,
		notify:    notify,
		now:       time.Now,
		thinking:  ThinkingIdle,
	}
}

// Thinking returns the current AI request state.
func (c *Controller) Thinking() ThinkingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thinking
}

// Send appends the message to the transcript and, for a signed-in user
// outside the guest room, persists it. A failed write is returned and the
// entry is marked failed; it stays in the transcript. Unknown senders are
// rejected before anything is appended.
func (c *Controller) Send(ctx context.Context, chatID, text string, sender models.Sender) error {
	if !sender.Valid() {
		return fmt.Errorf("unknown sender %q", sender)
	}

	msg, persist := c.newMessage(chatID, text, sender)
	c.stream.appendLocal(msg)

	if !persist {
		return nil
	}
	return c.persist(ctx, chatID, msg)
}

// HandleUserSend sends text as the user, creating and selecting a room first
// if a signed-in user has none selected, then asks the AI and sends its
// reply. The reply is stored under the room the user wrote in and only shown
// if that room is still on screen.
func (c *Controller) HandleUserSend(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if !c.reserve() {
		return ErrAIBusy
	}
	defer c.release()

	// Writes and the AI call outlive the request that started them
	ctx = context.WithoutCancel(ctx)

	chatID := models.GuestRoomID
	if sel := c.stream.Selected(); sel != nil {
		chatID = *sel
	} else if c.session.CurrentIdentity() != nil {
		roomID, err := c.directory.Create(ctx, TruncateTitle(trimmed))
		switch {
		case err == nil:
			if err := c.stream.Select(ctx, &roomID); err != nil {
				log.Printf("[Chat] Failed to open new room %s: %v", roomID, err)
			}
			chatID = roomID
		case errors.Is(err, ErrNoIdentity):
			// Signed out in the meantime; continue as a guest
		default:
			return err
		}
	}

	if err := c.Send(ctx, chatID, text, models.SenderUser); err != nil {
		log.Printf("[Chat] Failed to persist user message in %s: %v", chatID, err)
	}

	reply, err := c.ask(ctx, text)
	if err != nil {
		log.Printf("[Chat] Failed to fetch response: %v", err)
		return nil
	}
	if reply == "" {
		log.Printf("[Chat] No response received from the AI worker")
		return nil
	}

	msg, persist := c.newMessage(chatID, reply, models.SenderAI)
	if !c.stream.appendIfShowing(chatID, msg) {
		log.Printf("[Chat] Room %s no longer selected, AI reply stored only", chatID)
	}
	if persist {
		if err := c.persist(ctx, chatID, msg); err != nil {
			log.Printf("[Chat] Failed to persist AI reply in %s: %v", chatID, err)
		}
	}
	return nil
}

// ask runs the AI request with the thinking state held for exactly its
// duration.
func (c *Controller) ask(ctx context.Context, prompt string) (string, error) {
	c.setThinking(ThinkingAwaitingReply)
	defer c.setThinking(ThinkingIdle)

	return c.ai.Generate(ctx, prompt)
}

func (c *Controller) newMessage(chatID, text string, sender models.Sender) (models.Message, bool) {
	identity := c.session.CurrentIdentity()
	persist := identity != nil && chatID != models.GuestRoomID

	msg := models.Message{
		LocalID:   uuid.New().String(),
		Text:      text,
		Sender:    sender,
		CreatedAt: c.now(),
		Status:    models.StatusConfirmed,
	}
	if persist {
		msg.SenderID = identity.UserID
		msg.Status = models.StatusPending
	}
	return msg, persist
}

func (c *Controller) persist(ctx context.Context, chatID string, msg models.Message) error {
	identity := c.session.CurrentIdentity()
	if identity == nil {
		c.stream.setStatus(msg.LocalID, models.StatusFailed)
		return ErrNoIdentity
	}

	stored, err := c.store.AddMessage(ctx, *identity, chatID, msg)
	if err != nil {
		c.stream.setStatus(msg.LocalID, models.StatusFailed)
		return fmt.Errorf("failed to add message: %w", err)
	}
	c.stream.markStored(msg.LocalID, stored.ID)
	return nil
}

func (c *Controller) reserve() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return false
	}
	c.inFlight = true
	return true
}

func (c *Controller) release() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

func (c *Controller) setThinking(state ThinkingState) {
	c.mu.Lock()
	changed := c.thinking != state
	c.thinking = state
	c.mu.Unlock()

	if changed {
		c.notify.fire()
	}
}
