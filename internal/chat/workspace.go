package chat

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
)

const loadTimeout = 15 * time.Second

// State is the full view-model pushed to the browser.
type State struct {
	Identity     *models.Identity  `json:"identity"`
	Loading      bool              `json:"loading"`
	Chatrooms    []models.Chatroom `json:"chatrooms"`
	SelectedRoom *string           `json:"selected_room"`
	Messages     []models.Message  `json:"messages"`
	AIThinking   bool              `json:"ai_thinking"`
	Thinking     ThinkingState     `json:"thinking"`
	Version      uint64            `json:"version"`
}

// Workspace is one browser client's conversation state and the
// collaborators it talks to.
type Workspace struct {
	ID         string
	Session    *Session
	Directory  *Directory
	Stream     *Stream
	Controller *Controller

	auth  auth.Provider
	store store.Store

	publishMu sync.Mutex
	publisher func(State)
	version   uint64

	lastActive          atomic.Int64
	unsubscribeIdentity func()
}

// NewWorkspace builds a workspace whose session is still loading.
func NewWorkspace(id string, st store.Store, provider auth.Provider, ai Responder) *Workspace {
	w := &Workspace{ID: id, auth: provider, store: st}

	w.Session = NewSession()
	w.Stream = NewStream(st, w.Session, w.publish)
	w.Directory = NewDirectory(st, w.Session, w.Stream, w.publish)
	w.Controller = NewController(w.Session, w.Directory, w.Stream, st, ai, w.publish)
	w.unsubscribeIdentity = w.Session.OnIdentityChange(w.identityChanged)
	w.Touch()

	return w
}

// SetPublisher installs the function that receives every State change.
func (w *Workspace) SetPublisher(fn func(State)) {
	w.publishMu.Lock()
	w.publisher = fn
	w.publishMu.Unlock()
}

// State returns the current view-model.
func (w *Workspace) State() State {
	w.publishMu.Lock()
	defer w.publishMu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() State {
	thinking := w.Controller.Thinking()
	return State{
		Identity:     w.Session.CurrentIdentity(),
		Loading:      w.Session.Loading(),
		Chatrooms:    w.Directory.Rooms(),
		SelectedRoom: w.Stream.Selected(),
		Messages:     w.Stream.Messages(),
		AIThinking:   thinking == ThinkingAwaitingReply,
		Thinking:     thinking,
		Version:      w.version,
	}
}

func (w *Workspace) publish() {
	w.publishMu.Lock()
	defer w.publishMu.Unlock()

	w.version++
	if w.publisher != nil {
		w.publisher(w.snapshotLocked())
	}
}

// Touch records client activity.
func (w *Workspace) Touch() {
	w.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns the time of the last recorded activity.
func (w *Workspace) LastActive() time.Time {
	return time.Unix(0, w.lastActive.Load())
}

// identityChanged clears the selection and reloads the room directory.
func (w *Workspace) identityChanged(identity *models.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	_ = w.Stream.Select(ctx, nil)
	w.Directory.Load(ctx, identity)
}

// Resume restores a session from a previously issued access token. An empty
// or rejected token resolves the session as signed out.
func (w *Workspace) Resume(ctx context.Context, accessToken string) *models.Identity {
	if accessToken == "" {
		w.Session.set(nil)
		return nil
	}

	identity, err := w.auth.SignInWithFederatedToken(ctx, accessToken)
	if err != nil {
		log.Printf("[Chat] Workspace %s could not resume session: %v", w.ID, err)
		w.Session.set(nil)
		return nil
	}

	w.Session.set(identity)
	return identity
}

// SignUp creates an account, writes its profile document and signs in.
func (w *Workspace) SignUp(ctx context.Context, email, password string) (*models.Identity, error) {
	identity, err := w.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	w.upsertProfile(ctx, identity)
	w.Session.set(identity)
	return identity, nil
}

// SignIn signs in with email and password.
func (w *Workspace) SignIn(ctx context.Context, email, password string) (*models.Identity, error) {
	identity, err := w.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	w.Session.set(identity)
	return identity, nil
}

// FederatedURL returns where the browser starts a federated sign-in.
func (w *Workspace) FederatedURL(provider, redirectTo string) (string, error) {
	return w.auth.FederatedURL(provider, redirectTo)
}

// CompleteFederated finishes a federated sign-in with the token handed back
// by the identity provider.
func (w *Workspace) CompleteFederated(ctx context.Context, accessToken string) (*models.Identity, error) {
	identity, err := w.auth.SignInWithFederatedToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	w.upsertProfile(ctx, identity)
	w.Session.set(identity)
	return identity, nil
}

// SignOut ends the session and returns to a new, empty conversation.
func (w *Workspace) SignOut(ctx context.Context) error {
	identity := w.Session.CurrentIdentity()
	if identity != nil {
		if err := w.auth.SignOut(ctx, *identity); err != nil {
			return err
		}
	}

	w.Session.set(nil)
	return w.Stream.Select(ctx, nil)
}

// Close releases the live subscription and stops reacting to identity changes.
func (w *Workspace) Close() {
	w.unsubscribeIdentity()
	w.Stream.Close()
}

func (w *Workspace) upsertProfile(ctx context.Context, identity *models.Identity) {
	email := identity.Email
	if email == "" {
		email = "unknown"
	}

	err := w.store.UpsertUser(ctx, *identity, models.UserProfile{ID: identity.UserID, Email: email})
	if err != nil {
		log.Printf("[Chat] %v", fmt.Errorf("failed to write user profile %s: %w", identity.UserID, err))
	}
}
