package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/memstore"
	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// flakyStore wraps a store and fails selected writes.
type flakyStore struct {
	store.Store

	addErr    error
	renameErr error
	deleteErr error
	createErr error

	adds atomic.Int32
}

func (f *flakyStore) AddMessage(ctx context.Context, identity models.Identity, roomID string, msg models.Message) (*models.Message, error) {
	f.adds.Add(1)
	if f.addErr != nil {
		return nil, f.addErr
	}
	return f.Store.AddMessage(ctx, identity, roomID, msg)
}

func (f *flakyStore) RenameChatroom(ctx context.Context, identity models.Identity, roomID, title string) error {
	if f.renameErr != nil {
		return f.renameErr
	}
	return f.Store.RenameChatroom(ctx, identity, roomID, title)
}

func (f *flakyStore) DeleteChatroom(ctx context.Context, identity models.Identity, roomID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.DeleteChatroom(ctx, identity, roomID)
}

func (f *flakyStore) CreateChatroom(ctx context.Context, identity models.Identity, title string) (*models.Chatroom, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Store.CreateChatroom(ctx, identity, title)
}

// fakeAI records prompts and optionally blocks until released.
type fakeAI struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error

	started chan struct{}
	release chan struct{}
}

func (f *fakeAI) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.reply, f.err
}

func (f *fakeAI) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type fixture struct {
	mem   *memstore.Store
	store *flakyStore
	ai    *fakeAI
	ws    *Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem := memstore.New()
	st := &flakyStore{Store: mem}
	ai := &fakeAI{reply: "Hi there"}
	provider := auth.NewLocalProvider(mem, auth.NewJWTManager("test-secret", time.Hour))

	ws := NewWorkspace("ws-test", st, provider, ai)
	t.Cleanup(ws.Close)

	return &fixture{mem: mem, store: st, ai: ai, ws: ws}
}

func (f *fixture) signUp(t *testing.T, email string) *models.Identity {
	t.Helper()
	identity, err := f.ws.SignUp(context.Background(), email, "password1")
	require.NoError(t, err)
	return identity
}

func (f *fixture) createRoom(t *testing.T, title string) string {
	t.Helper()
	id, err := f.ws.Directory.Create(context.Background(), title)
	require.NoError(t, err)
	return id
}

func texts(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Text)
	}
	return out
}

func allConfirmed(msgs []models.Message) bool {
	for _, m := range msgs {
		if m.Status != models.StatusConfirmed {
			return false
		}
	}
	return true
}

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)
