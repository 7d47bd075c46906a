package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/chat"
	"github.com/clxsh19/llm-chat/internal/memstore"
	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
)

// cancelAwareStore fails room writes whose context is already done, the way
// a network-backed store would.
type cancelAwareStore struct {
	store.Store
}

func (s cancelAwareStore) CreateChatroom(ctx context.Context, identity models.Identity, title string) (*models.Chatroom, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.CreateChatroom(ctx, identity, title)
}

func (s cancelAwareStore) RenameChatroom(ctx context.Context, identity models.Identity, roomID, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.RenameChatroom(ctx, identity, roomID, title)
}

func (s cancelAwareStore) DeleteChatroom(ctx context.Context, identity models.Identity, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.DeleteChatroom(ctx, identity, roomID)
}

// disconnectedRequest builds a request whose client has already gone away.
func disconnectedRequest(ws *chat.Workspace, method, body, roomID string) *http.Request {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rctx := chi.NewRouteContext()
	if roomID != "" {
		rctx.URLParams.Add("id", roomID)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, workspaceKey{}, ws)

	req := httptest.NewRequest(method, "/api/rooms", bytes.NewBufferString(body))
	return req.WithContext(ctx)
}

func TestRoomWrites_SurviveClientDisconnect(t *testing.T) {
	mem := memstore.New()
	provider := auth.NewLocalProvider(mem, auth.NewJWTManager("test-secret", time.Hour))
	ws := chat.NewWorkspace("ws-test", cancelAwareStore{Store: mem}, provider, echoAI{})
	t.Cleanup(ws.Close)

	identity, err := ws.SignUp(context.Background(), "alice@example.com", "password1")
	require.NoError(t, err)
	h := NewRoomHandler()

	rooms := func() []models.Chatroom {
		list, err := mem.ListChatrooms(context.Background(), *identity)
		require.NoError(t, err)
		return list
	}

	rec := httptest.NewRecorder()
	h.CreateRoom(rec, disconnectedRequest(ws, http.MethodPost, `{"title":"Kept"}`, ""))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, rooms(), 1)
	roomID := rooms()[0].ID

	rec = httptest.NewRecorder()
	h.RenameRoom(rec, disconnectedRequest(ws, http.MethodPatch, `{"title":"Renamed"}`, roomID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "Renamed", rooms()[0].Title)

	rec = httptest.NewRecorder()
	h.DeleteRoom(rec, disconnectedRequest(ws, http.MethodDelete, "", roomID))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rooms())
}
