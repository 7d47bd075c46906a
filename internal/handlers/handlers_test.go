package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/chat"
	"github.com/clxsh19/llm-chat/internal/memstore"
	ratelimit "github.com/clxsh19/llm-chat/internal/middleware"
	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/prefs"
	"github.com/clxsh19/llm-chat/internal/services"
	"github.com/clxsh19/llm-chat/internal/websocket"
)

type echoAI struct{}

func (echoAI) Generate(ctx context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

type testServer struct {
	*httptest.Server
	workspaces *services.WorkspaceService
	prefsPath  string
}

func newTestServer(t *testing.T, limiter *ratelimit.LimiterStore) *testServer {
	t.Helper()

	mem := memstore.New()
	provider := auth.NewLocalProvider(mem, auth.NewJWTManager("test-secret", time.Hour))
	workspaces := services.NewWorkspaceService(mem, provider, echoAI{})

	hub := websocket.NewHub()
	go hub.Run()
	workspaces.SetPublisher(hub.Publish)

	prefsPath := filepath.Join(t.TempDir(), "prefs.json")
	router := NewRouter(RouterConfig{
		CORSOrigins:          []string{"http://localhost:5173"},
		FederatedRedirectURL: "http://localhost:5173/auth/callback",
		Workspaces:           workspaces,
		Prefs:                prefs.Open(prefsPath),
		Hub:                  hub,
		AuthLimiter:          limiter,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		workspaces.CloseAll()
		hub.Stop()
	})

	return &testServer{Server: srv, workspaces: workspaces, prefsPath: prefsPath}
}

// browser is an HTTP client that keeps cookies like a browser tab would.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func (s *testServer) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: s.URL, client: &http.Client{Jar: jar}}
}

func (b *browser) do(method, path string, body interface{}, out interface{}) int {
	b.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, b.base+path, reader)
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (b *browser) cookie(name string) string {
	u, _ := url.Parse(b.base)
	for _, c := range b.client.Jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (b *browser) signUp(email string) models.SessionResponse {
	b.t.Helper()
	var session models.SessionResponse
	status := b.do(http.MethodPost, "/api/auth/signup", models.CredentialsRequest{Email: email, Password: "password1"}, &session)
	require.Equal(b.t, http.StatusCreated, status)
	return session
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestSession_GuestByDefault(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	var session models.SessionResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/session", nil, &session))
	assert.Nil(t, session.Identity)
	assert.False(t, session.Loading)
	assert.NotEmpty(t, b.cookie(WorkspaceCookie))

	b.do(http.MethodGet, "/api/session", nil, &session)
	assert.Equal(t, 1, srv.workspaces.Count())
}

func TestAuth_SignUpLoginLogout(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	session := b.signUp("User@Example.com")
	require.NotNil(t, session.Identity)
	assert.Equal(t, "user@example.com", session.Identity.Email)
	assert.NotEmpty(t, b.cookie(TokenCookie))

	var errResp ErrorResponse
	status := b.do(http.MethodPost, "/api/auth/signup", models.CredentialsRequest{Email: "user@example.com", Password: "password1"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, auth.ErrUserExists.Error(), errResp.Error)

	status = b.do(http.MethodPost, "/api/auth/login", models.CredentialsRequest{Email: "user@example.com", Password: "wrong-pass"}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, auth.ErrInvalidCredentials.Error(), errResp.Error)

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/logout", nil, &session))
	assert.Nil(t, session.Identity)
	assert.Empty(t, b.cookie(TokenCookie))

	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/auth/login", models.CredentialsRequest{Email: "user@example.com", Password: "password1"}, &session))
	require.NotNil(t, session.Identity)
}

func TestAuth_MissingCredentials(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	status := b.do(http.MethodPost, "/api/auth/login", models.CredentialsRequest{Email: "a@example.com"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuth_WeakPasswordMessageShownVerbatim(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	var errResp ErrorResponse
	status := b.do(http.MethodPost, "/api/auth/signup", models.CredentialsRequest{Email: "a@example.com", Password: "123"}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, auth.ErrWeakPassword.Error(), errResp.Error)
}

func TestAuth_FederatedUnsupportedByLocalProvider(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	var errResp ErrorResponse
	status := b.do(http.MethodGet, "/api/auth/federated/google", nil, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, auth.ErrUnsupported.Error(), errResp.Error)
}

func TestAuth_TokenCookieResumesSession(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)
	session := b.signUp("user@example.com")

	other := srv.browser(t)
	u, _ := url.Parse(srv.URL)
	other.client.Jar.SetCookies(u, []*http.Cookie{{Name: TokenCookie, Value: b.cookie(TokenCookie)}})

	var resumed models.SessionResponse
	require.Equal(t, http.StatusOK, other.do(http.MethodGet, "/api/session", nil, &resumed))
	require.NotNil(t, resumed.Identity)
	assert.Equal(t, session.Identity.UserID, resumed.Identity.UserID)
	assert.NotEqual(t, b.cookie(WorkspaceCookie), other.cookie(WorkspaceCookie))
}

func TestAuth_RateLimited(t *testing.T) {
	limiter := ratelimit.NewLimiterStore(1, 2, time.Minute)
	defer limiter.Stop()

	srv := newTestServer(t, limiter)
	b := srv.browser(t)

	creds := models.CredentialsRequest{Email: "a@example.com", Password: "password1"}
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodPost, "/api/auth/login", creds, nil))
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodPost, "/api/auth/login", creds, nil))
	assert.Equal(t, http.StatusTooManyRequests, b.do(http.MethodPost, "/api/auth/login", creds, nil))

	// Other endpoints are not limited
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/session", nil, nil))
}

func TestMessages_GuestConversation(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	var state chat.State
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/messages", models.SendMessageRequest{Text: "  Hello  "}, &state))
	assert.Nil(t, state.SelectedRoom)
	assert.Equal(t, chat.ThinkingIdle, state.Thinking)
	assert.False(t, state.AIThinking)

	var transcript models.GetMessagesResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/messages", nil, &transcript))
	assert.Nil(t, transcript.RoomID)
	require.Len(t, transcript.Messages, 2)
	assert.Equal(t, "  Hello  ", transcript.Messages[0].Text)
	assert.Equal(t, models.SenderUser, transcript.Messages[0].Sender)
	assert.Equal(t, "echo:   Hello  ", transcript.Messages[1].Text)
	assert.Equal(t, models.SenderAI, transcript.Messages[1].Sender)

	var rooms []models.Chatroom
	b.do(http.MethodGet, "/api/rooms", nil, &rooms)
	assert.Empty(t, rooms)
}

func TestMessages_EmptyRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	var errResp ErrorResponse
	status := b.do(http.MethodPost, "/api/messages", models.SendMessageRequest{Text: "   "}, &errResp)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, chat.ErrEmptyMessage.Error(), errResp.Error)

	var transcript models.GetMessagesResponse
	b.do(http.MethodGet, "/api/messages", nil, &transcript)
	assert.Empty(t, transcript.Messages)
}

func TestMessages_FirstSendCreatesRoom(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)
	b.signUp("user@example.com")

	var state chat.State
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/messages", models.SendMessageRequest{Text: "Plan a trip"}, &state))
	require.NotNil(t, state.SelectedRoom)

	var rooms []models.Chatroom
	b.do(http.MethodGet, "/api/rooms", nil, &rooms)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Plan a trip", rooms[0].Title)
	assert.Equal(t, *state.SelectedRoom, rooms[0].ID)

	require.Eventually(t, func() bool {
		var transcript models.GetMessagesResponse
		b.do(http.MethodGet, "/api/messages", nil, &transcript)
		if len(transcript.Messages) != 2 {
			return false
		}
		for _, m := range transcript.Messages {
			if m.Status != models.StatusConfirmed {
				return false
			}
		}
		return true
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRooms_Lifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, b.do(http.MethodPost, "/api/rooms", models.CreateRoomRequest{Title: "x"}, &errResp))

	b.signUp("user@example.com")

	var created models.CreateRoomResponse
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/rooms", models.CreateRoomRequest{Title: "Go questions"}, &created))
	require.NotEmpty(t, created.RoomID)
	require.Equal(t, http.StatusCreated, b.do(http.MethodPost, "/api/rooms", models.CreateRoomRequest{Title: "Recipes"}, nil))

	assert.Equal(t, http.StatusNoContent, b.do(http.MethodPatch, "/api/rooms/"+created.RoomID, models.RenameRoomRequest{Title: "Golang questions"}, nil))
	assert.Equal(t, http.StatusBadRequest, b.do(http.MethodPatch, "/api/rooms/"+created.RoomID, models.RenameRoomRequest{Title: " "}, nil))
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodPatch, "/api/rooms/missing", models.RenameRoomRequest{Title: "x"}, nil))

	var found []models.Chatroom
	b.do(http.MethodGet, "/api/rooms/search?q=GOLANG", nil, &found)
	require.Len(t, found, 1)
	assert.Equal(t, created.RoomID, found[0].ID)

	b.do(http.MethodGet, "/api/rooms/search?q=", nil, &found)
	assert.Empty(t, found)

	var state chat.State
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/rooms/select", models.SelectRoomRequest{RoomID: &created.RoomID}, &state))
	require.NotNil(t, state.SelectedRoom)
	assert.Equal(t, created.RoomID, *state.SelectedRoom)

	assert.Equal(t, http.StatusNoContent, b.do(http.MethodDelete, "/api/rooms/"+created.RoomID, nil, nil))
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodDelete, "/api/rooms/"+created.RoomID, nil, nil))

	b.do(http.MethodGet, "/api/state", nil, &state)
	assert.Nil(t, state.SelectedRoom)
	require.Len(t, state.Chatrooms, 1)
	assert.Equal(t, "Recipes", state.Chatrooms[0].Title)
}

func TestRooms_SelectUnknownRoom(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)
	b.signUp("user@example.com")

	missing := "does-not-exist"
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodPost, "/api/rooms/select", models.SelectRoomRequest{RoomID: &missing}, nil))

	var state chat.State
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/rooms/select", models.SelectRoomRequest{}, &state))
	assert.Nil(t, state.SelectedRoom)
}

func TestPreferences(t *testing.T) {
	srv := newTestServer(t, nil)
	b := srv.browser(t)

	var p prefs.Preferences
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/preferences", nil, &p))
	assert.False(t, p.IsDark)

	require.Equal(t, http.StatusOK, b.do(http.MethodPut, "/api/preferences", prefs.Preferences{IsDark: true}, &p))
	assert.True(t, p.IsDark)

	assert.True(t, prefs.Open(srv.prefsPath).Get().IsDark)
}

func TestWorkspaceFromRequest_Missing(t *testing.T) {
	assert.Nil(t, WorkspaceFromRequest(httptest.NewRequest(http.MethodGet, "/", nil)))

	rec := httptest.NewRecorder()
	GetState(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
