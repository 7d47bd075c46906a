package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clxsh19/llm-chat/internal/config"
	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
)

const (
	preferRepresentation = "return=representation"
	preferMergeMinimal   = "resolution=merge-duplicates,return=minimal"

	// maxResponseBytes caps how much of a response body is read
	maxResponseBytes = 1 << 20
)

// Client is a wrapper around the Supabase REST, Realtime and Auth APIs.
// Requests carry the signed-in user's access token so row-level security
// applies; the anon key is used when there is none.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	heartbeatInterval time.Duration
	joinTimeout       time.Duration
}

// NewClient creates a new Supabase client with the given configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.SupabaseURL,
		apiKey:  cfg.SupabaseKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		heartbeatInterval: 25 * time.Second,
		joinTimeout:       10 * time.Second,
	}
}

type chatroomRow struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title"`
	UserID    string     `json:"user_id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (r chatroomRow) model() models.Chatroom {
	room := models.Chatroom{ID: r.ID, Title: r.Title, UserID: r.UserID}
	if r.CreatedAt != nil {
		room.CreatedAt = *r.CreatedAt
	}
	return room
}

type messageRow struct {
	ID        string        `json:"id,omitempty"`
	ChatID    string        `json:"chat_id"`
	Text      string        `json:"text"`
	Sender    models.Sender `json:"sender"`
	SenderID  string        `json:"sender_id,omitempty"`
	CreatedAt *time.Time    `json:"created_at,omitempty"`
}

func (r messageRow) model() models.Message {
	msg := models.Message{
		ID:       r.ID,
		Text:     r.Text,
		Sender:   r.Sender,
		SenderID: r.SenderID,
		Status:   models.StatusConfirmed,
	}
	if r.CreatedAt != nil {
		msg.CreatedAt = *r.CreatedAt
	}
	return msg
}

type userRow struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// doRequest executes an HTTP request to the Supabase REST API.
// It adds the authentication headers and handles the response.
func (c *Client) doRequest(ctx context.Context, method, endpoint, token, prefer string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	reqURL := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, endpoint)
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setAuthHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("supabase error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

func (c *Client) setAuthHeaders(req *http.Request, token string) {
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
}

func eq(v string) string {
	return "eq." + url.QueryEscape(v)
}

// ListChatrooms implements store.Store.
func (c *Client) ListChatrooms(ctx context.Context, identity models.Identity) ([]models.Chatroom, error) {
	endpoint := fmt.Sprintf("chatrooms?user_id=%s&select=*&order=created_at.asc", eq(identity.UserID))
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, identity.AccessToken, "", nil)
	if err != nil {
		return nil, err
	}

	var rows []chatroomRow
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse chatrooms: %w", err)
	}

	rooms := make([]models.Chatroom, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, r.model())
	}
	return rooms, nil
}

// CreateChatroom implements store.Store. created_at is filled by the
// column default.
func (c *Client) CreateChatroom(ctx context.Context, identity models.Identity, title string) (*models.Chatroom, error) {
	row := chatroomRow{Title: title, UserID: identity.UserID}
	respBody, err := c.doRequest(ctx, http.MethodPost, "chatrooms", identity.AccessToken, preferRepresentation, row)
	if err != nil {
		return nil, err
	}

	var rows []chatroomRow
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse chatroom: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("chatroom insert returned no rows")
	}

	room := rows[0].model()
	return &room, nil
}

// RenameChatroom implements store.Store.
func (c *Client) RenameChatroom(ctx context.Context, identity models.Identity, roomID, title string) error {
	endpoint := fmt.Sprintf("chatrooms?id=%s", eq(roomID))
	respBody, err := c.doRequest(ctx, http.MethodPatch, endpoint, identity.AccessToken, preferRepresentation, map[string]string{"title": title})
	if err != nil {
		return err
	}
	return requireRows(respBody)
}

// DeleteChatroom implements store.Store. Messages are deleted before the
// room itself.
func (c *Client) DeleteChatroom(ctx context.Context, identity models.Identity, roomID string) error {
	endpoint := fmt.Sprintf("messages?chat_id=%s", eq(roomID))
	if _, err := c.doRequest(ctx, http.MethodDelete, endpoint, identity.AccessToken, "", nil); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	endpoint = fmt.Sprintf("chatrooms?id=%s", eq(roomID))
	respBody, err := c.doRequest(ctx, http.MethodDelete, endpoint, identity.AccessToken, preferRepresentation, nil)
	if err != nil {
		return err
	}
	return requireRows(respBody)
}

// AddMessage implements store.Store.
func (c *Client) AddMessage(ctx context.Context, identity models.Identity, roomID string, msg models.Message) (*models.Message, error) {
	row := messageRow{
		ChatID:   roomID,
		Text:     msg.Text,
		Sender:   msg.Sender,
		SenderID: identity.UserID,
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, "messages", identity.AccessToken, preferRepresentation, row)
	if err != nil {
		return nil, err
	}

	var rows []messageRow
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("message insert returned no rows")
	}

	stored := rows[0].model()
	return &stored, nil
}

// ListMessages implements store.Store.
func (c *Client) ListMessages(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error) {
	endpoint := fmt.Sprintf("messages?chat_id=%s&select=*&order=created_at.asc", eq(roomID))
	respBody, err := c.doRequest(ctx, http.MethodGet, endpoint, identity.AccessToken, "", nil)
	if err != nil {
		return nil, err
	}

	var rows []messageRow
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse messages: %w", err)
	}

	msgs := make([]models.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.model())
	}
	return msgs, nil
}

// UpsertUser implements store.Store.
func (c *Client) UpsertUser(ctx context.Context, identity models.Identity, profile models.UserProfile) error {
	row := userRow{ID: profile.ID, Email: profile.Email}
	_, err := c.doRequest(ctx, http.MethodPost, "users", identity.AccessToken, preferMergeMinimal, row)
	return err
}

// requireRows maps an empty representation to store.ErrNotFound. Row-level
// security hides rows owned by others, so they look missing too.
func requireRows(respBody []byte) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}
