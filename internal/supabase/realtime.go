package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
	"github.com/gorilla/websocket"
)

// phoenixMessage is a Realtime protocol frame (Phoenix channels, vsn 1.0.0).
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type joinReply struct {
	Status   string `json:"status"`
	Response struct {
		Reason string `json:"reason"`
	} `json:"response"`
}

type postgresChange struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

type joinConfig struct {
	Config struct {
		Broadcast struct {
			Self bool `json:"self"`
		} `json:"broadcast"`
		Presence struct {
			Key string `json:"key"`
		} `json:"presence"`
		PostgresChanges []postgresChange `json:"postgres_changes"`
	} `json:"config"`
	AccessToken string `json:"access_token,omitempty"`
}

// realtimeConn serializes writes on a Realtime websocket.
type realtimeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	ref  int
}

func (r *realtimeConn) send(topic, event string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ref++
	ref := strconv.Itoa(r.ref)
	r.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return ref, r.conn.WriteJSON(phoenixMessage{Topic: topic, Event: event, Payload: body, Ref: ref})
}

func (c *Client) realtimeURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid supabase url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WatchMessages implements store.Store. It joins a Realtime channel for
// inserts and deletes on the room's messages and re-queries the ordered list
// on every change, so each delivery is a full snapshot. The first snapshot is
// read only after the server has acknowledged the join.
func (c *Client) WatchMessages(ctx context.Context, identity models.Identity, roomID string) (store.Subscription, error) {
	wsURL, err := c.realtimeURL()
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to realtime: %w", err)
	}
	rc := &realtimeConn{conn: conn}

	topic := "realtime:messages:" + roomID
	var join joinConfig
	join.Config.PostgresChanges = []postgresChange{{
		Event:  "*",
		Schema: "public",
		Table:  "messages",
		Filter: "chat_id=eq." + roomID,
	}}
	join.AccessToken = identity.AccessToken

	joinRef, err := rc.send(topic, "phx_join", join)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to join realtime channel: %w", err)
	}
	if err := c.awaitJoin(ctx, rc, topic, joinRef); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("[Supabase] Joined %s", topic)

	initial, err := c.ListMessages(ctx, identity, roomID)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return store.NewFeed(func(ctx context.Context, publish func([]models.Message)) {
		defer conn.Close()
		publish(initial)
		c.runChannel(ctx, rc, topic, func() {
			msgs, err := c.ListMessages(ctx, identity, roomID)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[Supabase] Failed to refresh messages for %s: %v", roomID, err)
				}
				return
			}
			publish(msgs)
		})
	}), nil
}

// awaitJoin reads frames until the reply to joinRef arrives. Changes are only
// delivered once the join is acknowledged.
func (c *Client) awaitJoin(ctx context.Context, rc *realtimeConn, topic, joinRef string) error {
	deadline := time.Now().Add(c.joinTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	rc.conn.SetReadDeadline(deadline)
	defer rc.conn.SetReadDeadline(time.Time{})

	for {
		var msg phoenixMessage
		if err := rc.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to join realtime channel: %w", err)
		}
		if msg.Topic != topic || msg.Event != "phx_reply" || msg.Ref != joinRef {
			continue
		}

		var reply joinReply
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			return fmt.Errorf("failed to parse join reply: %w", err)
		}
		if reply.Status != "ok" {
			return fmt.Errorf("realtime join rejected on %s: %s", topic, reply.Response.Reason)
		}
		return nil
	}
}

// runChannel reads frames until the context ends or the channel closes.
func (c *Client) runChannel(ctx context.Context, rc *realtimeConn, topic string, refresh func()) {
	stop := make(chan struct{})
	defer close(stop)

	// Unblock the reader when the subscription is closed
	go func() {
		select {
		case <-ctx.Done():
			rc.conn.Close()
		case <-stop:
		}
	}()

	go func() {
		ticker := time.NewTicker(c.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := rc.send("phoenix", "heartbeat", struct{}{}); err != nil {
					return
				}
			case <-stop:
				return
			}
		}
	}()

	for {
		var msg phoenixMessage
		if err := rc.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.Printf("[Supabase] Realtime read error on %s: %v", topic, err)
			}
			return
		}

		if msg.Topic != topic {
			continue
		}

		switch msg.Event {
		case "postgres_changes":
			refresh()
		case "phx_error", "phx_close":
			log.Printf("[Supabase] Channel %s ended: %s", topic, msg.Event)
			return
		}
	}
}
