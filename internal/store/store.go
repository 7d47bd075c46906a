// Package store defines the persistence collaborator contract shared by the
// Supabase, MongoDB and in-memory backends.
package store

import (
	"context"
	"errors"

	"github.com/clxsh19/llm-chat/internal/models"
)

// ErrNotFound is returned when a chatroom or user does not exist.
var ErrNotFound = errors.New("not found")

// Subscription is a standing channel delivering full message snapshots for
// one room, ordered by creation time ascending. Close releases the
// underlying connection and closes Updates once the feed has stopped.
type Subscription interface {
	Updates() <-chan []models.Message
	Close() error
}

// Store is the persistence collaborator. Calls carry the acting identity so
// backends that enforce row-level access can forward its token.
type Store interface {
	// ListChatrooms returns every chatroom owned by identity.
	ListChatrooms(ctx context.Context, identity models.Identity) ([]models.Chatroom, error)

	// CreateChatroom creates a room owned by identity with a server-assigned creation time.
	CreateChatroom(ctx context.Context, identity models.Identity, title string) (*models.Chatroom, error)

	// RenameChatroom changes the title of a room.
	RenameChatroom(ctx context.Context, identity models.Identity, roomID, title string) error

	// DeleteChatroom removes a room and every message it owns.
	DeleteChatroom(ctx context.Context, identity models.Identity, roomID string) error

	// AddMessage persists a message under roomID with a server-assigned id and
	// creation time, and returns the stored message.
	AddMessage(ctx context.Context, identity models.Identity, roomID string, msg models.Message) (*models.Message, error)

	// ListMessages returns the messages of roomID ordered by creation time ascending.
	ListMessages(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error)

	// WatchMessages opens a live subscription on roomID. The first snapshot is
	// delivered as soon as it is available.
	WatchMessages(ctx context.Context, identity models.Identity, roomID string) (Subscription, error)

	// UpsertUser writes the user profile document.
	UpsertUser(ctx context.Context, identity models.Identity, profile models.UserProfile) error
}
