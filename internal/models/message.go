package models

import "time"

// GuestRoomID is the reserved room identifier used when nobody is signed in.
// Messages sent to it are never persisted.
const GuestRoomID = "-2"

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Valid reports whether s is a known sender.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// MessageStatus tags a transcript entry with its persistence state.
type MessageStatus string

const (
	// StatusPending marks an optimistic entry whose write has not settled
	StatusPending MessageStatus = "pending"
	// StatusConfirmed marks an entry delivered by the live subscription
	StatusConfirmed MessageStatus = "confirmed"
	// StatusFailed marks an optimistic entry whose write failed; it stays visible
	StatusFailed MessageStatus = "failed"
)

// Message is a single chat message. Messages are immutable once created.
type Message struct {
	// ID is assigned by the backend; empty for optimistic entries
	ID string `json:"id,omitempty"`

	// LocalID identifies an optimistic entry until the next snapshot replaces it
	LocalID string `json:"local_id,omitempty"`

	// Text is the message body (markdown)
	Text string `json:"text"`

	// Sender is either "user" or "ai"
	Sender Sender `json:"sender"`

	// SenderID is the identity that wrote the message, if any
	SenderID string `json:"sender_id,omitempty"`

	// CreatedAt orders messages within a room
	CreatedAt time.Time `json:"created_at"`

	// Status is pending, confirmed or failed
	Status MessageStatus `json:"status"`
}

// SendMessageRequest is the request body for sending a message
type SendMessageRequest struct {
	Text string `json:"text"`
}

// GetMessagesResponse is the response for fetching the visible transcript
type GetMessagesResponse struct {
	RoomID   *string   `json:"room_id"`
	Messages []Message `json:"messages"`
}
