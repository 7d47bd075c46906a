package models

import "time"

// Chatroom is a named, owned container for an ordered message sequence.
// Every chatroom belongs to exactly one identity.
type Chatroom struct {
	// ID is assigned by the persistence backend
	ID string `json:"id"`

	// Title is derived from the first message and can be renamed
	Title string `json:"title"`

	// UserID is the owning identity
	UserID string `json:"user_id"`

	// CreatedAt is the server timestamp, or a client estimate for rooms
	// created during this session
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the authenticated user as issued by the auth collaborator.
type Identity struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	AccessToken string `json:"-"`
}

// UserProfile is the per-user document written on sign-up.
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CreateRoomRequest is the request body for creating a new room
type CreateRoomRequest struct {
	Title string `json:"title"`
}

// CreateRoomResponse is the response after creating a room
type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// RenameRoomRequest is the request body for renaming a room
type RenameRoomRequest struct {
	Title string `json:"title"`
}

// SelectRoomRequest selects a room; a null room_id starts a new conversation
type SelectRoomRequest struct {
	RoomID *string `json:"room_id"`
}

// CredentialsRequest is the body of sign-in and sign-up calls
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FederatedCallbackRequest carries the access token handed back by the identity provider
type FederatedCallbackRequest struct {
	AccessToken string `json:"access_token"`
}

// FederatedURLResponse tells the browser where to start a federated sign-in
type FederatedURLResponse struct {
	URL string `json:"url"`
}

// SessionResponse describes the current identity
type SessionResponse struct {
	Identity *Identity `json:"identity"`
	Loading  bool      `json:"loading"`
}
