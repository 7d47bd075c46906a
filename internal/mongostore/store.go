package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
)

// Store performs chatroom, message and user operations on MongoDB.
type Store struct {
	chatrooms *mongo.Collection
	messages  *mongo.Collection
	users     *mongo.Collection

	// pollInterval paces the fallback when change streams are unavailable
	pollInterval time.Duration
	forcePolling bool
}

// NewStore returns a Store over the client's collections.
func NewStore(c *Client) *Store {
	return &Store{
		chatrooms:    c.ChatroomsCollection(),
		messages:     c.MessagesCollection(),
		users:        c.UsersCollection(),
		pollInterval: 2 * time.Second,
	}
}

func objectID(hex string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.ObjectID{}, store.ErrNotFound
	}
	return id, nil
}

// ownedRoom resolves roomID and checks it belongs to identity.
func (s *Store) ownedRoom(ctx context.Context, identity models.Identity, roomID string) (bson.ObjectID, error) {
	id, err := objectID(roomID)
	if err != nil {
		return id, err
	}

	n, err := s.chatrooms.CountDocuments(ctx, bson.M{"_id": id, "user_id": identity.UserID})
	if err != nil {
		return id, err
	}
	if n == 0 {
		return id, store.ErrNotFound
	}
	return id, nil
}

// ListChatrooms implements store.Store.
func (s *Store) ListChatrooms(ctx context.Context, identity models.Identity) ([]models.Chatroom, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.chatrooms.Find(ctx, bson.M{"user_id": identity.UserID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []chatroomDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	rooms := make([]models.Chatroom, 0, len(docs))
	for _, d := range docs {
		rooms = append(rooms, d.model())
	}
	return rooms, nil
}

// CreateChatroom implements store.Store.
func (s *Store) CreateChatroom(ctx context.Context, identity models.Identity, title string) (*models.Chatroom, error) {
	doc := chatroomDoc{
		Title:     title,
		UserID:    identity.UserID,
		CreatedAt: time.Now().UTC(),
	}

	result, err := s.chatrooms.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = result.InsertedID.(bson.ObjectID)

	room := doc.model()
	return &room, nil
}

// RenameChatroom implements store.Store.
func (s *Store) RenameChatroom(ctx context.Context, identity models.Identity, roomID, title string) error {
	id, err := objectID(roomID)
	if err != nil {
		return err
	}

	result, err := s.chatrooms.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": identity.UserID},
		bson.M{"$set": bson.M{"title": title}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteChatroom implements store.Store. Messages are removed before the room.
func (s *Store) DeleteChatroom(ctx context.Context, identity models.Identity, roomID string) error {
	id, err := s.ownedRoom(ctx, identity, roomID)
	if err != nil {
		return err
	}

	if _, err := s.messages.DeleteMany(ctx, bson.M{"chat_id": roomID}); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	result, err := s.chatrooms.DeleteOne(ctx, bson.M{"_id": id, "user_id": identity.UserID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpsertUser implements store.Store. Profiles share the users collection
// with local accounts.
func (s *Store) UpsertUser(ctx context.Context, identity models.Identity, profile models.UserProfile) error {
	id, err := objectID(profile.ID)
	if err != nil {
		return fmt.Errorf("invalid user id %q", profile.ID)
	}

	now := time.Now().UTC()
	_, err = s.users.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":         bson.M{"email": profile.Email, "updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return errors.New("email belongs to another user")
	}
	return err
}
