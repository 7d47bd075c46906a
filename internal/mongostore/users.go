package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/clxsh19/llm-chat/internal/auth"
)

// CreateUser implements auth.UserStore.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (*auth.User, error) {
	now := time.Now().UTC()
	doc := userDoc{
		Email:     email,
		Password:  passwordHash,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ErrUserExists
		}
		return nil, err
	}
	doc.ID = result.InsertedID.(bson.ObjectID)

	return doc.model(), nil
}

// GetUserByEmail implements auth.UserStore.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUserNotFound
		}
		return nil, err
	}
	return doc.model(), nil
}
