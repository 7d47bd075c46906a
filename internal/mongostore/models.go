package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/clxsh19/llm-chat/internal/auth"
	"github.com/clxsh19/llm-chat/internal/models"
)

type chatroomDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Title     string        `bson:"title"`
	UserID    string        `bson:"user_id"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d chatroomDoc) model() models.Chatroom {
	return models.Chatroom{
		ID:        d.ID.Hex(),
		Title:     d.Title,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
	}
}

type messageDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	ChatID    string        `bson:"chat_id"`
	Text      string        `bson:"text"`
	Sender    string        `bson:"sender"`
	SenderID  string        `bson:"sender_id,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d messageDoc) model() models.Message {
	return models.Message{
		ID:        d.ID.Hex(),
		Text:      d.Text,
		Sender:    models.Sender(d.Sender),
		SenderID:  d.SenderID,
		CreatedAt: d.CreatedAt,
		Status:    models.StatusConfirmed,
	}
}

type userDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Password  string        `bson:"password,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d userDoc) model() *auth.User {
	return &auth.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		CreatedAt:    d.CreatedAt,
	}
}
