package mongostore

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
)

// AddMessage implements store.Store. created_at is the server time of the
// insert.
func (s *Store) AddMessage(ctx context.Context, identity models.Identity, roomID string, msg models.Message) (*models.Message, error) {
	if _, err := s.ownedRoom(ctx, identity, roomID); err != nil {
		return nil, err
	}

	doc := messageDoc{
		ChatID:    roomID,
		Text:      msg.Text,
		Sender:    string(msg.Sender),
		SenderID:  identity.UserID,
		CreatedAt: time.Now().UTC(),
	}
	result, err := s.messages.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = result.InsertedID.(bson.ObjectID)

	stored := doc.model()
	return &stored, nil
}

// ListMessages implements store.Store.
func (s *Store) ListMessages(ctx context.Context, identity models.Identity, roomID string) ([]models.Message, error) {
	if _, err := s.ownedRoom(ctx, identity, roomID); err != nil {
		return nil, err
	}
	return s.listMessages(ctx, roomID)
}

func (s *Store) listMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := s.messages.Find(ctx, bson.M{"chat_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		msgs = append(msgs, d.model())
	}
	return msgs, nil
}

// WatchMessages implements store.Store. It follows a change stream on the
// messages collection and re-queries the room on every relevant event.
// Standalone servers have no change streams, so it polls instead. The change
// stream is open before the first snapshot is read.
func (s *Store) WatchMessages(ctx context.Context, identity models.Identity, roomID string) (store.Subscription, error) {
	if _, err := s.ownedRoom(ctx, identity, roomID); err != nil {
		return nil, err
	}

	var open func(context.Context) (changeStream, error)
	if !s.forcePolling {
		open = func(ctx context.Context) (changeStream, error) {
			cs, err := s.openChangeStream(ctx, roomID)
			if err != nil {
				return nil, err
			}
			return cs, nil
		}
	}
	list := func(ctx context.Context) ([]models.Message, error) {
		return s.listMessages(ctx, roomID)
	}

	stream, initial, err := subscribe(ctx, roomID, open, list)
	if err != nil {
		return nil, err
	}

	return store.NewFeed(func(ctx context.Context, publish func([]models.Message)) {
		publish(initial)

		if stream != nil {
			s.followChangeStream(ctx, stream, roomID, publish)
			return
		}
		s.poll(ctx, roomID, initial, publish)
	}), nil
}

// changeStream is the part of *mongo.ChangeStream a subscription follows.
type changeStream interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}

// subscribe opens the live channel and only then reads the first snapshot,
// so an insert landing in between still produces an event. A nil open, or
// one that fails, returns a nil stream and the caller polls.
func subscribe(
	ctx context.Context,
	roomID string,
	open func(context.Context) (changeStream, error),
	list func(context.Context) ([]models.Message, error),
) (changeStream, []models.Message, error) {
	var stream changeStream
	if open != nil {
		cs, err := open(ctx)
		switch {
		case err == nil:
			stream = cs
		case ctx.Err() != nil:
			return nil, nil, ctx.Err()
		default:
			log.Printf("[Mongo] Change stream unavailable for %s, polling: %v", roomID, err)
		}
	}

	initial, err := list(ctx)
	if err != nil {
		if stream != nil {
			_ = stream.Close(context.Background())
		}
		return nil, nil, err
	}
	return stream, initial, nil
}

func (s *Store) openChangeStream(ctx context.Context, roomID string) (*mongo.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{"fullDocument.chat_id": roomID},
				bson.M{"operationType": "delete"},
			},
		}}},
	}
	return s.messages.Watch(ctx, pipeline)
}

func (s *Store) followChangeStream(ctx context.Context, stream changeStream, roomID string, publish func([]models.Message)) {
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		msgs, err := s.listMessages(ctx, roomID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("[Mongo] Failed to refresh messages for %s: %v", roomID, err)
			}
			continue
		}
		publish(msgs)
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		log.Printf("[Mongo] Change stream for %s ended: %v", roomID, err)
	}
}

func (s *Store) poll(ctx context.Context, roomID string, last []models.Message, publish func([]models.Message)) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			msgs, err := s.listMessages(ctx, roomID)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[Mongo] Failed to poll messages for %s: %v", roomID, err)
				}
				continue
			}
			if sameMessages(last, msgs) {
				continue
			}
			last = msgs
			publish(msgs)
		}
	}
}

func sameMessages(a, b []models.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
