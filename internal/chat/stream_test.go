package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/clxsh19/llm-chat/internal/models"
	"github.com/clxsh19/llm-chat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_AtMostOneSubscription(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "alice@example.com")
	a := f.createRoom(t, "A")
	b := f.createRoom(t, "B")

	watchers := func() int { return f.mem.Watchers(a) + f.mem.Watchers(b) }

	for _, sel := range []*string{&a, &b, &b, nil, &a, &b, nil} {
		require.NoError(t, f.ws.Stream.Select(context.Background(), sel))
		if sel == nil {
			assert.Equal(t, 0, watchers())
			assert.False(t, f.ws.Stream.Subscribed())
			assert.Empty(t, f.ws.Stream.Messages())
			continue
		}
		assert.Equal(t, 1, watchers())
		assert.Equal(t, 1, f.mem.Watchers(*sel))
	}
}

func TestStream_SnapshotReplacesTranscript(t *testing.T) {
	f := newFixture(t)
	identity := f.signUp(t, "alice@example.com")
	roomID := f.createRoom(t, "Room")

	for _, text := range []string{"one", "two"} {
		_, err := f.mem.AddMessage(context.Background(), *identity, roomID, models.Message{Text: text, Sender: models.SenderUser})
		require.NoError(t, err)
	}

	require.NoError(t, f.ws.Stream.Select(context.Background(), &roomID))
	require.Eventually(t, func() bool { return len(f.ws.Stream.Messages()) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"one", "two"}, texts(f.ws.Stream.Messages()))

	other := f.createRoom(t, "Other")
	require.NoError(t, f.ws.Stream.Select(context.Background(), &other))
	assert.Empty(t, f.ws.Stream.Messages())
}

func TestStream_GuestRoomHasNoSubscription(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "alice@example.com")

	guest := models.GuestRoomID
	require.NoError(t, f.ws.Stream.Select(context.Background(), &guest))
	assert.False(t, f.ws.Stream.Subscribed())
}

func TestStream_SubscribeFailure(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "alice@example.com")

	missing := "missing"
	err := f.ws.Stream.Select(context.Background(), &missing)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.False(t, f.ws.Stream.Subscribed())
	require.NotNil(t, f.ws.Stream.Selected())
	assert.Equal(t, "missing", *f.ws.Stream.Selected())
}

// lateSub delivers one more snapshot while it is being closed.
type lateSub struct {
	updates chan []models.Message
	once    sync.Once
}

func (s *lateSub) Updates() <-chan []models.Message { return s.updates }

func (s *lateSub) Close() error {
	s.once.Do(func() {
		s.updates <- []models.Message{{ID: "stale", Text: "from the old room", Sender: models.SenderAI}}
		close(s.updates)
	})
	return nil
}

type lateStore struct {
	store.Store
	subs []*lateSub
}

func (l *lateStore) WatchMessages(ctx context.Context, identity models.Identity, roomID string) (store.Subscription, error) {
	sub := &lateSub{updates: make(chan []models.Message, 1)}
	l.subs = append(l.subs, sub)
	return sub, nil
}

func TestStream_DropsSnapshotsFromClosedSubscription(t *testing.T) {
	session := NewSession()
	session.set(&models.Identity{UserID: "alice"})
	st := &lateStore{}
	stream := NewStream(st, session, nil)
	t.Cleanup(stream.Close)

	a, b := "a", "b"
	require.NoError(t, stream.Select(context.Background(), &a))
	require.NoError(t, stream.Select(context.Background(), &b))

	assert.Empty(t, stream.Messages())
	require.Len(t, st.subs, 2)
}

func TestStream_CloseClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.signUp(t, "alice@example.com")
	roomID := f.createRoom(t, "Room")
	require.NoError(t, f.ws.Stream.Select(context.Background(), &roomID))

	f.ws.Stream.Close()

	assert.Nil(t, f.ws.Stream.Selected())
	assert.Equal(t, 0, f.mem.Watchers(roomID))
}

// manualStore hands out one subscription whose snapshots the test pushes.
type manualStore struct {
	store.Store
	sub *manualSub
}

type manualSub struct {
	updates chan []models.Message
	once    sync.Once
}

func (s *manualSub) Updates() <-chan []models.Message { return s.updates }

func (s *manualSub) Close() error {
	s.once.Do(func() { close(s.updates) })
	return nil
}

func (m *manualStore) WatchMessages(ctx context.Context, identity models.Identity, roomID string) (store.Subscription, error) {
	m.sub = &manualSub{updates: make(chan []models.Message)}
	return m.sub, nil
}

func newManualStream(t *testing.T) (*Stream, *manualStore) {
	t.Helper()
	session := NewSession()
	session.set(&models.Identity{UserID: "alice"})
	st := &manualStore{}
	stream := NewStream(st, session, nil)
	t.Cleanup(stream.Close)

	room := "r1"
	require.NoError(t, stream.Select(context.Background(), &room))
	return stream, st
}

func TestStream_PendingEntrySurvivesHistoryWithSameText(t *testing.T) {
	stream, st := newManualStream(t)

	stream.appendLocal(models.Message{LocalID: "new", Text: "hi", Sender: models.SenderUser, Status: models.StatusPending})
	st.sub.updates <- []models.Message{{ID: "old", Text: "hi", Sender: models.SenderUser}}

	require.Eventually(t, func() bool { return len(stream.Messages()) == 2 }, waitFor, tick)

	stream.setStatus("new", models.StatusFailed)
	msgs := stream.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "old", msgs[0].ID)
	assert.Equal(t, "new", msgs[1].LocalID)
	assert.Equal(t, models.StatusFailed, msgs[1].Status)
}

func TestStream_MarkStoredReplacesPendingEntry(t *testing.T) {
	t.Run("snapshot before write returns", func(t *testing.T) {
		stream, st := newManualStream(t)
		stream.appendLocal(models.Message{LocalID: "l1", Text: "hi", Sender: models.SenderUser, Status: models.StatusPending})

		st.sub.updates <- []models.Message{{ID: "m1", Text: "hi", Sender: models.SenderUser}}
		require.Eventually(t, func() bool { return len(stream.Messages()) == 2 }, waitFor, tick)

		stream.markStored("l1", "m1")
		msgs := stream.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "m1", msgs[0].ID)
		assert.Equal(t, models.StatusConfirmed, msgs[0].Status)
	})

	t.Run("write returns before snapshot", func(t *testing.T) {
		stream, st := newManualStream(t)
		stream.appendLocal(models.Message{LocalID: "l1", Text: "hi", Sender: models.SenderUser, Status: models.StatusPending})

		stream.markStored("l1", "m1")
		require.Len(t, stream.Messages(), 1)
		assert.Equal(t, models.StatusPending, stream.Messages()[0].Status)

		st.sub.updates <- []models.Message{{ID: "m1", Text: "hi", Sender: models.SenderUser}}
		require.Eventually(t, func() bool {
			msgs := stream.Messages()
			return len(msgs) == 1 && msgs[0].Status == models.StatusConfirmed
		}, waitFor, tick)
		assert.Empty(t, stream.Messages()[0].LocalID)
	})
}

func TestReconcile(t *testing.T) {
	pending := func(text string) models.Message {
		return models.Message{LocalID: "l-" + text, Text: text, Sender: models.SenderUser, Status: models.StatusPending}
	}
	confirmed := func(id, text string) models.Message {
		return models.Message{ID: id, Text: text, Sender: models.SenderUser}
	}

	t.Run("stored entry replaced by its snapshot message", func(t *testing.T) {
		stored := pending("hi")
		stored.ID = "1"
		next := reconcile([]models.Message{confirmed("1", "hi")}, []models.Message{stored})
		require.Len(t, next, 1)
		assert.Equal(t, "1", next[0].ID)
		assert.Empty(t, next[0].LocalID)
		assert.Equal(t, models.StatusConfirmed, next[0].Status)
	})

	t.Run("pending entry kept until it arrives", func(t *testing.T) {
		next := reconcile([]models.Message{confirmed("1", "older")}, []models.Message{pending("hi")})
		assert.Equal(t, []string{"older", "hi"}, texts(next))
		assert.Equal(t, models.StatusPending, next[1].Status)
	})

	t.Run("history with the same text does not consume", func(t *testing.T) {
		next := reconcile([]models.Message{confirmed("old", "hi")}, []models.Message{pending("hi")})
		assert.Equal(t, []string{"hi", "hi"}, texts(next))
		assert.Equal(t, models.StatusPending, next[1].Status)
	})

	t.Run("stored entry waits for its own id", func(t *testing.T) {
		stored := pending("hi")
		stored.ID = "2"
		next := reconcile([]models.Message{confirmed("1", "hi")}, []models.Message{stored})
		assert.Len(t, next, 2)
	})

	t.Run("failed entries survive", func(t *testing.T) {
		failed := pending("lost")
		failed.Status = models.StatusFailed
		next := reconcile([]models.Message{confirmed("1", "lost")}, []models.Message{failed})
		assert.Len(t, next, 2)
		assert.Equal(t, models.StatusFailed, next[1].Status)
	})

	t.Run("previous snapshot entries are replaced", func(t *testing.T) {
		next := reconcile([]models.Message{confirmed("1", "a"), confirmed("2", "b")}, []models.Message{confirmed("1", "a")})
		assert.Equal(t, []string{"a", "b"}, texts(next))
	})
}
