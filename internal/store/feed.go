package store

import (
	"context"
	"sync"

	"github.com/clxsh19/llm-chat/internal/models"
)

// Feed is a Subscription driven by a backend-specific run loop. Only the most
// recent snapshot is buffered: a slow reader skips intermediate snapshots
// rather than blocking the backend.
type Feed struct {
	updates   chan []models.Message
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// NewFeed starts run in its own goroutine. run must return once ctx is
// cancelled; publish delivers a snapshot to the reader.
func NewFeed(run func(ctx context.Context, publish func([]models.Message))) *Feed {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed{
		updates: make(chan []models.Message, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(f.done)
		defer close(f.updates)
		defer cancel()
		run(ctx, func(msgs []models.Message) { f.publish(ctx, msgs) })
	}()

	return f
}

func (f *Feed) publish(ctx context.Context, msgs []models.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case f.updates <- msgs:
			return
		default:
			// Drop the unread snapshot; msgs supersedes it
			select {
			case <-f.updates:
			default:
			}
		}
	}
}

// Updates implements Subscription.
func (f *Feed) Updates() <-chan []models.Message {
	return f.updates
}

// Close stops the run loop and waits for it to exit.
func (f *Feed) Close() error {
	f.closeOnce.Do(f.cancel)
	<-f.done
	return nil
}

// Done is closed once the run loop has exited.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}
