package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Change is one delivered notification.
type Change struct {
	Address string
}

type subscriber struct {
	prefix string
	ch     chan Change
	done   chan struct{} // closed when the subscription ends
}

// Broadcaster is an in-memory Notifier that fans changes out to
// subscribers filtered by address prefix. Sends never block: a subscriber
// whose buffer is full misses the change.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]subscriber // subID -> subscriber
	closed      bool
	logger      *slog.Logger

	watchers sync.WaitGroup // one per subscription, waiting on its ctx
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]subscriber),
		logger:      logger.With("component", "notify"),
	}
}

// Subscribe registers for changes whose address starts with prefix ("" for
// all). The subscription ends when ctx is cancelled or Unsubscribe is
// called, and the returned channel is then closed.
func (b *Broadcaster) Subscribe(ctx context.Context, prefix string) (<-chan Change, string) {
	subID := uuid.NewString()
	ch := make(chan Change, subscriberBufferSize)
	done := make(chan struct{})

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	b.subscribers[subID] = subscriber{prefix: strings.TrimPrefix(prefix, "/"), ch: ch, done: done}
	b.watchers.Add(1)
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "prefix", prefix, "sub_id", subID)

	go func() {
		defer b.watchers.Done()
		select {
		case <-ctx.Done():
			b.Unsubscribe(subID)
		case <-done:
		}
	}()

	return ch, subID
}

// Notify implements Notifier.
func (b *Broadcaster) Notify(_ context.Context, addresses ...string) {
	// Sends are non-blocking, so holding the read lock across them keeps
	// Unsubscribe from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, addr := range addresses {
		addr = strings.TrimPrefix(addr, "/")
		for id, sub := range b.subscribers {
			if !strings.HasPrefix(addr, sub.prefix) {
				continue
			}
			select {
			case sub.ch <- Change{Address: addr}:
			default:
				b.logger.Debug("dropped change for slow subscriber", "sub_id", id, "address", addr)
			}
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[subID]
	if !ok {
		return
	}
	delete(b.subscribers, subID)
	close(sub.ch)
	close(sub.done)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close ends every subscription and waits for their context watchers to
// exit. Later Subscribe calls get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		close(sub.done)
		delete(b.subscribers, id)
	}
	b.closed = true
	b.mu.Unlock()

	b.watchers.Wait()
}

// Len returns the number of active subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
