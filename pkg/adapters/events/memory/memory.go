package memory

import (
	"context"
	"sync"

	"github.com/patchline/patchline/pkg/domain"
	"github.com/patchline/patchline/pkg/ports"
)

// Bus is an in-memory commit event bus. Handlers run asynchronously so a
// slow subscriber never stalls the committer.
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[string]map[int]ports.CommitHandler
}

var _ ports.EventBus = (*Bus)(nil)

// NewBus creates a new in-memory event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string]map[int]ports.CommitHandler)}
}

// Publish delivers the event to all subscribers of the topic.
func (b *Bus) Publish(ctx context.Context, topic string, event domain.CommitEvent) error {
	b.mu.RLock()
	handlers := make([]ports.CommitHandler, 0, len(b.subscribers[topic]))
	for _, h := range b.subscribers[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h ports.CommitHandler) {
			// Subscriber errors stay with the subscriber.
			_ = h(ctx, event)
		}(handler)
	}
	return nil
}

// Subscribe registers a handler for a topic until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, topic string, handler ports.CommitHandler) error {
	b.mu.Lock()
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[int]ports.CommitHandler)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[topic][id] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers[topic], id)
		b.mu.Unlock()
	}()

	return nil
}

// Close drops all subscriptions.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = make(map[string]map[int]ports.CommitHandler)
	return nil
}
