package adminapi

import (
	"context"
	"sync"

	"github.com/gridlocator/gridlocator/descriptorsync"
)

// Broadcaster implements descriptorsync.Notifier by fanning each
// DescriptorEvent out to every currently-connected WebSocket subscriber. A
// slow or gone subscriber never blocks the others: each has its own
// buffered channel, and a full channel drops the event for that subscriber
// rather than stalling Publish.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan descriptorsync.DescriptorEvent]struct{}
}

// NewBroadcaster returns an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan descriptorsync.DescriptorEvent]struct{})}
}

// subscribe registers a new subscriber channel and returns an unsubscribe
// function the caller must call when done.
func (b *Broadcaster) subscribe() (<-chan descriptorsync.DescriptorEvent, func()) {
	ch := make(chan descriptorsync.DescriptorEvent, 16)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// Publish implements descriptorsync.Notifier.
func (b *Broadcaster) Publish(_ context.Context, event descriptorsync.DescriptorEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
