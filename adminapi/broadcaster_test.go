package adminapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlocator/gridlocator/descriptorsync"
)

func TestBroadcaster_DeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1, unsub1 := b.subscribe()
	defer unsub1()
	ch2, unsub2 := b.subscribe()
	defer unsub2()

	b.Publish(context.Background(), descriptorsync.DescriptorEvent{Kind: descriptorsync.EventAddServerAdapter, ID: "A"})

	select {
	case e := <-ch1:
		assert.Equal(t, "A", e.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive the event")
	}
	select {
	case e := <-ch2:
		assert.Equal(t, "A", e.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive the event")
	}
}

func TestBroadcaster_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBroadcaster()
	ch, unsub := b.subscribe()
	unsub()

	b.Publish(context.Background(), descriptorsync.DescriptorEvent{ID: "A"})

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBroadcaster_FullSubscriberBufferDropsRatherThanBlocks(t *testing.T) {
	b := NewBroadcaster()
	_, unsub := b.subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			b.Publish(context.Background(), descriptorsync.DescriptorEvent{ID: "A"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}
