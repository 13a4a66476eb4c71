package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestBus_FanOutInOrder(t *testing.T) {
	bus := New[int]()
	_, a := bus.Subscribe(8)
	_, b := bus.Subscribe(8)

	for i := range 3 {
		bus.Publish(i)
	}

	assert.Equal(t, []int{0, 1, 2}, drain(a))
	assert.Equal(t, []int{0, 1, 2}, drain(b))
}

func TestBus_NoReplay(t *testing.T) {
	bus := New[string]()
	bus.Publish("before")
	_, ch := bus.Subscribe(4)
	bus.Publish("after")
	assert.Equal(t, []string{"after"}, drain(ch))
}

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	bus := New[int]()
	assert.NotPanics(t, func() { bus.Publish(1) })
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New[int]()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok, "channel is closed")
	assert.NotPanics(t, func() {
		bus.Unsubscribe(id)
		bus.Publish(1)
	})
	assert.Zero(t, bus.Len())
}

func TestBus_EvictsSlowSubscriber(t *testing.T) {
	bus := New[int]()
	slowID, slow := bus.Subscribe(1)
	_, fast := bus.Subscribe(8)

	bus.Publish(1)
	bus.Publish(2) // slow is full here

	assert.Equal(t, []int{1}, drain(slow))
	_, ok := <-slow
	assert.False(t, ok, "slow subscriber was evicted")
	assert.Equal(t, []int{1, 2}, drain(fast))
	assert.Equal(t, 1, bus.Len())
	assert.NotPanics(t, func() { bus.Unsubscribe(slowID) })
}

func TestBus_ConcurrentSubscribePublish(t *testing.T) {
	bus := New[int]()
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := bus.Subscribe(100)
			bus.Publish(1)
			bus.Unsubscribe(id)
			for range ch {
			}
		}()
	}
	wg.Wait()
	require.Zero(t, bus.Len())
}

func TestBus_QueueSubscriberIsNeverEvicted(t *testing.T) {
	bus := New[int]()
	id, ch := bus.SubscribeQueue()
	_, small := bus.Subscribe(1)

	const n = 1000
	for i := range n {
		bus.Publish(i)
	}

	got := make([]int, 0, n)
	for range n {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "queue subscriber was closed")
			got = append(got, v)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d values", len(got))
		}
	}
	for i, v := range got {
		require.Equal(t, i, v)
	}

	_, ok := <-small
	assert.True(t, ok)
	_, ok = <-small
	assert.False(t, ok, "bounded subscriber was evicted")
	assert.Equal(t, 1, bus.Len())

	bus.Unsubscribe(id)
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("queue channel not closed after Unsubscribe")
	}
	assert.Zero(t, bus.Len())
}

func TestBus_UnsubscribeQueueWithPendingValues(t *testing.T) {
	bus := New[int]()
	id, ch := bus.SubscribeQueue()
	for i := range 10 {
		bus.Publish(i)
	}
	bus.Unsubscribe(id)

	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond)
}
