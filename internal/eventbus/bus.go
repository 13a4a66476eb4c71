package eventbus

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Bus fans out published values to every subscriber's channel. There is no
// replay: a subscriber only sees values published after it subscribed.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[string]chan T
	queues      map[string]*queue[T]
}

func New[T any]() *Bus[T] {
	return &Bus[T]{
		subscribers: make(map[string]chan T),
		queues:      make(map[string]*queue[T]),
	}
}

func (b *Bus[T]) Subscribe(bufSize int) (string, <-chan T) {
	id := ulid.Make().String()
	ch := make(chan T, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// SubscribeQueue registers a subscriber that is never evicted. Values wait
// in an unbounded queue until the reader takes them, so Publish still never
// blocks. Meant for in-process consumers that must not miss a value.
func (b *Bus[T]) SubscribeQueue() (string, <-chan T) {
	id := ulid.Make().String()
	q := newQueue[T]()
	b.mu.Lock()
	b.queues[id] = q
	b.mu.Unlock()
	go q.pump()
	return id, q.out
}

// Unsubscribe closes the subscriber's channel. Unknown or already evicted
// ids are ignored. Values still queued for a SubscribeQueue subscriber are
// dropped.
func (b *Bus[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	if q, ok := b.queues[id]; ok {
		close(q.done)
		delete(b.queues, id)
	}
}

// Publish never blocks. A subscriber whose buffer is full is evicted: its
// channel is closed so its reader sees the end of the stream instead of a
// silent gap.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			slog.Warn("evicting slow event subscriber", "subscriber_id", id, "buffer", cap(ch))
			close(ch)
			delete(b.subscribers, id)
		}
	}
	for _, q := range b.queues {
		q.push(v)
	}
}

// Len reports the number of live subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers) + len(b.queues)
}

type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	done   chan struct{}
	out    chan T
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan T),
	}
}

func (q *queue[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pump hands queued values to out in publish order until done is closed.
func (q *queue[T]) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			select {
			case <-q.notify:
				continue
			case <-q.done:
				return
			}
		}
		v := q.items[0]
		var zero T
		q.items[0] = zero
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- v:
		case <-q.done:
			return
		}
	}
}
