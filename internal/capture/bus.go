package capture

import (
	"log"
	"sync"
)

const defaultQueueCapacity = 64

// Subscriber is one observer's bounded, ordered event queue. The queue
// channel is closed when the bus closes, when the subscriber detaches,
// or when it falls too far behind the publisher.
type Subscriber struct {
	ch  chan Event
	bus *Bus
}

// Events returns the subscriber's receive channel. The channel is
// closed at end of stream.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close detaches the subscriber from its bus. Safe to call more than
// once and safe to call concurrently with Publish.
func (s *Subscriber) Close() {
	s.bus.unsubscribe(s)
}

// Bus broadcasts events from one session to any number of live
// subscribers. Publish never blocks: a subscriber whose queue is full
// is dropped rather than stalling the decode path.
type Bus struct {
	mu       sync.Mutex
	subs     map[*Subscriber]struct{}
	closed   bool
	capacity int
}

// NewBus creates a bus whose subscribers each get a queue of the given
// capacity. Non-positive capacity falls back to a sane default.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &Bus{
		subs:     make(map[*Subscriber]struct{}),
		capacity: capacity,
	}
}

// Subscribe attaches a new observer. Subscribing to a closed bus
// returns a subscriber whose channel is already closed, so callers see
// an immediate end of stream instead of an error.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscriber{ch: make(chan Event, b.capacity), bus: b}
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *Bus) unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Publish delivers ev to every live subscriber in publish order. A
// subscriber that can't keep up is disconnected.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			log.Printf("[bus] subscriber too slow, dropping")
			delete(b.subs, s)
			close(s.ch)
		}
	}
}

// Close ends the stream for every subscriber and rejects further
// publishes. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}

// SubscriberCount reports the current number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
