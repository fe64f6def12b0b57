package events

import (
	"sync"
)

const defaultBuffer = 64

// Subscription is one subscriber's event stream. C is closed by Unsubscribe
// or by closing the bus.
type Subscription struct {
	C <-chan Event

	ch    chan Event
	topic string // "" for all topics
}

// Bus is a channel-based pub-sub bus. Views subscribe for their lifetime and
// unsubscribe when they go away.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe returns a subscription to one topic. An empty topic receives
// every event. bufSize defaults to 64 when <= 0.
func (b *Bus) Subscribe(topic string, bufSize int) *Subscription {
	if bufSize <= 0 {
		bufSize = defaultBuffer
	}
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, topic: topic}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// SubscribeAll returns a subscription to every topic.
func (b *Bus) SubscribeAll(bufSize int) *Subscription {
	return b.Subscribe("", bufSize)
}

// Unsubscribe removes the subscription and closes its channel.
// Unsubscribing twice is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Publish delivers the event to subscribers of its topic and to all-topic
// subscribers. It never blocks: a full subscriber misses the event.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	topic := event.Topic()
	for sub := range b.subs {
		if sub.topic != "" && sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Close closes every subscription. Safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}
