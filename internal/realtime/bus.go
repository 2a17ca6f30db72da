package realtime

import "sync"

// subscriberBuffer is the per-subscriber channel depth. Publishing never
// blocks: when a subscriber's buffer is full the event is dropped and the
// subscriber's staleness poller is expected to recover via a fresh snapshot.
const subscriberBuffer = 64

// Bus is a topic-scoped in-memory pub/sub hub. Subscribers receive every
// event published to their topic in publish order, up to buffer capacity.
type Bus struct {
	mu     sync.Mutex
	closed bool
	subs   map[string]map[*Subscription]struct{}
}

// NewBus creates a ready-to-use Bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// Subscription is a handle to one (topic, subscriber) registration. Cleanup
// is safe to call any number of times and detaches the subscriber exactly
// once; events delivered concurrently with Cleanup are dropped, never a
// crash.
type Subscription struct {
	bus   *Bus
	topic string
	ch    chan Event
	once  sync.Once
}

// Events is the stream of change events for the subscribed topic. The
// channel is closed by Cleanup.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Cleanup detaches the subscription from the bus and closes the event
// channel. Idempotent.
func (s *Subscription) Cleanup() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		if subs, ok := s.bus.subs[s.topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.bus.subs, s.topic)
			}
		}
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers a subscriber for a topic. Returns nil if the bus has
// been closed; callers treat a nil subscription as "degrade to poll-only".
func (b *Bus) Subscribe(topic string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	sub := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, subscriberBuffer),
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	return sub
}

// Publish delivers an event to every current subscriber of the topic.
// Non-blocking: full subscribers miss the event.
func (b *Bus) Publish(topic string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close shuts the bus down. Existing subscriptions are cleaned up; further
// Subscribe calls return nil.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subs {
		for sub := range subs {
			all = append(all, sub)
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, sub := range all {
		sub.Cleanup()
	}
}
