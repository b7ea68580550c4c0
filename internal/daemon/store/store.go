package store

import (
	"context"
	"sync"
	"time"
)

// subscriberBuffer bounds the messages queued per subscriber. Publishing
// never blocks on a slow subscriber; overflow is dropped.
const subscriberBuffer = 100

// Bus is a thread-safe in-process pub/sub fan-out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[*busSubscription]struct{}
	closed      bool
}

// NewBus creates a new Bus instance.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]map[*busSubscription]struct{}),
	}
}

// Publish broadcasts payload to the current subscribers of channel.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	msg := Message{Channel: channel, Payload: append([]byte(nil), payload...)}
	for sub := range b.subscribers[channel] {
		select {
		case sub.ch <- msg:
		default:
			// Non-blocking send to prevent slow subscribers from stalling writers
		}
	}
	return nil
}

// Subscribe creates a new subscription on channel.
func (b *Bus) Subscribe(_ context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	sub := &busSubscription{
		bus:     b,
		channel: channel,
		ch:      make(chan Message, subscriberBuffer),
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[*busSubscription]struct{})
	}
	b.subscribers[channel][sub] = struct{}{}
	return sub, nil
}

// Close closes every open subscription. Further calls fail with ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subscribers {
		for sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	b.subscribers = nil
	return nil
}

// unsubscribe removes a subscription and closes its channel.
func (b *Bus) unsubscribe(sub *busSubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[sub.channel]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, sub.channel)
		}
	}
	sub.once.Do(func() { close(sub.ch) })
}

type busSubscription struct {
	bus     *Bus
	channel string
	ch      chan Message
	once    sync.Once
}

func (s *busSubscription) Next(ctx context.Context, wait time.Duration) (Message, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case msg, ok := <-s.ch:
		if !ok {
			return Message{}, false, ErrClosed
		}
		return msg, true, nil
	case <-timer.C:
		return Message{}, false, nil
	case <-ctx.Done():
		return Message{}, false, ctx.Err()
	}
}

func (s *busSubscription) Close() error {
	s.bus.unsubscribe(s)
	return nil
}

// Memory is an in-process Backend: a map guarded by a RWMutex plus a Bus.
// Nothing survives a restart.
type Memory struct {
	*Bus

	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemory creates a new Memory instance.
func NewMemory() *Memory {
	return &Memory{
		Bus:  NewBus(),
		data: make(map[string][]byte),
	}
}

// Get returns a copy of the value stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set stores a copy of value under key.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.data, key)
	return nil
}

// Ping reports whether the store is still open.
func (m *Memory) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close releases the data and every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.data = nil
	m.mu.Unlock()

	return m.Bus.Close()
}

// Ensure Memory implements Backend interface.
var _ Backend = (*Memory)(nil)
