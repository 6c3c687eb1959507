// Package bus is the in-process publication bus. Accepted samples are
// fanned out to subscribers by topic without blocking the publisher: a
// subscriber that falls behind misses messages rather than stalling the
// capture path.
package bus

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/banshee-data/depthsync/internal/clocksync"
	"github.com/banshee-data/depthsync/internal/stream"
)

// ErrClosed is returned by Publish once the bus has been closed.
var ErrClosed = errors.New("bus closed")

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Message is one published sample.
type Message struct {
	Topic   string
	Kind    stream.Kind
	Stamp   clocksync.HostTimestamp
	Payload any
}

// Describer is implemented by payloads that can summarise themselves for
// the debug tail.
type Describer interface {
	Describe() string
}

// Stats counts bus traffic.
type Stats struct {
	Published   uint64 `json:"published"`
	Delivered   uint64 `json:"delivered"`
	Missed      uint64 `json:"missed"`
	Subscribers int    `json:"subscribers"`
}

type subscriber struct {
	ch     chan Message
	topics map[string]struct{}
}

func (s *subscriber) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

// Bus fans messages out to subscribers.
type Bus struct {
	buffer int

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	published atomic.Uint64
	delivered atomic.Uint64
	missed    atomic.Uint64
}

// New creates a bus whose subscribers queue up to buffer messages. A
// non-positive buffer means DefaultBuffer.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		buffer:      buffer,
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a subscriber for the given topics, or for every
// topic when none are given. The channel is closed by Unsubscribe or Close.
func (b *Bus) Subscribe(topics ...string) (string, <-chan Message) {
	id := uuid.NewString()
	sub := &subscriber{ch: make(chan Message, b.buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return id, sub.ch
	}
	b.subscribers[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers m to every interested subscriber that has room. It is
// safe to call concurrently with Close.
func (b *Bus) Publish(m Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	b.published.Add(1)
	for _, sub := range b.subscribers {
		if !sub.wants(m.Topic) {
			continue
		}
		select {
		case sub.ch <- m:
			b.delivered.Add(1)
		default:
			b.missed.Add(1)
		}
	}
	return nil
}

// Close closes every subscriber channel. Later Publish calls return
// ErrClosed. Close is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	return nil
}

// Stats returns the traffic counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	n := len(b.subscribers)
	b.mu.RUnlock()
	return Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Missed:      b.missed.Load(),
		Subscribers: n,
	}
}
