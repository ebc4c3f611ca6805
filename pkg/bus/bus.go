// Package bus fans debugger notifications out to subscribers.
package bus

import (
	"log/slog"
	"sync"

	"github.com/aretw0/rewind/pkg/domain"
)

// Subscriber receives notifications.
type Subscriber interface {
	Update(n domain.Notification)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(n domain.Notification)

func (f SubscriberFunc) Update(n domain.Notification) { f(n) }

type entry struct {
	id  uint64
	sub Subscriber
}

// Bus is an ordered subscriber registry.
// Publish delivers synchronously, in registration order, on the publisher's goroutine.
type Bus struct {
	mu   sync.RWMutex
	subs []entry
	next uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers s and returns the func that removes it.
// Calling the returned func more than once is harmless.
func (b *Bus) Subscribe(s Subscriber) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs = append(b.subs, entry{id: id, sub: s})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.subs {
		if e.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers n to every subscriber registered at call time.
func (b *Bus) Publish(n domain.Notification) {
	b.mu.RLock()
	subs := append([]entry(nil), b.subs...)
	b.mu.RUnlock()

	for _, e := range subs {
		e.sub.Update(n)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Channel is a Subscriber that buffers notifications for a slow consumer.
// When the buffer is full, new notifications are dropped.
type Channel struct {
	C      chan domain.Notification
	logger *slog.Logger
	mu     sync.Mutex
	closed bool
}

// NewChannel creates a channel subscriber with the given buffer.
func NewChannel(buffer int, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{C: make(chan domain.Notification, buffer), logger: logger}
}

func (c *Channel) Update(n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.C <- n:
	default:
		c.logger.Warn("Subscriber buffer full, dropping notification", "debugger_id", n.DebuggerID, "type", n.Type)
	}
}

// Close closes C. Later notifications are ignored.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.C)
	}
}
