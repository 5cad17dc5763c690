// Package bus is an in-process publish/subscribe registry with named channels.
//
// Delivery is synchronous and follows registration order. Emitting on a
// channel nobody listens to is a no-op. Handlers may listen or unlisten while
// a dispatch is in progress; the change applies to the next Emit.
package bus

import "sync"

// Topic names a channel carrying payloads of type T.
type Topic[T any] struct {
	name string
}

// NewTopic declares a channel. Two topics with the same name share listeners,
// so every name must be used with a single payload type.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

func (t Topic[T]) Name() string { return t.name }

// Subscription identifies one registered handler.
type Subscription struct {
	topic string
	id    uint64
}

type listener struct {
	id uint64
	fn func(any)
}

type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[string][]listener
}

func New() *Bus {
	return &Bus{listeners: make(map[string][]listener)}
}

// Listen registers fn on topic.
func Listen[T any](b *Bus, topic Topic[T], fn func(T)) Subscription {
	return b.listen(topic.name, func(payload any) {
		fn(payload.(T))
	})
}

// Emit delivers payload to every listener of topic, in registration order.
func Emit[T any](b *Bus, topic Topic[T], payload T) {
	b.emit(topic.name, payload)
}

func (b *Bus) listen(name string, fn func(any)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	// Always copy so snapshots held by in-flight dispatches stay untouched.
	cur := b.listeners[name]
	next := make([]listener, len(cur), len(cur)+1)
	copy(next, cur)
	b.listeners[name] = append(next, listener{id: id, fn: fn})
	return Subscription{topic: name, id: id}
}

// Unlisten removes a subscription. Unknown or already removed subscriptions
// are ignored.
func (b *Bus) Unlisten(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.listeners[sub.topic]
	for i, l := range cur {
		if l.id != sub.id {
			continue
		}
		next := make([]listener, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		if len(next) == 0 {
			delete(b.listeners, sub.topic)
		} else {
			b.listeners[sub.topic] = next
		}
		return
	}
}

func (b *Bus) emit(name string, payload any) {
	b.mu.RLock()
	snapshot := b.listeners[name]
	b.mu.RUnlock()
	for _, l := range snapshot {
		l.fn(payload)
	}
}

// ListenerCount returns the number of handlers registered under name.
func (b *Bus) ListenerCount(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}
