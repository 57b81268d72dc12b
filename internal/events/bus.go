package events

import (
	"sync"

	"github.com/coursetrack/coursetrack/internal/metrics"
)

// Bus delivers events synchronously, in registration order, to the
// listeners registered at publish time. There is no replay: a listener that
// subscribes after a publish never sees it.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Name][]subscription
}

type subscription struct {
	id uint64
	fn func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[Name][]subscription)}
}

// Subscribe registers fn for events named name. The returned function
// removes the registration; calling it more than once is harmless.
func (b *Bus) Subscribe(name Name, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

// On is a typed Subscribe: fn only receives payloads of type E.
func On[E Event](b *Bus, fn func(E)) (unsubscribe func()) {
	var zero E
	return b.Subscribe(zero.EventName(), func(e Event) {
		if typed, ok := e.(E); ok {
			fn(typed)
		}
	})
}

// Publish hands e to every current listener of its channel before returning.
// Listeners may subscribe, unsubscribe or publish from inside a callback;
// such changes take effect for the next publish.
func (b *Bus) Publish(e Event) {
	name := e.EventName()

	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[name]...)
	b.mu.RUnlock()

	metrics.IncEventPublished(string(name))
	for _, s := range subs {
		s.fn(e)
	}
}

// Listeners reports how many listeners are registered for name.
func (b *Bus) Listeners(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

func (b *Bus) remove(name Name, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	lst := b.subs[name]
	out := lst[:0]
	for _, s := range lst {
		if s.id != id {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		delete(b.subs, name)
	} else {
		b.subs[name] = out
	}
}
