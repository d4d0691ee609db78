package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

// Handler receives events on the bus dispatch goroutine. Handlers must
// not block; slow work belongs on the handler's own goroutine.
type Handler func(Event)

// Bus fans events out to subscribed handlers. Emit never blocks the
// producer: when the buffer is full the event is dropped and counted.
type Bus struct {
	ch   chan Event
	done chan struct{}
	log  zerolog.Logger

	mu      sync.Mutex
	nextID  int
	subs    map[int]Handler
	dropped uint64
	closed  bool
}

// NewBus creates a bus with the given buffer size and starts its
// dispatch goroutine.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	b := &Bus{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
		log:  logging.Component("events"),
		subs: make(map[int]Handler),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler and returns an id for Unsubscribe.
func (b *Bus) Subscribe(fn Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = fn
	return b.nextID
}

// Unsubscribe removes a handler. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Emit queues an event for dispatch. Non-blocking.
func (b *Bus) Emit(ev Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	select {
	case b.ch <- ev:
		b.mu.Unlock()
	default:
		b.dropped++
		n := b.dropped
		b.mu.Unlock()
		b.log.Warn().Str("type", string(ev.Type)).Uint64("dropped", n).Msg("event buffer full, dropping event")
	}
}

type flushToken struct {
	done chan struct{}
}

const typeFlush Type = "bus-flush"

// Flush blocks until every event emitted before the call has been
// delivered to all handlers. Returns immediately on a closed bus.
func (b *Bus) Flush() {
	tok := &flushToken{done: make(chan struct{})}
	id := b.Subscribe(func(ev Event) {
		if t, ok := ev.Payload.(*flushToken); ok && t == tok {
			close(t.done)
		}
	})
	defer b.Unsubscribe(id)

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		select {
		case b.ch <- Event{Type: typeFlush, Payload: tok}:
			b.mu.Unlock()
			<-tok.done
			return
		default:
			b.mu.Unlock()
			time.Sleep(time.Millisecond)
		}
	}
}

// Dropped returns how many events were discarded due to a full buffer.
func (b *Bus) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops dispatch after draining queued events. Emit becomes a
// no-op once Close has been called.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.ch)
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for ev := range b.ch {
		b.mu.Lock()
		handlers := make([]Handler, 0, len(b.subs))
		for _, fn := range b.subs {
			handlers = append(handlers, fn)
		}
		b.mu.Unlock()

		for _, fn := range handlers {
			fn(ev)
		}
	}
}
