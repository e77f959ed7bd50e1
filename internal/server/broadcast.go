package server

import (
	"sync"

	rchan "github.com/rchanio/rchan/internal"
)

// broadcaster fans the supervisor's single consumer channel out to every
// currently-connected SSE client. The supervisor itself only ever hands
// events to one reader (spec.md Section 4.7); turning that into a
// multi-subscriber stream for HTTP clients is a server-layer concern,
// grounded on the same channel-actor ownership style internal/cache.Actor
// uses for its single-writer state.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan rchan.Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan rchan.Event]struct{})}
}

// run drains src until it closes, publishing every event to each
// subscriber without blocking on a slow one.
func (b *broadcaster) run(src <-chan rchan.Event) {
	for e := range src {
		b.mu.Lock()
		for sub := range b.subs {
			select {
			case sub <- e:
			default:
				// Slow client: drop rather than stall the whole fan-out.
			}
		}
		b.mu.Unlock()
	}
}

// subscribe registers a new client channel. unsubscribe must be called
// when the client disconnects.
func (b *broadcaster) subscribe() chan rchan.Event {
	ch := make(chan rchan.Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broadcaster) unsubscribe(ch chan rchan.Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
