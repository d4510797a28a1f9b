package pipeline

import "sync"

// Broadcaster fans outcomes out to live subscribers. Slow subscribers miss
// outcomes rather than stall the workers.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Outcome]struct{}
	buffer int
}

// NewBroadcaster returns a broadcaster whose subscriptions buffer up to
// buffer outcomes.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{subs: make(map[chan Outcome]struct{}), buffer: buffer}
}

// Subscribe returns a channel of outcomes and a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan Outcome, func()) {
	ch := make(chan Outcome, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers out to every subscriber with room in its buffer. It has
// the OutcomeHook signature.
func (b *Broadcaster) Publish(out Outcome) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- out:
		default:
			broadcastDropped.Inc()
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
