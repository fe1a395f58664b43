package events

import (
	"context"
	"sync"

	"nft_marketplace/internal/marketplace"
)

// Recorder keeps the most recent events in emission order.
type Recorder struct {
	mu     sync.RWMutex
	limit  int
	events []marketplace.Envelope
}

// NewRecorder creates a Recorder retaining at most limit events; limit <= 0 keeps all of them.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Emit(_ context.Context, env marketplace.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, env)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append(r.events[:0:0], r.events[len(r.events)-r.limit:]...)
	}
	return nil
}

// Recent returns up to n of the latest events, oldest first. n <= 0 returns all retained events.
func (r *Recorder) Recent(n int) []marketplace.Envelope {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := 0
	if n > 0 && n < len(r.events) {
		start = len(r.events) - n
	}
	out := make([]marketplace.Envelope, len(r.events)-start)
	copy(out, r.events[start:])
	return out
}
