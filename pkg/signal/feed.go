package signal

import "sync"

// DefaultFeedCapacity matches the live view's historical cap.
const DefaultFeedCapacity = 30

// Filter selects a subset of signals on read. Zero values mean "no
// constraint". MinConfidence is inclusive.
type Filter struct {
	Type          Type
	LeagueName    string
	MinConfidence float64
}

func (f Filter) matches(s Signal) bool {
	if f.Type != "" && s.Type != f.Type {
		return false
	}
	if f.LeagueName != "" && s.LeagueName != f.LeagueName {
		return false
	}
	if s.Confidence < f.MinConfidence {
		return false
	}
	return true
}

// Feed is the bounded, newest-first buffer of recently generated
// signals. It is transient: it starts empty on every process start.
//
// The feed does not deduplicate. Identical signals from successive
// generator cycles are genuinely distinct ephemeral observations.
type Feed struct {
	mu       sync.RWMutex
	capacity int
	signals  []Signal
}

// NewFeed creates a feed with the given capacity; non-positive values
// fall back to DefaultFeedCapacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{capacity: capacity}
}

// Prepend inserts signals at the front, newest first, preserving the
// relative order of the batch, then drops everything past capacity.
// The swap is done under the write lock so a concurrent List sees
// either the old or the new feed, never a partial merge.
func (f *Feed) Prepend(signals []Signal) {
	if len(signals) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	merged := make([]Signal, 0, len(signals)+len(f.signals))
	merged = append(merged, signals...)
	merged = append(merged, f.signals...)
	if len(merged) > f.capacity {
		merged = merged[:f.capacity]
	}
	f.signals = merged
}

// List returns the signals matching filter, newest first. The returned
// slice is a copy; filtering never mutates the feed.
func (f *Feed) List(filter Filter) []Signal {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Signal, 0, len(f.signals))
	for _, s := range f.signals {
		if filter.matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the current number of buffered signals.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.signals)
}

// Capacity returns the fixed capacity.
func (f *Feed) Capacity() int {
	return f.capacity
}
