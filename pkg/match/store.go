package match

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Store holds the current snapshot of every tracked match. The
// telemetry consumer is the only writer; the scheduler and the read
// API are concurrent readers. Each update replaces the whole record,
// so a reader never observes a half-applied telemetry delivery.
type Store struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewStore creates an empty snapshot store.
func NewStore() *Store {
	return &Store{snapshots: make(map[string]*Snapshot)}
}

// Upsert replaces the stored record for snap.ID with a copy of snap.
func (s *Store) Upsert(snap Snapshot) {
	snap.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.ID] = &snap
}

// Get returns a copy of the snapshot for id.
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	if !ok {
		return Snapshot{}, false
	}
	return *snap, true
}

// Remove deletes a match from the tracked set. Signals referencing it
// keep working: they carry denormalized match metadata.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, id)
}

// List returns copies of all tracked snapshots, ordered by match ID for
// stable iteration.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Eligible returns the matches that currently qualify for signal
// generation (LIVE, minute < 90).
func (s *Store) Eligible() []Snapshot {
	all := s.List()
	out := all[:0]
	for _, snap := range all {
		if snap.Eligible() {
			out = append(out, snap)
		}
	}
	return out
}

// Live returns all matches with LIVE status.
func (s *Store) Live() []Snapshot {
	all := s.List()
	out := all[:0]
	for _, snap := range all {
		if snap.Status == StatusLive {
			out = append(out, snap)
		}
	}
	return out
}

// Search returns LIVE matches whose team names contain the query,
// case- and accent-insensitive. An empty query matches everything.
func (s *Store) Search(query string) []Snapshot {
	q := NormalizeName(query)
	live := s.Live()
	if q == "" {
		return live
	}

	out := live[:0]
	for _, snap := range live {
		if strings.Contains(NormalizeName(snap.HomeTeam.Name), q) ||
			strings.Contains(NormalizeName(snap.AwayTeam.Name), q) {
			out = append(out, snap)
		}
	}
	return out
}

// Len returns the number of tracked matches.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
