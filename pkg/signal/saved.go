package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/kv"
)

// SavedKey is the persisted blob key for the saved-signal set.
const SavedKey = "saved_bet_signals"

// SavedStore is the user-curated signal set, keyed by signal identity.
// It persists independently of the ledger and is written only by
// direct user action.
type SavedStore struct {
	store kv.Store
	log   zerolog.Logger

	mu      sync.RWMutex
	entries []SavedSignal

	now func() time.Time
}

// NewSavedStore loads the saved set from store, tolerating missing or
// corrupt blobs the same way the ledger does.
func NewSavedStore(ctx context.Context, store kv.Store, log zerolog.Logger) *SavedStore {
	s := &SavedStore{
		store: store,
		log:   log.With().Str("component", "saved").Logger(),
		now:   time.Now,
	}

	data, err := store.Load(ctx, SavedKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		s.log.Warn().Err(err).Msg("saved set load failed, starting empty")
	default:
		if err := json.Unmarshal(data, &s.entries); err != nil {
			s.log.Warn().Err(err).Msg("saved blob corrupt, starting empty")
			s.entries = nil
		}
	}

	return s
}

// Toggle saves sig if its identity is absent, otherwise removes it.
// Exactly one of the two happens per call. It returns true when the
// signal is saved after the call.
func (s *SavedStore) Toggle(ctx context.Context, sig Signal, homeTeam, awayTeam, league string) bool {
	id := IdentityOf(sig)

	s.mu.Lock()
	saved := false
	if idx := s.indexOf(id); idx >= 0 {
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	} else {
		entry := SavedSignal{
			Signal:       sig,
			HomeTeamName: homeTeam,
			AwayTeamName: awayTeam,
			League:       league,
			SavedAt:      s.now().UnixMilli(),
		}
		s.entries = append([]SavedSignal{entry}, s.entries...)
		saved = true
	}
	s.mu.Unlock()

	s.persist(ctx)
	return saved
}

// Remove deletes the entry with the given identity. Unknown identities
// are a no-op.
func (s *SavedStore) Remove(ctx context.Context, identity string) {
	s.mu.Lock()
	idx := s.indexOf(identity)
	if idx >= 0 {
		s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	}
	s.mu.Unlock()

	if idx >= 0 {
		s.persist(ctx)
	}
}

// Contains reports whether a signal with the given identity is saved.
func (s *SavedStore) Contains(identity string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(identity) >= 0
}

// List returns the saved entries, most recently saved first.
func (s *SavedStore) List() []SavedSignal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SavedSignal, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of saved entries.
func (s *SavedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// indexOf must be called with the lock held.
func (s *SavedStore) indexOf(identity string) int {
	for i := range s.entries {
		if IdentityOf(s.entries[i].Signal) == identity {
			return i
		}
	}
	return -1
}

func (s *SavedStore) persist(ctx context.Context) {
	s.mu.RLock()
	data, err := json.Marshal(s.entries)
	s.mu.RUnlock()

	if err != nil {
		s.log.Error().Err(err).Str("key", SavedKey).Msg("saved set marshal failed")
		return
	}
	if err := s.store.Save(ctx, SavedKey, data); err != nil {
		s.log.Warn().Err(err).Msg("saved set save failed")
	}
}
