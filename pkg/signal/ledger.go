package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/kv"
)

// LedgerKey is the persisted blob key for the history ledger. The key
// and the JSON array layout are the engine's historical wire format.
const LedgerKey = "betsignal_history"

// Ledger is the append-only history of every signal ever produced,
// newest first. Entries persist across restarts; only their resolution
// status ever changes after insertion.
type Ledger struct {
	store kv.Store
	log   zerolog.Logger

	mu      sync.RWMutex
	entries []Signal
}

// NewLedger loads existing history from store. A missing or corrupt
// blob initializes an empty ledger with a logged warning; it never
// fails the caller.
func NewLedger(ctx context.Context, store kv.Store, log zerolog.Logger) *Ledger {
	l := &Ledger{
		store: store,
		log:   log.With().Str("component", "ledger").Logger(),
	}

	data, err := store.Load(ctx, LedgerKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		// first run
	case err != nil:
		l.log.Warn().Err(err).Msg("history load failed, starting empty")
	default:
		if err := json.Unmarshal(data, &l.entries); err != nil {
			l.log.Warn().Err(err).Msg("history blob corrupt, starting empty")
			l.entries = nil
		}
	}

	return l
}

// Append adds a batch to the front of the ledger, preserving the
// batch's relative order, and persists the result.
func (l *Ledger) Append(ctx context.Context, signals []Signal) {
	if len(signals) == 0 {
		return
	}

	l.mu.Lock()
	merged := make([]Signal, 0, len(signals)+len(l.entries))
	merged = append(merged, signals...)
	merged = append(merged, l.entries...)
	l.entries = merged
	l.mu.Unlock()

	l.persist(ctx)
}

// Query returns all entries with FullTimestamp >= sinceMillis, newest
// first. sinceMillis <= 0 returns the whole ledger.
func (l *Ledger) Query(sinceMillis int64) []Signal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Signal, 0, len(l.entries))
	for _, s := range l.entries {
		if sinceMillis <= 0 || s.FullTimestamp >= sinceMillis {
			out = append(out, s)
		}
	}
	return out
}

// All returns the full ledger, newest first.
func (l *Ledger) All() []Signal {
	return l.Query(0)
}

// UpdateStatus transitions the first entry with the given identity
// from PENDING to status. Unknown identities and entries that already
// settled are a no-op: resolution is best-effort and may race with
// display or repeat deliveries.
func (l *Ledger) UpdateStatus(ctx context.Context, identity string, status ResolutionStatus) bool {
	if status != StatusWin && status != StatusLoss {
		return false
	}

	l.mu.Lock()
	updated := false
	for i := range l.entries {
		if IdentityOf(l.entries[i]) != identity {
			continue
		}
		if l.entries[i].Status == StatusPending {
			l.entries[i].Status = status
			updated = true
		}
		break
	}
	l.mu.Unlock()

	if updated {
		l.persist(ctx)
	}
	return updated
}

// Pending returns the entries still awaiting resolution.
func (l *Ledger) Pending() []Signal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Signal
	for _, s := range l.entries {
		if s.Status == StatusPending {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of ledger entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Ledger) persist(ctx context.Context) {
	l.mu.RLock()
	data, err := json.Marshal(l.entries)
	l.mu.RUnlock()

	if err != nil {
		l.log.Error().Err(err).Str("key", LedgerKey).Msg("history marshal failed")
		return
	}
	if err := l.store.Save(ctx, LedgerKey, data); err != nil {
		l.log.Warn().Err(err).Msg("history save failed")
	}
}
