// Package engine ties the signal components together behind one facade.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jsales362-jpg/betsignal/pkg/generator"
	"github.com/jsales362-jpg/betsignal/pkg/match"
	"github.com/jsales362-jpg/betsignal/pkg/metrics"
	"github.com/jsales362-jpg/betsignal/pkg/scheduler"
	"github.com/jsales362-jpg/betsignal/pkg/signal"
	"github.com/jsales362-jpg/betsignal/pkg/stats"
)

// Report aggregates performance analytics over a signal range.
type Report struct {
	Wins       int               `json:"wins"`
	Losses     int               `json:"losses"`
	Total      int               `json:"total"`
	WinRate    float64           `json:"winRate"`
	ROI        decimal.Decimal   `json:"roi"`
	AverageOdd decimal.Decimal   `json:"averageOdd"`
	Trend      []stats.WeekBucket `json:"trend"`
}

// Engine is the top-level entry point for the betting signal service.
type Engine struct {
	matches   *match.Store
	feed      *signal.Feed
	ledger    *signal.Ledger
	saved     *signal.SavedStore
	generator *generator.Generator
	scheduler *scheduler.Scheduler
	metrics   *metrics.EngineMetrics
	log       zerolog.Logger

	now func() time.Time
}

// New creates an engine over already-constructed components.
func New(
	matches *match.Store,
	feed *signal.Feed,
	ledger *signal.Ledger,
	saved *signal.SavedStore,
	gen *generator.Generator,
	sched *scheduler.Scheduler,
	m *metrics.EngineMetrics,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		matches:   matches,
		feed:      feed,
		ledger:    ledger,
		saved:     saved,
		generator: gen,
		scheduler: sched,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// ListLiveFeed returns the capped live feed, optionally filtered.
func (e *Engine) ListLiveFeed(filter signal.Filter) []signal.Signal {
	return e.feed.List(filter)
}

// ListHistory returns ledger entries generated at or after sinceMillis.
// A non-positive bound returns the full history.
func (e *Engine) ListHistory(sinceMillis int64) []signal.Signal {
	return e.ledger.Query(sinceMillis)
}

// ComputeReport builds performance analytics over the history starting
// at sinceMillis.
func (e *Engine) ComputeReport(sinceMillis int64) Report {
	signals := e.ledger.Query(sinceMillis)
	m := stats.Compute(signals)
	return Report{
		Wins:       m.Wins,
		Losses:     m.Losses,
		Total:      m.Total,
		WinRate:    m.WinRate,
		ROI:        m.ROI,
		AverageOdd: stats.AverageOdd(signals),
		Trend:      stats.WeeklyTrend(signals),
	}
}

// TodayReport builds analytics over signals generated since local
// midnight.
func (e *Engine) TodayReport() Report {
	return e.ComputeReport(stats.StartOfDay(e.now()))
}

// ListSaved returns the saved-signal set, newest first.
func (e *Engine) ListSaved() []signal.SavedSignal {
	return e.saved.List()
}

// ToggleSaved flips the saved state of the signal with the given
// identity, resolving it from the history ledger. It returns true if
// the signal ends up saved.
func (e *Engine) ToggleSaved(ctx context.Context, identity string) (bool, error) {
	sig, ok := e.findSignal(identity)
	if !ok {
		return false, fmt.Errorf("signal %s not found", identity)
	}

	home, away := splitMatchName(sig.MatchName)
	added := e.saved.Toggle(ctx, sig, home, away, sig.LeagueName)
	if e.metrics != nil {
		e.metrics.SavedSize.Set(float64(e.saved.Len()))
	}
	return added, nil
}

// ListMatches returns every tracked match snapshot.
func (e *Engine) ListMatches() []match.Snapshot {
	return e.matches.List()
}

// SearchMatches returns matches whose team names contain the query,
// ignoring case and accents.
func (e *Engine) SearchMatches(query string) []match.Snapshot {
	return e.matches.Search(query)
}

// GetMatch returns a single match snapshot.
func (e *Engine) GetMatch(id string) (match.Snapshot, bool) {
	return e.matches.Get(id)
}

// SyncMatch forces signal generation for one match.
func (e *Engine) SyncMatch(ctx context.Context, matchID string) error {
	_, err := e.scheduler.SyncMatch(ctx, matchID)
	return err
}

// GenerateTickets builds combination tickets over all live matches.
func (e *Engine) GenerateTickets(ctx context.Context) ([]generator.Ticket, error) {
	live := e.matches.Live()
	if len(live) == 0 {
		return nil, fmt.Errorf("no live matches to build tickets from")
	}
	return e.generator.GenerateTickets(ctx, live)
}

// EngineStatus reports the sync state plus container sizes.
type EngineStatus struct {
	Sync       scheduler.Status `json:"sync"`
	Matches    int              `json:"matches"`
	FeedSize   int              `json:"feedSize"`
	LedgerSize int              `json:"ledgerSize"`
	SavedSize  int              `json:"savedSize"`
}

// Status returns the current engine state.
func (e *Engine) Status() EngineStatus {
	return EngineStatus{
		Sync:       e.scheduler.Status(),
		Matches:    e.matches.Len(),
		FeedSize:   e.feed.Len(),
		LedgerSize: e.ledger.Len(),
		SavedSize:  e.saved.Len(),
	}
}

// findSignal looks an identity up in the ledger first, then the feed.
func (e *Engine) findSignal(identity string) (signal.Signal, bool) {
	for _, sig := range e.ledger.All() {
		if signal.IdentityOf(sig) == identity {
			return sig, true
		}
	}
	for _, sig := range e.feed.List(signal.Filter{}) {
		if signal.IdentityOf(sig) == identity {
			return sig, true
		}
	}
	return signal.Signal{}, false
}

func splitMatchName(name string) (home, away string) {
	parts := strings.SplitN(name, " vs ", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return name, ""
}
