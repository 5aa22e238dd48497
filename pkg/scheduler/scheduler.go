// Package scheduler drives the periodic signal sync loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/generator"
	"github.com/jsales362-jpg/betsignal/pkg/match"
	"github.com/jsales362-jpg/betsignal/pkg/metrics"
	"github.com/jsales362-jpg/betsignal/pkg/signal"
)

// Result classifies the outcome of one sync cycle.
type Result string

const (
	ResultOK       Result = "ok"       // signals merged into feed and history
	ResultEmpty    Result = "empty"    // no eligible matches, nothing sent
	ResultSkipped  Result = "skipped"  // a previous cycle is still in flight
	ResultCooldown Result = "cooldown" // cycle consumed a quota cooldown
	ResultOffline  Result = "offline"  // telemetry offline, loop idle
	ResultError    Result = "error"    // generation failed
)

// Config configures the sync scheduler.
type Config struct {
	// Interval between sync attempts.
	Interval time.Duration
	// BatchSize is the number of matches sent per generator call.
	BatchSize int
}

// DefaultConfig returns the standard scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:  45 * time.Second,
		BatchSize: 2,
	}
}

// SignalSource produces signals for a batch of live matches.
type SignalSource interface {
	Generate(ctx context.Context, snapshots []match.Snapshot) ([]signal.Signal, error)
}

// Status reports the scheduler's last-known sync state.
type Status struct {
	Running        bool   `json:"running"`
	Online         bool   `json:"online"`
	Cooldown       bool   `json:"cooldown"`
	LastSyncMillis int64  `json:"lastSync"`
	LastResult     Result `json:"lastResult"`
}

// Scheduler runs the signal sync loop. Each cycle picks the most
// intense eligible matches, asks the generator for signals and merges
// the result into the feed and the history ledger as one batch.
type Scheduler struct {
	config  *Config
	matches *match.Store
	source  SignalSource
	feed    *signal.Feed
	ledger  *signal.Ledger
	tracker *signal.Tracker
	metrics *metrics.EngineMetrics
	log     zerolog.Logger

	now func() time.Time

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	syncing  bool
	cooldown bool
	online   bool
	lastSync int64
	lastRes  Result

	// Callbacks
	onSignal func(signal.Signal)
	onError  func(error)
}

// New creates a sync scheduler. A nil config uses DefaultConfig.
func New(
	config *Config,
	matches *match.Store,
	source SignalSource,
	feed *signal.Feed,
	ledger *signal.Ledger,
	tracker *signal.Tracker,
	m *metrics.EngineMetrics,
	log zerolog.Logger,
) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 2
	}

	return &Scheduler{
		config:  config,
		matches: matches,
		source:  source,
		feed:    feed,
		ledger:  ledger,
		tracker: tracker,
		metrics: m,
		log:     log,
		now:     time.Now,
		online:  true,
		stopCh:  make(chan struct{}),
	}
}

// OnSignal sets a callback invoked for each merged signal.
func (s *Scheduler) OnSignal(fn func(signal.Signal)) {
	s.onSignal = fn
}

// OnError sets a callback for sync errors.
func (s *Scheduler) OnError(fn func(error)) {
	s.onError = fn
}

// Start starts the background sync loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	go s.syncLoop(ctx)

	return nil
}

// Stop stops the sync loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopCh)
		s.running = false
	}
}

// IsRunning returns true if the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SetOnline records the telemetry link state. A transition from
// offline to online triggers an immediate catch-up sync.
func (s *Scheduler) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()

	if online && !was {
		s.log.Info().Msg("telemetry back online, running catch-up sync")
		go s.Sync(ctx)
	}
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Running:        s.running,
		Online:         s.online,
		Cooldown:       s.cooldown,
		LastSyncMillis: s.lastSync,
		LastResult:     s.lastRes,
	}
}

func (s *Scheduler) syncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Initial sync before the first tick.
	s.Sync(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sync(ctx)
		}
	}
}

// Sync runs one sync cycle. Concurrent calls are collapsed: if a
// cycle is already in flight the call returns ResultSkipped without
// touching any state.
func (s *Scheduler) Sync(ctx context.Context) Result {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		s.countCycle(ResultSkipped)
		return ResultSkipped
	}
	s.syncing = true
	online := s.online
	coolingDown := s.cooldown
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	// Settle pending signals against current telemetry first so a
	// finished match resolves even when no new batch goes out.
	if s.tracker != nil {
		s.tracker.Sweep(ctx)
	}

	if !online {
		return s.finish(ResultOffline)
	}

	// An empty candidate set makes no call, so it must not consume
	// the cooldown either; the skip is saved for a cycle that would
	// actually have gone out.
	eligible := s.matches.Eligible()
	if len(eligible) == 0 {
		return s.finish(ResultEmpty)
	}

	if coolingDown {
		s.mu.Lock()
		s.cooldown = false
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.QuotaCooldowns.Inc()
		}
		s.log.Warn().Msg("quota cooldown, skipping this sync cycle")
		return s.finish(ResultCooldown)
	}

	batch := selectBatch(eligible, s.config.BatchSize)
	return s.runBatch(ctx, batch)
}

// SyncMatch generates signals for a single match immediately,
// bypassing batch selection. The match must be live and before the
// 90th minute.
func (s *Scheduler) SyncMatch(ctx context.Context, matchID string) (Result, error) {
	snap, ok := s.matches.Get(matchID)
	if !ok {
		return ResultError, fmt.Errorf("match %s not tracked", matchID)
	}
	if !snap.Eligible() {
		return ResultError, fmt.Errorf("match %s not eligible for signals", matchID)
	}

	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		s.countCycle(ResultSkipped)
		return ResultSkipped, fmt.Errorf("sync already in flight")
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	res := s.runBatch(ctx, []match.Snapshot{snap})
	if res == ResultError {
		return res, fmt.Errorf("signal generation failed for match %s", matchID)
	}
	return res, nil
}

// runBatch calls the generator and merges the outcome. The caller
// must hold the in-flight slot.
func (s *Scheduler) runBatch(ctx context.Context, batch []match.Snapshot) Result {
	start := s.now()
	signals, err := s.source.Generate(ctx, batch)
	if s.metrics != nil {
		s.metrics.GeneratorLatency.Observe(s.now().Sub(start).Seconds())
		s.metrics.BatchSize.Observe(float64(len(batch)))
	}

	if err != nil {
		if errors.Is(err, generator.ErrQuotaExceeded) {
			s.mu.Lock()
			s.cooldown = true
			s.mu.Unlock()
			if s.metrics != nil {
				s.metrics.GeneratorCalls.WithLabelValues("quota").Inc()
			}
			s.log.Warn().Err(err).Msg("generator quota exhausted, cooling down next cycle")
			s.handleError(err)
			return s.finish(ResultError)
		}
		if s.metrics != nil {
			s.metrics.GeneratorCalls.WithLabelValues("error").Inc()
		}
		s.log.Error().Err(err).Int("batch", len(batch)).Msg("signal generation failed")
		s.handleError(err)
		return s.finish(ResultError)
	}

	if s.metrics != nil {
		s.metrics.GeneratorCalls.WithLabelValues("ok").Inc()
	}

	if len(signals) == 0 {
		return s.finish(ResultEmpty)
	}

	// Feed and history receive the same batch in the same order.
	s.feed.Prepend(signals)
	s.ledger.Append(ctx, signals)

	for _, sig := range signals {
		if s.metrics != nil {
			s.metrics.SignalsTotal.WithLabelValues(string(sig.Type)).Inc()
		}
		if s.onSignal != nil {
			s.onSignal(sig)
		}
	}

	if s.metrics != nil {
		s.metrics.FeedSize.Set(float64(s.feed.Len()))
		s.metrics.LedgerSize.Set(float64(s.ledger.Len()))
	}

	s.log.Info().
		Int("signals", len(signals)).
		Int("matches", len(batch)).
		Msg("sync cycle merged signals")

	return s.finish(ResultOK)
}

// finish records the cycle outcome and timestamp.
func (s *Scheduler) finish(res Result) Result {
	s.mu.Lock()
	s.lastSync = s.now().UnixMilli()
	s.lastRes = res
	s.mu.Unlock()
	s.countCycle(res)
	return res
}

func (s *Scheduler) countCycle(res Result) {
	if s.metrics != nil {
		s.metrics.SyncCycles.WithLabelValues(string(res)).Inc()
	}
}

func (s *Scheduler) handleError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// selectBatch picks the n most intense matches, preferring higher
// dangerous-attack rates. Ties break on match ID so selection is
// stable across cycles.
func selectBatch(eligible []match.Snapshot, n int) []match.Snapshot {
	sorted := make([]match.Snapshot, len(eligible))
	copy(sorted, eligible)
	sort.Slice(sorted, func(i, j int) bool {
		ii, ij := sorted[i].Intensity(), sorted[j].Intensity()
		if ii != ij {
			return ii > ij
		}
		return sorted[i].ID < sorted[j].ID
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}
