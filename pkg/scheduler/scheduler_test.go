package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/generator"
	"github.com/jsales362-jpg/betsignal/pkg/kv"
	"github.com/jsales362-jpg/betsignal/pkg/match"
	"github.com/jsales362-jpg/betsignal/pkg/signal"
)

// fakeSource scripts generator outcomes per call.
type fakeSource struct {
	results [][]signal.Signal
	errs    []error
	calls   int
	batches [][]match.Snapshot

	// blockCh, when set, is received from before each call returns.
	blockCh chan struct{}
	entered chan struct{}
}

func (f *fakeSource) Generate(_ context.Context, snapshots []match.Snapshot) ([]signal.Signal, error) {
	i := f.calls
	f.calls++
	f.batches = append(f.batches, snapshots)

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.blockCh != nil {
		<-f.blockCh
	}

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out []signal.Signal
	if i < len(f.results) {
		out = f.results[i]
	}
	return out, err
}

func liveMatch(id string, minute, dangerousAttacks int) match.Snapshot {
	return match.Snapshot{
		ID:     id,
		League: "League",
		Minute: minute,
		Status: match.StatusLive,
		HomeTeam: match.TeamStats{
			Name: "Home " + id, DangerousAttacks: dangerousAttacks,
		},
		AwayTeam: match.TeamStats{Name: "Away " + id},
	}
}

func sig(matchID string, typ signal.Type) signal.Signal {
	return signal.Signal{
		MatchID:       matchID,
		Type:          typ,
		Timestamp:     "12:00:00",
		FullTimestamp: 1000,
		OddSuggested:  1.9,
		Status:        signal.StatusPending,
	}
}

func newHarness(t *testing.T, source SignalSource, cfg *Config) (*Scheduler, *match.Store, *signal.Feed, *signal.Ledger) {
	t.Helper()

	store, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	matches := match.NewStore()
	feed := signal.NewFeed(30)
	ledger := signal.NewLedger(context.Background(), store, zerolog.Nop())
	tracker := signal.NewTracker(ledger, matches, zerolog.Nop())

	s := New(cfg, matches, source, feed, ledger, tracker, nil, zerolog.Nop())
	return s, matches, feed, ledger
}

func TestSyncMergesFeedAndLedger(t *testing.T) {
	batch := []signal.Signal{sig("m1", signal.TypeCorner), sig("m1", signal.TypeGoal)}
	source := &fakeSource{results: [][]signal.Signal{batch}}

	s, matches, feed, ledger := newHarness(t, source, nil)
	matches.Upsert(liveMatch("m1", 60, 30))

	if res := s.Sync(context.Background()); res != ResultOK {
		t.Fatalf("Sync = %s, want ok", res)
	}

	if feed.Len() != 2 || ledger.Len() != 2 {
		t.Fatalf("feed/ledger = %d/%d, want 2/2", feed.Len(), ledger.Len())
	}

	// Same batch, same order in both containers.
	fs, ls := feed.List(signal.Filter{}), ledger.All()
	for i := range fs {
		if fs[i].Type != ls[i].Type {
			t.Errorf("order diverges at %d: feed %s, ledger %s", i, fs[i].Type, ls[i].Type)
		}
	}
}

func TestSyncNoEligibleMatches(t *testing.T) {
	source := &fakeSource{}
	s, matches, _, _ := newHarness(t, source, nil)

	// FINISHED and past the 90th minute are both ineligible.
	fin := liveMatch("m1", 50, 10)
	fin.Status = match.StatusFinished
	matches.Upsert(fin)
	matches.Upsert(liveMatch("m2", 92, 10))

	if res := s.Sync(context.Background()); res != ResultEmpty {
		t.Fatalf("Sync = %s, want empty", res)
	}
	if source.calls != 0 {
		t.Errorf("generator called %d times for an empty eligible set", source.calls)
	}
}

func TestSyncQuotaCooldownSkipsExactlyOneCycle(t *testing.T) {
	source := &fakeSource{errs: []error{
		fmt.Errorf("wrapped: %w", generator.ErrQuotaExceeded),
		nil,
	}}
	s, matches, _, _ := newHarness(t, source, nil)
	matches.Upsert(liveMatch("m1", 60, 30))

	if res := s.Sync(context.Background()); res != ResultError {
		t.Fatalf("first Sync = %s, want error", res)
	}
	if !s.Status().Cooldown {
		t.Fatal("quota error should arm the cooldown")
	}

	// Next cycle is consumed by the cooldown without calling out.
	if res := s.Sync(context.Background()); res != ResultCooldown {
		t.Fatalf("second Sync = %s, want cooldown", res)
	}
	if source.calls != 1 {
		t.Fatalf("generator called %d times, want 1", source.calls)
	}

	// The cycle after that runs normally.
	if res := s.Sync(context.Background()); res == ResultCooldown {
		t.Fatal("cooldown must clear after one cycle")
	}
	if source.calls != 2 {
		t.Errorf("generator called %d times, want 2", source.calls)
	}
}

func TestSyncEmptyCycleKeepsCooldown(t *testing.T) {
	source := &fakeSource{errs: []error{
		fmt.Errorf("wrapped: %w", generator.ErrQuotaExceeded),
		nil,
	}}
	s, matches, _, _ := newHarness(t, source, nil)
	matches.Upsert(liveMatch("m1", 60, 30))

	if res := s.Sync(context.Background()); res != ResultError {
		t.Fatalf("first Sync = %s, want error", res)
	}

	// The match finishes before the next tick. An empty candidate set
	// makes no call, so it must not spend the cooldown.
	fin := liveMatch("m1", 90, 30)
	fin.Status = match.StatusFinished
	matches.Upsert(fin)

	if res := s.Sync(context.Background()); res != ResultEmpty {
		t.Fatalf("empty Sync = %s, want empty", res)
	}
	if !s.Status().Cooldown {
		t.Fatal("cooldown must survive an empty cycle")
	}

	// The next cycle with a real candidate is the one skipped.
	matches.Upsert(liveMatch("m2", 60, 30))
	if res := s.Sync(context.Background()); res != ResultCooldown {
		t.Fatalf("third Sync = %s, want cooldown", res)
	}
	if source.calls != 1 {
		t.Fatalf("generator called %d times, want 1", source.calls)
	}

	if res := s.Sync(context.Background()); res == ResultCooldown {
		t.Fatal("cooldown must clear after being consumed")
	}
	if source.calls != 2 {
		t.Errorf("generator called %d times, want 2", source.calls)
	}
}

func TestSyncSingleFlight(t *testing.T) {
	source := &fakeSource{
		blockCh: make(chan struct{}),
		entered: make(chan struct{}),
	}
	s, matches, _, _ := newHarness(t, source, nil)
	matches.Upsert(liveMatch("m1", 60, 30))

	done := make(chan Result)
	go func() { done <- s.Sync(context.Background()) }()

	<-source.entered

	// A tick during an in-flight call is skipped, not queued.
	if res := s.Sync(context.Background()); res != ResultSkipped {
		t.Fatalf("concurrent Sync = %s, want skipped", res)
	}

	close(source.blockCh)
	<-done

	if source.calls != 1 {
		t.Errorf("generator called %d times, want 1", source.calls)
	}
}

func TestSyncBatchSelectionByIntensity(t *testing.T) {
	source := &fakeSource{}
	s, matches, _, _ := newHarness(t, source, nil)

	matches.Upsert(liveMatch("calm", 60, 5))
	matches.Upsert(liveMatch("busy", 60, 60))
	matches.Upsert(liveMatch("wild", 60, 80))

	s.Sync(context.Background())

	if len(source.batches) != 1 {
		t.Fatalf("generator called %d times", len(source.batches))
	}
	batch := source.batches[0]
	if len(batch) != 2 {
		t.Fatalf("batch size = %d, want 2", len(batch))
	}
	if batch[0].ID != "wild" || batch[1].ID != "busy" {
		t.Errorf("batch = [%s %s], want [wild busy]", batch[0].ID, batch[1].ID)
	}
}

func TestSyncOfflineIsIdle(t *testing.T) {
	source := &fakeSource{}
	s, matches, _, _ := newHarness(t, source, nil)
	matches.Upsert(liveMatch("m1", 60, 30))

	s.SetOnline(context.Background(), false)
	if res := s.Sync(context.Background()); res != ResultOffline {
		t.Fatalf("offline Sync = %s", res)
	}
	if source.calls != 0 {
		t.Errorf("generator called while offline")
	}
}

func TestSyncResolvesPendingSignals(t *testing.T) {
	source := &fakeSource{}
	s, matches, _, ledger := newHarness(t, source, nil)

	pending := sig("m1", signal.TypeCorner)
	pending.Baseline = signal.Baseline{Corners: 2}
	ledger.Append(context.Background(), []signal.Signal{pending})

	snap := liveMatch("m1", 70, 10)
	snap.HomeTeam.Corners = 3
	matches.Upsert(snap)

	s.Sync(context.Background())

	if got := ledger.All()[0].Status; got != signal.StatusWin {
		t.Errorf("pending signal status after sweep = %s, want WIN", got)
	}
}

func TestSyncMatchManual(t *testing.T) {
	batch := []signal.Signal{sig("m2", signal.TypeGoal)}
	source := &fakeSource{results: [][]signal.Signal{batch}}
	s, matches, feed, _ := newHarness(t, source, nil)

	matches.Upsert(liveMatch("m1", 60, 99))
	matches.Upsert(liveMatch("m2", 60, 1))

	if _, err := s.SyncMatch(context.Background(), "m2"); err != nil {
		t.Fatalf("SyncMatch: %v", err)
	}

	// Only the requested match goes out, regardless of intensity.
	if len(source.batches[0]) != 1 || source.batches[0][0].ID != "m2" {
		t.Fatalf("manual sync batch = %+v", source.batches[0])
	}
	if feed.Len() != 1 {
		t.Errorf("feed len = %d, want 1", feed.Len())
	}
}

func TestSyncMatchRejectsIneligible(t *testing.T) {
	s, matches, _, _ := newHarness(t, &fakeSource{}, nil)

	if _, err := s.SyncMatch(context.Background(), "missing"); err == nil {
		t.Error("unknown match should error")
	}

	late := liveMatch("m1", 92, 10)
	matches.Upsert(late)
	if _, err := s.SyncMatch(context.Background(), "m1"); err == nil {
		t.Error("match past the 90th minute should error")
	}
}

func TestStartStop(t *testing.T) {
	cfg := &Config{Interval: time.Hour, BatchSize: 2}
	s, _, _, _ := newHarness(t, &fakeSource{}, cfg)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(ctx); err == nil {
		t.Error("double Start should error")
	}
	if !s.IsRunning() {
		t.Error("scheduler should be running")
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler should be stopped")
	}
	s.Stop() // idempotent
}
