package signal

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSavedToggleAddAndRemove(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := NewSavedStore(ctx, store, zerolog.Nop())

	sig := testSignal("m1", TypeCorner, 1000)

	if !s.Toggle(ctx, sig, "Arsenal", "Chelsea", "Premier League") {
		t.Fatal("first toggle should save")
	}
	if !s.Contains(IdentityOf(sig)) {
		t.Fatal("signal should be in the saved set")
	}

	saved := s.List()
	if len(saved) != 1 {
		t.Fatalf("saved len = %d, want 1", len(saved))
	}
	if saved[0].HomeTeamName != "Arsenal" || saved[0].AwayTeamName != "Chelsea" {
		t.Errorf("team names = %q/%q", saved[0].HomeTeamName, saved[0].AwayTeamName)
	}

	if s.Toggle(ctx, sig, "Arsenal", "Chelsea", "Premier League") {
		t.Fatal("second toggle should remove")
	}
	if s.Len() != 0 {
		t.Fatalf("saved len = %d after removal, want 0", s.Len())
	}
}

func TestSavedStampsSaveTime(t *testing.T) {
	ctx := context.Background()
	s := NewSavedStore(ctx, newMemStore(), zerolog.Nop())

	at := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	s.Toggle(ctx, testSignal("m1", TypeCorner, 1000), "A", "B", "L")

	if got := s.List()[0].SavedAt; got != at.UnixMilli() {
		t.Errorf("SavedAt = %d, want %d", got, at.UnixMilli())
	}
}

func TestSavedPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	s := NewSavedStore(ctx, store, zerolog.Nop())
	s.Toggle(ctx, testSignal("m1", TypeGoal, 1000), "A", "B", "L")

	reloaded := NewSavedStore(ctx, store, zerolog.Nop())
	if reloaded.Len() != 1 {
		t.Fatalf("saved set should survive restart, len = %d", reloaded.Len())
	}
}

func TestSavedIsIndependentCopy(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	ledger := NewLedger(ctx, store, zerolog.Nop())
	saved := NewSavedStore(ctx, store, zerolog.Nop())

	sig := testSignal("m1", TypeCorner, 1000)
	ledger.Append(ctx, []Signal{sig})
	saved.Toggle(ctx, sig, "A", "B", "L")

	// Settling the ledger entry must not touch the saved copy.
	ledger.UpdateStatus(ctx, IdentityOf(sig), StatusWin)
	if saved.List()[0].Status != StatusPending {
		t.Error("ledger resolution leaked into the saved copy")
	}

	// Removing the saved copy must not touch the ledger.
	saved.Remove(ctx, IdentityOf(sig))
	if ledger.Len() != 1 {
		t.Error("saved removal leaked into the ledger")
	}
}

func TestSavedCorruptBlobStartsEmpty(t *testing.T) {
	store := newMemStore()
	store.data[SavedKey] = []byte("not json")

	s := NewSavedStore(context.Background(), store, zerolog.Nop())
	if s.Len() != 0 {
		t.Fatalf("expected empty saved set on corrupt blob, got %d", s.Len())
	}
}
