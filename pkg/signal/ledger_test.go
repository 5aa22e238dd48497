package signal

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/kv"
)

// memStore is an in-memory kv.Store for tests.
type memStore struct {
	data     map[string][]byte
	failSave bool
	saves    int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Load(_ context.Context, key string) ([]byte, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	return data, nil
}

func (m *memStore) Save(_ context.Context, key string, value []byte) error {
	m.saves++
	if m.failSave {
		return errors.New("save failed")
	}
	m.data[key] = value
	return nil
}

func testSignal(matchID string, typ Type, ts int64) Signal {
	return Signal{
		MatchID:       matchID,
		Type:          typ,
		Description:   "test",
		Confidence:    0.8,
		OddSuggested:  1.9,
		Timestamp:     "12:00:00",
		FullTimestamp: ts,
		Status:        StatusPending,
	}
}

func TestLedgerStartsEmptyOnMissingBlob(t *testing.T) {
	l := NewLedger(context.Background(), newMemStore(), zerolog.Nop())
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger, got %d entries", l.Len())
	}
}

func TestLedgerStartsEmptyOnCorruptBlob(t *testing.T) {
	store := newMemStore()
	store.data[LedgerKey] = []byte("{not json")

	l := NewLedger(context.Background(), store, zerolog.Nop())
	if l.Len() != 0 {
		t.Fatalf("expected empty ledger on corrupt blob, got %d entries", l.Len())
	}
}

func TestLedgerAppendPersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	l := NewLedger(ctx, store, zerolog.Nop())
	l.Append(ctx, []Signal{
		testSignal("m1", TypeCorner, 1000),
		testSignal("m1", TypeGoal, 1000),
	})
	l.Append(ctx, []Signal{testSignal("m2", TypeCards, 2000)})

	reloaded := NewLedger(ctx, store, zerolog.Nop())
	if reloaded.Len() != 3 {
		t.Fatalf("expected 3 entries after reload, got %d", reloaded.Len())
	}

	// Newest batch first, batch order preserved.
	all := reloaded.All()
	if all[0].MatchID != "m2" {
		t.Errorf("expected newest batch first, got %s", all[0].MatchID)
	}
	if all[1].Type != TypeCorner || all[2].Type != TypeGoal {
		t.Errorf("batch order not preserved: %s, %s", all[1].Type, all[2].Type)
	}
}

func TestLedgerSaveFailureKeepsEntries(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failSave = true

	l := NewLedger(ctx, store, zerolog.Nop())
	l.Append(ctx, []Signal{testSignal("m1", TypeGoal, 1000)})

	if l.Len() != 1 {
		t.Fatalf("in-memory state should survive a failed save, got %d entries", l.Len())
	}
}

func TestLedgerQuerySince(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, newMemStore(), zerolog.Nop())
	l.Append(ctx, []Signal{testSignal("m1", TypeGoal, 1000)})
	l.Append(ctx, []Signal{testSignal("m2", TypeGoal, 2000)})
	l.Append(ctx, []Signal{testSignal("m3", TypeGoal, 3000)})

	if got := len(l.Query(2000)); got != 2 {
		t.Errorf("Query(2000) = %d entries, want 2", got)
	}
	if got := len(l.Query(0)); got != 3 {
		t.Errorf("Query(0) = %d entries, want 3", got)
	}
	if got := len(l.Query(9999)); got != 0 {
		t.Errorf("Query(9999) = %d entries, want 0", got)
	}
}

func TestLedgerUpdateStatusSettlesOnce(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, newMemStore(), zerolog.Nop())

	sig := testSignal("m1", TypeCorner, 1000)
	l.Append(ctx, []Signal{sig})
	id := IdentityOf(sig)

	if !l.UpdateStatus(ctx, id, StatusWin) {
		t.Fatal("first settlement should apply")
	}
	if l.UpdateStatus(ctx, id, StatusLoss) {
		t.Fatal("settled signal must not flip")
	}

	all := l.All()
	if all[0].Status != StatusWin {
		t.Errorf("status = %s, want WIN", all[0].Status)
	}
	if len(l.Pending()) != 0 {
		t.Errorf("expected no pending entries, got %d", len(l.Pending()))
	}
}

func TestLedgerUpdateStatusUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(ctx, newMemStore(), zerolog.Nop())
	if l.UpdateStatus(ctx, "nope-GOAL-12:00:00", StatusWin) {
		t.Fatal("unknown identity should be a no-op")
	}
}
