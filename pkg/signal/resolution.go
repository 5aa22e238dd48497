package signal

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/match"
)

// Outcome is the result of evaluating a pending signal against match
// state.
type Outcome int

const (
	// OutcomeUndetermined leaves the signal PENDING.
	OutcomeUndetermined Outcome = iota
	OutcomeWin
	OutcomeLoss
)

// Resolve settles a signal against an authoritative match state,
// comparing against the counters captured at generation time.
//
// Count markets (CORNER, GOAL, CARDS) win as soon as the relevant
// total exceeds the baseline, and lose when the match finishes without
// that. RESULT settles only at full time: the side leading at
// generation time must win; a signal issued level wins when the match
// does not end level. Re-evaluating a settled signal returns
// Undetermined so callers stay idempotent.
func Resolve(sig Signal, snap match.Snapshot) Outcome {
	if sig.Resolved() {
		return OutcomeUndetermined
	}

	finished := snap.Status == match.StatusFinished

	switch sig.Type {
	case TypeCorner:
		return resolveCount(snap.TotalCorners(), sig.Baseline.Corners, finished)
	case TypeGoal:
		return resolveCount(snap.TotalGoals(), sig.Baseline.HomeScore+sig.Baseline.AwayScore, finished)
	case TypeCards:
		return resolveCount(snap.TotalCards(), sig.Baseline.Cards, finished)
	case TypeResult:
		if !finished {
			return OutcomeUndetermined
		}
		return resolveResult(sig.Baseline, snap)
	}
	return OutcomeUndetermined
}

func resolveCount(current, baseline int, finished bool) Outcome {
	if current > baseline {
		return OutcomeWin
	}
	if finished {
		return OutcomeLoss
	}
	return OutcomeUndetermined
}

func resolveResult(base Baseline, snap match.Snapshot) Outcome {
	home, away := snap.HomeTeam.Score, snap.AwayTeam.Score
	switch {
	case base.HomeScore > base.AwayScore:
		if home > away {
			return OutcomeWin
		}
		return OutcomeLoss
	case base.AwayScore > base.HomeScore:
		if away > home {
			return OutcomeWin
		}
		return OutcomeLoss
	default:
		// Issued level: backing a winner emerging.
		if home != away {
			return OutcomeWin
		}
		return OutcomeLoss
	}
}

// Tracker sweeps the ledger's pending signals against current match
// state and applies settled outcomes. Settlement is idempotent: the
// ledger rejects transitions away from anything but PENDING, so
// repeated sweeps and racing updates cannot flip a result.
type Tracker struct {
	ledger  *Ledger
	matches *match.Store
	log     zerolog.Logger

	onSettle func(status ResolutionStatus)
}

// NewTracker creates a resolution tracker over ledger and matches.
func NewTracker(ledger *Ledger, matches *match.Store, log zerolog.Logger) *Tracker {
	return &Tracker{
		ledger:  ledger,
		matches: matches,
		log:     log.With().Str("component", "resolution").Logger(),
	}
}

// OnSettle sets a callback invoked once per applied settlement.
func (t *Tracker) OnSettle(fn func(status ResolutionStatus)) {
	t.onSettle = fn
}

// Sweep evaluates every pending ledger entry whose match is still
// tracked and applies WIN/LOSS transitions. It returns the number of
// signals settled.
func (t *Tracker) Sweep(ctx context.Context) int {
	settled := 0
	for _, sig := range t.ledger.Pending() {
		snap, ok := t.matches.Get(sig.MatchID)
		if !ok {
			// Match left the tracked set before settling; stays PENDING.
			continue
		}

		var status ResolutionStatus
		switch Resolve(sig, snap) {
		case OutcomeWin:
			status = StatusWin
		case OutcomeLoss:
			status = StatusLoss
		default:
			continue
		}

		if t.ledger.UpdateStatus(ctx, IdentityOf(sig), status) {
			settled++
			if t.onSettle != nil {
				t.onSettle(status)
			}
			t.log.Info().
				Str("match", sig.MatchName).
				Str("type", string(sig.Type)).
				Str("status", string(status)).
				Msg("signal settled")
		}
	}
	return settled
}
