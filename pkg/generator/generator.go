package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jsales362-jpg/betsignal/pkg/match"
	"github.com/jsales362-jpg/betsignal/pkg/prematch"
	"github.com/jsales362-jpg/betsignal/pkg/signal"
)

// ErrQuotaExceeded is returned after the retry budget is exhausted on
// rate-limit failures. The scheduler treats it as "no signals this
// cycle" and skips its next tick as a cooldown.
var ErrQuotaExceeded = errors.New("generator: provider quota exceeded")

const (
	// Retry schedule for rate-limit failures: 1 initial attempt plus
	// maxRetries retries, sleeping initialBackoff, 2x, 4x between them.
	maxRetries     = 3
	initialBackoff = 2 * time.Second
)

const systemPrompt = `You are a professional live football betting analyst.
You receive live match statistics and optional pre-match context, and you
produce likely betting signals.

Respond with a JSON array only, no prose. Each element:
{
  "matchId": "...",
  "type": "CORNER" | "GOAL" | "CARDS" | "RESULT",
  "description": "short market label",
  "confidence": 0.0-1.0,
  "oddSuggested": decimal odd > 1.0,
  "analysis": "textual analysis combining the live data with historical trend",
  "keyFactors": ["3 to 4 short key factors"]
}`

// Generator produces betting signals for batches of live matches by
// calling the analysis provider and validating what comes back.
type Generator struct {
	client   ChatClient
	log      zerolog.Logger
	prematch *prematch.Cache

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Generator.
type Option func(*Generator)

// WithPreMatchCache attaches a cache for rendered pre-match context so
// repeated batches do not rebuild it.
func WithPreMatchCache(c *prematch.Cache) Option {
	return func(g *Generator) { g.prematch = c }
}

// New creates a Generator on top of a chat client.
func New(client ChatClient, log zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		client: client,
		log:    log.With().Str("component", "generator").Logger(),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rawSignal is the provider's candidate shape before stamping.
type rawSignal struct {
	MatchID      string   `json:"matchId"`
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	Confidence   float64  `json:"confidence"`
	OddSuggested float64  `json:"oddSuggested"`
	Analysis     string   `json:"analysis"`
	KeyFactors   []string `json:"keyFactors"`
}

// Generate asks the provider for signals over snapshots. The batch
// must be non-empty and LIVE-only; the caller filters. The adapter
// stamps generation timestamps and denormalized match metadata, and
// silently drops candidates whose matchId does not echo one of the
// input snapshots.
func (g *Generator) Generate(ctx context.Context, snapshots []match.Snapshot) ([]signal.Signal, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("generator: empty batch")
	}
	for _, snap := range snapshots {
		if snap.Status != match.StatusLive {
			return nil, fmt.Errorf("generator: match %s is not LIVE", snap.ID)
		}
	}

	content, err := g.completeWithRetry(ctx, systemPrompt, g.buildSignalPrompt(snapshots))
	if err != nil {
		return nil, err
	}

	var raws []rawSignal
	if err := json.Unmarshal([]byte(extractJSONArray(content)), &raws); err != nil {
		return nil, fmt.Errorf("generator: malformed provider response: %w", err)
	}

	byID := make(map[string]match.Snapshot, len(snapshots))
	for _, snap := range snapshots {
		byID[snap.ID] = snap
	}

	now := g.now()
	out := make([]signal.Signal, 0, len(raws))
	for _, raw := range raws {
		snap, ok := byID[raw.MatchID]
		if !ok {
			// Untrusted provider output referencing a match outside the
			// batch; drop it.
			g.log.Debug().Str("matchId", raw.MatchID).Msg("dropping signal for unknown match")
			continue
		}
		sig, ok := g.stamp(raw, snap, now)
		if !ok {
			continue
		}
		out = append(out, sig)
	}
	return out, nil
}

// completeWithRetry runs the provider call with the quota retry
// schedule. Retry state lives entirely in this call chain, so a manual
// per-match sync cannot interfere with the main loop's budget.
func (g *Generator) completeWithRetry(ctx context.Context, system, prompt string) (string, error) {
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		content, err := g.client.Complete(ctx, system, prompt)
		if err == nil {
			return content, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}
		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: %d attempts", ErrQuotaExceeded, attempt+1)
		}

		g.log.Warn().
			Dur("backoff", backoff).
			Int("retriesLeft", maxRetries-attempt).
			Msg("provider quota hit, backing off")
		if err := g.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}
}

func (g *Generator) stamp(raw rawSignal, snap match.Snapshot, now time.Time) (signal.Signal, bool) {
	typ := signal.Type(strings.ToUpper(strings.TrimSpace(raw.Type)))
	if !typ.Valid() {
		g.log.Debug().Str("type", raw.Type).Msg("dropping signal with unknown market type")
		return signal.Signal{}, false
	}
	if raw.OddSuggested <= 1.0 {
		g.log.Debug().Float64("odd", raw.OddSuggested).Msg("dropping signal with invalid odd")
		return signal.Signal{}, false
	}
	if raw.Confidence < 0 {
		raw.Confidence = 0
	}
	if raw.Confidence > 1 {
		raw.Confidence = raw.Confidence / 100
		if raw.Confidence > 1 {
			raw.Confidence = 1
		}
	}

	return signal.Signal{
		MatchID:       snap.ID,
		Type:          typ,
		Description:   raw.Description,
		Confidence:    raw.Confidence,
		OddSuggested:  raw.OddSuggested,
		Timestamp:     now.Format("15:04:05"),
		FullTimestamp: now.UnixMilli(),
		Analysis:      raw.Analysis,
		Status:        signal.StatusPending,
		KeyFactors:    raw.KeyFactors,
		MatchName:     snap.Name(),
		LeagueName:    snap.League,
		Minute:        snap.Minute,
		Baseline: signal.Baseline{
			HomeScore: snap.HomeTeam.Score,
			AwayScore: snap.AwayTeam.Score,
			Corners:   snap.TotalCorners(),
			Cards:     snap.TotalCards(),
		},
	}, true
}
