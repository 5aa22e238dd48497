// Package signal defines betting signals and the containers that hold
// them: the capped live feed, the persisted history ledger and the
// user-curated saved set.
package signal

import "time"

// Type is the market a signal targets.
type Type string

const (
	TypeCorner Type = "CORNER"
	TypeGoal   Type = "GOAL"
	TypeCards  Type = "CARDS"
	TypeResult Type = "RESULT"
)

// Valid reports whether t is one of the known market types.
func (t Type) Valid() bool {
	switch t {
	case TypeCorner, TypeGoal, TypeCards, TypeResult:
		return true
	}
	return false
}

// ResolutionStatus is the settlement lifecycle of a signal. A signal
// starts PENDING and transitions exactly once to WIN or LOSS.
type ResolutionStatus string

const (
	StatusPending ResolutionStatus = "PENDING"
	StatusWin     ResolutionStatus = "WIN"
	StatusLoss    ResolutionStatus = "LOSS"
)

// Baseline is the match state captured when a signal was generated.
// Resolution compares later match states against it.
type Baseline struct {
	HomeScore int `json:"homeScore"`
	AwayScore int `json:"awayScore"`
	Corners   int `json:"corners"`
	Cards     int `json:"cards"`
}

// Signal is one generated betting observation about a live match.
// Everything except Status is immutable after creation; match metadata
// is denormalized so the signal survives match removal.
//
// JSON field names follow the persisted wire format, which predates
// this engine.
type Signal struct {
	MatchID       string           `json:"matchId"`
	Type          Type             `json:"type"`
	Description   string           `json:"description"`
	Confidence    float64          `json:"confidence"`   // 0-1
	OddSuggested  float64          `json:"oddSuggested"` // > 1.0
	Timestamp     string           `json:"timestamp"`    // wall-clock generation time, second resolution
	FullTimestamp int64            `json:"fullTimestamp"` // epoch millis; authoritative ordering/expiry field
	Analysis      string           `json:"analysis"`
	Status        ResolutionStatus `json:"status"`
	KeyFactors    []string         `json:"keyFactors,omitempty"`
	MatchName     string           `json:"matchName,omitempty"`
	LeagueName    string           `json:"leagueName,omitempty"`
	Minute        int              `json:"minute,omitempty"`
	Baseline      Baseline         `json:"baseline"`
}

// Resolved reports whether the signal has settled.
func (s *Signal) Resolved() bool {
	return s.Status == StatusWin || s.Status == StatusLoss
}

// GeneratedAt returns the generation time derived from FullTimestamp.
func (s *Signal) GeneratedAt() time.Time {
	return time.UnixMilli(s.FullTimestamp)
}

// SavedSignal is a user-saved copy of a signal plus the team names the
// saved view renders. It is an independent copy: removing it never
// touches the ledger, and ledger resolution never mutates it.
type SavedSignal struct {
	Signal
	HomeTeamName string `json:"homeTeamName,omitempty"`
	AwayTeamName string `json:"awayTeamName,omitempty"`
	League       string `json:"league,omitempty"`
	SavedAt      int64  `json:"savedAt,omitempty"` // epoch millis
}
