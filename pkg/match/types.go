// Package match holds live match telemetry: snapshot types and the
// in-memory store the sync scheduler reads from.
package match

import "time"

// Status is the lifecycle state of a match. Transitions are one-way:
// SCHEDULED -> LIVE -> FINISHED.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusLive      Status = "LIVE"
	StatusFinished  Status = "FINISHED"
)

// TeamStats is one side's counters at a point in time. All counters are
// non-negative and, while the match is LIVE, non-decreasing.
type TeamStats struct {
	Name             string `json:"name"`
	Score            int    `json:"score"`
	Possession       int    `json:"possession"` // 0-100
	ShotsOnTarget    int    `json:"shotsOnTarget"`
	ShotsOffTarget   int    `json:"shotsOffTarget"`
	Corners          int    `json:"corners"`
	YellowCards      int    `json:"yellowCards"`
	RedCards         int    `json:"redCards"`
	DangerousAttacks int    `json:"dangerousAttacks"`
	Attacks          int    `json:"attacks"`
}

// FormResult is a single recent-form outcome: "W", "D" or "L".
type FormResult string

// PreMatchData is the historical context available before kickoff. It
// is optional; when present it is joined into the generation prompt.
type PreMatchData struct {
	HomeForm       []FormResult `json:"homeForm"`
	AwayForm       []FormResult `json:"awayForm"`
	LeaguePosition struct {
		Home int `json:"home"`
		Away int `json:"away"`
	} `json:"leaguePosition"`
	H2H struct {
		HomeWins int `json:"homeWins"`
		Draws    int `json:"draws"`
		AwayWins int `json:"awayWins"`
	} `json:"h2h"`
	AvgGoals struct {
		Home float64 `json:"home"`
		Away float64 `json:"away"`
	} `json:"avgGoals"`
	AvgCorners struct {
		Home float64 `json:"home"`
		Away float64 `json:"away"`
	} `json:"avgCorners"`
}

// Snapshot is the full known state of one match. Telemetry deliveries
// replace the whole record for a match ID; fields are never patched
// individually, which is what gives readers torn-free reads.
type Snapshot struct {
	ID            string        `json:"id"`
	League        string        `json:"league"`
	Minute        int           `json:"minute"`
	Status        Status        `json:"status"`
	ScheduledTime string        `json:"scheduledTime,omitempty"`
	HomeTeam      TeamStats     `json:"homeTeam"`
	AwayTeam      TeamStats     `json:"awayTeam"`
	PreMatch      *PreMatchData `json:"preMatch,omitempty"`

	UpdatedAt time.Time `json:"-"`
}

// Name returns the display name used on denormalized signals.
func (s *Snapshot) Name() string {
	return s.HomeTeam.Name + " vs " + s.AwayTeam.Name
}

// TotalGoals returns the combined score.
func (s *Snapshot) TotalGoals() int {
	return s.HomeTeam.Score + s.AwayTeam.Score
}

// TotalCorners returns the combined corner count.
func (s *Snapshot) TotalCorners() int {
	return s.HomeTeam.Corners + s.AwayTeam.Corners
}

// TotalCards returns the combined card count, yellow and red.
func (s *Snapshot) TotalCards() int {
	return s.HomeTeam.YellowCards + s.HomeTeam.RedCards +
		s.AwayTeam.YellowCards + s.AwayTeam.RedCards
}

// Intensity is the combined dangerous-attack rate per played minute,
// used by the scheduler to prioritise matches under load.
func (s *Snapshot) Intensity() float64 {
	if s.Minute <= 0 {
		return 0
	}
	return float64(s.HomeTeam.DangerousAttacks+s.AwayTeam.DangerousAttacks) / float64(s.Minute)
}

// Eligible reports whether the match qualifies for signal generation:
// LIVE and not yet in added time of the second half.
func (s *Snapshot) Eligible() bool {
	return s.Status == StatusLive && s.Minute < 90
}
