package generator

import (
	"fmt"
	"strings"

	"github.com/jsales362-jpg/betsignal/pkg/match"
)

// buildSignalPrompt renders the live statistics and pre-match context
// for a batch into the generation prompt.
func (g *Generator) buildSignalPrompt(snapshots []match.Snapshot) string {
	var b strings.Builder
	b.WriteString("Analyze the statistics of these live football matches and the ")
	b.WriteString("historical context to generate 1 or 2 likely betting signals per match.\n")

	for _, snap := range snapshots {
		fmt.Fprintf(&b, "\nMATCH %s\n", snap.ID)
		fmt.Fprintf(&b, "Game: %s (%d) vs %s (%d)\n",
			snap.HomeTeam.Name, snap.HomeTeam.Score,
			snap.AwayTeam.Name, snap.AwayTeam.Score)
		fmt.Fprintf(&b, "Minute: %d'\nLeague: %s\n", snap.Minute, snap.League)

		writeTeamStats(&b, snap.HomeTeam)
		writeTeamStats(&b, snap.AwayTeam)

		if ctx := g.preMatchContext(snap); ctx != "" {
			b.WriteString(ctx)
		}
	}

	b.WriteString("\nRespond with the JSON array only.")
	return b.String()
}

func writeTeamStats(b *strings.Builder, team match.TeamStats) {
	fmt.Fprintf(b, "Stats %s:\n", team.Name)
	fmt.Fprintf(b, "- Possession: %d%%\n", team.Possession)
	fmt.Fprintf(b, "- Shots on target: %d\n", team.ShotsOnTarget)
	fmt.Fprintf(b, "- Corners: %d\n", team.Corners)
	fmt.Fprintf(b, "- Cards: %d\n", team.YellowCards+team.RedCards)
	fmt.Fprintf(b, "- Dangerous attacks: %d\n", team.DangerousAttacks)
}

// preMatchContext returns the historical context block for a match,
// serving from the cache when one is attached.
func (g *Generator) preMatchContext(snap match.Snapshot) string {
	if g.prematch == nil {
		return PreMatchContext(snap)
	}
	if ctx, ok := g.prematch.Get(snap.ID); ok {
		return ctx
	}
	ctx := PreMatchContext(snap)
	if ctx != "" {
		g.prematch.Put(snap.ID, ctx)
	}
	return ctx
}

// PreMatchContext renders the optional historical context block for a
// match, or "" when none is available.
func PreMatchContext(snap match.Snapshot) string {
	pm := snap.PreMatch
	if pm == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("PRE-MATCH CONTEXT:\n")
	fmt.Fprintf(&b, "- Form %s: %s (position %d)\n",
		snap.HomeTeam.Name, joinForm(pm.HomeForm), pm.LeaguePosition.Home)
	fmt.Fprintf(&b, "- Form %s: %s (position %d)\n",
		snap.AwayTeam.Name, joinForm(pm.AwayForm), pm.LeaguePosition.Away)
	fmt.Fprintf(&b, "- H2H: %dW %s, %d draws, %dW %s\n",
		pm.H2H.HomeWins, snap.HomeTeam.Name, pm.H2H.Draws, pm.H2H.AwayWins, snap.AwayTeam.Name)
	fmt.Fprintf(&b, "- Historical averages: goals (%.1f/%.1f), corners (%.1f/%.1f)\n",
		pm.AvgGoals.Home, pm.AvgGoals.Away, pm.AvgCorners.Home, pm.AvgCorners.Away)
	return b.String()
}

func joinForm(form []match.FormResult) string {
	parts := make([]string, len(form))
	for i, f := range form {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

// extractJSONArray finds the first complete JSON array in a provider
// response, tolerating markdown code fences and surrounding prose.
func extractJSONArray(s string) string {
	s = stripMarkdownFences(s)

	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, c := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			if start == -1 {
				start = i
			}
			depth++
		case ']':
			if start != -1 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return "[]"
}

func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
