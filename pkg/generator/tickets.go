package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jsales362-jpg/betsignal/pkg/match"
)

// TicketType is the risk profile of a ready ticket.
type TicketType string

const (
	TicketSafe       TicketType = "SAFE"       // low combined odd, high confidence
	TicketModerate   TicketType = "MODERATE"   // mid combined odd
	TicketAggressive TicketType = "AGGRESSIVE" // high combined odd
)

// TicketSelection is one leg of a combined recommendation.
type TicketSelection struct {
	MatchName string  `json:"matchName"`
	Market    string  `json:"market"`
	Odd       float64 `json:"odd"`
}

// Ticket bundles 2-3 selections into one recommendation with a
// combined odd.
type Ticket struct {
	ID         string            `json:"id"`
	Type       TicketType        `json:"type"`
	TotalOdd   float64           `json:"totalOdd"`
	Confidence float64           `json:"confidence"`
	Selections []TicketSelection `json:"selections"`
	Analysis   string            `json:"analysis"`
	Timestamp  string            `json:"timestamp"`
}

const ticketSystemPrompt = `You are a professional live football betting analyst.
Based on the live matches you are given, build 3 "ready tickets", each a
combination of 2 to 3 bets:
1. SAFE (conservative, total odd around 2.0, high confidence)
2. MODERATE (total odd around 4.0)
3. AGGRESSIVE (risky, total odd 10.0 or higher)

Respond with a JSON array only. Each element:
{
  "type": "SAFE" | "MODERATE" | "AGGRESSIVE",
  "totalOdd": number,
  "confidence": 0.0-1.0,
  "selections": [{"matchName": "...", "market": "...", "odd": number}],
  "analysis": "..."
}`

type rawTicket struct {
	Type       string            `json:"type"`
	TotalOdd   float64           `json:"totalOdd"`
	Confidence float64           `json:"confidence"`
	Selections []TicketSelection `json:"selections"`
	Analysis   string            `json:"analysis"`
}

// GenerateTickets builds combined recommendations over the given LIVE
// matches, using the same quota retry schedule as signal generation.
func (g *Generator) GenerateTickets(ctx context.Context, live []match.Snapshot) ([]Ticket, error) {
	if len(live) == 0 {
		return nil, fmt.Errorf("generator: no live matches")
	}

	var b strings.Builder
	b.WriteString("LIVE MATCHES:\n")
	for _, snap := range live {
		fmt.Fprintf(&b, "- %s vs %s (%d'): %d-%d. Corners: %d-%d. Dangerous attacks: %d-%d.\n",
			snap.HomeTeam.Name, snap.AwayTeam.Name, snap.Minute,
			snap.HomeTeam.Score, snap.AwayTeam.Score,
			snap.HomeTeam.Corners, snap.AwayTeam.Corners,
			snap.HomeTeam.DangerousAttacks, snap.AwayTeam.DangerousAttacks)
	}

	content, err := g.completeWithRetry(ctx, ticketSystemPrompt, b.String())
	if err != nil {
		return nil, err
	}

	var raws []rawTicket
	if err := json.Unmarshal([]byte(extractJSONArray(content)), &raws); err != nil {
		return nil, fmt.Errorf("generator: malformed ticket response: %w", err)
	}

	now := g.now()
	out := make([]Ticket, 0, len(raws))
	for _, raw := range raws {
		if len(raw.Selections) == 0 || raw.TotalOdd <= 1.0 {
			continue
		}
		out = append(out, Ticket{
			ID:         uuid.New().String(),
			Type:       TicketType(strings.ToUpper(raw.Type)),
			TotalOdd:   raw.TotalOdd,
			Confidence: raw.Confidence,
			Selections: raw.Selections,
			Analysis:   raw.Analysis,
			Timestamp:  now.Format("15:04:05"),
		})
	}
	return out, nil
}
