package leaderboard

import (
	"fmt"
	"math"
)

// Headline is the two-line standings summary shown at the top of the board.
type Headline struct {
	Headline string `json:"headline"`
	Subline  string `json:"subline"`
}

var preTournament = Headline{
	Headline: "The battle begins soon",
	Subline:  "4 AI models. Every match. Who predicts best?",
}

// Narrative turns ranked entries into a standings headline. Entries must
// already be in points order.
func Narrative(entries []Entry) Headline {
	settled := false
	for _, e := range entries {
		if e.TotalPredictions > 0 {
			settled = true
			break
		}
	}
	if len(entries) == 0 || !settled {
		return preTournament
	}

	leader := entries[0]
	if len(entries) < 2 {
		return Headline{
			Headline: fmt.Sprintf("%s leads with %d correct pick%s", leader.DisplayName, leader.Points, plural(leader.Points)),
			Subline:  "The battle is just getting started",
		}
	}

	second := entries[1]
	last := entries[len(entries)-1]

	if leader.Points-last.Points <= 1 && len(entries) > 2 {
		subline := fmt.Sprintf("%d predictions settled so far", leader.TotalPredictions)
		if leader.TotalPnL != second.TotalPnL {
			subline = fmt.Sprintf("%s edges ahead on P&L (%s)", leader.DisplayName, FormatPnL(leader.TotalPnL))
		}
		return Headline{
			Headline: "Anyone's game - all agents within 1 point",
			Subline:  subline,
		}
	}

	if leader.Points == second.Points {
		subline := "Others close behind"
		if len(entries) > 2 {
			subline = fmt.Sprintf("%s close behind", entries[2].DisplayName)
		}
		if leader.TotalPnL > second.TotalPnL {
			gap := int(math.Round(leader.TotalPnL - second.TotalPnL))
			subline = fmt.Sprintf("P&L breaks the tie - %s leads by $%d", leader.DisplayName, gap)
		}
		return Headline{
			Headline: fmt.Sprintf("Neck and neck - %s and %s tied at %d", leader.DisplayName, second.DisplayName, leader.Points),
			Subline:  subline,
		}
	}

	gap := leader.Points - second.Points
	subline := fmt.Sprintf("%s trails by %d point%s", second.DisplayName, gap, plural(gap))

	streaker := entries[0]
	for _, e := range entries[1:] {
		if e.CurrentStreak > streaker.CurrentStreak {
			streaker = e
		}
	}
	if streaker.CurrentStreak >= 4 {
		subline += fmt.Sprintf(" · %s on a %s streak", streaker.DisplayName, FormatStreak(streaker.CurrentStreak))
	}

	return Headline{
		Headline: fmt.Sprintf("%s leads with %d correct pick%s", leader.DisplayName, leader.Points, plural(leader.Points)),
		Subline:  subline,
	}
}

// FormatStreak renders a streak as W3 / L2, or "-" for none.
func FormatStreak(streak int) string {
	if streak > 0 {
		return fmt.Sprintf("W%d", streak)
	}
	if streak < 0 {
		return fmt.Sprintf("L%d", -streak)
	}
	return "-"
}

// FormatPnL renders a P&L figure as +$123 / -$45.
func FormatPnL(pnl float64) string {
	sign := "+"
	if pnl < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s$%.0f", sign, math.Abs(pnl))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
