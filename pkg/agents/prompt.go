package agents

import (
	"fmt"
	"strings"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

// PromptPair is the shared system/user prompt sent to every provider for one
// orchestration run.
type PromptPair struct {
	System string
	User   string
}

const systemPrompt = "You are an elite cricket analyst competing against other AI models to predict T20 World Cup match winners. " +
	"Your accuracy, confidence calibration, and reasoning are being tracked on a public leaderboard."

// BuildPrompt renders the prediction prompt from current match state. Lineups
// and toss details are included only once announced, so a post-XI run asks a
// better-informed question than a pre-match one.
func BuildPrompt(match *arena.Match) PromptPair {
	var b strings.Builder

	fmt.Fprintf(&b, "MATCH: %s vs %s\n", match.TeamA, match.TeamB)
	fmt.Fprintf(&b, "Match #%d | %s | %s | %s\n",
		match.MatchNumber, match.Stage, match.Venue, match.ScheduledAt.Format("2006-01-02 15:04 MST"))

	if match.PlayingXIA != "" {
		fmt.Fprintf(&b, "\n%s Playing XI: %s\n", match.TeamA, match.PlayingXIA)
	}
	if match.PlayingXIB != "" {
		fmt.Fprintf(&b, "%s Playing XI: %s\n", match.TeamB, match.PlayingXIB)
	}
	if match.TossWinner != "" && match.TossDecision != "" {
		fmt.Fprintf(&b, "\nToss: %s won and chose to %s\n", match.TossWinner, match.TossDecision)
	}

	b.WriteString("\nINSTRUCTIONS:\n")
	b.WriteString("1. Use web search to research the latest team news, player form, pitch conditions, weather, and head-to-head stats\n")
	b.WriteString("2. Analyze all factors and predict the winner\n")
	b.WriteString("3. Give your confidence level (0.50 = coin flip, 1.00 = certain)\n")
	b.WriteString("4. Provide a concise 2-3 sentence explanation\n")
	b.WriteString("\nIMPORTANT: Respond ONLY with valid JSON:\n")
	b.WriteString(`{ "winner": "Exact Team Name", "confidence": 0.XX, "reasoning": "Your 2-3 sentence analysis" }`)

	return PromptPair{System: systemPrompt, User: b.String()}
}
