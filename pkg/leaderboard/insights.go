package leaderboard

import (
	"fmt"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

// InsightInput carries everything the insight heuristics look at for one
// agent. Latest is the agent's latest predictions across all matches,
// Settled the settled subset in chronological order. PicksByAgent holds
// every roster member's latest picks on settled matches, this agent
// included.
type InsightInput struct {
	AgentID      string
	Latest       []*arena.Prediction
	Settled      []*arena.Prediction
	ChangedMind  int
	PicksByAgent map[string][]*arena.Prediction
	Names        map[string]string
}

// Insights derives qualitative personality lines for one agent. Heuristic
// and non-authoritative; thresholds are tuned for a four-agent field over a
// short tournament.
func Insights(in InsightInput) []string {
	var out []string
	if len(in.Latest) == 0 {
		return out
	}

	var confSum float64
	teamAPicks := 0
	for _, p := range in.Latest {
		confSum += p.Confidence
		if p.PredictedSide == arena.SideTeamA {
			teamAPicks++
		}
	}
	avgConf := confSum / float64(len(in.Latest))
	if avgConf > 0.8 {
		out = append(out, "Most confident predictor - averages above 80% confidence")
	} else if avgConf < 0.65 {
		out = append(out, "Cautious predictor - tends to hedge with lower confidence")
	}

	teamARate := float64(teamAPicks) / float64(len(in.Latest))
	if teamARate > 0.65 {
		out = append(out, "Tends to favor the first-listed team")
	} else if teamARate < 0.35 {
		out = append(out, "Tends to favor the second-listed team (underdog lean)")
	}

	var highConf, highConfCorrect int
	for _, p := range in.Settled {
		if p.Confidence < 0.8 {
			continue
		}
		highConf++
		if p.IsCorrect != nil && *p.IsCorrect {
			highConfCorrect++
		}
	}
	if highConf >= 3 {
		rate := float64(highConfCorrect) / float64(highConf)
		if rate > 0.7 {
			out = append(out, "Highly accurate when confident (80%+ confidence bets)")
		} else if rate < 0.4 {
			out = append(out, "Overconfident - high confidence picks often miss")
		}
	}

	if line := agreementInsights(in); len(line) > 0 {
		out = append(out, line...)
	}

	if in.ChangedMind > 2 {
		out = append(out, fmt.Sprintf("Changed mind %d times after lineup reveals", in.ChangedMind))
	}

	if len(in.Settled) >= 3 {
		correct := 0
		for _, p := range in.Settled {
			if p.IsCorrect != nil && *p.IsCorrect {
				correct++
			}
		}
		if float64(correct)/float64(len(in.Settled)) > 0.65 {
			out = append(out, "Strong track record, right more often than not")
		}
		if _, best := Streaks(in.Settled); best >= 3 {
			out = append(out, fmt.Sprintf("Best winning streak: %d in a row", best))
		}
	}

	return out
}

// agreementInsights names the strongest agreement and disagreement partners,
// considering only partners with at least 3 shared settled matches.
func agreementInsights(in InsightInput) []string {
	mine := pickMap(in.PicksByAgent[in.AgentID])

	maxRate, minRate := 0.0, 2.0
	var maxAgent, minAgent string
	for otherID, otherPreds := range in.PicksByAgent {
		if otherID == in.AgentID {
			continue
		}
		agree, total := 0, 0
		for _, op := range otherPreds {
			side, ok := mine[op.MatchID]
			if !ok {
				continue
			}
			total++
			if side == op.PredictedSide {
				agree++
			}
		}
		if total < 3 {
			continue
		}
		rate := float64(agree) / float64(total)
		if rate > maxRate {
			maxRate, maxAgent = rate, otherID
		}
		if rate < minRate {
			minRate, minAgent = rate, otherID
		}
	}

	var out []string
	if maxAgent != "" && maxRate > 0.7 {
		out = append(out, fmt.Sprintf("Often agrees with %s", in.name(maxAgent)))
	}
	if minAgent != "" && minRate < 0.3 {
		out = append(out, fmt.Sprintf("Frequently disagrees with %s", in.name(minAgent)))
	}
	return out
}

func (in InsightInput) name(agentID string) string {
	if n, ok := in.Names[agentID]; ok && n != "" {
		return n
	}
	return agentID
}
