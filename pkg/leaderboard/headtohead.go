package leaderboard

import (
	"github.com/pitchside/cricket-agents/pkg/arena"
)

// Agreement is the head-to-head line between one agent and another.
type Agreement struct {
	AgentID      string  `json:"agent_id"`
	DisplayName  string  `json:"display_name"`
	Shared       int     `json:"shared"`
	Agreed       int     `json:"agreed"`
	AgreementPct float64 `json:"agreement_pct"`
}

// HeadToHead computes agreement between one agent and every other agent in
// the roster. picksByAgent maps agent id to that agent's latest predictions
// on settled matches. A pair's agreement rate covers only matches where both
// agents have a pick; an empty overlap yields zero.
func HeadToHead(agentID string, roster []*arena.Agent, picksByAgent map[string][]*arena.Prediction) []Agreement {
	mine := pickMap(picksByAgent[agentID])

	var out []Agreement
	for _, other := range roster {
		if other.ID == agentID {
			continue
		}
		agreed, shared := 0, 0
		for _, p := range picksByAgent[other.ID] {
			side, ok := mine[p.MatchID]
			if !ok {
				continue
			}
			shared++
			if side == p.PredictedSide {
				agreed++
			}
		}
		a := Agreement{
			AgentID:     other.ID,
			DisplayName: other.DisplayName,
			Shared:      shared,
			Agreed:      agreed,
		}
		if shared > 0 {
			a.AgreementPct = round4(float64(agreed) / float64(shared))
		}
		out = append(out, a)
	}
	return out
}

func pickMap(preds []*arena.Prediction) map[string]arena.Side {
	m := make(map[string]arena.Side, len(preds))
	for _, p := range preds {
		m[p.MatchID] = p.PredictedSide
	}
	return m
}
