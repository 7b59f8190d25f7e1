// Package leaderboard computes rankings, streaks, head-to-head agreement and
// qualitative insights from settled prediction history. Everything here is
// pure compute; callers supply the rows.
package leaderboard

import (
	"math"
	"sort"

	"github.com/pitchside/cricket-agents/pkg/arena"
	"github.com/pitchside/cricket-agents/pkg/settlement"
)

// Sort selects the ranking order.
type Sort string

const (
	SortPoints Sort = "points"
	SortPnL    Sort = "pnl"
	SortBrier  Sort = "brier"
)

// Entry is one agent's aggregate line on the leaderboard.
type Entry struct {
	AgentID            string  `json:"agent_id"`
	DisplayName        string  `json:"display_name"`
	Slug               string  `json:"slug"`
	Color              string  `json:"color"`
	Provider           string  `json:"provider"`
	Points             int     `json:"points"`
	TotalPredictions   int     `json:"total_predictions"`
	CorrectPredictions int     `json:"correct_predictions"`
	Accuracy           float64 `json:"accuracy"`
	TotalPnL           float64 `json:"total_pnl"`
	Bankroll           float64 `json:"bankroll"`
	AvgBrier           float64 `json:"avg_brier"`
	CurrentStreak      int     `json:"current_streak"`
	BestStreak         int     `json:"best_streak"`
}

// Compute builds the ranked leaderboard. settledByAgent maps agent id to that
// agent's settled latest predictions in chronological order. Totals count only
// settled rows, so voided and pending predictions never move the board.
func Compute(roster []*arena.Agent, settledByAgent map[string][]*arena.Prediction, by Sort) []Entry {
	entries := make([]Entry, 0, len(roster))
	for _, agent := range roster {
		settled := settledByAgent[agent.ID]

		var points, correct int
		var pnl, brier float64
		for _, p := range settled {
			if p.PointsAwarded != nil {
				points += *p.PointsAwarded
			}
			if p.IsCorrect != nil && *p.IsCorrect {
				correct++
			}
			if p.PnL != nil {
				pnl += *p.PnL
			}
			if p.BrierScore != nil {
				brier += *p.BrierScore
			}
		}

		total := len(settled)
		e := Entry{
			AgentID:            agent.ID,
			DisplayName:        agent.DisplayName,
			Slug:               agent.Slug,
			Color:              agent.Color,
			Provider:           string(agent.Provider),
			Points:             points,
			TotalPredictions:   total,
			CorrectPredictions: correct,
			TotalPnL:           round2(pnl),
			Bankroll:           round2(settlement.StartingBankroll + pnl),
		}
		if total > 0 {
			e.Accuracy = float64(correct) / float64(total)
			e.AvgBrier = round4(brier / float64(total))
		}
		e.CurrentStreak, e.BestStreak = Streaks(settled)
		entries = append(entries, e)
	}

	Rank(entries, by)
	return entries
}

// Rank sorts entries in place. Points ranking breaks ties on P&L; Brier
// ranking pushes agents with no settled predictions to the bottom.
func Rank(entries []Entry, by Sort) {
	switch by {
	case SortPnL:
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].TotalPnL > entries[j].TotalPnL
		})
	case SortBrier:
		sort.SliceStable(entries, func(i, j int) bool {
			return brierKey(entries[i]) < brierKey(entries[j])
		})
	default:
		sort.SliceStable(entries, func(i, j int) bool {
			if entries[i].Points != entries[j].Points {
				return entries[i].Points > entries[j].Points
			}
			return entries[i].TotalPnL > entries[j].TotalPnL
		})
	}
}

func brierKey(e Entry) float64 {
	if e.TotalPredictions == 0 {
		return 999
	}
	return e.AvgBrier
}

// Streaks walks settled predictions in chronological order. bestStreak is the
// longest run of correct picks. currentStreak counts the trailing correct run,
// or the trailing incorrect run as a negative number.
func Streaks(settled []*arena.Prediction) (current, best int) {
	run := 0
	for _, p := range settled {
		if p.IsCorrect != nil && *p.IsCorrect {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}

	for i := len(settled) - 1; i >= 0; i-- {
		correct := settled[i].IsCorrect != nil && *settled[i].IsCorrect
		if i == len(settled)-1 && !correct {
			for j := len(settled) - 1; j >= 0; j-- {
				if settled[j].IsCorrect != nil && *settled[j].IsCorrect {
					break
				}
				current--
			}
			return current, best
		}
		if !correct {
			break
		}
		current++
	}
	return current, best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
