// Package settlement scores predictions once a match outcome is known.
package settlement

import (
	"github.com/shopspring/decimal"
)

// Stake is the notional amount placed on every prediction.
const Stake = 100.0

// StartingBankroll is each agent's notional bankroll at season start.
const StartingBankroll = 10000.0

// PnL returns the profit or loss for one settled prediction.
//
// A correct pick pays out at decimal odds implied by the stated confidence:
// stake * (1/confidence - 1), rounded to cents. An incorrect pick loses the
// full stake. Lower confidence on a correct pick therefore pays more, and a
// confidence of 1.0 pays nothing even when right.
func PnL(correct bool, confidence float64) float64 {
	if !correct {
		return -Stake
	}
	payout := decimal.NewFromFloat(Stake).
		Mul(decimal.NewFromInt(1).Div(decimal.NewFromFloat(confidence)).Sub(decimal.NewFromInt(1)))
	f, _ := payout.Round(2).Float64()
	return f
}

// Brier returns the Brier score for one settled prediction: the squared
// distance between the stated confidence and the actual outcome (1 for a
// correct pick, 0 otherwise), rounded to four places. Lower is better.
func Brier(correct bool, confidence float64) float64 {
	actual := decimal.NewFromInt(0)
	if correct {
		actual = decimal.NewFromInt(1)
	}
	diff := decimal.NewFromFloat(confidence).Sub(actual)
	f, _ := diff.Mul(diff).Round(4).Float64()
	return f
}

// Points returns the leaderboard points for one settled prediction.
func Points(correct bool) int {
	if correct {
		return 1
	}
	return 0
}
