package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pitchside/cricket-agents/pkg/arena"
	"github.com/pitchside/cricket-agents/pkg/store"
)

// Ledger is the slice of the store the engine needs.
type Ledger interface {
	ListPredictions(ctx context.Context, f store.PredictionFilter) ([]*arena.Prediction, error)
	Settle(ctx context.Context, predictionID string, isCorrect bool, points int, pnl, brier float64) (bool, error)
	Void(ctx context.Context, predictionID string) error
}

// Engine settles predictions against final match outcomes.
//
// Settlement is idempotent: only latest, unsettled rows are scored, and the
// store refuses to re-settle a row whose is_correct is already set. Running
// the engine twice over the same match changes nothing the second time.
type Engine struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewEngine creates a settlement engine.
func NewEngine(ledger Ledger, log zerolog.Logger) *Engine {
	return &Engine{ledger: ledger, log: log.With().Str("component", "settlement").Logger()}
}

// SettleCompleted scores every latest unsettled prediction for a completed
// match and returns the rows it settled, with their scoring fields filled in.
// Superseded rows are never scored.
func (e *Engine) SettleCompleted(ctx context.Context, match *arena.Match) ([]*arena.Prediction, error) {
	if match.Winner == nil {
		return nil, errors.New("settlement: match has no winner")
	}

	preds, err := e.ledger.ListPredictions(ctx, store.PredictionFilter{
		MatchID:       match.ID,
		LatestOnly:    true,
		UnsettledOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("settlement: list predictions: %w", err)
	}

	var settled []*arena.Prediction
	for _, p := range preds {
		correct := p.PredictedSide == *match.Winner
		points := Points(correct)
		pnl := PnL(correct, p.Confidence)
		brier := Brier(correct, p.Confidence)

		applied, err := e.ledger.Settle(ctx, p.ID, correct, points, pnl, brier)
		if err != nil {
			return settled, fmt.Errorf("settlement: settle %s: %w", p.ID, err)
		}
		if !applied {
			continue
		}

		p.IsCorrect = &correct
		p.PointsAwarded = &points
		p.PnL = &pnl
		p.BrierScore = &brier
		settled = append(settled, p)

		e.log.Info().
			Str("match_id", match.ID).
			Str("agent_id", p.AgentID).
			Bool("correct", correct).
			Float64("pnl", pnl).
			Float64("brier", brier).
			Msg("prediction settled")
	}
	return settled, nil
}

// SettleAbandoned voids every latest prediction for an abandoned match,
// including rows that were already settled. Voided rows carry zero points and
// pnl with no correctness verdict, so they drop out of every agent's record.
func (e *Engine) SettleAbandoned(ctx context.Context, matchID string) (int, error) {
	preds, err := e.ledger.ListPredictions(ctx, store.PredictionFilter{
		MatchID:    matchID,
		LatestOnly: true,
	})
	if err != nil {
		return 0, fmt.Errorf("settlement: list predictions: %w", err)
	}

	voided := 0
	for _, p := range preds {
		if err := e.ledger.Void(ctx, p.ID); err != nil {
			return voided, fmt.Errorf("settlement: void %s: %w", p.ID, err)
		}
		voided++
	}

	e.log.Info().Str("match_id", matchID).Int("voided", voided).Msg("match abandoned, predictions voided")
	return voided, nil
}
