package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pitchside/cricket-agents/pkg/arena"
	"github.com/pitchside/cricket-agents/pkg/store"
)

// fakeLedger implements Ledger in memory with the same settle/void semantics
// as the SQLite store.
type fakeLedger struct {
	preds []*arena.Prediction
}

func (f *fakeLedger) ListPredictions(_ context.Context, filter store.PredictionFilter) ([]*arena.Prediction, error) {
	var out []*arena.Prediction
	for _, p := range f.preds {
		if filter.MatchID != "" && p.MatchID != filter.MatchID {
			continue
		}
		if filter.LatestOnly && !p.IsLatest {
			continue
		}
		if filter.UnsettledOnly && p.IsCorrect != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeLedger) Settle(_ context.Context, id string, isCorrect bool, points int, pnl, brier float64) (bool, error) {
	for _, p := range f.preds {
		if p.ID != id || p.IsCorrect != nil {
			continue
		}
		c, pts, pl, br := isCorrect, points, pnl, brier
		p.IsCorrect = &c
		p.PointsAwarded = &pts
		p.PnL = &pl
		p.BrierScore = &br
		return true, nil
	}
	return false, nil
}

func (f *fakeLedger) Void(_ context.Context, id string) error {
	for _, p := range f.preds {
		if p.ID != id {
			continue
		}
		zero := 0
		zeroF := 0.0
		p.IsCorrect = nil
		p.PointsAwarded = &zero
		p.PnL = &zeroF
		p.BrierScore = nil
	}
	return nil
}

func pred(id, matchID string, side arena.Side, confidence float64, latest bool) *arena.Prediction {
	return &arena.Prediction{
		ID:            id,
		MatchID:       matchID,
		AgentID:       "agent-" + id,
		PredictedSide: side,
		Confidence:    confidence,
		IsLatest:      latest,
		CreatedAt:     time.Now(),
	}
}

func completedMatch(winner arena.Side) *arena.Match {
	return &arena.Match{
		ID:     "m1",
		TeamA:  "India",
		TeamB:  "USA",
		Status: arena.StatusCompleted,
		Winner: &winner,
	}
}

func TestSettleCompleted(t *testing.T) {
	ledger := &fakeLedger{preds: []*arena.Prediction{
		pred("p1", "m1", arena.SideTeamA, 0.6, true),
		pred("p2", "m1", arena.SideTeamB, 0.95, true),
		pred("p3", "m1", arena.SideTeamA, 0.8, false), // superseded, must not be scored
	}}
	engine := NewEngine(ledger, zerolog.Nop())

	settled, err := engine.SettleCompleted(context.Background(), completedMatch(arena.SideTeamA))
	if err != nil {
		t.Fatalf("SettleCompleted() error = %v", err)
	}
	if len(settled) != 2 {
		t.Fatalf("settled %d predictions, want 2", len(settled))
	}

	p1 := ledger.preds[0]
	if p1.IsCorrect == nil || !*p1.IsCorrect {
		t.Error("p1 should be correct")
	}
	if *p1.PnL != 66.67 {
		t.Errorf("p1 pnl = %v, want 66.67", *p1.PnL)
	}
	if *p1.PointsAwarded != 1 {
		t.Errorf("p1 points = %v, want 1", *p1.PointsAwarded)
	}

	p2 := ledger.preds[1]
	if p2.IsCorrect == nil || *p2.IsCorrect {
		t.Error("p2 should be incorrect")
	}
	if *p2.PnL != -100 {
		t.Errorf("p2 pnl = %v, want -100", *p2.PnL)
	}

	if ledger.preds[2].IsCorrect != nil {
		t.Error("superseded prediction must not be settled")
	}
}

func TestSettleCompletedIdempotent(t *testing.T) {
	ledger := &fakeLedger{preds: []*arena.Prediction{
		pred("p1", "m1", arena.SideTeamA, 0.6, true),
	}}
	engine := NewEngine(ledger, zerolog.Nop())
	match := completedMatch(arena.SideTeamA)

	if _, err := engine.SettleCompleted(context.Background(), match); err != nil {
		t.Fatalf("first settlement: %v", err)
	}
	firstPnL := *ledger.preds[0].PnL

	again, err := engine.SettleCompleted(context.Background(), match)
	if err != nil {
		t.Fatalf("second settlement: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second settlement touched %d rows, want 0", len(again))
	}
	if *ledger.preds[0].PnL != firstPnL {
		t.Error("settled fields changed on re-settlement")
	}
}

func TestSettleCompletedNoWinner(t *testing.T) {
	engine := NewEngine(&fakeLedger{}, zerolog.Nop())
	match := &arena.Match{ID: "m1", TeamA: "India", TeamB: "USA"}
	if _, err := engine.SettleCompleted(context.Background(), match); err == nil {
		t.Fatal("expected error for match without winner")
	}
}

func TestSettleAbandoned(t *testing.T) {
	ledger := &fakeLedger{preds: []*arena.Prediction{
		pred("p1", "m1", arena.SideTeamA, 0.6, true),
		pred("p2", "m1", arena.SideTeamB, 0.9, true),
		pred("p3", "m1", arena.SideTeamA, 0.7, true),
		pred("p4", "m1", arena.SideTeamB, 0.8, true),
	}}
	engine := NewEngine(ledger, zerolog.Nop())

	// Two rows already settled with nonzero pnl before abandonment.
	if _, err := engine.SettleCompleted(context.Background(), completedMatch(arena.SideTeamA)); err != nil {
		t.Fatalf("pre-settlement: %v", err)
	}

	voided, err := engine.SettleAbandoned(context.Background(), "m1")
	if err != nil {
		t.Fatalf("SettleAbandoned() error = %v", err)
	}
	if voided != 4 {
		t.Fatalf("voided %d rows, want 4", voided)
	}

	for _, p := range ledger.preds {
		if p.IsCorrect != nil {
			t.Errorf("%s: isCorrect = %v, want nil", p.ID, *p.IsCorrect)
		}
		if p.PointsAwarded == nil || *p.PointsAwarded != 0 {
			t.Errorf("%s: points not zeroed", p.ID)
		}
		if p.PnL == nil || *p.PnL != 0 {
			t.Errorf("%s: pnl not zeroed", p.ID)
		}
		if p.BrierScore != nil {
			t.Errorf("%s: brier = %v, want nil", p.ID, *p.BrierScore)
		}
	}
}
