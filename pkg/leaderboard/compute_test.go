package leaderboard

import (
	"testing"
	"time"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

func settledPred(matchID string, correct bool, points int, pnl, brier float64) *arena.Prediction {
	return &arena.Prediction{
		ID:            matchID + "-p",
		MatchID:       matchID,
		PredictedSide: arena.SideTeamA,
		Confidence:    0.7,
		IsLatest:      true,
		IsCorrect:     &correct,
		PointsAwarded: &points,
		PnL:           &pnl,
		BrierScore:    &brier,
		CreatedAt:     time.Now(),
	}
}

func results(seq ...bool) []*arena.Prediction {
	out := make([]*arena.Prediction, len(seq))
	for i, correct := range seq {
		points, pnl := 0, -100.0
		if correct {
			points, pnl = 1, 42.86
		}
		out[i] = settledPred(string(rune('a'+i)), correct, points, pnl, 0.09)
	}
	return out
}

func TestStreaks(t *testing.T) {
	tests := []struct {
		name        string
		seq         []bool
		wantCurrent int
		wantBest    int
	}{
		{"trailing wins", []bool{true, true, false, true, true, true}, 3, 3},
		{"trailing losses", []bool{true, false, false}, -2, 1},
		{"single loss at the end", []bool{true, true, true, false}, -1, 3},
		{"all correct", []bool{true, true}, 2, 2},
		{"all incorrect", []bool{false, false, false}, -3, 0},
		{"empty", nil, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, best := Streaks(results(tt.seq...))
			if current != tt.wantCurrent {
				t.Errorf("current = %d, want %d", current, tt.wantCurrent)
			}
			if best != tt.wantBest {
				t.Errorf("best = %d, want %d", best, tt.wantBest)
			}
		})
	}
}

func TestComputeTotalsAndRanking(t *testing.T) {
	roster := []*arena.Agent{
		{ID: "a", DisplayName: "Alpha", Slug: "alpha", Provider: arena.ProviderAnthropic},
		{ID: "b", DisplayName: "Beta", Slug: "beta", Provider: arena.ProviderOpenAI},
		{ID: "c", DisplayName: "Gamma", Slug: "gamma", Provider: arena.ProviderGoogle},
	}
	settled := map[string][]*arena.Prediction{
		"a": {
			settledPred("m1", true, 1, 66.67, 0.16),
			settledPred("m2", false, 0, -100, 0.36),
		},
		"b": {
			settledPred("m1", true, 1, 25, 0.04),
			settledPred("m2", true, 1, 33.33, 0.0625),
		},
		// c has nothing settled yet
	}

	entries := Compute(roster, settled, SortPoints)
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	if entries[0].AgentID != "b" {
		t.Errorf("leader = %s, want b", entries[0].AgentID)
	}
	if entries[0].Points != 2 || entries[0].CorrectPredictions != 2 {
		t.Errorf("leader totals = %+v", entries[0])
	}
	if entries[0].Accuracy != 1.0 {
		t.Errorf("leader accuracy = %v, want 1.0", entries[0].Accuracy)
	}
	if entries[0].TotalPnL != 58.33 {
		t.Errorf("leader pnl = %v, want 58.33", entries[0].TotalPnL)
	}
	if entries[0].Bankroll != 10058.33 {
		t.Errorf("leader bankroll = %v, want 10058.33", entries[0].Bankroll)
	}

	second := entries[1]
	if second.AgentID != "a" {
		t.Errorf("second = %s, want a", second.AgentID)
	}
	if second.TotalPnL != -33.33 {
		t.Errorf("second pnl = %v, want -33.33", second.TotalPnL)
	}
	if second.AvgBrier != 0.26 {
		t.Errorf("second avg brier = %v, want 0.26", second.AvgBrier)
	}

	empty := entries[2]
	if empty.AgentID != "c" {
		t.Errorf("last = %s, want c", empty.AgentID)
	}
	if empty.Accuracy != 0 || empty.TotalPredictions != 0 {
		t.Errorf("empty agent totals = %+v", empty)
	}
	if empty.Bankroll != 10000 {
		t.Errorf("empty agent bankroll = %v, want 10000", empty.Bankroll)
	}
}

func TestRankPointsTieBreaksOnPnL(t *testing.T) {
	entries := []Entry{
		{AgentID: "a", Points: 2, TotalPnL: -10},
		{AgentID: "b", Points: 2, TotalPnL: 40},
		{AgentID: "c", Points: 3, TotalPnL: -200},
	}
	Rank(entries, SortPoints)
	got := []string{entries[0].AgentID, entries[1].AgentID, entries[2].AgentID}
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRankBrierPutsUnsettledLast(t *testing.T) {
	entries := []Entry{
		{AgentID: "fresh", TotalPredictions: 0, AvgBrier: 0},
		{AgentID: "sharp", TotalPredictions: 5, AvgBrier: 0.08},
		{AgentID: "blunt", TotalPredictions: 5, AvgBrier: 0.4},
	}
	Rank(entries, SortBrier)
	if entries[0].AgentID != "sharp" {
		t.Errorf("best brier = %s, want sharp", entries[0].AgentID)
	}
	if entries[2].AgentID != "fresh" {
		t.Errorf("agent with no settled rows should rank last, got %s", entries[2].AgentID)
	}
}

func TestRankPnL(t *testing.T) {
	entries := []Entry{
		{AgentID: "a", TotalPnL: -50},
		{AgentID: "b", TotalPnL: 120},
	}
	Rank(entries, SortPnL)
	if entries[0].AgentID != "b" {
		t.Errorf("pnl leader = %s, want b", entries[0].AgentID)
	}
}

func TestNarrative(t *testing.T) {
	if h := Narrative(nil); h != preTournament {
		t.Errorf("empty board headline = %+v", h)
	}

	entries := []Entry{
		{AgentID: "a", DisplayName: "Alpha", Points: 5, TotalPredictions: 8, TotalPnL: 120},
		{AgentID: "b", DisplayName: "Beta", Points: 2, TotalPredictions: 8, TotalPnL: -40},
	}
	h := Narrative(entries)
	if h.Headline != "Alpha leads with 5 correct picks" {
		t.Errorf("headline = %q", h.Headline)
	}
	if h.Subline != "Beta trails by 3 points" {
		t.Errorf("subline = %q", h.Subline)
	}

	tied := []Entry{
		{AgentID: "a", DisplayName: "Alpha", Points: 3, TotalPredictions: 5, TotalPnL: 80},
		{AgentID: "b", DisplayName: "Beta", Points: 3, TotalPredictions: 5, TotalPnL: 30},
	}
	h = Narrative(tied)
	if h.Headline != "Neck and neck - Alpha and Beta tied at 3" {
		t.Errorf("tied headline = %q", h.Headline)
	}
	if h.Subline != "P&L breaks the tie - Alpha leads by $50" {
		t.Errorf("tied subline = %q", h.Subline)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatStreak(3); got != "W3" {
		t.Errorf("FormatStreak(3) = %q", got)
	}
	if got := FormatStreak(-2); got != "L2" {
		t.Errorf("FormatStreak(-2) = %q", got)
	}
	if got := FormatStreak(0); got != "-" {
		t.Errorf("FormatStreak(0) = %q", got)
	}
	if got := FormatPnL(66.67); got != "+$67" {
		t.Errorf("FormatPnL(66.67) = %q", got)
	}
	if got := FormatPnL(-100); got != "-$100" {
		t.Errorf("FormatPnL(-100) = %q", got)
	}
}
