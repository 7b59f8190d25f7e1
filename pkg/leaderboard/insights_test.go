package leaderboard

import (
	"strings"
	"testing"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

func pick(matchID string, side arena.Side, confidence float64, correct *bool) *arena.Prediction {
	return &arena.Prediction{
		ID:            matchID + "-" + string(side),
		MatchID:       matchID,
		PredictedSide: side,
		Confidence:    confidence,
		IsLatest:      true,
		IsCorrect:     correct,
	}
}

func boolPtr(b bool) *bool { return &b }

func hasInsight(insights []string, fragment string) bool {
	for _, s := range insights {
		if strings.Contains(s, fragment) {
			return true
		}
	}
	return false
}

func TestInsightsEmptyHistory(t *testing.T) {
	if got := Insights(InsightInput{AgentID: "a"}); len(got) != 0 {
		t.Errorf("insights for empty history = %v", got)
	}
}

func TestInsightsConfidenceAndBias(t *testing.T) {
	latest := []*arena.Prediction{
		pick("m1", arena.SideTeamA, 0.9, nil),
		pick("m2", arena.SideTeamA, 0.85, nil),
		pick("m3", arena.SideTeamA, 0.88, nil),
	}
	got := Insights(InsightInput{AgentID: "a", Latest: latest})

	if !hasInsight(got, "Most confident predictor") {
		t.Errorf("missing high-confidence insight: %v", got)
	}
	if !hasInsight(got, "first-listed team") {
		t.Errorf("missing team bias insight: %v", got)
	}
}

func TestInsightsCautiousAndUnderdog(t *testing.T) {
	latest := []*arena.Prediction{
		pick("m1", arena.SideTeamB, 0.55, nil),
		pick("m2", arena.SideTeamB, 0.6, nil),
		pick("m3", arena.SideTeamB, 0.58, nil),
	}
	got := Insights(InsightInput{AgentID: "a", Latest: latest})

	if !hasInsight(got, "Cautious predictor") {
		t.Errorf("missing cautious insight: %v", got)
	}
	if !hasInsight(got, "second-listed team") {
		t.Errorf("missing underdog insight: %v", got)
	}
}

func TestInsightsOverconfident(t *testing.T) {
	settled := []*arena.Prediction{
		pick("m1", arena.SideTeamA, 0.9, boolPtr(false)),
		pick("m2", arena.SideTeamB, 0.85, boolPtr(false)),
		pick("m3", arena.SideTeamA, 0.88, boolPtr(true)),
	}
	got := Insights(InsightInput{
		AgentID: "a",
		Latest:  settled,
		Settled: settled,
	})
	if !hasInsight(got, "Overconfident") {
		t.Errorf("missing overconfident insight: %v", got)
	}
}

func TestInsightsAgreementPartner(t *testing.T) {
	mine := []*arena.Prediction{
		pick("m1", arena.SideTeamA, 0.7, boolPtr(true)),
		pick("m2", arena.SideTeamB, 0.7, boolPtr(false)),
		pick("m3", arena.SideTeamA, 0.7, boolPtr(true)),
	}
	twin := []*arena.Prediction{
		pick("m1", arena.SideTeamA, 0.6, boolPtr(true)),
		pick("m2", arena.SideTeamB, 0.6, boolPtr(false)),
		pick("m3", arena.SideTeamA, 0.6, boolPtr(true)),
	}
	contrarian := []*arena.Prediction{
		pick("m1", arena.SideTeamB, 0.6, boolPtr(false)),
		pick("m2", arena.SideTeamA, 0.6, boolPtr(true)),
		pick("m3", arena.SideTeamB, 0.6, boolPtr(false)),
	}

	got := Insights(InsightInput{
		AgentID: "me",
		Latest:  mine,
		Settled: mine,
		PicksByAgent: map[string][]*arena.Prediction{
			"me":         mine,
			"twin":       twin,
			"contrarian": contrarian,
		},
		Names: map[string]string{"twin": "Twin", "contrarian": "Contrarian"},
	})

	if !hasInsight(got, "Often agrees with Twin") {
		t.Errorf("missing agreement insight: %v", got)
	}
	if !hasInsight(got, "Frequently disagrees with Contrarian") {
		t.Errorf("missing disagreement insight: %v", got)
	}
}

func TestInsightsTrackRecordAndChangedMind(t *testing.T) {
	settled := []*arena.Prediction{
		pick("m1", arena.SideTeamA, 0.7, boolPtr(true)),
		pick("m2", arena.SideTeamB, 0.7, boolPtr(true)),
		pick("m3", arena.SideTeamA, 0.7, boolPtr(true)),
		pick("m4", arena.SideTeamB, 0.7, boolPtr(false)),
	}
	got := Insights(InsightInput{
		AgentID:     "a",
		Latest:      settled,
		Settled:     settled,
		ChangedMind: 3,
	})

	if !hasInsight(got, "Strong track record") {
		t.Errorf("missing track record insight: %v", got)
	}
	if !hasInsight(got, "Best winning streak: 3") {
		t.Errorf("missing streak insight: %v", got)
	}
	if !hasInsight(got, "Changed mind 3 times") {
		t.Errorf("missing changed-mind insight: %v", got)
	}
}

func TestHeadToHead(t *testing.T) {
	roster := []*arena.Agent{
		{ID: "me", DisplayName: "Me"},
		{ID: "other", DisplayName: "Other"},
		{ID: "stranger", DisplayName: "Stranger"},
	}
	picks := map[string][]*arena.Prediction{
		"me": {
			pick("m1", arena.SideTeamA, 0.7, boolPtr(true)),
			pick("m2", arena.SideTeamB, 0.7, boolPtr(false)),
		},
		"other": {
			pick("m1", arena.SideTeamA, 0.6, boolPtr(true)),
			pick("m2", arena.SideTeamA, 0.6, boolPtr(true)),
		},
		// stranger never predicted a shared match
		"stranger": {
			pick("m9", arena.SideTeamA, 0.6, boolPtr(true)),
		},
	}

	got := HeadToHead("me", roster, picks)
	if len(got) != 2 {
		t.Fatalf("got %d pairs, want 2", len(got))
	}

	other := got[0]
	if other.AgentID != "other" || other.Shared != 2 || other.Agreed != 1 {
		t.Errorf("other = %+v", other)
	}
	if other.AgreementPct != 0.5 {
		t.Errorf("agreement = %v, want 0.5", other.AgreementPct)
	}

	stranger := got[1]
	if stranger.Shared != 0 || stranger.AgreementPct != 0 {
		t.Errorf("stranger = %+v", stranger)
	}
}
