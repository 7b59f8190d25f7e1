package agents

import (
	"strings"
	"testing"
	"time"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

func testMatch() *arena.Match {
	return &arena.Match{
		ID:          "m1",
		MatchNumber: 7,
		Stage:       "Group",
		TeamA:       "India",
		TeamB:       "USA",
		Venue:       "Nassau County Stadium",
		ScheduledAt: time.Date(2026, 6, 12, 14, 30, 0, 0, time.UTC),
		Status:      arena.StatusUpcoming,
	}
}

func TestBuildPromptPreMatch(t *testing.T) {
	p := BuildPrompt(testMatch())

	if p.System == "" {
		t.Fatal("system prompt is empty")
	}
	for _, want := range []string{
		"MATCH: India vs USA",
		"Match #7",
		"Nassau County Stadium",
		"INSTRUCTIONS:",
		`"winner"`,
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
	if strings.Contains(p.User, "Playing XI") {
		t.Error("pre-match prompt should not mention lineups")
	}
	if strings.Contains(p.User, "Toss:") {
		t.Error("pre-match prompt should not mention the toss")
	}
}

func TestBuildPromptPostXI(t *testing.T) {
	m := testMatch()
	m.PlayingXIA = "Sharma, Kohli, Pandya"
	m.PlayingXIB = "Jones, Taylor, van Buren"
	m.TossWinner = "India"
	m.TossDecision = "bat"

	p := BuildPrompt(m)
	for _, want := range []string{
		"India Playing XI: Sharma, Kohli, Pandya",
		"USA Playing XI: Jones, Taylor, van Buren",
		"Toss: India won and chose to bat",
	} {
		if !strings.Contains(p.User, want) {
			t.Errorf("post-XI prompt missing %q", want)
		}
	}
}

func TestPredictionWindow(t *testing.T) {
	m := testMatch()
	if got := m.PredictionWindow(); got != arena.WindowPreMatch {
		t.Errorf("window = %v, want pre_match", got)
	}

	m.PlayingXIA = "a"
	if got := m.PredictionWindow(); got != arena.WindowPreMatch {
		t.Errorf("one lineup set, window = %v, want pre_match", got)
	}

	m.PlayingXIB = "b"
	if got := m.PredictionWindow(); got != arena.WindowPostXI {
		t.Errorf("both lineups set, window = %v, want post_xi", got)
	}
}
