// Package arena defines the domain model shared by the prediction pipeline:
// matches, agents, predictions and their audit logs.
package arena

import "time"

// Provider identifies which AI provider backs an agent.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
	ProviderXAI       Provider = "xai"
)

// Side identifies one of the two teams in a match.
type Side string

const (
	SideTeamA Side = "team_a"
	SideTeamB Side = "team_b"
)

// Window is the prediction checkpoint a prediction was made in.
type Window string

const (
	WindowPreMatch Window = "pre_match"
	WindowPostXI   Window = "post_xi"
)

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	StatusUpcoming  MatchStatus = "upcoming"
	StatusLive      MatchStatus = "live"
	StatusCompleted MatchStatus = "completed"
	StatusAbandoned MatchStatus = "abandoned"
)

// Match is a scheduled fixture. Lineups, toss and result fields are filled in
// by external ingestion as the match progresses.
type Match struct {
	ID            string      `json:"id"`
	MatchNumber   int         `json:"match_number"`
	Stage         string      `json:"stage"`
	GroupName     string      `json:"group_name,omitempty"`
	TeamA         string      `json:"team_a"`
	TeamB         string      `json:"team_b"`
	Venue         string      `json:"venue"`
	ScheduledAt   time.Time   `json:"scheduled_at"`
	Status        MatchStatus `json:"status"`
	Winner        *Side       `json:"winner,omitempty"`
	WinnerName    string      `json:"winner_team_name,omitempty"`
	ResultSummary string      `json:"result_summary,omitempty"`
	PlayingXIA    string      `json:"playing_xi_a,omitempty"`
	PlayingXIB    string      `json:"playing_xi_b,omitempty"`
	XIAnnouncedAt *time.Time  `json:"xi_announced_at,omitempty"`
	TossWinner    string      `json:"toss_winner,omitempty"`
	TossDecision  string      `json:"toss_decision,omitempty"`
	ESPNID        string      `json:"espn_id,omitempty"`
}

// HasLineups reports whether both playing XIs have been announced.
func (m *Match) HasLineups() bool {
	return m.PlayingXIA != "" && m.PlayingXIB != ""
}

// PredictionWindow resolves the window a new prediction for this match falls
// into: post_xi once both lineups are known, pre_match before that.
func (m *Match) PredictionWindow() Window {
	if m.HasLineups() {
		return WindowPostXI
	}
	return WindowPreMatch
}

// TeamName returns the display name for a side.
func (m *Match) TeamName(side Side) string {
	if side == SideTeamA {
		return m.TeamA
	}
	return m.TeamB
}

// Agent is one competing AI model. Rows are read-only to the pipeline.
type Agent struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Provider    Provider `json:"provider"`
	ModelID     string   `json:"model_id"`
	Slug        string   `json:"slug"`
	Color       string   `json:"color"`
	AvatarURL   string   `json:"avatar_url,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// Prediction is one agent's pick for one match. Settlement fields stay nil
// until the settlement engine scores the row; they are either all set or all
// nil (a voided row keeps IsCorrect nil with zero pnl/points).
type Prediction struct {
	ID            string    `json:"id"`
	MatchID       string    `json:"match_id"`
	AgentID       string    `json:"agent_id"`
	PredictedSide Side      `json:"predicted_winner"`
	PredictedName string    `json:"predicted_team_name"`
	Confidence    float64   `json:"confidence"`
	Reasoning     string    `json:"reasoning"`
	Window        Window    `json:"prediction_window"`
	IsLatest      bool      `json:"is_latest"`
	SearchQueries []string  `json:"search_queries,omitempty"`
	IsCorrect     *bool     `json:"is_correct,omitempty"`
	PointsAwarded *int      `json:"points_awarded,omitempty"`
	PnL           *float64  `json:"pnl,omitempty"`
	BrierScore    *float64  `json:"brier_score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Settled reports whether the row has been scored.
func (p *Prediction) Settled() bool {
	return p.IsCorrect != nil
}

// PredictionLog is the audit record for one orchestration attempt. A failed
// attempt has no PredictionID. Rows are never mutated after insert.
type PredictionLog struct {
	ID           string    `json:"id"`
	PredictionID string    `json:"prediction_id,omitempty"`
	AgentID      string    `json:"agent_id"`
	MatchID      string    `json:"match_id"`
	RawPrompt    string    `json:"raw_prompt,omitempty"`
	RawResponse  string    `json:"raw_response,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TokensUsed   int       `json:"tokens_used,omitempty"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	LatencyMs    int64     `json:"latency_ms,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
