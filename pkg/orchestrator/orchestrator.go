// Package orchestrator fans match predictions out to every active agent,
// with per-agent timeouts, a single retry, and fault isolation between
// agents.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pitchside/cricket-agents/pkg/agents"
	"github.com/pitchside/cricket-agents/pkg/arena"
	"github.com/pitchside/cricket-agents/pkg/metrics"
	"github.com/pitchside/cricket-agents/pkg/store"
)

const (
	// DefaultCallTimeout bounds one provider attempt.
	DefaultCallTimeout = 60 * time.Second
	// DefaultRetryDelay is the pause before the single retry.
	DefaultRetryDelay = 5 * time.Second
	// DefaultSweepHorizon selects upcoming matches starting within this window.
	DefaultSweepHorizon = 24 * time.Hour
)

// Ledger is the slice of the store the orchestrator needs.
type Ledger interface {
	ListMatches(ctx context.Context, f store.MatchFilter) ([]*arena.Match, error)
	ListActiveAgents(ctx context.Context, ids ...string) ([]*arena.Agent, error)
	HasPrediction(ctx context.Context, matchID, agentID string, window arena.Window) (bool, error)
	InsertPrediction(ctx context.Context, p *arena.Prediction, log *arena.PredictionLog) error
	InsertFailureLog(ctx context.Context, log *arena.PredictionLog) error
}

// Broadcaster pushes pipeline events to connected streaming clients.
type Broadcaster interface {
	Publish(eventType string, payload any)
}

// Summary reports one orchestration run.
type Summary struct {
	MatchID   string
	Window    arena.Window
	Succeeded int
	Failed    int
	Skipped   int
}

// Orchestrator runs the prediction pipeline.
type Orchestrator struct {
	ledger  Ledger
	clients agents.Registry
	metrics *metrics.ArenaMetrics
	events  Broadcaster
	log     zerolog.Logger

	callTimeout time.Duration
	retryDelay  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCallTimeout overrides the per-attempt provider timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.callTimeout = d }
}

// WithRetryDelay overrides the pause before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.retryDelay = d }
}

// WithBroadcaster attaches a streaming hub.
func WithBroadcaster(b Broadcaster) Option {
	return func(o *Orchestrator) { o.events = b }
}

// New creates an Orchestrator.
func New(ledger Ledger, clients agents.Registry, m *metrics.ArenaMetrics, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger:      ledger,
		clients:     clients,
		metrics:     m,
		log:         log.With().Str("component", "orchestrator").Logger(),
		callTimeout: DefaultCallTimeout,
		retryDelay:  DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run asks every given agent to predict the match, in parallel. One agent
// failing never affects the others; the summary counts both outcomes. The
// window is resolved once from the match lineups so every agent in the run
// writes into the same window.
func (o *Orchestrator) Run(ctx context.Context, match *arena.Match, roster []*arena.Agent) Summary {
	window := match.PredictionWindow()
	sum := Summary{MatchID: match.ID, Window: window}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, agent := range roster {
		wg.Add(1)
		go func(agent *arena.Agent) {
			defer wg.Done()
			err := o.RunAgent(ctx, match, agent, window)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				sum.Failed++
			} else {
				sum.Succeeded++
			}
		}(agent)
	}
	wg.Wait()

	o.log.Info().
		Str("match_id", match.ID).
		Str("window", string(window)).
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Msg("orchestration run finished")
	return sum
}

// RunAgent runs the pipeline for one (match, agent) pair: prompt, provider
// call with one retry, parse, transactional store write. A terminal failure
// is recorded as an audit log row with no prediction attached.
func (o *Orchestrator) RunAgent(ctx context.Context, match *arena.Match, agent *arena.Agent, window arena.Window) error {
	client, ok := o.clients[agent.Provider]
	if !ok {
		return o.recordFailure(ctx, match, agent, "", fmt.Errorf("no client for provider %s", agent.Provider))
	}

	prompt := agents.BuildPrompt(match)
	log := o.log.With().
		Str("match_id", match.ID).
		Str("agent_id", agent.ID).
		Str("provider", string(agent.Provider)).
		Logger()

	result, err := o.callWithRetry(ctx, client, agent, prompt, match)
	if err != nil {
		log.Error().Err(err).Msg("prediction attempt failed")
		o.metrics.RecordPrediction(agent.ID, string(agent.Provider), "error", 0, 0, 0)
		var parseErr *agents.ParseError
		if errors.As(err, &parseErr) {
			o.metrics.RecordParseFailure(string(agent.Provider))
		}
		return o.recordFailure(ctx, match, agent, prompt.User, err)
	}

	side := arena.SideTeamA
	if result.Prediction.Winner == match.TeamB {
		side = arena.SideTeamB
	}

	now := time.Now().UTC()
	pred := &arena.Prediction{
		ID:            uuid.NewString(),
		MatchID:       match.ID,
		AgentID:       agent.ID,
		PredictedSide: side,
		PredictedName: result.Prediction.Winner,
		Confidence:    result.Prediction.Confidence,
		Reasoning:     result.Prediction.Reasoning,
		Window:        window,
		IsLatest:      true,
		SearchQueries: result.SearchQueries,
		CreatedAt:     now,
	}
	auditLog := &arena.PredictionLog{
		ID:           uuid.NewString(),
		PredictionID: pred.ID,
		AgentID:      agent.ID,
		MatchID:      match.ID,
		RawPrompt:    prompt.User,
		RawResponse:  result.RawResponse,
		TokensUsed:   result.TokensUsed,
		CostUSD:      result.CostUSD,
		LatencyMs:    result.LatencyMs,
		CreatedAt:    now,
	}

	if err := o.ledger.InsertPrediction(ctx, pred, auditLog); err != nil {
		log.Error().Err(err).Msg("store prediction")
		o.metrics.RecordPrediction(agent.ID, string(agent.Provider), "store_error", 0, 0, 0)
		return fmt.Errorf("orchestrator: store prediction: %w", err)
	}

	o.metrics.RecordPrediction(agent.ID, string(agent.Provider), "ok",
		float64(result.LatencyMs)/1000, result.TokensUsed, result.CostUSD)
	o.metrics.RecordConfidence(agent.ID, pred.Confidence)
	o.publish("prediction", pred)

	log.Info().
		Str("winner", pred.PredictedName).
		Float64("confidence", pred.Confidence).
		Str("window", string(window)).
		Int64("latency_ms", result.LatencyMs).
		Msg("prediction stored")
	return nil
}

// callWithRetry makes one provider attempt, then exactly one more after a
// constant delay if the first fails. Each attempt gets its own deadline.
// Caller cancellation stops the retry immediately.
func (o *Orchestrator) callWithRetry(ctx context.Context, client agents.Client, agent *arena.Agent, prompt agents.PromptPair, match *arena.Match) (*agents.Result, error) {
	attempt := 0
	operation := func() (*agents.Result, error) {
		attempt++
		if attempt > 1 {
			o.metrics.RecordRetry(string(agent.Provider))
		}
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
		res, err := client.Call(callCtx, prompt.System, prompt.User, match.TeamA, match.TeamB)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return res, err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryDelay), 1), ctx)
	return backoff.RetryWithData(operation, policy)
}

// recordFailure writes the audit row for a terminal failure. The row has no
// prediction id and no prediction row is created or superseded.
func (o *Orchestrator) recordFailure(ctx context.Context, match *arena.Match, agent *arena.Agent, rawPrompt string, cause error) error {
	failLog := &arena.PredictionLog{
		ID:           uuid.NewString(),
		AgentID:      agent.ID,
		MatchID:      match.ID,
		RawPrompt:    rawPrompt,
		ErrorMessage: cause.Error(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.ledger.InsertFailureLog(ctx, failLog); err != nil {
		o.log.Error().Err(err).Str("agent_id", agent.ID).Msg("store failure log")
	}
	o.publish("error", map[string]string{
		"match_id": match.ID,
		"agent_id": agent.ID,
		"error":    cause.Error(),
	})
	return fmt.Errorf("orchestrator: agent %s: %w", agent.ID, cause)
}

// SweepUpcoming finds upcoming matches starting within the horizon and runs
// every (agent, window) pair that does not have a prediction yet. Pairs that
// already predicted in the match's current window are skipped, so repeated
// sweeps are idempotent and a lineup announcement triggers exactly one new
// post-lineup round.
func (o *Orchestrator) SweepUpcoming(ctx context.Context, horizon time.Duration) ([]Summary, error) {
	start := time.Now()
	status := "ok"
	defer func() {
		o.metrics.RecordSweep("predict", status, time.Since(start).Seconds())
	}()

	if horizon <= 0 {
		horizon = DefaultSweepHorizon
	}
	now := time.Now().UTC()
	matches, err := o.ledger.ListMatches(ctx, store.MatchFilter{
		Status:          arena.StatusUpcoming,
		ScheduledAfter:  now.Add(-2 * time.Hour),
		ScheduledBefore: now.Add(horizon),
	})
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("orchestrator: list matches: %w", err)
	}

	roster, err := o.ledger.ListActiveAgents(ctx)
	if err != nil {
		status = "error"
		return nil, fmt.Errorf("orchestrator: list agents: %w", err)
	}

	var out []Summary
	for _, match := range matches {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		window := match.PredictionWindow()

		var due []*arena.Agent
		skipped := 0
		for _, agent := range roster {
			exists, err := o.ledger.HasPrediction(ctx, match.ID, agent.ID, window)
			if err != nil {
				status = "error"
				return out, fmt.Errorf("orchestrator: check prediction: %w", err)
			}
			if exists {
				skipped++
				continue
			}
			due = append(due, agent)
		}
		if len(due) == 0 {
			continue
		}

		sum := o.Run(ctx, match, due)
		sum.Skipped = skipped
		out = append(out, sum)
	}
	return out, nil
}

func (o *Orchestrator) publish(eventType string, payload any) {
	if o.events != nil {
		o.events.Publish(eventType, payload)
	}
}
