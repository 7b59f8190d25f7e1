// predictd is the prediction arena daemon. It schedules prediction rounds
// across every configured AI agent, settles finished matches, and serves the
// leaderboard and live event stream.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pitchside/cricket-agents/pkg/agents"
	"github.com/pitchside/cricket-agents/pkg/arena"
	"github.com/pitchside/cricket-agents/pkg/cache"
	"github.com/pitchside/cricket-agents/pkg/config"
	"github.com/pitchside/cricket-agents/pkg/leaderboard"
	"github.com/pitchside/cricket-agents/pkg/metrics"
	"github.com/pitchside/cricket-agents/pkg/orchestrator"
	"github.com/pitchside/cricket-agents/pkg/settlement"
	"github.com/pitchside/cricket-agents/pkg/store"
	"github.com/pitchside/cricket-agents/pkg/streaming"
)

var (
	httpAddr = flag.String("http", "", "HTTP server address (overrides ARENA_HTTP_ADDR)")
	dbPath   = flag.String("db", "", "SQLite database path (overrides ARENA_DB_PATH)")
	verbose  = flag.Bool("verbose", false, "Debug logging")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	app, err := newApp(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer app.store.Close()
	defer app.hub.Close()

	go app.startHTTP(cfg.HTTPAddr)
	go app.predictLoop(ctx, cfg.SweepInterval, cfg.SweepHorizon)
	go app.settleLoop(ctx, cfg.SettleInterval)

	log.Info().Str("http", cfg.HTTPAddr).Str("db", cfg.DBPath).Msg("predictd running")

	<-sigCh
	log.Info().Msg("shutting down")
	cancel()
}

type app struct {
	log     zerolog.Logger
	store   *store.Store
	clients agents.Registry
	orch    *orchestrator.Orchestrator
	engine  *settlement.Engine
	metrics *metrics.ArenaMetrics
	hub     *streaming.Hub
	cache   cache.Cache
	lbTTL   time.Duration
}

func newApp(cfg config.Config, log zerolog.Logger) (*app, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		log:     log,
		store:   st,
		metrics: metrics.NewArenaMetrics(),
		cache:   cache.New(cfg.RedisURL),
		lbTTL:   cfg.LeaderboardTTL,
	}
	a.hub = streaming.NewHub(a.metrics, log)

	a.clients = agents.BuildRegistry(map[arena.Provider]agents.ClientConfig{
		arena.ProviderAnthropic: {APIKey: cfg.Anthropic.APIKey, Model: cfg.Anthropic.Model, BaseURL: cfg.Anthropic.BaseURL},
		arena.ProviderOpenAI:    {APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL},
		arena.ProviderGoogle:    {APIKey: cfg.Google.APIKey, Model: cfg.Google.Model, BaseURL: cfg.Google.BaseURL},
		arena.ProviderXAI:       {APIKey: cfg.XAI.APIKey, Model: cfg.XAI.Model, BaseURL: cfg.XAI.BaseURL},
	}, log)
	if len(a.clients) == 0 {
		log.Warn().Msg("no provider API keys configured, prediction runs will fail")
	}

	a.orch = orchestrator.New(st, a.clients, a.metrics, log,
		orchestrator.WithCallTimeout(cfg.CallTimeout),
		orchestrator.WithRetryDelay(cfg.RetryDelay),
		orchestrator.WithBroadcaster(a.hub))
	a.engine = settlement.NewEngine(st, log)

	if err := a.seedAgents(context.Background()); err != nil {
		return nil, err
	}
	return a, nil
}

// seedAgents populates the agents table on first run.
func (a *app) seedAgents(ctx context.Context) error {
	existing, err := a.store.ListActiveAgents(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	defaults := []*arena.Agent{
		{ID: "claude", DisplayName: "Claude", Provider: arena.ProviderAnthropic, ModelID: "claude-opus-4-6", Slug: "claude", Color: "#d97757", IsActive: true},
		{ID: "gpt", DisplayName: "GPT", Provider: arena.ProviderOpenAI, ModelID: "gpt-5.2", Slug: "gpt", Color: "#10a37f", IsActive: true},
		{ID: "gemini", DisplayName: "Gemini", Provider: arena.ProviderGoogle, ModelID: "gemini-3.0-pro", Slug: "gemini", Color: "#4285f4", IsActive: true},
		{ID: "grok", DisplayName: "Grok", Provider: arena.ProviderXAI, ModelID: "grok-4", Slug: "grok", Color: "#1d9bf0", IsActive: true},
	}
	for _, agent := range defaults {
		if err := a.store.UpsertAgent(ctx, agent); err != nil {
			return err
		}
	}
	a.log.Info().Int("agents", len(defaults)).Msg("seeded agent roster")
	return nil
}

// --- background loops ---

func (a *app) predictLoop(ctx context.Context, interval, horizon time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.orch.SweepUpcoming(ctx, horizon); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error().Err(err).Msg("predict sweep failed")
			}
		}
	}
}

// settleLoop is a safety net for matches completed while settlement could
// not run (crash, restart). The admin result handler settles inline.
func (a *app) settleLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.settleSweep(ctx)
		}
	}
}

func (a *app) settleSweep(ctx context.Context) {
	start := time.Now()
	status := "ok"
	defer func() {
		a.metrics.RecordSweep("settle", status, time.Since(start).Seconds())
	}()

	completed, err := a.store.ListMatches(ctx, store.MatchFilter{Status: arena.StatusCompleted})
	if err != nil {
		status = "error"
		a.log.Error().Err(err).Msg("settle sweep: list matches")
		return
	}
	for _, match := range completed {
		pending, err := a.store.ListPredictions(ctx, store.PredictionFilter{
			MatchID:       match.ID,
			LatestOnly:    true,
			UnsettledOnly: true,
		})
		if err != nil {
			status = "error"
			a.log.Error().Err(err).Str("match_id", match.ID).Msg("settle sweep: list predictions")
			return
		}
		if len(pending) == 0 {
			continue
		}
		if err := a.settleMatch(ctx, match); err != nil {
			status = "error"
			a.log.Error().Err(err).Str("match_id", match.ID).Msg("settle sweep: settle")
		}
	}
}

func (a *app) settleMatch(ctx context.Context, match *arena.Match) error {
	settled, err := a.engine.SettleCompleted(ctx, match)
	if err != nil {
		return err
	}
	for _, p := range settled {
		outcome := "incorrect"
		if p.IsCorrect != nil && *p.IsCorrect {
			outcome = "correct"
		}
		a.metrics.RecordSettlement(outcome)
		a.hub.Publish(streaming.EventSettlement, p)
	}
	if len(settled) > 0 {
		a.invalidateLeaderboard(ctx)
	}
	return nil
}

func (a *app) invalidateLeaderboard(ctx context.Context) {
	for _, s := range []leaderboard.Sort{leaderboard.SortPoints, leaderboard.SortPnL, leaderboard.SortBrier} {
		if err := a.cache.Delete(ctx, "leaderboard:"+string(s)); err != nil {
			a.log.Warn().Err(err).Msg("leaderboard cache invalidation failed")
		}
	}
}

// --- HTTP ---

func (a *app) startHTTP(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("GET /leaderboard", a.handleLeaderboard)
	mux.HandleFunc("GET /matches", a.handleMatches)
	mux.HandleFunc("GET /agents/{slug}", a.handleAgentProfile)

	mux.HandleFunc("POST /admin/matches", a.handleCreateMatch)
	mux.HandleFunc("POST /admin/matches/{id}/lineups", a.handleLineups)
	mux.HandleFunc("POST /admin/matches/{id}/toss", a.handleToss)
	mux.HandleFunc("POST /admin/matches/{id}/result", a.handleResult)
	mux.HandleFunc("POST /admin/matches/{id}/abandon", a.handleAbandon)
	mux.HandleFunc("POST /admin/matches/{id}/predict", a.handlePredict)

	mux.Handle("GET /metrics", promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("GET /ws", a.hub)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.log.Info().Str("addr", addr).Msg("http server listening")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		a.log.Error().Err(err).Msg("http server")
	}
}

func (a *app) handleStatus(w http.ResponseWriter, r *http.Request) {
	providers := make([]string, 0, len(a.clients))
	for p := range a.clients {
		providers = append(providers, string(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers":      providers,
		"stream_clients": a.hub.ClientCount(),
	})
}

func (a *app) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	by := leaderboard.Sort(r.URL.Query().Get("sort"))
	switch by {
	case leaderboard.SortPnL, leaderboard.SortBrier:
	default:
		by = leaderboard.SortPoints
	}

	key := "leaderboard:" + string(by)
	if data, ok := a.cache.Get(r.Context(), key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}

	roster, settledByAgent, err := a.settledHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}

	entries := leaderboard.Compute(roster, settledByAgent, by)
	body := map[string]any{
		"headline": leaderboard.Narrative(entries),
		"entries":  entries,
	}
	data, err := json.Marshal(body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	if err := a.cache.Set(r.Context(), key, data, a.lbTTL); err != nil {
		a.log.Warn().Err(err).Msg("leaderboard cache set failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (a *app) handleMatches(w http.ResponseWriter, r *http.Request) {
	f := store.MatchFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		f.Status = arena.MatchStatus(s)
	}
	matches, err := a.store.ListMatches(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "matches unavailable")
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (a *app) handleAgentProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agent, err := a.store.GetAgent(ctx, r.PathValue("slug"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "agent unavailable")
		return
	}

	latest, err := a.store.ListPredictions(ctx, store.PredictionFilter{AgentID: agent.ID, LatestOnly: true})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "agent unavailable")
		return
	}
	roster, settledByAgent, err := a.settledHistory(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "agent unavailable")
		return
	}
	changedMind, err := a.store.CountSuperseded(ctx, agent.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "agent unavailable")
		return
	}

	names := make(map[string]string, len(roster))
	for _, ag := range roster {
		names[ag.ID] = ag.DisplayName
	}

	insights := leaderboard.Insights(leaderboard.InsightInput{
		AgentID:      agent.ID,
		Latest:       latest,
		Settled:      settledByAgent[agent.ID],
		ChangedMind:  changedMind,
		PicksByAgent: settledByAgent,
		Names:        names,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"agent":        agent,
		"predictions":  latest,
		"head_to_head": leaderboard.HeadToHead(agent.ID, roster, settledByAgent),
		"insights":     insights,
	})
}

// settledHistory loads every active agent's settled latest predictions in
// chronological order, keyed by agent id.
func (a *app) settledHistory(ctx context.Context) ([]*arena.Agent, map[string][]*arena.Prediction, error) {
	roster, err := a.store.ListActiveAgents(ctx)
	if err != nil {
		return nil, nil, err
	}
	byAgent := make(map[string][]*arena.Prediction, len(roster))
	for _, agent := range roster {
		preds, err := a.store.ListPredictions(ctx, store.PredictionFilter{
			AgentID:     agent.ID,
			LatestOnly:  true,
			SettledOnly: true,
		})
		if err != nil {
			return nil, nil, err
		}
		byAgent[agent.ID] = preds
	}
	return roster, byAgent, nil
}

// --- admin handlers ---

type createMatchRequest struct {
	ID          string    `json:"id"`
	MatchNumber int       `json:"match_number"`
	Stage       string    `json:"stage"`
	GroupName   string    `json:"group_name"`
	TeamA       string    `json:"team_a"`
	TeamB       string    `json:"team_b"`
	Venue       string    `json:"venue"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ESPNID      string    `json:"espn_id"`
}

func (a *app) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.TeamA == "" || req.TeamB == "" || req.ScheduledAt.IsZero() {
		writeError(w, http.StatusBadRequest, "team_a, team_b and scheduled_at are required")
		return
	}
	match := &arena.Match{
		ID:          req.ID,
		MatchNumber: req.MatchNumber,
		Stage:       req.Stage,
		GroupName:   req.GroupName,
		TeamA:       req.TeamA,
		TeamB:       req.TeamB,
		Venue:       req.Venue,
		ScheduledAt: req.ScheduledAt,
		Status:      arena.StatusUpcoming,
		ESPNID:      req.ESPNID,
	}
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	if err := a.store.InsertMatch(r.Context(), match); err != nil {
		writeError(w, http.StatusInternalServerError, "create match failed")
		return
	}
	a.hub.Publish(streaming.EventMatchUpdate, match)
	writeJSON(w, http.StatusCreated, match)
}

func (a *app) handleLineups(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayingXIA string `json:"playing_xi_a"`
		PlayingXIB string `json:"playing_xi_b"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlayingXIA == "" || req.PlayingXIB == "" {
		writeError(w, http.StatusBadRequest, "both playing XIs are required")
		return
	}
	id := r.PathValue("id")
	if err := a.store.SetLineups(r.Context(), id, req.PlayingXIA, req.PlayingXIB, time.Now().UTC()); err != nil {
		a.writeStoreError(w, err, "set lineups failed")
		return
	}
	a.broadcastMatch(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *app) handleToss(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TossWinner   string `json:"toss_winner"`
		TossDecision string `json:"toss_decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TossWinner == "" {
		writeError(w, http.StatusBadRequest, "toss_winner is required")
		return
	}
	id := r.PathValue("id")
	if err := a.store.SetToss(r.Context(), id, req.TossWinner, req.TossDecision); err != nil {
		a.writeStoreError(w, err, "set toss failed")
		return
	}
	a.broadcastMatch(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *app) handleResult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Winner        string `json:"winner"`
		ResultSummary string `json:"result_summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	side := arena.Side(strings.ToLower(req.Winner))
	if side != arena.SideTeamA && side != arena.SideTeamB {
		writeError(w, http.StatusBadRequest, "winner must be team_a or team_b")
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	match, err := a.store.GetMatch(ctx, id)
	if err != nil {
		a.writeStoreError(w, err, "load match failed")
		return
	}
	if err := a.store.CompleteMatch(ctx, id, side, match.TeamName(side), req.ResultSummary); err != nil {
		a.writeStoreError(w, err, "complete match failed")
		return
	}

	match.Status = arena.StatusCompleted
	match.Winner = &side
	match.WinnerName = match.TeamName(side)
	match.ResultSummary = req.ResultSummary

	if err := a.settleMatch(ctx, match); err != nil {
		writeError(w, http.StatusInternalServerError, "settlement failed")
		return
	}
	a.hub.Publish(streaming.EventMatchUpdate, match)
	writeJSON(w, http.StatusOK, match)
}

func (a *app) handleAbandon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := a.store.AbandonMatch(ctx, id); err != nil {
		a.writeStoreError(w, err, "abandon match failed")
		return
	}
	voided, err := a.engine.SettleAbandoned(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "void predictions failed")
		return
	}
	for i := 0; i < voided; i++ {
		a.metrics.RecordSettlement("voided")
	}
	a.invalidateLeaderboard(ctx)
	a.broadcastMatch(ctx, id)
	writeJSON(w, http.StatusOK, map[string]any{"voided": voided})
}

func (a *app) handlePredict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	match, err := a.store.GetMatch(ctx, r.PathValue("id"))
	if err != nil {
		a.writeStoreError(w, err, "load match failed")
		return
	}
	roster, err := a.store.ListActiveAgents(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load agents failed")
		return
	}
	sum := a.orch.Run(ctx, match, roster)
	writeJSON(w, http.StatusOK, sum)
}

func (a *app) broadcastMatch(ctx context.Context, id string) {
	if match, err := a.store.GetMatch(ctx, id); err == nil {
		a.hub.Publish(streaming.EventMatchUpdate, match)
	}
}

func (a *app) writeStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	a.log.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
