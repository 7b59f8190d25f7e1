// Package store is the SQLite persistence layer for matches, agents,
// predictions and their audit logs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

// ErrNotFound is returned when a referenced match, agent or prediction does
// not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps a SQLite database.
//
// WAL is enabled so the status API can read while orchestration writes. The
// supersede-then-insert sequence for predictions runs inside one transaction,
// so concurrent writers for the same (match, agent) pair cannot leave two
// rows marked latest.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" {
		return nil, errors.New("store: missing db path")
	}
	if dir := filepath.Dir(p); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory database, used by tests.
func OpenMemory() (*Store, error) {
	return Open("file::memory:?mode=memory&cache=shared")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id            TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	provider      TEXT NOT NULL,
	model_id      TEXT NOT NULL,
	slug          TEXT NOT NULL UNIQUE,
	color         TEXT NOT NULL DEFAULT '',
	avatar_url    TEXT,
	is_active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS matches (
	id               TEXT PRIMARY KEY,
	match_number     INTEGER NOT NULL,
	stage            TEXT NOT NULL,
	group_name       TEXT,
	team_a           TEXT NOT NULL,
	team_b           TEXT NOT NULL,
	venue            TEXT NOT NULL,
	scheduled_at     TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'upcoming',
	winner           TEXT,
	winner_team_name TEXT,
	result_summary   TEXT,
	playing_xi_a     TEXT,
	playing_xi_b     TEXT,
	xi_announced_at  TEXT,
	toss_winner      TEXT,
	toss_decision    TEXT,
	espn_id          TEXT
);

CREATE TABLE IF NOT EXISTS predictions (
	id                  TEXT PRIMARY KEY,
	match_id            TEXT NOT NULL REFERENCES matches(id),
	agent_id            TEXT NOT NULL REFERENCES agents(id),
	predicted_winner    TEXT NOT NULL,
	predicted_team_name TEXT NOT NULL,
	confidence          REAL NOT NULL,
	reasoning           TEXT,
	prediction_window   TEXT NOT NULL,
	is_latest           INTEGER NOT NULL DEFAULT 1,
	search_queries      TEXT,
	is_correct          INTEGER,
	points_awarded      INTEGER,
	pnl                 REAL,
	brier_score         REAL,
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_match ON predictions(match_id, is_latest);
CREATE INDEX IF NOT EXISTS idx_predictions_agent ON predictions(agent_id, is_latest);

CREATE TABLE IF NOT EXISTS prediction_logs (
	id            TEXT PRIMARY KEY,
	prediction_id TEXT REFERENCES predictions(id),
	agent_id      TEXT NOT NULL,
	match_id      TEXT NOT NULL,
	raw_prompt    TEXT,
	raw_response  TEXT,
	error_message TEXT,
	tokens_used   INTEGER,
	cost_usd      REAL,
	latency_ms    INTEGER,
	created_at    TEXT NOT NULL
);
`
	_, err := db.Exec(schema)
	return err
}

// --- Agents ---

// UpsertAgent inserts or replaces one agent row. Used by the bootstrap seed.
func (s *Store) UpsertAgent(ctx context.Context, a *arena.Agent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO agents (id, display_name, provider, model_id, slug, color, avatar_url, is_active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	display_name = excluded.display_name,
	provider     = excluded.provider,
	model_id     = excluded.model_id,
	slug         = excluded.slug,
	color        = excluded.color,
	avatar_url   = excluded.avatar_url,
	is_active    = excluded.is_active`,
		a.ID, a.DisplayName, string(a.Provider), a.ModelID, a.Slug, a.Color, nullStr(a.AvatarURL), boolInt(a.IsActive))
	return err
}

// GetAgent fetches one agent by id or slug.
func (s *Store) GetAgent(ctx context.Context, idOrSlug string) (*arena.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, provider, model_id, slug, color, COALESCE(avatar_url,''), is_active
		 FROM agents WHERE id = ? OR slug = ?`, idOrSlug, idOrSlug)
	return scanAgent(row)
}

// ListActiveAgents returns active agents, optionally restricted to an id set.
func (s *Store) ListActiveAgents(ctx context.Context, ids ...string) ([]*arena.Agent, error) {
	query := `SELECT id, display_name, provider, model_id, slug, color, COALESCE(avatar_url,''), is_active
		FROM agents WHERE is_active = 1`
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += " AND id IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*arena.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Matches ---

// InsertMatch stores a new fixture.
func (s *Store) InsertMatch(ctx context.Context, m *arena.Match) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO matches (id, match_number, stage, group_name, team_a, team_b, venue, scheduled_at,
	status, winner, winner_team_name, result_summary, playing_xi_a, playing_xi_b,
	xi_announced_at, toss_winner, toss_decision, espn_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MatchNumber, m.Stage, nullStr(m.GroupName), m.TeamA, m.TeamB, m.Venue,
		m.ScheduledAt.UTC().Format(time.RFC3339), string(m.Status), sideStr(m.Winner),
		nullStr(m.WinnerName), nullStr(m.ResultSummary), nullStr(m.PlayingXIA), nullStr(m.PlayingXIB),
		nullTime(m.XIAnnouncedAt), nullStr(m.TossWinner), nullStr(m.TossDecision), nullStr(m.ESPNID))
	return err
}

// GetMatch fetches one match by id.
func (s *Store) GetMatch(ctx context.Context, id string) (*arena.Match, error) {
	row := s.db.QueryRowContext(ctx, matchSelect+` WHERE id = ?`, id)
	return scanMatch(row)
}

// MatchFilter narrows ListMatches.
type MatchFilter struct {
	Status          arena.MatchStatus
	ScheduledBefore time.Time
	ScheduledAfter  time.Time
}

// ListMatches returns matches ordered by schedule, applying the filter.
func (s *Store) ListMatches(ctx context.Context, f MatchFilter) ([]*arena.Match, error) {
	query := matchSelect + ` WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if !f.ScheduledBefore.IsZero() {
		query += " AND scheduled_at <= ?"
		args = append(args, f.ScheduledBefore.UTC().Format(time.RFC3339))
	}
	if !f.ScheduledAfter.IsZero() {
		query += " AND scheduled_at >= ?"
		args = append(args, f.ScheduledAfter.UTC().Format(time.RFC3339))
	}
	query += " ORDER BY scheduled_at, match_number"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*arena.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SetLineups records both playing XIs, flipping the prediction window for
// subsequent orchestration runs.
func (s *Store) SetLineups(ctx context.Context, matchID, xiA, xiB string, announcedAt time.Time) error {
	return s.execOne(ctx,
		`UPDATE matches SET playing_xi_a = ?, playing_xi_b = ?, xi_announced_at = ? WHERE id = ?`,
		xiA, xiB, announcedAt.UTC().Format(time.RFC3339), matchID)
}

// SetToss records the toss outcome.
func (s *Store) SetToss(ctx context.Context, matchID, tossWinner, tossDecision string) error {
	return s.execOne(ctx,
		`UPDATE matches SET toss_winner = ?, toss_decision = ? WHERE id = ?`,
		tossWinner, tossDecision, matchID)
}

// CompleteMatch records the final outcome and marks the match completed.
func (s *Store) CompleteMatch(ctx context.Context, matchID string, winner arena.Side, winnerName, summary string) error {
	return s.execOne(ctx,
		`UPDATE matches SET status = ?, winner = ?, winner_team_name = ?, result_summary = ? WHERE id = ?`,
		string(arena.StatusCompleted), string(winner), winnerName, summary, matchID)
}

// AbandonMatch marks the match abandoned.
func (s *Store) AbandonMatch(ctx context.Context, matchID string) error {
	return s.execOne(ctx,
		`UPDATE matches SET status = ? WHERE id = ?`, string(arena.StatusAbandoned), matchID)
}

// --- Predictions ---

// InsertPrediction stores a new prediction with its audit log in one
// transaction, first marking every prior prediction for the same
// (match, agent) pair as no longer latest.
func (s *Store) InsertPrediction(ctx context.Context, p *arena.Prediction, log *arena.PredictionLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE predictions SET is_latest = 0 WHERE match_id = ? AND agent_id = ?`,
		p.MatchID, p.AgentID); err != nil {
		return fmt.Errorf("supersede predictions: %w", err)
	}

	queries, err := json.Marshal(p.SearchQueries)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO predictions (id, match_id, agent_id, predicted_winner, predicted_team_name,
	confidence, reasoning, prediction_window, is_latest, search_queries, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		p.ID, p.MatchID, p.AgentID, string(p.PredictedSide), p.PredictedName,
		p.Confidence, p.Reasoning, string(p.Window), string(queries),
		p.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}

	if log != nil {
		if err := insertLog(ctx, tx, log); err != nil {
			return fmt.Errorf("insert log: %w", err)
		}
	}

	return tx.Commit()
}

// InsertFailureLog records a terminal orchestration failure. No prediction
// row is created or modified.
func (s *Store) InsertFailureLog(ctx context.Context, log *arena.PredictionLog) error {
	return insertLog(ctx, s.db, log)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLog(ctx context.Context, db execer, l *arena.PredictionLog) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO prediction_logs (id, prediction_id, agent_id, match_id, raw_prompt, raw_response,
	error_message, tokens_used, cost_usd, latency_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, nullStr(l.PredictionID), l.AgentID, l.MatchID, nullStr(l.RawPrompt), nullStr(l.RawResponse),
		nullStr(l.ErrorMessage), l.TokensUsed, l.CostUSD, l.LatencyMs,
		l.CreatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// PredictionFilter narrows ListPredictions.
type PredictionFilter struct {
	MatchID       string
	AgentID       string
	Window        arena.Window
	LatestOnly    bool
	UnsettledOnly bool
	SettledOnly   bool
}

// ListPredictions returns predictions in chronological order.
func (s *Store) ListPredictions(ctx context.Context, f PredictionFilter) ([]*arena.Prediction, error) {
	query := predictionSelect + ` WHERE 1=1`
	var args []any
	if f.MatchID != "" {
		query += " AND match_id = ?"
		args = append(args, f.MatchID)
	}
	if f.AgentID != "" {
		query += " AND agent_id = ?"
		args = append(args, f.AgentID)
	}
	if f.Window != "" {
		query += " AND prediction_window = ?"
		args = append(args, string(f.Window))
	}
	if f.LatestOnly {
		query += " AND is_latest = 1"
	}
	if f.UnsettledOnly {
		query += " AND is_correct IS NULL"
	}
	if f.SettledOnly {
		query += " AND is_correct IS NOT NULL"
	}
	query += " ORDER BY created_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*arena.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// HasPrediction reports whether a prediction exists for the given
// (match, agent, window) tuple. Used by the sweep for idempotency.
func (s *Store) HasPrediction(ctx context.Context, matchID, agentID string, window arena.Window) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM predictions WHERE match_id = ? AND agent_id = ? AND prediction_window = ?`,
		matchID, agentID, string(window)).Scan(&n)
	return n > 0, err
}

// CountSuperseded returns how many of an agent's predictions were later
// replaced by a newer pick.
func (s *Store) CountSuperseded(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM predictions WHERE agent_id = ? AND is_latest = 0`, agentID).Scan(&n)
	return n, err
}

// Settle writes the settlement fields on one prediction. The null is_correct
// guard makes repeated settlement of the same row a no-op.
func (s *Store) Settle(ctx context.Context, predictionID string, isCorrect bool, points int, pnl, brier float64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE predictions SET is_correct = ?, points_awarded = ?, pnl = ?, brier_score = ?
WHERE id = ? AND is_correct IS NULL`,
		boolInt(isCorrect), points, pnl, brier, predictionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Void clears the settlement fields on one prediction, leaving it excluded
// from every agent's record. Applied to all latest rows of an abandoned
// match, including rows that were previously settled.
func (s *Store) Void(ctx context.Context, predictionID string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE predictions SET is_correct = NULL, points_awarded = 0, pnl = 0, brier_score = NULL
WHERE id = ?`, predictionID)
	return err
}

// --- scanning helpers ---

const matchSelect = `SELECT id, match_number, stage, COALESCE(group_name,''), team_a, team_b, venue,
	scheduled_at, status, winner, COALESCE(winner_team_name,''), COALESCE(result_summary,''),
	COALESCE(playing_xi_a,''), COALESCE(playing_xi_b,''), xi_announced_at,
	COALESCE(toss_winner,''), COALESCE(toss_decision,''), COALESCE(espn_id,'')
	FROM matches`

const predictionSelect = `SELECT id, match_id, agent_id, predicted_winner, predicted_team_name,
	confidence, COALESCE(reasoning,''), prediction_window, is_latest, search_queries,
	is_correct, points_awarded, pnl, brier_score, created_at
	FROM predictions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*arena.Agent, error) {
	var a arena.Agent
	var provider string
	var active int
	err := row.Scan(&a.ID, &a.DisplayName, &provider, &a.ModelID, &a.Slug, &a.Color, &a.AvatarURL, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Provider = arena.Provider(provider)
	a.IsActive = active != 0
	return &a, nil
}

func scanMatch(row rowScanner) (*arena.Match, error) {
	var m arena.Match
	var scheduledAt, status string
	var winner, xiAnnounced sql.NullString
	err := row.Scan(&m.ID, &m.MatchNumber, &m.Stage, &m.GroupName, &m.TeamA, &m.TeamB, &m.Venue,
		&scheduledAt, &status, &winner, &m.WinnerName, &m.ResultSummary,
		&m.PlayingXIA, &m.PlayingXIB, &xiAnnounced, &m.TossWinner, &m.TossDecision, &m.ESPNID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Status = arena.MatchStatus(status)
	if t, err := time.Parse(time.RFC3339, scheduledAt); err == nil {
		m.ScheduledAt = t
	}
	if winner.Valid && winner.String != "" {
		side := arena.Side(winner.String)
		m.Winner = &side
	}
	if xiAnnounced.Valid && xiAnnounced.String != "" {
		if t, err := time.Parse(time.RFC3339, xiAnnounced.String); err == nil {
			m.XIAnnouncedAt = &t
		}
	}
	return &m, nil
}

func scanPrediction(row rowScanner) (*arena.Prediction, error) {
	var p arena.Prediction
	var side, window, createdAt string
	var latest int
	var queries sql.NullString
	var isCorrect, points sql.NullInt64
	var pnl, brier sql.NullFloat64
	err := row.Scan(&p.ID, &p.MatchID, &p.AgentID, &side, &p.PredictedName,
		&p.Confidence, &p.Reasoning, &window, &latest, &queries,
		&isCorrect, &points, &pnl, &brier, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.PredictedSide = arena.Side(side)
	p.Window = arena.Window(window)
	p.IsLatest = latest != 0
	if queries.Valid && queries.String != "" {
		_ = json.Unmarshal([]byte(queries.String), &p.SearchQueries)
	}
	if isCorrect.Valid {
		v := isCorrect.Int64 != 0
		p.IsCorrect = &v
	}
	if points.Valid {
		v := int(points.Int64)
		p.PointsAwarded = &v
	}
	if pnl.Valid {
		p.PnL = &pnl.Float64
	}
	if brier.Valid {
		p.BrierScore = &brier.Float64
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		p.CreatedAt = t
	}
	return &p, nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func sideStr(s *arena.Side) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
