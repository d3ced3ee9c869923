package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"sequential-trader/internal/backtest"
)

// Run status values.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

var ErrRunNotFound = errors.New("run not found")

// Run is one stored backtest. Config and Summary are kept as raw JSON so the
// store does not depend on their shape.
type Run struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Config     json.RawMessage `json:"config,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// RunStore persists runs and their step records in SQLite. It is safe for
// concurrent use.
type RunStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	config TEXT,
	summary TEXT,
	created_at INTEGER NOT NULL,
	finished_at INTEGER
);
CREATE TABLE IF NOT EXISTS steps (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	idx INTEGER NOT NULL,
	ts INTEGER NOT NULL,
	action_type TEXT NOT NULL,
	market_id TEXT NOT NULL,
	success INTEGER NOT NULL,
	portfolio_value REAL NOT NULL,
	payload BLOB NOT NULL,
	PRIMARY KEY (run_id, idx)
);
`

// Open creates the database file (and its directory) if needed and applies
// the schema.
func Open(dbPath string) (*RunStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

// CreateRun stores a new running run and returns its id.
func (s *RunStore) CreateRun(ctx context.Context, name string, config any) (string, error) {
	cfg, err := json.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run config: %w", err)
	}
	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO runs (id, name, status, config, created_at) VALUES (?, ?, ?, ?, ?)",
		id, name, StatusRunning, string(cfg), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun records the final status and summary of a run.
func (s *RunStore) FinishRun(ctx context.Context, id, status string, summary any) error {
	sum, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, summary = ?, finished_at = ? WHERE id = ?",
		status, string(sum), time.Now().UTC().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// SaveStep stores one step record under runID. Re-saving an index replaces it.
func (s *RunStore) SaveStep(ctx context.Context, runID string, rec backtest.StepRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal step: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO steps (run_id, idx, ts, action_type, market_id, success, portfolio_value, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, idx) DO UPDATE SET ts=excluded.ts, action_type=excluded.action_type,
		 market_id=excluded.market_id, success=excluded.success,
		 portfolio_value=excluded.portfolio_value, payload=excluded.payload`,
		runID, rec.Index, rec.Timestamp.UTC().Unix(), string(rec.Action.Type), rec.Action.MarketID,
		rec.Success, rec.PortfolioValue, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert step %d: %w", rec.Index, err)
	}
	return nil
}

// Recorder streams a simulation's steps into the store.
func (s *RunStore) Recorder(runID string) backtest.Recorder {
	return backtest.RecorderFunc(func(rec backtest.StepRecord) error {
		return s.SaveStep(context.Background(), runID, rec)
	})
}

// Steps returns the stored records of a run in step order.
func (s *RunStore) Steps(ctx context.Context, runID string) ([]backtest.StepRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT idx, payload FROM steps WHERE run_id = ? ORDER BY idx ASC", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	out := []backtest.StepRecord{}
	for rows.Next() {
		var idx int
		var payload []byte
		if err := rows.Scan(&idx, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		var rec backtest.StepRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal step %d: %w", idx, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, status, config, summary, created_at, finished_at FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// ListRuns returns the newest runs first. limit <= 0 means no limit.
func (s *RunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, status, config, summary, created_at, finished_at FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r               Run
		config, summary sql.NullString
		created         int64
		finished        sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.Status, &config, &summary, &created, &finished); err != nil {
		return nil, err
	}
	if config.Valid && config.String != "" {
		r.Config = json.RawMessage(config.String)
	}
	if summary.Valid && summary.String != "" {
		r.Summary = json.RawMessage(summary.String)
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		r.FinishedAt = &t
	}
	return &r, nil
}
