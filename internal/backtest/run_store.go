package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ResultStore persists runs with their trade logs and equity curves in
// a single sqlite file.
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("result store root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			strategy TEXT NOT NULL,
			profile TEXT,
			status TEXT NOT NULL,
			message TEXT,
			config_json TEXT NOT NULL,
			stats_json TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS run_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			quantity INTEGER NOT NULL,
			pnl REAL NOT NULL DEFAULT 0,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS run_equity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			cash REAL NOT NULL DEFAULT 0,
			shares INTEGER NOT NULL DEFAULT 0,
			mark REAL NOT NULL DEFAULT 0,
			equity REAL NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_trades ON run_trades(run_id, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_run_equity ON run_equity(run_id, ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun writes the initial run row.
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := run.MarshalConfig()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, symbol, strategy, profile, status, message, config_json, stats_json, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL)`,
		run.ID, run.Symbol, run.Strategy, run.Profile, run.Status, run.Message, string(cfgJSON), now, now)
	return err
}

// UpdateRunSummary transitions a run's status and stores its stats.
func (s *ResultStore) UpdateRunSummary(ctx context.Context, id, status string, stats Stats, message string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == RunStatusDone || status == RunStatusFailed {
		completed = now
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET status=?, stats_json=?, message=?, updated_at=?, completed_at=COALESCE(?, completed_at)
		WHERE id=?`, status, string(statsJSON), message, now, completed, id)
	return err
}

// InsertTrades appends a run's fills.
func (s *ResultStore) InsertTrades(ctx context.Context, runID string, trades []Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_trades (run_id, ts, side, price, quantity, pnl)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, runID, t.Date.UnixMilli(), string(t.Side), t.Price, t.Quantity, t.PnL); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertEquity appends a run's equity curve.
func (s *ResultStore) InsertEquity(ctx context.Context, runID string, curve []EquityPoint) error {
	if len(curve) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_equity (run_id, ts, cash, shares, mark, equity) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, p := range curve {
		if _, err := stmt.ExecContext(ctx, runID, p.Date.UnixMilli(), p.Cash, p.Shares, p.Mark, p.Equity); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetRun loads one run by id.
func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, symbol, strategy, COALESCE(profile,''), status, COALESCE(message,''),
		       config_json, COALESCE(stats_json,''), created_at, updated_at, COALESCE(completed_at,0)
		FROM runs WHERE id=?`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, strategy, COALESCE(profile,''), status, COALESCE(message,''),
		       config_json, COALESCE(stats_json,''), created_at, updated_at, COALESCE(completed_at,0)
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var cfgJSON, statsJSON string
	var created, updated, completed int64
	if err := row.Scan(&run.ID, &run.Symbol, &run.Strategy, &run.Profile, &run.Status, &run.Message,
		&cfgJSON, &statsJSON, &created, &updated, &completed); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return Run{}, fmt.Errorf("decode run config: %w", err)
	}
	if statsJSON != "" {
		if err := json.Unmarshal([]byte(statsJSON), &run.Stats); err != nil {
			return Run{}, fmt.Errorf("decode run stats: %w", err)
		}
	}
	run.CreatedAt = time.UnixMilli(created).UTC()
	run.UpdatedAt = time.UnixMilli(updated).UTC()
	if completed > 0 {
		run.CompletedAt = time.UnixMilli(completed).UTC()
	}
	return run, nil
}

// ListTrades returns a run's fills in execution order.
func (s *ResultStore) ListTrades(ctx context.Context, runID string, limit int) ([]Trade, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, side, price, quantity, pnl FROM run_trades
		WHERE run_id=? ORDER BY ts ASC, id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Trade
	for rows.Next() {
		var t Trade
		var ts int64
		var side string
		if err := rows.Scan(&ts, &side, &t.Price, &t.Quantity, &t.PnL); err != nil {
			return nil, err
		}
		t.Date = time.UnixMilli(ts).UTC()
		t.Side = Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity returns a run's equity curve in time order.
func (s *ResultStore) ListEquity(ctx context.Context, runID string, limit int) ([]EquityPoint, error) {
	if limit <= 0 || limit > 20000 {
		limit = 5000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, cash, shares, mark, equity FROM run_equity
		WHERE run_id=? ORDER BY ts ASC, id ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EquityPoint
	for rows.Next() {
		var p EquityPoint
		var ts int64
		if err := rows.Scan(&ts, &p.Cash, &p.Shares, &p.Mark, &p.Equity); err != nil {
			return nil, err
		}
		p.Date = time.UnixMilli(ts).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}
