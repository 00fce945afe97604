package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"amp-engine/internal/backtest"
	"amp-engine/internal/errors"
)

// SQLiteStore implements ResultStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Backtest runs
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		layer_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		start_at DATETIME,
		end_at DATETIME,
		initial_capital REAL NOT NULL,
		state TEXT NOT NULL,
		cancelled INTEGER DEFAULT 0,
		total_return REAL,
		sharpe REAL,
		max_drawdown REAL,
		win_rate REAL,
		trade_count INTEGER
	);

	-- Closed trades per run
	CREATE TABLE IF NOT EXISTS run_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		entry_time DATETIME NOT NULL,
		exit_time DATETIME NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity INTEGER NOT NULL,
		pnl REAL NOT NULL,
		pnl_percent REAL NOT NULL,
		reason TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- Equity and drawdown curves per run
	CREATE TABLE IF NOT EXISTS run_equity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		equity REAL NOT NULL,
		drawdown REAL NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	-- Risk-limit clips per run
	CREATE TABLE IF NOT EXISTS run_clips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		rule TEXT NOT NULL,
		original_qty INTEGER NOT NULL,
		clipped_qty INTEGER NOT NULL,
		detail TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_layer ON runs(layer_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_run_trades ON run_trades(run_id);
	CREATE INDEX IF NOT EXISTS idx_run_equity ON run_equity(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_run_clips ON run_clips(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists a run and its report in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.Result == nil {
		return fmt.Errorf("nil run record")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res := rec.Result
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, layer_id, created_at, start_at, end_at, initial_capital,
			state, cancelled, total_return, sharpe, max_drawdown, win_rate, trade_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.LayerID, rec.CreatedAt, rec.Start, rec.End, rec.InitialCapital,
		string(res.State), boolToInt(res.Cancelled),
		res.Summary.CumulativeReturn, res.Summary.Sharpe, res.Summary.MaxDrawdown,
		res.Summary.WinRate, len(res.Trades))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, trade := range res.Trades {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_trades (run_id, symbol, entry_time, exit_time,
				entry_price, exit_price, quantity, pnl, pnl_percent, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, trade.Symbol, trade.EntryTime, trade.ExitTime,
			trade.EntryPrice, trade.ExitPrice, trade.Quantity,
			trade.PnL, trade.PnLPercent, trade.Reason)
		if err != nil {
			return fmt.Errorf("failed to insert trade: %w", err)
		}
	}

	for i, pt := range res.EquityCurve {
		var dd float64
		if i < len(res.DrawdownCurve) {
			dd = res.DrawdownCurve[i].Drawdown
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_equity (run_id, timestamp, equity, drawdown)
			VALUES (?, ?, ?, ?)`,
			rec.ID, pt.Timestamp, pt.Equity, dd)
		if err != nil {
			return fmt.Errorf("failed to insert equity point: %w", err)
		}
	}

	for _, clip := range res.Clips {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_clips (run_id, timestamp, symbol, rule, original_qty, clipped_qty, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, clip.Timestamp, clip.Symbol, clip.Rule,
			clip.OriginalQty, clip.ClippedQty, clip.Detail)
		if err != nil {
			return fmt.Errorf("failed to insert clip: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun loads a stored run with its full report.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rec := &RunRecord{ID: id, Result: &backtest.Result{}}
	var state string
	var cancelled int
	err := s.db.QueryRowContext(ctx, `
		SELECT layer_id, created_at, start_at, end_at, initial_capital,
			state, cancelled, total_return, sharpe, max_drawdown, win_rate
		FROM runs WHERE id = ?`, id).Scan(
		&rec.LayerID, &rec.CreatedAt, &rec.Start, &rec.End, &rec.InitialCapital,
		&state, &cancelled,
		&rec.Result.Summary.CumulativeReturn, &rec.Result.Summary.Sharpe,
		&rec.Result.Summary.MaxDrawdown, &rec.Result.Summary.WinRate)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrDataNotFound, "run %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	rec.Result.State = backtest.State(state)
	rec.Result.Cancelled = cancelled != 0
	rec.Result.Summary.AmpID = rec.LayerID

	if err := s.loadTrades(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadCurves(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.loadClips(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) loadTrades(ctx context.Context, rec *RunRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, entry_time, exit_time, entry_price, exit_price,
			quantity, pnl, pnl_percent, reason
		FROM run_trades WHERE run_id = ? ORDER BY exit_time, id`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t backtest.Trade
		if err := rows.Scan(&t.Symbol, &t.EntryTime, &t.ExitTime, &t.EntryPrice,
			&t.ExitPrice, &t.Quantity, &t.PnL, &t.PnLPercent, &t.Reason); err != nil {
			return fmt.Errorf("failed to scan trade: %w", err)
		}
		rec.Result.Trades = append(rec.Result.Trades, t)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadCurves(ctx context.Context, rec *RunRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, equity, drawdown
		FROM run_equity WHERE run_id = ? ORDER BY timestamp, id`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query equity curve: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ts time.Time
		var equity, dd float64
		if err := rows.Scan(&ts, &equity, &dd); err != nil {
			return fmt.Errorf("failed to scan equity point: %w", err)
		}
		rec.Result.EquityCurve = append(rec.Result.EquityCurve,
			backtest.EquityPoint{Timestamp: ts, Equity: equity})
		rec.Result.DrawdownCurve = append(rec.Result.DrawdownCurve,
			backtest.DrawdownPoint{Timestamp: ts, Drawdown: dd})
	}
	return rows.Err()
}

func (s *SQLiteStore) loadClips(ctx context.Context, rec *RunRecord) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, symbol, rule, original_qty, clipped_qty, detail
		FROM run_clips WHERE run_id = ? ORDER BY timestamp, id`, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to query clips: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c backtest.ClipRecord
		if err := rows.Scan(&c.Timestamp, &c.Symbol, &c.Rule,
			&c.OriginalQty, &c.ClippedQty, &c.Detail); err != nil {
			return fmt.Errorf("failed to scan clip: %w", err)
		}
		rec.Result.Clips = append(rec.Result.Clips, c)
	}
	return rows.Err()
}

// ListRuns returns run summaries newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `
		SELECT id, layer_id, created_at, state, cancelled,
			total_return, sharpe, max_drawdown, win_rate, trade_count
		FROM runs`
	var args []interface{}
	if filter.LayerID != "" {
		query += " WHERE layer_id = ?"
		args = append(args, filter.LayerID)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		var state string
		var cancelled int
		if err := rows.Scan(&sum.ID, &sum.LayerID, &sum.CreatedAt, &state, &cancelled,
			&sum.TotalReturn, &sum.SharpeRatio, &sum.MaxDrawdown, &sum.WinRate,
			&sum.TradeCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		sum.State = backtest.State(state)
		sum.Cancelled = cancelled != 0
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its child rows.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"run_trades", "run_equity", "run_clips"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ResultStore = (*SQLiteStore)(nil)
