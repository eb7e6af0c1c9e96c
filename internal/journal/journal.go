// Package journal 把评估结果和咨询决策落到 SQLite，供复盘查询。
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/betbot/flowsense/internal/advisory"
	"github.com/betbot/flowsense/internal/domain"
)

// Journal 决策日志（SQLite, WAL, 单连接）
type Journal struct {
	db *sql.DB
}

// Open 打开（必要时创建）日志库
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	j := &Journal{db: db}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS signals (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  direction TEXT NOT NULL,
  price INTEGER NOT NULL,
  size INTEGER NOT NULL,
  order_count INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS evaluations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  direction TEXT NOT NULL,
  score REAL NOT NULL,
  threshold REAL NOT NULL,
  decided INTEGER NOT NULL,
  price INTEGER NOT NULL,
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS advisories (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  signal_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  action TEXT NOT NULL,
  confidence REAL NOT NULL,
  reasoning TEXT NOT NULL,
  latency_ms INTEGER NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_created ON signals(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_advisories_signal ON advisories(signal_id);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: migrate: %w", err)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordSignal 记录一条探测信号
func (j *Journal) RecordSignal(ctx context.Context, sig *domain.Signal) error {
	if j == nil || sig == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO signals (id, type, direction, price, size, order_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, string(sig.Type), string(sig.Direction), sig.Price, sig.Size, sig.OrderCount,
		sig.Time.UTC().Format(time.RFC3339Nano))
	return err
}

// RecordEvaluation 记录一次共振评估
func (j *Journal) RecordEvaluation(ctx context.Context, res *domain.ConfluenceResult) error {
	if j == nil || res == nil {
		return nil
	}
	decided := 0
	if res.Decided {
		decided = 1
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO evaluations (direction, score, threshold, decided, price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(res.Direction), res.Score, res.Threshold, decided, res.Price,
		res.Time.UTC().Format(time.RFC3339Nano))
	return err
}

// RecordAdvisory 记录一次咨询决策
func (j *Journal) RecordAdvisory(ctx context.Context, signalID string, d *advisory.Decision) error {
	if j == nil || d == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO advisories (signal_id, provider, action, confidence, reasoning, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		signalID, d.Provider, d.Action, d.Confidence, d.Reasoning, d.LatencyMs,
		time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

// SignalRow 查询返回的信号行
type SignalRow struct {
	ID        string
	Type      string
	Direction string
	Price     int64
	Size      int64
	CreatedAt time.Time
}

// EvaluationRow 查询返回的评估行
type EvaluationRow struct {
	Direction string
	Score     float64
	Threshold float64
	Decided   bool
	Price     int64
	CreatedAt time.Time
}

// RecentEvaluations 按插入顺序倒序取最近 n 条评估
func (j *Journal) RecentEvaluations(ctx context.Context, n int) ([]EvaluationRow, error) {
	if j == nil {
		return nil, errors.New("journal: not opened")
	}
	if n <= 0 {
		n = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT direction, score, threshold, decided, price, created_at
		 FROM evaluations ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EvaluationRow
	for rows.Next() {
		var r EvaluationRow
		var decided int
		var ts string
		if err := rows.Scan(&r.Direction, &r.Score, &r.Threshold, &decided, &r.Price, &ts); err != nil {
			return nil, err
		}
		r.Decided = decided != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentSignals 按时间倒序取最近 n 条信号
func (j *Journal) RecentSignals(ctx context.Context, n int) ([]SignalRow, error) {
	if j == nil {
		return nil, errors.New("journal: not opened")
	}
	if n <= 0 {
		n = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, type, direction, price, size, created_at
		 FROM signals ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SignalRow
	for rows.Next() {
		var r SignalRow
		var ts string
		if err := rows.Scan(&r.ID, &r.Type, &r.Direction, &r.Price, &r.Size, &ts); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}
