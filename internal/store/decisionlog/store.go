// Package decisionlog persists every ensemble round (one row per source outcome
// plus one consensus row) so a trade can be traced back to the votes behind it.
package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/pkg/text"

	_ "modernc.org/sqlite"
)

const (
	StageSource    = "source"
	StageConsensus = "consensus"

	defaultLimit = 100
	maxLimit     = 500
	maxRawBytes  = 8 << 10
)

// Store 管理决策日志，方便后续排查。
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	ownsDB bool
}

// Record 代表一条日志记录。
type Record struct {
	ID           int64   `json:"id"`
	TraceID      string  `json:"trace_id"`
	Timestamp    int64   `json:"ts"`
	Symbol       string  `json:"symbol"`
	Stage        string  `json:"stage"`
	SourceID     string  `json:"source_id"`
	Seq          int     `json:"seq"`
	Action       string  `json:"action"`
	Confidence   float64 `json:"confidence"`
	StopFraction float64 `json:"stop_pct"`
	TakeFraction float64 `json:"take_pct"`
	Reason       string  `json:"reason,omitempty"`
	ElapsedMs    int64   `json:"elapsed_ms"`
	Error        string  `json:"error,omitempty"`
	ErrorKind    string  `json:"error_kind,omitempty"`
	RawOutput    string  `json:"raw_output,omitempty"`
	Breakdown    string  `json:"breakdown,omitempty"`
}

// Query 用于筛选日志。
type Query struct {
	Symbol   string
	SourceID string
	Stage    string
	Limit    int
}

// Open 初始化 SQLite 存储。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// FromDB 复用外部连接，调用方负责关闭。
func FromDB(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("external db cannot be nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	if !s.ownsDB {
		s.db = nil
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS decision_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trace_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			stage TEXT NOT NULL,
			source_id TEXT NOT NULL,
			seq INTEGER NOT NULL DEFAULT 0,
			action TEXT,
			confidence REAL DEFAULT 0,
			stop_pct REAL DEFAULT 0,
			take_pct REAL DEFAULT 0,
			reason TEXT,
			elapsed_ms INTEGER DEFAULT 0,
			error TEXT,
			error_kind TEXT,
			raw_output TEXT,
			breakdown TEXT,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_trace ON decision_logs(trace_id);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_symbol_ts ON decision_logs(symbol, ts DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_decision_logs_source ON decision_logs(source_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AfterRound 在一个事务里写入整轮投票。
func (s *Store) AfterRound(ctx context.Context, round decision.Round) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("decision log store is closed")
	}
	ts := round.StartedAt.UnixMilli()
	if round.StartedAt.IsZero() {
		ts = time.Now().UnixMilli()
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO decision_logs
			(trace_id, ts, symbol, stage, source_id, seq, action, confidence, stop_pct, take_pct,
			 reason, elapsed_ms, error, error_kind, raw_output, breakdown, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, out := range round.Outcomes {
		rec := Record{
			TraceID:   round.TraceID,
			Timestamp: ts,
			Symbol:    round.Symbol,
			Stage:     StageSource,
			SourceID:  out.SourceID,
			Seq:       out.Seq,
			ElapsedMs: out.Elapsed.Milliseconds(),
		}
		if out.OK() {
			fillDecision(&rec, out.Decision)
		} else {
			rec.Error = out.Err.Error()
			rec.ErrorKind, rec.RawOutput = describeError(out.Err)
		}
		if err := insert(ctx, stmt, rec, now); err != nil {
			return err
		}
	}
	summary := Record{
		TraceID:   round.TraceID,
		Timestamp: ts,
		Symbol:    round.Symbol,
		Stage:     StageConsensus,
		SourceID:  decision.EnsembleSourceID,
		Seq:       len(round.Outcomes),
		Action:    string(decision.Hold),
		Breakdown: encodeJSON(round.Breakdown),
	}
	if round.HasConsensus {
		fillDecision(&summary, round.Consensus)
	}
	if err := insert(ctx, stmt, summary, now); err != nil {
		return err
	}
	return tx.Commit()
}

func insert(ctx context.Context, stmt *sql.Stmt, rec Record, now int64) error {
	_, err := stmt.ExecContext(ctx,
		rec.TraceID, rec.Timestamp, rec.Symbol, rec.Stage, rec.SourceID, rec.Seq,
		rec.Action, rec.Confidence, rec.StopFraction, rec.TakeFraction, rec.Reason,
		rec.ElapsedMs, rec.Error, rec.ErrorKind, rec.RawOutput, rec.Breakdown, now,
	)
	return err
}

func fillDecision(rec *Record, d decision.Decision) {
	rec.Action = string(d.Action)
	rec.Confidence = d.Confidence
	rec.StopFraction = d.StopFraction
	rec.TakeFraction = d.TakeFraction
	rec.Reason = d.Reason
}

func describeError(err error) (kind, raw string) {
	var de *decision.DecodeError
	if errors.As(err, &de) {
		return "decode", text.Truncate(de.Raw, maxRawBytes)
	}
	return "source", ""
}

// Recent 返回最新的日志，按时间倒序。
func (s *Store) Recent(ctx context.Context, q Query) ([]Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store is closed")
	}
	limit := q.Limit
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	var (
		where []string
		args  []any
	)
	if sym := strings.ToUpper(strings.TrimSpace(q.Symbol)); sym != "" {
		where = append(where, "symbol = ?")
		args = append(args, sym)
	}
	if src := strings.TrimSpace(q.SourceID); src != "" {
		where = append(where, "source_id = ?")
		args = append(args, src)
	}
	if stage := strings.TrimSpace(q.Stage); stage != "" {
		where = append(where, "stage = ?")
		args = append(args, stage)
	}
	var sb strings.Builder
	sb.WriteString(selectColumns)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY ts DESC, id DESC LIMIT ?")
	args = append(args, limit)
	return s.query(ctx, db, sb.String(), args...)
}

// ByTrace 返回同一轮的全部记录，按到达顺序。
func (s *Store) ByTrace(ctx context.Context, traceID string) ([]Record, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("decision log store is closed")
	}
	return s.query(ctx, db, selectColumns+" WHERE trace_id = ? ORDER BY seq ASC, id ASC", strings.TrimSpace(traceID))
}

const selectColumns = `SELECT id, trace_id, ts, symbol, stage, source_id, seq, action, confidence,
	stop_pct, take_pct, reason, elapsed_ms, error, error_kind, raw_output, breakdown FROM decision_logs`

func (s *Store) query(ctx context.Context, db *sql.DB, query string, args ...any) ([]Record, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		var rec Record
		var action, reason, errText, kind, raw, breakdown sql.NullString
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.Timestamp, &rec.Symbol, &rec.Stage,
			&rec.SourceID, &rec.Seq, &action, &rec.Confidence, &rec.StopFraction,
			&rec.TakeFraction, &reason, &rec.ElapsedMs, &errText, &kind, &raw, &breakdown); err != nil {
			return nil, err
		}
		rec.Action = action.String
		rec.Reason = reason.String
		rec.Error = errText.String
		rec.ErrorKind = kind.String
		rec.RawOutput = raw.String
		rec.Breakdown = breakdown.String
		list = append(list, rec)
	}
	return list, rows.Err()
}

func encodeJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
