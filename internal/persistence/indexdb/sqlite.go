// Package indexdb keeps a queryable SQLite index of runs, their diffs and
// their scores. Exported run logs remain the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"eris.ai/internal/protocol"
	"eris.ai/internal/runner"
	"eris.ai/internal/sim/trace"
)

var ErrNotFound = errors.New("run not found")

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
	written atomic.Uint64
}

var _ runner.Observer = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqRunStart reqKind = iota + 1
	reqDiff
	reqRunEnd
	reqFlush
)

type req struct {
	kind reqKind

	info   runner.RunInfo
	runID  string
	diff   trace.Diff
	result RunRow
	done   chan struct{}
}

// Stats reports the writer queue.
type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DroppedTotal  uint64 `json:"dropped_total"`
	WrittenTotal  uint64 `json:"written_total"`
}

// OpenSQLite opens (creating if needed) the index at path and starts its
// writer goroutine.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer connection plus a few readers for the HTTP API.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL lets the API read while the writer holds a transaction.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			seed INTEGER NOT NULL,
			party TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			success INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			victory INTEGER NOT NULL DEFAULT 0,
			deaths TEXT NOT NULL DEFAULT '[]',
			total_events INTEGER NOT NULL DEFAULT 0,
			total_tool_calls INTEGER NOT NULL DEFAULT 0,
			interventions INTEGER NOT NULL DEFAULT 0,
			timeouts INTEGER NOT NULL DEFAULT 0,
			final_phase TEXT NOT NULL DEFAULT 'normal',
			final_fracture REAL NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			result_json TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_scenario_started ON runs(scenario, started_at);`,
		`CREATE TABLE IF NOT EXISTS diffs (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			source_type TEXT NOT NULL,
			source_name TEXT NOT NULL,
			player TEXT,
			t REAL NOT NULL,
			changes INTEGER NOT NULL,
			reason TEXT,
			new_phase TEXT NOT NULL,
			fracture_after REAL NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_diffs_source ON diffs(source_type, source_name);`,
		`CREATE TABLE IF NOT EXISTS scores (
			run_id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			outcome TEXT NOT NULL,
			overall REAL NOT NULL,
			victory_pts REAL NOT NULL,
			survival_pts REAL NOT NULL,
			efficiency_pts REAL NOT NULL,
			containment_pts REAL NOT NULL,
			rescue_pts REAL NOT NULL,
			score_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_scenario_overall ON scores(scenario, overall);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DroppedTotal:  s.dropped.Load(),
		WrittenTotal:  s.written.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		// Drop if the indexer falls behind; run logs remain the source of truth.
		s.dropped.Add(1)
	}
}

func (s *SQLiteIndex) RunStarted(info runner.RunInfo) {
	s.enqueue(req{kind: reqRunStart, info: info})
}

func (s *SQLiteIndex) DiffRecorded(runID string, d trace.Diff) {
	s.enqueue(req{kind: reqDiff, runID: runID, diff: d})
}

func (s *SQLiteIndex) Decided(string, int, protocol.Decision) {}

func (s *SQLiteIndex) RunFinished(res *runner.Result) {
	row, err := newRunRow(res)
	if err != nil {
		s.dropped.Add(1)
		return
	}
	s.enqueue(req{kind: reqRunEnd, result: row})
}

// Flush blocks until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertRun, _ := s.db.Prepare(`INSERT INTO runs(run_id,scenario,seed,party,status,started_at) VALUES(?,?,?,?,?,?)
		ON CONFLICT(run_id) DO UPDATE SET scenario=excluded.scenario, seed=excluded.seed, party=excluded.party`)
	insertDiff, _ := s.db.Prepare(`INSERT OR REPLACE INTO diffs(run_id,seq,source_type,source_name,player,t,changes,reason,new_phase,fracture_after,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	finishRun, _ := s.db.Prepare(`INSERT INTO runs(run_id,scenario,seed,party,status,started_at,success,error,victory,deaths,total_events,total_tool_calls,interventions,timeouts,final_phase,final_fracture,duration_ms,result_json)
		VALUES(?,?,?,'[]',?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(run_id) DO UPDATE SET status=excluded.status, success=excluded.success, error=excluded.error,
			victory=excluded.victory, deaths=excluded.deaths, total_events=excluded.total_events,
			total_tool_calls=excluded.total_tool_calls, interventions=excluded.interventions, timeouts=excluded.timeouts,
			final_phase=excluded.final_phase, final_fracture=excluded.final_fracture, duration_ms=excluded.duration_ms,
			result_json=excluded.result_json`)
	insertScore, _ := s.db.Prepare(`INSERT OR REPLACE INTO scores(run_id,scenario,outcome,overall,victory_pts,survival_pts,efficiency_pts,containment_pts,rescue_pts,score_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, insertDiff, finishRun, insertScore} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		s.written.Add(1)
		return true
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRunStart:
			party, _ := json.Marshal(nonNil(r.info.Party))
			exec(insertRun, r.info.RunID, r.info.Scenario, r.info.Seed, string(party), StatusRunning, formatTime(r.info.StartedAt))

		case reqDiff:
			d := r.diff
			raw, _ := json.Marshal(d)
			exec(insertDiff, r.runID, d.Seq, string(d.SourceType), d.SourceName, nullable(d.Player), d.T,
				len(d.Changes), nullable(d.Reason), d.NewPhase.String(), d.FractureAfter, string(raw))

		case reqRunEnd:
			row := r.result
			if !exec(finishRun, row.RunID, row.Scenario, row.Seed, StatusFinished, formatTime(row.StartedAt),
				row.Success, nullable(row.Error), row.Victory, row.deathsJSON, row.TotalEvents, row.TotalToolCalls,
				row.Interventions, row.Timeouts, row.FinalPhase, row.FinalFracture, row.DurationMS, row.resultJSON) {
				continue
			}
			b := row.score.Breakdown
			exec(insertScore, row.RunID, row.Scenario, string(row.score.Outcome), row.score.Overall,
				b.Victory, b.Survival, b.Efficiency, b.Containment, b.Rescue, row.scoreJSON)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
