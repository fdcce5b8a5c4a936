package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eris.ai/internal/runner"
	"eris.ai/internal/scoring"
	"eris.ai/internal/sim/trace"
)

const (
	StatusRunning  = "running"
	StatusFinished = "finished"
)

// RunRow is the summary of one indexed run.
type RunRow struct {
	RunID          string    `json:"run_id"`
	Scenario       string    `json:"scenario"`
	Seed           int64     `json:"seed"`
	Party          []string  `json:"party"`
	Status         string    `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	Victory        bool      `json:"victory"`
	Deaths         []string  `json:"deaths"`
	TotalEvents    int       `json:"total_events"`
	TotalToolCalls int       `json:"total_tool_calls"`
	Interventions  int       `json:"interventions"`
	Timeouts       int       `json:"decision_timeouts"`
	FinalPhase     string    `json:"final_phase"`
	FinalFracture  float64   `json:"final_fracture"`
	DurationMS     int64     `json:"duration_ms"`

	score      scoring.Score
	deathsJSON string
	resultJSON string
	scoreJSON  string
}

func newRunRow(res *runner.Result) (RunRow, error) {
	resultJSON, err := json.Marshal(res)
	if err != nil {
		return RunRow{}, err
	}
	scoreJSON, err := json.Marshal(res.Score)
	if err != nil {
		return RunRow{}, err
	}
	deaths, _ := json.Marshal(nonNil(res.Deaths))
	return RunRow{
		RunID:          res.RunID,
		Scenario:       res.Scenario,
		Seed:           res.Seed,
		StartedAt:      res.StartedAt,
		Success:        res.Success,
		Error:          res.Error,
		Victory:        res.Victory,
		Deaths:         nonNil(res.Deaths),
		TotalEvents:    res.TotalEvents,
		TotalToolCalls: res.TotalToolCalls,
		Interventions:  res.Interventions,
		Timeouts:       res.Timeouts,
		FinalPhase:     res.FinalPhase.String(),
		FinalFracture:  res.FinalFracture,
		DurationMS:     res.Duration.Milliseconds(),
		score:          res.Score,
		deathsJSON:     string(deaths),
		resultJSON:     string(resultJSON),
		scoreJSON:      string(scoreJSON),
	}, nil
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Scenario string
	Status   string
	Limit    int
}

const runColumns = `run_id,scenario,seed,party,status,started_at,success,COALESCE(error,''),victory,deaths,
	total_events,total_tool_calls,interventions,timeouts,final_phase,final_fracture,duration_ms`

// ListRuns returns runs newest first.
func (s *SQLiteIndex) ListRuns(ctx context.Context, f RunFilter) ([]RunRow, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 100
	}
	q := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any
	if f.Scenario != "" {
		q += ` AND scenario=?`
		args = append(args, f.Scenario)
	}
	if f.Status != "" {
		q += ` AND status=?`
		args = append(args, f.Status)
	}
	q += ` ORDER BY started_at DESC, run_id ASC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RunRow{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) GetRun(ctx context.Context, runID string) (RunRow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id=?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, ErrNotFound
	}
	return r, err
}

// Result returns the stored result of a finished run, trace included.
func (s *SQLiteIndex) Result(ctx context.Context, runID string) (*runner.Result, error) {
	var raw sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM runs WHERE run_id=?`, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res runner.Result
	if err := json.Unmarshal([]byte(raw.String), &res); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", runID, err)
	}
	return &res, nil
}

// Diffs returns the indexed diffs of a run in sequence order. It works for
// runs still in progress.
func (s *SQLiteIndex) Diffs(ctx context.Context, runID string) ([]trace.Diff, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM diffs WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []trace.Diff{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var d trace.Diff
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Leaderboard returns the best scores, optionally for one scenario.
func (s *SQLiteIndex) Leaderboard(ctx context.Context, scenario string, limit int) ([]scoring.Score, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	q := `SELECT score_json FROM scores`
	var args []any
	if scenario != "" {
		q += ` WHERE scenario=?`
		args = append(args, scenario)
	}
	q += ` ORDER BY overall DESC, run_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []scoring.Score{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var sc scoring.Score
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRow, error) {
	var (
		r       RunRow
		party   string
		started string
		deaths  string
	)
	if err := sc.Scan(&r.RunID, &r.Scenario, &r.Seed, &party, &r.Status, &started, &r.Success, &r.Error,
		&r.Victory, &deaths, &r.TotalEvents, &r.TotalToolCalls, &r.Interventions, &r.Timeouts,
		&r.FinalPhase, &r.FinalFracture, &r.DurationMS); err != nil {
		return RunRow{}, err
	}
	if err := json.Unmarshal([]byte(party), &r.Party); err != nil {
		return RunRow{}, fmt.Errorf("run %s party: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(deaths), &r.Deaths); err != nil {
		return RunRow{}, fmt.Errorf("run %s deaths: %w", r.RunID, err)
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	return r, nil
}
