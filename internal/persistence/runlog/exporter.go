package runlog

import (
	"io"
	"log"
	"path/filepath"
	"sync"

	"eris.ai/internal/protocol"
	"eris.ai/internal/runner"
	"eris.ai/internal/sim/trace"
)

// Ext is the file extension of an exported run.
const Ext = ".jsonl.zst"

// Exporter writes every observed run to <dir>/<run_id>.jsonl.zst. It is safe
// to share across a batch.
type Exporter struct {
	dir    string
	logger *log.Logger

	mu   sync.Mutex
	open map[string]*JSONLZstdWriter
	errs int
}

var _ runner.Observer = (*Exporter)(nil)

func NewExporter(dir string, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Exporter{dir: dir, logger: logger, open: map[string]*JSONLZstdWriter{}}
}

func (e *Exporter) Dir() string { return e.dir }

// Path is where the run with runID is (or will be) exported.
func (e *Exporter) Path(runID string) string {
	return filepath.Join(e.dir, runID+Ext)
}

// Errors counts write failures since creation.
func (e *Exporter) Errors() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.errs
}

func (e *Exporter) RunStarted(info runner.RunInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLocked(info)
}

func (e *Exporter) DiffRecorded(runID string, d trace.Diff) {
	e.write(runID, Record{Kind: KindDiff, Diff: &d})
}

func (e *Exporter) Decided(runID string, step int, d protocol.Decision) {
	e.write(runID, Record{Kind: KindDecision, Step: step, Decision: &d})
}

// RunFinished writes the result line and closes the file. Runs that failed
// before starting get a header synthesized from the result.
func (e *Exporter) RunFinished(res *runner.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.open[res.RunID]
	if w == nil {
		w = e.startLocked(runner.RunInfo{
			RunID:     res.RunID,
			Scenario:  res.Scenario,
			Seed:      res.Seed,
			StartedAt: res.StartedAt,
		})
		if w == nil {
			return
		}
	}
	delete(e.open, res.RunID)

	cp := *res
	cp.Trace = nil
	if err := w.Write(Record{Kind: KindResult, Result: &cp}); err != nil {
		e.failLocked(res.RunID, err)
	}
	if err := w.Close(); err != nil {
		e.failLocked(res.RunID, err)
		return
	}
	e.logger.Printf("exported run %s to %s", res.RunID, w.Path())
}

// Close flushes runs that never finished.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var first error
	for id, w := range e.open {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		delete(e.open, id)
	}
	return first
}

func (e *Exporter) startLocked(info runner.RunInfo) *JSONLZstdWriter {
	if old := e.open[info.RunID]; old != nil {
		_ = old.Close()
	}
	w, err := Create(e.Path(info.RunID))
	if err != nil {
		e.failLocked(info.RunID, err)
		return nil
	}
	if err := w.Write(Record{Kind: KindHeader, Run: &info}); err != nil {
		_ = w.Close()
		e.failLocked(info.RunID, err)
		return nil
	}
	e.open[info.RunID] = w
	return w
}

func (e *Exporter) write(runID string, rec Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w := e.open[runID]
	if w == nil {
		return
	}
	if err := w.Write(rec); err != nil {
		e.failLocked(runID, err)
	}
}

func (e *Exporter) failLocked(runID string, err error) {
	e.errs++
	e.logger.Printf("export run %s: %v", runID, err)
}
