// Package runner drives a scenario through the synthetic world, consulting
// the decision layer after every event.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"eris.ai/internal/decision"
	"eris.ai/internal/protocol"
	"eris.ai/internal/scenario"
	"eris.ai/internal/sim/trace"
	"eris.ai/internal/sim/world"
	"eris.ai/internal/synthetic"
)

const tracerName = "eris.ai/internal/runner"

type Config struct {
	// DecisionTimeout bounds each decision call; a late answer forfeits the
	// event's intervention.
	DecisionTimeout time.Duration
	// MemorySize is how many past steps the decision layer is shown.
	MemorySize int
	// DecayEvery applies World.Decay(DecayFactor) after every N events.
	// Zero disables decay.
	DecayEvery  int
	DecayFactor float64

	MaxRespawnOverrides int
	DamageFear          float64

	Logger  *log.Logger
	Verbose bool
}

func DefaultConfig() Config {
	return Config{
		DecisionTimeout:     5 * time.Second,
		MemorySize:          10,
		DecayFactor:         0.9,
		MaxRespawnOverrides: 1,
		DamageFear:          2,
	}
}

// DeciderFactory builds a fresh decider for each run.
type DeciderFactory func(s *scenario.Scenario) decision.Decider

// ScriptedDeciders replays each scenario's own interventions.
func ScriptedDeciders(s *scenario.Scenario) decision.Decider {
	calls := map[int][]protocol.ToolCall{}
	for i := range s.Events {
		if cs := s.InterventionsAfter(i); len(cs) > 0 {
			calls[i] = cs
		}
	}
	return decision.NewScripted(calls)
}

type Runner struct {
	cfg        Config
	newDecider DeciderFactory
	observers  []Observer
	logger     *log.Logger
	tracer     oteltrace.Tracer
	newRunID   func() string
}

func New(cfg Config, deciders DeciderFactory, observers ...Observer) *Runner {
	def := DefaultConfig()
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = def.DecisionTimeout
	}
	if cfg.MemorySize <= 0 {
		cfg.MemorySize = def.MemorySize
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor > 1 {
		cfg.DecayFactor = def.DecayFactor
	}
	if deciders == nil {
		deciders = ScriptedDeciders
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{
		cfg:        cfg,
		newDecider: deciders,
		observers:  observers,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		newRunID:   uuid.NewString,
	}
}

// WithRunIDs replaces the run id generator.
func (r *Runner) WithRunIDs(next func() string) *Runner {
	r.newRunID = next
	return r
}

// RunFile loads path and runs it. Load failures come back as a failed result.
func (r *Runner) RunFile(ctx context.Context, path string) *Result {
	l := scenario.Loader{Logger: r.logger}
	s, err := l.Load(path)
	if err != nil {
		res := &Result{RunID: r.newRunID(), Scenario: path, StartedAt: now(), Error: err.Error()}
		r.logger.Printf("run %s: load %s: %v", res.RunID, path, err)
		r.finish(res)
		return res
	}
	return r.Run(ctx, s)
}

// Run executes s to completion and never returns nil. Errors and panics
// inside the loop produce a result with Success=false.
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (res *Result) {
	res = &Result{RunID: r.newRunID(), StartedAt: now()}
	if s == nil {
		res.Error = "scenario is required"
		r.finish(res)
		return res
	}
	res.Scenario = s.Name()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "scenario.run", oteltrace.WithAttributes(
		attribute.String("eris.run_id", res.RunID),
		attribute.String("eris.scenario", s.Name()),
		attribute.Int("eris.events", len(s.Events)),
	))
	defer span.End()

	var w *world.World
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", p)
		}
		res.Duration = time.Since(start)
		if w != nil {
			w.Finish()
			res.fill(w.Trace())
		}
		if res.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, res.Error)
		}
		span.SetAttributes(
			attribute.Bool("eris.victory", res.Victory),
			attribute.Int("eris.tool_calls", res.TotalToolCalls),
			attribute.String("eris.final_phase", res.FinalPhase.String()),
		)
		r.logger.Printf("run %s (%s): success=%v victory=%v deaths=%d phase=%s fracture=%.1f in %s",
			res.RunID, res.Scenario, res.Success, res.Victory, len(res.Deaths), res.FinalPhase, res.FinalFracture, res.Duration)
		r.finish(res)
	}()

	var err error
	w, err = world.New(world.Config{
		RunID:               res.RunID,
		Scenario:            s.Name(),
		Seed:                s.Metadata.Seed,
		MaxRespawnOverrides: r.cfg.MaxRespawnOverrides,
		DamageFear:          r.cfg.DamageFear,
		Logger:              r.logger,
		Verbose:             r.cfg.Verbose,
	}, s.Definitions())
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Seed = w.Seed()
	for _, o := range r.observers {
		o.RunStarted(RunInfo{
			RunID:     res.RunID,
			Scenario:  s.Name(),
			Party:     w.Party(),
			Seed:      w.Seed(),
			Events:    len(s.Events),
			StartedAt: res.StartedAt,
		})
	}

	if err := r.loop(ctx, s, w, res); err != nil {
		span.RecordError(err)
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}

func (r *Runner) loop(ctx context.Context, s *scenario.Scenario, w *world.World, res *Result) error {
	decider := r.newDecider(s)
	proc := synthetic.NewProcessor(s.Events)
	client := synthetic.NewClient(w, r.logger)
	var memory []decision.Memory

	for proc.HasMore() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}
		step, _ := proc.Next()
		stepCtx, span := r.tracer.Start(ctx, "scenario.event", oteltrace.WithAttributes(
			attribute.Int("eris.step", step.Index),
			attribute.String("eris.event", string(step.Event.Kind())),
		))

		r.publish(res.RunID, w.ApplyEvent(step.Event))
		r.logf("run %s step %d/%d: %s %s", res.RunID, step.Index+1, proc.Len(), step.Event.Kind(), step.Event.Actor())

		req := decision.Request{
			RunID:    res.RunID,
			Scenario: s.Name(),
			Step:     step.Index,
			Envelope: step.Envelope,
			Snapshot: w.Snapshot(),
			Memory:   append([]decision.Memory(nil), memory...),
		}
		dec, err := r.decide(stepCtx, decider, req)
		switch {
		case errors.Is(err, decision.ErrTimeout):
			res.Timeouts++
			r.logger.Printf("run %s step %d: decision timed out, no intervention", res.RunID, step.Index)
			dec = protocol.Decision{}
		case err != nil:
			span.RecordError(err)
			span.End()
			return fmt.Errorf("step %d (%s): decide: %w", step.Index, step.Event.Kind(), err)
		}
		for _, o := range r.observers {
			o.Decided(res.RunID, step.Index, dec)
		}

		if dec.Intervene && len(dec.ToolCalls) > 0 {
			res.Interventions++
			for _, call := range dec.ToolCalls {
				cr, d := client.Execute(stepCtx, call)
				if cr.Code == protocol.ErrTimeout {
					break
				}
				r.publish(res.RunID, d)
				r.logf("run %s step %d: tool %s success=%v %s", res.RunID, step.Index, call.Name, cr.Success, cr.Reason)
			}
		}

		memory = append(memory, decision.Memory{Envelope: step.Envelope, Decision: dec})
		if len(memory) > r.cfg.MemorySize {
			memory = memory[len(memory)-r.cfg.MemorySize:]
		}
		if r.cfg.DecayEvery > 0 && (step.Index+1)%r.cfg.DecayEvery == 0 {
			w.Decay(r.cfg.DecayFactor)
		}
		span.End()

		if w.Done() {
			r.logf("run %s: world reached %s after step %d", res.RunID, w.State(), step.Index)
			break
		}
	}
	return nil
}

type decideResult struct {
	d   protocol.Decision
	err error
}

// decide runs the decider under the decision timeout. A decider that ignores
// its context is abandoned when the timeout fires.
func (r *Runner) decide(ctx context.Context, decider decision.Decider, req decision.Request) (protocol.Decision, error) {
	dctx, cancel := context.WithTimeout(ctx, r.cfg.DecisionTimeout)
	defer cancel()

	done := make(chan decideResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- decideResult{err: fmt.Errorf("decider panic: %v", p)}
			}
		}()
		d, err := decider.Decide(dctx, req)
		done <- decideResult{d: d, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return protocol.Decision{}, fmt.Errorf("%w: %v", decision.ErrTimeout, out.err)
		}
		return out.d, out.err
	case <-dctx.Done():
		if ctx.Err() != nil {
			return protocol.Decision{}, ctx.Err()
		}
		return protocol.Decision{}, decision.ErrTimeout
	}
}

func (r *Runner) publish(runID string, d trace.Diff) {
	for _, o := range r.observers {
		o.DiffRecorded(runID, d)
	}
}

func (r *Runner) finish(res *Result) {
	for _, o := range r.observers {
		o.RunFinished(res)
	}
}

func (r *Runner) logf(format string, args ...any) {
	if !r.cfg.Verbose {
		return
	}
	r.logger.Printf(format, args...)
}

func now() time.Time { return time.Now().UTC().Round(0) }
