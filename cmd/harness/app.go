package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"eris.ai/internal/config"
	"eris.ai/internal/persistence/indexdb"
	"eris.ai/internal/persistence/runlog"
	"eris.ai/internal/runner"
	"eris.ai/internal/scenario"
	"eris.ai/internal/telemetry"
	"eris.ai/internal/transport/httpapi"
	"eris.ai/internal/transport/observer"
)

const usage = `usage: harness <command> [flags] [args]

commands:
  run <file>...   run scenario files one after another
  batch [dir]     run every scenario in dir (default: scenario_dir) in parallel
  serve           serve the results API and the live diff stream

common flags (after the command):
  -config path    YAML settings (default: $ERIS_CONFIG)
`

type options struct {
	json     bool
	noExport bool
	noIndex  bool
}

// run is main without the process exit, so it can be tested.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(errOut, usage)
		return 2
	}
	cmd, args := args[0], args[1:]
	if cmd != "run" && cmd != "batch" && cmd != "serve" {
		fmt.Fprintf(errOut, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	path, args := splitConfigFlag(args, os.Getenv("ERIS_CONFIG"))
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(errOut, "config:", err)
		return 1
	}
	fs := flag.NewFlagSet("harness "+cmd, flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.String("config", path, "YAML settings")
	cfg.RegisterFlags(fs)
	var opts options
	fs.BoolVar(&opts.json, "json", false, "print results as JSON")
	fs.BoolVar(&opts.noExport, "no-export", false, "do not write run logs")
	fs.BoolVar(&opts.noIndex, "no-index", false, "do not update the SQLite index")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, "config:", err)
		return 2
	}

	logger := log.New(errOut, "[harness] ", log.LstdFlags|log.Lmicroseconds)
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Printf("telemetry disabled: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	h, err := newHarness(cfg, opts, logger)
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}
	defer h.close()

	switch cmd {
	case "run":
		return h.runFiles(ctx, fs.Args(), out)
	case "batch":
		dir := cfg.ScenarioDir
		if fs.NArg() > 0 {
			dir = fs.Arg(0)
		}
		return h.batch(ctx, dir, out)
	default:
		return h.serve(ctx)
	}
}

// splitConfigFlag pulls -config out of args so the file can be loaded before
// the remaining flags are bound to its values.
func splitConfigFlag(args []string, def string) (string, []string) {
	path := def
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-config" || a == "--config":
			if i+1 < len(args) {
				path = args[i+1]
				i++
			}
		case strings.HasPrefix(a, "-config=") || strings.HasPrefix(a, "--config="):
			path = a[strings.Index(a, "=")+1:]
		default:
			rest = append(rest, a)
		}
	}
	return path, rest
}

type harness struct {
	cfg    config.Config
	opts   options
	logger *log.Logger

	exporter *runlog.Exporter
	index    *indexdb.SQLiteIndex
	stream   *observer.Server
	runner   *runner.Runner
}

func newHarness(cfg config.Config, opts options, logger *log.Logger) (*harness, error) {
	h := &harness{cfg: cfg, opts: opts, logger: logger}
	deciders, err := cfg.Deciders()
	if err != nil {
		return nil, fmt.Errorf("decider: %w", err)
	}

	var observers []runner.Observer
	if !opts.noExport {
		h.exporter = runlog.NewExporter(cfg.RunsDir(), logger)
		observers = append(observers, h.exporter)
	}
	if !opts.noIndex {
		idx, err := indexdb.OpenSQLite(cfg.IndexPath())
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		h.index = idx
		observers = append(observers, idx)
	}
	h.stream = observer.NewServer(logger, cfg.Server.AllowRemoteObservers)
	observers = append(observers, h.stream)

	h.runner = runner.New(cfg.RunnerConfig(logger), deciders, observers...)
	return h, nil
}

func (h *harness) close() {
	if h.exporter != nil {
		if err := h.exporter.Close(); err != nil {
			h.logger.Printf("close exporter: %v", err)
		}
	}
	if h.index != nil {
		if err := h.index.Close(); err != nil {
			h.logger.Printf("close index: %v", err)
		}
	}
}

func (h *harness) runFiles(ctx context.Context, paths []string, out io.Writer) int {
	if len(paths) == 0 {
		h.logger.Printf("run: no scenario files given")
		return 2
	}
	results := make([]*runner.Result, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		results = append(results, h.runner.RunFile(ctx, p))
	}
	h.report(out, results, nil)
	return exitCode(results, nil)
}

func (h *harness) batch(ctx context.Context, dir string, out io.Writer) int {
	loader := scenario.Loader{Logger: h.logger}
	loaded, err := loader.LoadDir(dir)
	if err != nil {
		h.logger.Printf("batch: %v", err)
		return 1
	}
	if len(loaded.Scenarios) == 0 && loaded.OK() {
		h.logger.Printf("batch: no scenarios in %s", dir)
		return 1
	}
	h.logger.Printf("batch: %d scenarios from %s, parallel=%d", len(loaded.Scenarios), dir, h.cfg.Parallel)
	results := h.runner.RunBatch(ctx, loaded.Scenarios, h.cfg.Parallel)
	h.report(out, results, loaded.Errors)
	return exitCode(results, loaded.Errors)
}

func (h *harness) serve(ctx context.Context) int {
	if h.index == nil {
		h.logger.Printf("serve: the index is required")
		return 2
	}
	api := httpapi.New(httpapi.Config{
		ScenarioDir: h.cfg.ScenarioDir,
		RunTimeout:  h.cfg.Server.RunTimeout,
		Logger:      h.logger,
	}, h.index, h.runner.Run, h.stream.WSHandler())

	srv := &http.Server{
		Addr:              h.cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	h.logger.Printf("listening on %s", h.cfg.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Printf("ListenAndServe: %v", err)
		return 1
	}
	return 0
}

type report struct {
	Summary    runner.BatchSummary `json:"summary"`
	Results    []*runner.Result    `json:"results"`
	LoadErrors map[string]string   `json:"load_errors,omitempty"`
}

func (h *harness) report(out io.Writer, results []*runner.Result, loadErrs map[string]error) {
	sum := runner.Summarize(results)
	if h.opts.json {
		rep := report{Summary: sum, Results: results}
		if len(loadErrs) > 0 {
			rep.LoadErrors = map[string]string{}
			for p, err := range loadErrs {
				rep.LoadErrors[p] = err.Error()
			}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSCENARIO\tOK\tOUTCOME\tSCORE\tPHASE\tFRACTURE\tTOOLS\tDIGEST")
	for _, res := range results {
		digest := "-"
		if res.Trace != nil {
			if d := res.Trace.Digest(); len(d) >= 12 {
				digest = d[:12]
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%.1f\t%s\t%.1f\t%d\t%s\n",
			shortID(res.RunID), res.Scenario, res.Success, res.Score.Outcome, res.Score.Overall,
			res.FinalPhase, res.FinalFracture, res.TotalToolCalls, digest)
	}
	_ = tw.Flush()
	for _, res := range results {
		if res.Error != "" {
			fmt.Fprintf(out, "error %s (%s): %s\n", shortID(res.RunID), res.Scenario, res.Error)
		}
	}
	for p, err := range loadErrs {
		fmt.Fprintf(out, "invalid %s: %v\n", p, err)
	}
	fmt.Fprintf(out, "runs=%d ok=%d failed=%d victories=%d mean_score=%.1f\n",
		sum.Runs, sum.Succeeded, sum.Failed, sum.Victories, sum.MeanScore)
}

func exitCode(results []*runner.Result, loadErrs map[string]error) int {
	if len(loadErrs) > 0 {
		return 1
	}
	for _, res := range results {
		if !res.Success {
			return 1
		}
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
