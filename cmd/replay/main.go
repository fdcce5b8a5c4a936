// Command replay re-runs an exported run log against its scenario and checks
// that the rebuilt world produces the same trace digest.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"eris.ai/internal/config"
	"eris.ai/internal/decision"
	"eris.ai/internal/persistence/runlog"
	"eris.ai/internal/runner"
	"eris.ai/internal/scenario"
	"eris.ai/internal/sim/trace"
)

func main() {
	os.Exit(replay(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func replay(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		runPath    = fs.String("run", "", "path to a .jsonl.zst run log")
		scenPath   = fs.String("scenario", "", "scenario file the run was recorded from")
		configPath = fs.String("config", os.Getenv("ERIS_CONFIG"), "YAML settings the run was recorded with")
		verbose    = fs.Bool("v", false, "log every replayed diff")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *runPath == "" || *scenPath == "" {
		fmt.Fprintln(errOut, "missing -run or -scenario")
		return 2
	}

	rec, err := runlog.ReadFile(*runPath)
	if err != nil {
		fmt.Fprintln(errOut, "read run:", err)
		return 1
	}
	s, err := scenario.Load(*scenPath)
	if err != nil {
		fmt.Fprintln(errOut, "load scenario:", err)
		return 1
	}
	if s.Name() != rec.Info.Scenario {
		fmt.Fprintf(errOut, "scenario mismatch: run=%s file=%s\n", rec.Info.Scenario, s.Name())
		return 1
	}
	s.Metadata.Seed = rec.Info.Seed

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(errOut, "config:", err)
		return 1
	}
	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(errOut, "[replay] ", log.LstdFlags|log.Lmicroseconds)
	}
	rcfg := cfg.RunnerConfig(logger)
	rcfg.Verbose = *verbose

	calls := rec.ToolCalls()
	r := runner.New(rcfg, func(*scenario.Scenario) decision.Decider {
		return decision.NewScripted(calls)
	})
	res := r.Run(ctx, s)
	if !res.Success {
		fmt.Fprintln(errOut, "replay failed:", res.Error)
		return 1
	}

	want := rec.Trace()
	fmt.Fprintf(out, "run %s scenario=%s seed=%d diffs=%d decisions=%d\n",
		rec.Info.RunID, rec.Info.Scenario, rec.Info.Seed, len(rec.Diffs), len(rec.Decisions))
	w, err := trace.DigestDiffs(want.Diffs())
	if err != nil {
		fmt.Fprintln(errOut, "recorded trace:", err)
		return 1
	}
	got, err := trace.DigestDiffs(res.Trace.Diffs())
	if err != nil {
		fmt.Fprintln(errOut, "replayed trace:", err)
		return 1
	}
	if got != w {
		fmt.Fprintf(errOut, "digest mismatch: recorded=%s replayed=%s\n", w, got)
		if n := firstDivergence(want.Diffs(), res.Trace.Diffs()); n >= 0 {
			fmt.Fprintf(errOut, "first divergence at diff %d\n", n)
		}
		return 1
	}
	fmt.Fprintln(out, "replay ok")
	return 0
}

// firstDivergence returns the index of the first diff that differs, or -1.
func firstDivergence(a, b []trace.Diff) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		da, errA := trace.DigestDiffs(a[i : i+1])
		db, errB := trace.DigestDiffs(b[i : i+1])
		if errA != nil || errB != nil || da != db {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}
