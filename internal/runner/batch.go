package runner

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"eris.ai/internal/scenario"
	"eris.ai/internal/scoring"
)

// BatchSummary aggregates a batch of results.
type BatchSummary struct {
	Runs        int             `json:"runs"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Victories   int             `json:"victories"`
	MeanScore   float64         `json:"mean_score"`
	Outcomes    map[string]int  `json:"outcomes"`
	Leaderboard []scoring.Score `json:"leaderboard"`
}

// RunBatch runs every scenario in its own world with at most parallel runs at
// once. Results keep the input order; one failing scenario never stops the
// others.
func (r *Runner) RunBatch(ctx context.Context, scenarios []*scenario.Scenario, parallel int) []*Result {
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(scenarios))
	var g errgroup.Group
	g.SetLimit(parallel)
	for i, s := range scenarios {
		g.Go(func() error {
			results[i] = r.Run(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func Summarize(results []*Result) BatchSummary {
	sum := BatchSummary{Outcomes: map[string]int{}}
	scores := make([]scoring.Score, 0, len(results))
	total := 0.0
	for _, res := range results {
		if res == nil {
			continue
		}
		sum.Runs++
		if res.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
		if res.Victory {
			sum.Victories++
		}
		if res.Trace != nil {
			sum.Outcomes[string(res.Score.Outcome)]++
			scores = append(scores, res.Score)
			total += res.Score.Overall
		}
	}
	if len(scores) > 0 {
		sum.MeanScore = total / float64(len(scores))
	}
	sum.Leaderboard = scoring.Leaderboard(scores)
	return sum
}
