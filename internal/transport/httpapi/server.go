// Package httpapi serves stored runs, scores and scenarios over HTTP and
// can start new runs on demand.
package httpapi

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"eris.ai/internal/persistence/indexdb"
	"eris.ai/internal/runner"
	"eris.ai/internal/scenario"
	"eris.ai/internal/scoring"
	"eris.ai/internal/sim/trace"
)

// Store is the read side of the run index.
type Store interface {
	ListRuns(ctx context.Context, f indexdb.RunFilter) ([]indexdb.RunRow, error)
	GetRun(ctx context.Context, runID string) (indexdb.RunRow, error)
	Result(ctx context.Context, runID string) (*runner.Result, error)
	Diffs(ctx context.Context, runID string) ([]trace.Diff, error)
	Leaderboard(ctx context.Context, scenario string, limit int) ([]scoring.Score, error)
}

// RunFunc executes one scenario. *runner.Runner.Run satisfies it.
type RunFunc func(ctx context.Context, s *scenario.Scenario) *runner.Result

type Config struct {
	ScenarioDir string
	// RunTimeout bounds POST /v1/runs.
	RunTimeout time.Duration
	Logger     *log.Logger
}

type Handler struct {
	store   Store
	run     RunFunc
	observe http.HandlerFunc
	cfg     Config
	loader  scenario.Loader
	log     *log.Logger
}

// New builds the handler. run and observe may be nil, which disables
// POST /v1/runs and /v1/observe.
func New(cfg Config, store Store, run RunFunc, observe http.HandlerFunc) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &Handler{
		store:   store,
		run:     run,
		observe: observe,
		cfg:     cfg,
		loader:  scenario.Loader{Logger: logger},
		log:     logger,
	}
}

// Router returns the gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/v1")
	{
		v1.GET("/runs", h.ListRuns)
		v1.POST("/runs", h.StartRun)
		v1.GET("/runs/:id", h.GetRun)
		v1.GET("/runs/:id/diffs", h.GetDiffs)
		v1.GET("/leaderboard", h.Leaderboard)
		v1.GET("/scenarios", h.ListScenarios)
		if h.observe != nil {
			v1.GET("/observe", gin.WrapF(h.observe))
		}
	}
	return r
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.Printf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func (h *Handler) ListRuns(c *gin.Context) {
	runs, err := h.store.ListRuns(c.Request.Context(), indexdb.RunFilter{
		Scenario: c.Query("scenario"),
		Status:   c.Query("status"),
		Limit:    queryInt(c, "limit", 100),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns the full result of a finished run and the summary row of
// one still in progress.
func (h *Handler) GetRun(c *gin.Context) {
	id := c.Param("id")
	res, err := h.store.Result(c.Request.Context(), id)
	if err == nil {
		c.JSON(http.StatusOK, res)
		return
	}
	if !errors.Is(err, indexdb.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	row, err := h.store.GetRun(c.Request.Context(), id)
	if errors.Is(err, indexdb.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *Handler) GetDiffs(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.GetRun(c.Request.Context(), id); err != nil {
		if errors.Is(err, indexdb.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	diffs, err := h.store.Diffs(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	digest, err := trace.DigestDiffs(diffs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": id, "digest": digest, "diffs": diffs})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	scores, err := h.store.Leaderboard(c.Request.Context(), c.Query("scenario"), queryInt(c, "limit", 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scores": scores})
}

type scenarioInfo struct {
	Name        string              `json:"name"`
	Path        string              `json:"path"`
	Description string              `json:"description,omitempty"`
	Difficulty  scenario.Difficulty `json:"difficulty,omitempty"`
	Tags        []string            `json:"tags,omitempty"`
	Party       []string            `json:"party"`
	Events      int                 `json:"events"`
	Warnings    []string            `json:"warnings,omitempty"`
}

func (h *Handler) ListScenarios(c *gin.Context) {
	res, err := h.loadScenarios()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]scenarioInfo, 0, len(res.Scenarios))
	for _, s := range res.Scenarios {
		out = append(out, scenarioInfo{
			Name:        s.Name(),
			Path:        s.Path,
			Description: s.Metadata.Description,
			Difficulty:  s.Metadata.Difficulty,
			Tags:        s.Metadata.Tags,
			Party:       s.PartyNames(),
			Events:      len(s.Events),
			Warnings:    s.Warnings,
		})
	}
	invalid := map[string]string{}
	for path, err := range res.Errors {
		invalid[path] = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": out, "invalid": invalid})
}

// StartRun runs a scenario from the scenario directory to completion and
// returns its result.
func (h *Handler) StartRun(c *gin.Context) {
	if h.run == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "runs are disabled"})
		return
	}
	var req struct {
		Scenario string `json:"scenario" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scenario is required"})
		return
	}
	res, err := h.loadScenarios()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var found *scenario.Scenario
	for _, s := range res.Scenarios {
		if s.Name() == req.Scenario {
			found = s
			break
		}
	}
	if found == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown scenario " + strconv.Quote(req.Scenario)})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RunTimeout)
	defer cancel()
	c.JSON(http.StatusOK, h.run(ctx, found))
}

func (h *Handler) loadScenarios() (scenario.DirResult, error) {
	if h.cfg.ScenarioDir == "" {
		return scenario.DirResult{Errors: map[string]error{}}, nil
	}
	return h.loader.LoadDir(h.cfg.ScenarioDir)
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
