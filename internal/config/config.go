// Package config loads harness settings: built-in defaults, then an optional
// YAML file, then ERIS_* environment variables, then command-line flags.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DeciderScripted = "scripted"
	DeciderRules    = "rules"
	DeciderOpenAI   = "openai"
	DeciderNoop     = "noop"
)

type Config struct {
	ScenarioDir string `yaml:"scenario_dir" env:"ERIS_SCENARIO_DIR"`
	// DataDir holds exported runs (runs/) and the index (index.db).
	DataDir  string `yaml:"data_dir" env:"ERIS_DATA_DIR"`
	Parallel int    `yaml:"parallel" env:"ERIS_PARALLEL"`
	Verbose  bool   `yaml:"verbose" env:"ERIS_VERBOSE"`

	Runner    RunnerConfig    `yaml:"runner" envPrefix:"ERIS_"`
	Decider   DeciderConfig   `yaml:"decider" envPrefix:"ERIS_DECIDER_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"ERIS_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"ERIS_OTEL_"`
}

type RunnerConfig struct {
	DecisionTimeout     time.Duration `yaml:"decision_timeout" env:"DECISION_TIMEOUT"`
	MemorySize          int           `yaml:"memory_size" env:"MEMORY_SIZE"`
	DecayEvery          int           `yaml:"decay_every" env:"DECAY_EVERY"`
	DecayFactor         float64       `yaml:"decay_factor" env:"DECAY_FACTOR"`
	MaxRespawnOverrides int           `yaml:"max_respawn_overrides" env:"MAX_RESPAWN_OVERRIDES"`
	DamageFear          float64       `yaml:"damage_fear" env:"DAMAGE_FEAR"`
}

type DeciderConfig struct {
	Kind string `yaml:"kind" env:"KIND"`

	ProtectAt   float64 `yaml:"protect_at" env:"PROTECT_AT"`
	HealAt      float64 `yaml:"heal_at" env:"HEAL_AT"`
	CalmSteps   int     `yaml:"calm_steps" env:"CALM_STEPS"`
	EscalateMob string  `yaml:"escalate_mob" env:"ESCALATE_MOB"`

	OpenAIKey     string  `yaml:"-" env:"OPENAI_API_KEY"`
	OpenAIBaseURL string  `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	OpenAIModel   string  `yaml:"openai_model" env:"OPENAI_MODEL"`
	Temperature   float32 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens     int     `yaml:"max_tokens" env:"MAX_TOKENS"`
}

type ServerConfig struct {
	Addr                 string        `yaml:"addr" env:"HTTP_ADDR"`
	AllowRemoteObservers bool          `yaml:"allow_remote_observers" env:"ALLOW_REMOTE_OBSERVERS"`
	RunTimeout           time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
}

// TelemetryConfig is read by telemetry.Setup; tracing stays off while
// Endpoint is empty.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

func Defaults() Config {
	return Config{
		ScenarioDir: "scenarios",
		DataDir:     "data",
		Parallel:    4,
		Runner: RunnerConfig{
			DecisionTimeout:     5 * time.Second,
			MemorySize:          10,
			DecayFactor:         0.9,
			MaxRespawnOverrides: 1,
			DamageFear:          2,
		},
		Decider: DeciderConfig{
			Kind:        DeciderScripted,
			ProtectAt:   6,
			HealAt:      10,
			CalmSteps:   5,
			EscalateMob: "zombie",
			OpenAIModel: "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   512,
		},
		Server: ServerConfig{
			Addr:       "127.0.0.1:8080",
			RunTimeout: 5 * time.Minute,
		},
		Telemetry: TelemetryConfig{ServiceName: "eris-harness"},
	}
}

// Load layers the YAML file at path (optional) and the environment over the
// defaults. Flags are applied afterwards with RegisterFlags.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RegisterFlags binds the common flags to cfg, using its current values as
// defaults so flags override the file and the environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ScenarioDir, "scenarios", c.ScenarioDir, "scenario directory")
	fs.StringVar(&c.DataDir, "data", c.DataDir, "directory for exported runs and the index")
	fs.IntVar(&c.Parallel, "parallel", c.Parallel, "scenarios run concurrently in batch mode")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "log every step")
	fs.StringVar(&c.Decider.Kind, "decider", c.Decider.Kind, "decision layer: scripted, rules, openai or noop")
	fs.DurationVar(&c.Runner.DecisionTimeout, "decision-timeout", c.Runner.DecisionTimeout, "per-event decision timeout")
	fs.IntVar(&c.Runner.DecayEvery, "decay-every", c.Runner.DecayEvery, "decay tension after every N events (0 disables)")
	fs.StringVar(&c.Server.Addr, "addr", c.Server.Addr, "HTTP listen address")
}

// Normalize fills zero values left by the file or environment.
func (c *Config) Normalize() {
	def := Defaults()
	c.Decider.Kind = strings.ToLower(strings.TrimSpace(c.Decider.Kind))
	if c.Decider.Kind == "" {
		c.Decider.Kind = def.Decider.Kind
	}
	if c.Parallel <= 0 {
		c.Parallel = 1
	}
	if c.Runner.DecisionTimeout <= 0 {
		c.Runner.DecisionTimeout = def.Runner.DecisionTimeout
	}
	if c.Runner.MemorySize <= 0 {
		c.Runner.MemorySize = def.Runner.MemorySize
	}
	if c.Runner.DecayFactor <= 0 {
		c.Runner.DecayFactor = def.Runner.DecayFactor
	}
	if c.Decider.OpenAIModel == "" {
		c.Decider.OpenAIModel = def.Decider.OpenAIModel
	}
	if c.Server.RunTimeout <= 0 {
		c.Server.RunTimeout = def.Server.RunTimeout
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = def.Telemetry.ServiceName
	}
}

func (c Config) Validate() error {
	switch c.Decider.Kind {
	case DeciderScripted, DeciderRules, DeciderOpenAI, DeciderNoop:
	default:
		return fmt.Errorf("decider.kind: unknown decider %q", c.Decider.Kind)
	}
	if c.Decider.Kind == DeciderOpenAI && c.Decider.OpenAIKey == "" {
		return fmt.Errorf("decider.kind openai requires ERIS_DECIDER_OPENAI_API_KEY")
	}
	if c.Runner.DecayFactor > 1 {
		return fmt.Errorf("runner.decay_factor must be in (0,1], got %v", c.Runner.DecayFactor)
	}
	if c.Runner.DecayEvery < 0 {
		return fmt.Errorf("runner.decay_every must not be negative")
	}
	if c.Decider.HealAt < c.Decider.ProtectAt {
		return fmt.Errorf("decider.heal_at (%v) must be at least protect_at (%v)", c.Decider.HealAt, c.Decider.ProtectAt)
	}
	return nil
}

// RunsDir is where exported runs are written.
func (c Config) RunsDir() string { return filepath.Join(c.DataDir, "runs") }

// IndexPath is the SQLite index file.
func (c Config) IndexPath() string { return filepath.Join(c.DataDir, "index.db") }
