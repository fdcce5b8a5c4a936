package config

import (
	"log"

	"eris.ai/internal/decision"
	"eris.ai/internal/runner"
	"eris.ai/internal/scenario"
)

// RunnerConfig converts the runner section for runner.New.
func (c Config) RunnerConfig(logger *log.Logger) runner.Config {
	return runner.Config{
		DecisionTimeout:     c.Runner.DecisionTimeout,
		MemorySize:          c.Runner.MemorySize,
		DecayEvery:          c.Runner.DecayEvery,
		DecayFactor:         c.Runner.DecayFactor,
		MaxRespawnOverrides: c.Runner.MaxRespawnOverrides,
		DamageFear:          c.Runner.DamageFear,
		Logger:              logger,
		Verbose:             c.Verbose,
	}
}

// Deciders builds the decider factory selected by decider.kind.
func (c Config) Deciders() (runner.DeciderFactory, error) {
	d := c.Decider
	switch d.Kind {
	case DeciderRules:
		rc := decision.RulesConfig{ProtectAt: d.ProtectAt, HealAt: d.HealAt, CalmSteps: d.CalmSteps, EscalateMob: d.EscalateMob}
		return func(*scenario.Scenario) decision.Decider { return decision.NewRules(rc) }, nil
	case DeciderOpenAI:
		oa, err := decision.NewOpenAI(decision.OpenAIConfig{
			APIKey:      d.OpenAIKey,
			BaseURL:     d.OpenAIBaseURL,
			Model:       d.OpenAIModel,
			Temperature: d.Temperature,
			MaxTokens:   d.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		return func(*scenario.Scenario) decision.Decider { return oa }, nil
	case DeciderNoop:
		return func(*scenario.Scenario) decision.Decider { return decision.Noop{} }, nil
	default:
		return runner.ScriptedDeciders, nil
	}
}
