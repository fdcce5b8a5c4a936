package world

import (
	"hash/fnv"
	"io"
	"log"
)

type Config struct {
	RunID    string
	Scenario string
	Seed     int64

	// MaxRespawnOverrides caps respawn_override per run. Negative disables respawns.
	MaxRespawnOverrides int
	// DamageFear is the fear added per point of damage taken.
	DamageFear float64
	// MaxMobsPerCall caps spawn_mob and spawn_tnt counts.
	MaxMobsPerCall int
	// DefaultEffectSeconds is used when apply_effect omits a duration.
	DefaultEffectSeconds float64

	Logger  *log.Logger
	Verbose bool
}

func (c *Config) applyDefaults() {
	if c.Scenario == "" {
		c.Scenario = "adhoc"
	}
	if c.Seed == 0 {
		c.Seed = SeedFor(c.Scenario)
	}
	if c.MaxRespawnOverrides == 0 {
		c.MaxRespawnOverrides = 1
	}
	if c.DamageFear <= 0 {
		c.DamageFear = 2
	}
	if c.MaxMobsPerCall <= 0 {
		c.MaxMobsPerCall = 10
	}
	if c.DefaultEffectSeconds <= 0 {
		c.DefaultEffectSeconds = 30
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
}

// SeedFor derives a stable seed from a scenario name.
func SeedFor(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	s := int64(h.Sum64() & 0x7fffffffffffffff)
	if s == 0 {
		s = 1
	}
	return s
}
