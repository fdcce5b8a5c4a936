package world

import "eris.ai/internal/protocol"

type GameState int

const (
	Idle GameState = iota
	Active
	Ending
	Ended
)

var gameStateNames = []string{"IDLE", "ACTIVE", "ENDING", "ENDED"}

func (s GameState) String() string {
	if s < 0 || int(s) >= len(gameStateNames) {
		return "UNKNOWN"
	}
	return gameStateNames[s]
}

const DragonMaxHealth = 200.0

type Dragon struct {
	Alive  bool
	Health float64
	Killer string
}

// SpawnedMob tracks a group spawned by a tool call. It is never removed; an
// AliveCount of zero means the group is gone.
type SpawnedMob struct {
	MobType       string
	Target        string
	Count         int
	AliveCount    int
	SpawnedByEris bool
	SpawnedAt     float64
}

// ActiveEffect is a potion-style effect on one player.
type ActiveEffect struct {
	Player           string
	EffectType       string
	Amplifier        int
	Duration         float64
	RemainingSeconds float64
	AppliedByEris    bool
}

func effectKey(player, effect string) string { return player + ":" + effect }

// ToolRecord is one entry of the tool history.
type ToolRecord struct {
	Call   protocol.ToolCall
	T      float64
	Seq    int
	Reason string
}
