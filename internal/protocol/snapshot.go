package protocol

// WorldSnapshot is the state surfaced to the decision layer after each event.
// Field names match the live game bridge.
type WorldSnapshot struct {
	GameState    string           `json:"gameState"`
	RunID        string           `json:"runId"`
	RunDuration  float64          `json:"runDuration"`
	DragonAlive  bool             `json:"dragonAlive"`
	DragonHealth float64          `json:"dragonHealth"`
	WeatherState string           `json:"weatherState"`
	TimeOfDay    int              `json:"timeOfDay"`
	Players      []PlayerSnapshot `json:"players"`

	// Harness extensions; the live bridge omits them.
	Phase    string  `json:"phase,omitempty"`
	Fracture float64 `json:"fracture,omitempty"`
}

type PlayerSnapshot struct {
	Username      string   `json:"username"`
	Health        float64  `json:"health"`
	MaxHealth     float64  `json:"maxHealth"`
	FoodLevel     int      `json:"foodLevel"`
	Dimension     string   `json:"dimension"`
	Location      Location `json:"location"`
	DiamondCount  int      `json:"diamondCount"`
	ArmorTier     int      `json:"armorTier"`
	MobKills      int      `json:"mobKills"`
	Aura          float64  `json:"aura"`
	EnteredNether bool     `json:"enteredNether"`
	EnteredEnd    bool     `json:"enteredEnd"`

	Alive      bool    `json:"alive"`
	Fear       float64 `json:"fear,omitempty"`
	TarotCard  string  `json:"tarotCard,omitempty"`
	TarotPower float64 `json:"tarotStrength,omitempty"`
}

type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Player returns the snapshot for username.
func (s WorldSnapshot) Player(username string) (PlayerSnapshot, bool) {
	for _, p := range s.Players {
		if p.Username == username {
			return p, true
		}
	}
	return PlayerSnapshot{}, false
}
