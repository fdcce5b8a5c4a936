package protocol

// Event types a live game connection emits.
const (
	EventAdvancement       = "advancement_made"
	EventPlayerDamaged     = "player_damaged"
	EventResourceMilestone = "resource_milestone"
	EventItemCollected     = "item_collected"
	EventItemLost          = "item_lost"
	EventDimensionChange   = "dimension_change"
	EventPlayerChat        = "player_chat"
	EventPlayerDeath       = "player_death"
	EventDragonKilled      = "dragon_killed"
	EventMobKilled         = "mob_killed"
	EventStructureFound    = "structure_discovered"
	EventHealthUpdate      = "health_update"
)

// Priorities used by the decision layer to rank envelopes.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// EventEnvelope is one game event as delivered to the decision layer.
type EventEnvelope struct {
	EventType string         `json:"eventType"`
	Data      map[string]any `json:"data"`
	Priority  string         `json:"priority,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// Player returns data["player"] when present.
func (e EventEnvelope) Player() string {
	s, _ := e.Data["player"].(string)
	return s
}
