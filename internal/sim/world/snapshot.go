package world

import "eris.ai/internal/protocol"

// Snapshot renders the state handed to the decision layer.
func (w *World) Snapshot() protocol.WorldSnapshot {
	s := protocol.WorldSnapshot{
		GameState:    w.state.String(),
		RunID:        w.cfg.RunID,
		RunDuration:  w.clock,
		DragonAlive:  w.dragon.Alive,
		DragonHealth: w.dragon.Health,
		WeatherState: w.weather,
		TimeOfDay:    w.timeOfDay,
		Players:      make([]protocol.PlayerSnapshot, 0, len(w.order)),
		Phase:        w.phase.String(),
		Fracture:     w.Fracture(),
	}
	for _, name := range w.order {
		p := w.players[name]
		prof := w.tarot[name]
		s.Players = append(s.Players, protocol.PlayerSnapshot{
			Username:      p.Name,
			Health:        p.Health,
			MaxHealth:     p.MaxHealth,
			FoodLevel:     p.Food,
			Dimension:     string(p.Dimension),
			Location:      protocol.Location{X: p.Pos.X, Y: p.Pos.Y, Z: p.Pos.Z},
			DiamondCount:  p.DiamondCount(),
			ArmorTier:     p.ArmorTier(),
			MobKills:      p.MobKills,
			Aura:          p.Aura,
			EnteredNether: p.EnteredNether,
			EnteredEnd:    p.EnteredEnd,
			Alive:         p.Alive,
			Fear:          p.Fear,
			TarotCard:     prof.Dominant().String(),
			TarotPower:    prof.Strength(),
		})
	}
	return s
}
