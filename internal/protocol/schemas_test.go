package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"eris.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Round-trip through JSON so the validator sees generic values.
	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(doc); err != nil {
			t.Fatalf("validate: %v\n%s", err, b)
		}
	}

	snapshotSchema := compile("snapshot.schema.json")
	envelopeSchema := compile("envelope.schema.json")
	diffSchema := compile("diff_msg.schema.json")

	validate(snapshotSchema, protocol.WorldSnapshot{
		GameState:    "ACTIVE",
		RunID:        "run_1",
		RunDuration:  15,
		DragonAlive:  true,
		DragonHealth: 200,
		WeatherState: "clear",
		TimeOfDay:    1000,
		Phase:        "rising",
		Fracture:     55.5,
		Players: []protocol.PlayerSnapshot{{
			Username:  "Alice",
			Health:    12,
			MaxHealth: 20,
			FoodLevel: 20,
			Dimension: "nether",
			Location:  protocol.Location{X: 10, Y: 64, Z: -3},
			ArmorTier: 4,
			Aura:      50,
			Alive:     true,
			Fear:      16,
			TarotCard: "FOOL",
		}},
	})

	validate(envelopeSchema, protocol.EventEnvelope{
		EventType: protocol.EventResourceMilestone,
		Data:      map[string]any{"player": "Alice", "item": "diamond", "count": 3},
		Priority:  protocol.PriorityMedium,
		Timestamp: 5,
	})

	validate(diffSchema, protocol.DiffMsg{
		Type:            protocol.TypeDiff,
		ProtocolVersion: protocol.Version,
		RunID:           "run_1",
		Seq:             1,
		Diff: json.RawMessage(`{"seq":1,"source_type":"event","source_name":"damage","player":"Alice","t":5,
			"changes":[{"field":"health","player":"Alice","old":20,"new":12}],
			"fracture_before":0,"fracture_after":20,"old_phase":"normal","new_phase":"normal"}`),
	})
}

func TestSchemas_RejectBadSnapshot(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "snapshot.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var doc any
	_ = json.Unmarshal([]byte(`{
	  "gameState":"RUNNING","runId":"r","runDuration":0,"dragonAlive":true,"dragonHealth":200,
	  "weatherState":"clear","timeOfDay":0,"players":[]
	}`), &doc)
	if err := s.Validate(doc); err == nil {
		t.Fatalf("expected unknown game state to be rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, _ := json.Marshal(protocol.RunEndMsg{Type: protocol.TypeRunEnd, ProtocolVersion: protocol.Version, RunID: "r"})
	m, err := protocol.DecodeBase(b)
	if err != nil || m.Type != protocol.TypeRunEnd || m.ProtocolVersion != protocol.Version {
		t.Fatalf("decode: %+v %v", m, err)
	}
}
