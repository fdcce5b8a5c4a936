package protocol

import "encoding/json"

// HELLO (server -> viewer)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id,omitempty"`
}

// SUBSCRIBE (viewer -> server). Optional; RunID narrows the stream to one
// run and an empty RunID restores the full stream. The server answers with
// HELLO carrying the new filter.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RunID           string `json:"run_id,omitempty"`
}

// RUN_START (server -> viewer)
type RunStartMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	RunID           string   `json:"run_id"`
	Scenario        string   `json:"scenario"`
	Party           []string `json:"party"`
	Seed            int64    `json:"seed"`
}

// DIFF (server -> viewer). Diff carries the recorded diff as raw JSON so the
// stream does not depend on the simulation packages.
type DiffMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	RunID           string          `json:"run_id"`
	Seq             int             `json:"seq"`
	Diff            json.RawMessage `json:"diff"`
}

// RUN_END (server -> viewer)
type RunEndMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RunID           string  `json:"run_id"`
	Success         bool    `json:"success"`
	Error           string  `json:"error,omitempty"`
	Victory         bool    `json:"victory"`
	Deaths          int     `json:"deaths"`
	FinalPhase      string  `json:"final_phase"`
	FinalFracture   float64 `json:"final_fracture"`
	Digest          string  `json:"digest"`
}
