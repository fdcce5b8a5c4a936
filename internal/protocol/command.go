package protocol

// ToolCall is one command issued by the decision layer.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Target returns the player argument if any.
func (c ToolCall) Target() string {
	s, _ := c.Args["player"].(string)
	return s
}

// CommandResult mirrors the live command channel's acknowledgement.
type CommandResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	// Seq is the trace sequence number of the diff the command produced.
	Seq int `json:"seq"`
}

// Decision is the decision layer's answer for one event.
type Decision struct {
	Speak     bool       `json:"speak"`
	Message   string     `json:"message,omitempty"`
	Intervene bool       `json:"intervene"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}
