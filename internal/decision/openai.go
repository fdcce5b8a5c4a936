package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"eris.ai/internal/protocol"
	"eris.ai/internal/sim/catalogs"
)

const DefaultModel = "gpt-4o-mini"

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// OpenAI asks a chat model for a JSON decision. The model sees the event,
// the world snapshot and the short-term memory; tool names it invents are
// passed through and rejected by the world as unknown_tool.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
	system string
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), cfg: cfg, system: SystemPrompt()}, nil
}

// modelDecision is the JSON object the model must answer with.
type modelDecision struct {
	Speak     bool                `json:"speak"`
	Message   string              `json:"message"`
	ToolCalls []protocol.ToolCall `json:"tool_calls"`
}

func (o *OpenAI) Decide(ctx context.Context, req Request) (protocol.Decision, error) {
	user, err := UserPrompt(req)
	if err != nil {
		return protocol.Decision{}, err
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return protocol.Decision{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return protocol.Decision{}, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return protocol.Decision{}, errors.New("openai: empty response")
	}
	return ParseDecision(resp.Choices[0].Message.Content)
}

// ParseDecision decodes a model answer, tolerating a fenced code block.
func ParseDecision(content string) (protocol.Decision, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)
	if content == "" {
		return protocol.Decision{}, errors.New("decision: empty content")
	}
	var md modelDecision
	if err := json.Unmarshal([]byte(content), &md); err != nil {
		return protocol.Decision{}, fmt.Errorf("decision: invalid JSON: %w", err)
	}
	d := Intervention(md.ToolCalls...)
	d.Speak = md.Speak && md.Message != ""
	d.Message = md.Message
	return d, nil
}

func SystemPrompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(`
You are Eris, the narrative director of a Minecraft speedrun. You watch the
players and decide, event by event, whether to intervene. Keep the run tense
but winnable: punish comfort, rescue players on the brink, and avoid pushing
the world into apocalypse.
`))
	b.WriteString("\n\n### TOOLS\n")
	for _, cat := range []catalogs.ToolCategory{catalogs.ToolHarmful, catalogs.ToolHelpful, catalogs.ToolNarrative} {
		var names []string
		for _, n := range catalogs.ToolNames() {
			if catalogs.CategoryOf(n) == cat {
				names = append(names, n)
			}
		}
		fmt.Fprintf(&b, "%s: %s\n", cat, strings.Join(names, ", "))
	}
	b.WriteString(strings.TrimSpace(`
Most tools take "player". Counts use "count", amounts use "amount".

### RESPONSE FORMAT
Answer with one JSON object and nothing else:
{
  "speak": true,
  "message": "line spoken to the players",
  "tool_calls": [{"name": "tool_name", "args": {"player": "Name"}}]
}
Use an empty tool_calls list when you do not intervene.
`))
	return b.String()
}

// UserPrompt renders the request as the model-facing JSON context.
func UserPrompt(req Request) (string, error) {
	b, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode decision request: %w", err)
	}
	return "### SITUATION\n" + string(b), nil
}
