package expander

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/starford/mindmap/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

const systemPrompt = `You expand mind maps. Reply with a JSON array only, no prose.
Each element is {"type": "<type>", "label": "<short label>"}.
Allowed types: %s.
Return at most %d elements and do not repeat existing labels.`

// OpenAI asks a chat completion model for ideas.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI expander. baseURL may point at any
// OpenAI-compatible endpoint; empty keeps the default.
func NewOpenAI(apiKey, model, baseURL string, logger *slog.Logger) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, logger: logger}
}

// Name implements Expander.
func (o *OpenAI) Name() string { return "openai" }

// Expand implements Expander.
func (o *OpenAI) Expand(ctx context.Context, req Request) ([]Idea, error) {
	types := make([]string, 0, len(models.NodeTypes()))
	for _, t := range models.NodeTypes() {
		types = append(types, string(t))
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Map title: %s\n", req.Title)
	if len(req.Labels) > 0 {
		fmt.Fprintf(&user, "Existing nodes: %s\n", strings.Join(req.Labels, "; "))
	}
	fmt.Fprintf(&user, "Expand on: %s", req.Prompt)

	o.logger.Debug("expander: requesting ideas", slog.String("model", o.model))
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(systemPrompt, strings.Join(types, ", "), req.max())},
			{Role: openai.ChatMessageRoleUser, Content: user.String()},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, fmt.Errorf("expander: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("expander: openai returned no choices")
	}
	ideas, err := ParseIdeas(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return normalize(ideas, req.max()), nil
}

// ParseIdeas decodes a model reply, tolerating a surrounding code fence.
func ParseIdeas(content string) ([]Idea, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	var ideas []Idea
	if err := json.Unmarshal([]byte(s), &ideas); err != nil {
		return nil, fmt.Errorf("expander: decode reply: %w", err)
	}
	return ideas, nil
}
