package agents

import (
	"context"
	"time"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicModel   = "claude-opus-4-6"
	anthropicVersion = "2023-06-01"
)

// AnthropicClient calls the Anthropic Messages API with the web search tool
// enabled.
type AnthropicClient struct {
	baseClient
}

// NewAnthropicClient creates an Anthropic adapter.
func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	return &AnthropicClient{newBaseClient(arena.ProviderAnthropic, cfg.withDefaults(anthropicBaseURL, anthropicModel))}
}

type anthropicResponse struct {
	Content []struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		Name  string `json:"name"`
		Input struct {
			Query string `json:"query"`
		} `json:"input"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Call implements Client.
func (c *AnthropicClient) Call(ctx context.Context, system, user, teamA, teamB string) (*Result, error) {
	payload := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"thinking":   map[string]any{"type": "enabled", "budget_tokens": 5000},
		"tools": []map[string]any{
			{"type": "web_search_20250305", "name": "web_search", "max_uses": 5},
		},
		"system":   system,
		"messages": []map[string]any{{"role": "user", "content": user}},
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}

	start := time.Now()
	var resp anthropicResponse
	if err := c.postJSON(ctx, c.cfg.BaseURL+"/v1/messages", headers, payload, &resp); err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	var text string
	var queries []string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "server_tool_use":
			if block.Name == "web_search" && block.Input.Query != "" {
				queries = append(queries, block.Input.Query)
			}
		}
	}
	if text == "" {
		return nil, c.emptyResponse()
	}

	prediction, err := Parse(text, teamA, teamB)
	if err != nil {
		return nil, err
	}

	return &Result{
		Prediction:    prediction,
		SearchQueries: queries,
		RawResponse:   text,
		TokensUsed:    resp.Usage.InputTokens + resp.Usage.OutputTokens,
		CostUSD:       estimateCost(c.provider, resp.Usage.InputTokens, resp.Usage.OutputTokens),
		LatencyMs:     latency,
	}, nil
}
