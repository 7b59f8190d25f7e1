package agents

import (
	"context"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

const (
	xaiBaseURL = "https://api.x.ai"
	xaiModel   = "grok-4"
)

// XAIClient calls the xAI API, which speaks the OpenAI Responses dialect
// with a plain "web_search" tool.
type XAIClient struct {
	baseClient
	searchTool string
}

// NewXAIClient creates an xAI adapter.
func NewXAIClient(cfg ClientConfig) *XAIClient {
	return &XAIClient{
		baseClient: newBaseClient(arena.ProviderXAI, cfg.withDefaults(xaiBaseURL, xaiModel)),
		searchTool: "web_search",
	}
}

// Call implements Client.
func (c *XAIClient) Call(ctx context.Context, system, user, teamA, teamB string) (*Result, error) {
	return callResponsesAPI(ctx, &c.baseClient, c.searchTool, system, user, teamA, teamB)
}
