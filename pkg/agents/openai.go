package agents

import (
	"context"
	"time"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

const (
	openaiBaseURL = "https://api.openai.com"
	openaiModel   = "gpt-5.2"
)

// OpenAIClient calls the OpenAI Responses API with the web search preview
// tool enabled.
type OpenAIClient struct {
	baseClient
	searchTool string
}

// NewOpenAIClient creates an OpenAI adapter.
func NewOpenAIClient(cfg ClientConfig) *OpenAIClient {
	return &OpenAIClient{
		baseClient: newBaseClient(arena.ProviderOpenAI, cfg.withDefaults(openaiBaseURL, openaiModel)),
		searchTool: "web_search_preview",
	}
}

// responsesAPIResponse is the shared shape of the OpenAI-style /v1/responses
// endpoint, also spoken by the xAI API.
type responsesAPIResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Query   string `json:"query"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (r *responsesAPIResponse) collect() (text string, queries []string) {
	for _, item := range r.Output {
		switch item.Type {
		case "web_search_call":
			if item.Query != "" {
				queries = append(queries, item.Query)
			}
		case "message":
			for _, part := range item.Content {
				if part.Type == "output_text" {
					text += part.Text
				}
			}
		}
	}
	return text, queries
}

// Call implements Client.
func (c *OpenAIClient) Call(ctx context.Context, system, user, teamA, teamB string) (*Result, error) {
	return callResponsesAPI(ctx, &c.baseClient, c.searchTool, system, user, teamA, teamB)
}

// callResponsesAPI drives one /v1/responses round trip. Shared between the
// OpenAI and xAI adapters, which differ only in endpoint and tool name.
func callResponsesAPI(ctx context.Context, b *baseClient, searchTool, system, user, teamA, teamB string) (*Result, error) {
	payload := map[string]any{
		"model":        b.cfg.Model,
		"instructions": system,
		"input":        user,
		"reasoning":    map[string]any{"effort": "medium"},
		"tools":        []map[string]any{{"type": searchTool}},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + b.cfg.APIKey,
	}

	start := time.Now()
	var resp responsesAPIResponse
	if err := b.postJSON(ctx, b.cfg.BaseURL+"/v1/responses", headers, payload, &resp); err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	text, queries := resp.collect()
	if text == "" {
		return nil, b.emptyResponse()
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
		CostUSD:       estimateCost(b.provider, resp.Usage.InputTokens, resp.Usage.OutputTokens),
		LatencyMs:     latency,
	}, nil
}
