package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

const (
	googleBaseURL = "https://generativelanguage.googleapis.com"
	googleModel   = "gemini-3.0-pro"
)

// GoogleClient calls the Gemini generateContent API with Google Search
// grounding enabled.
type GoogleClient struct {
	baseClient
}

// NewGoogleClient creates a Google adapter.
func NewGoogleClient(cfg ClientConfig) *GoogleClient {
	return &GoogleClient{newBaseClient(arena.ProviderGoogle, cfg.withDefaults(googleBaseURL, googleModel))}
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata struct {
			WebSearchQueries []string `json:"webSearchQueries"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Call implements Client.
func (c *GoogleClient) Call(ctx context.Context, system, user, teamA, teamB string) (*Result, error) {
	payload := map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": user}}},
		},
		"systemInstruction": map[string]any{
			"parts": []map[string]any{{"text": system}},
		},
		"tools": []map[string]any{{"google_search": map[string]any{}}},
		"generationConfig": map[string]any{
			"maxOutputTokens": c.cfg.MaxTokens,
		},
	}
	headers := map[string]string{
		"x-goog-api-key": c.cfg.APIKey,
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)

	start := time.Now()
	var resp googleResponse
	if err := c.postJSON(ctx, url, headers, payload, &resp); err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	var text string
	var queries []string
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			text += part.Text
		}
		queries = append(queries, cand.GroundingMetadata.WebSearchQueries...)
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
		TokensUsed:    resp.UsageMetadata.PromptTokenCount + resp.UsageMetadata.CandidatesTokenCount,
		CostUSD:       estimateCost(c.provider, resp.UsageMetadata.PromptTokenCount, resp.UsageMetadata.CandidatesTokenCount),
		LatencyMs:     latency,
	}, nil
}
