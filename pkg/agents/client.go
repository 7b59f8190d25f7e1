package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/pitchside/cricket-agents/pkg/arena"
)

// Result is the outcome of one successful provider call: the validated
// prediction plus telemetry for the audit log.
type Result struct {
	Prediction    *Parsed
	SearchQueries []string
	RawResponse   string
	TokensUsed    int
	CostUSD       float64
	LatencyMs     int64
}

// Client is the contract every provider adapter satisfies. The orchestrator
// depends only on this interface, never on a provider-specific type.
type Client interface {
	// Call sends the prompt pair to the provider, concatenates its textual
	// output and parses it into a validated prediction.
	Call(ctx context.Context, system, user, teamA, teamB string) (*Result, error)
	Provider() arena.Provider
}

// ProviderError indicates a transport failure, a non-success status or an
// empty textual response from a provider API.
type ProviderError struct {
	Provider arena.Provider
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ClientConfig configures one provider adapter.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64 // requests per second
	Burst       int
	Logger      zerolog.Logger
	HTTPClient  *http.Client // optional, shared across adapters
}

func (c *ClientConfig) withDefaults(defaultBaseURL, defaultModel string) ClientConfig {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = defaultBaseURL
	}
	if out.Model == "" {
		out.Model = defaultModel
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = 16000
	}
	if out.Timeout == 0 {
		out.Timeout = 90 * time.Second
	}
	if out.RateLimit == 0 {
		out.RateLimit = 2
	}
	if out.Burst == 0 {
		out.Burst = 2
	}
	if out.HTTPClient == nil {
		out.HTTPClient = NewHTTPClient(out.Timeout)
	}
	return out
}

// NewHTTPClient builds a pooled HTTP client tuned for slow AI provider APIs.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// baseClient carries the plumbing shared by every adapter: pooled transport,
// rate limiting and non-2xx handling.
type baseClient struct {
	provider arena.Provider
	cfg      ClientConfig
	limiter  *rate.Limiter
	log      zerolog.Logger
}

func newBaseClient(provider arena.Provider, cfg ClientConfig) baseClient {
	return baseClient{
		provider: provider,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		log:      cfg.Logger.With().Str("provider", string(provider)).Logger(),
	}
}

func (b *baseClient) Provider() arena.Provider {
	return b.provider
}

// postJSON issues a rate-limited POST and decodes the response into out.
// Cancellation of ctx aborts the in-flight request.
func (b *baseClient) postJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.cfg.HTTPClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: b.provider, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProviderError{Provider: b.provider, Status: resp.StatusCode, Message: string(data)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Provider: b.provider, Message: "decode response: " + err.Error()}
	}
	return nil
}

func (b *baseClient) emptyResponse() error {
	return &ProviderError{Provider: b.provider, Message: "no text in response"}
}

// Per-token USD rates for cost estimates in the audit log. Rough figures,
// refreshed when the model lineup changes.
var tokenRates = map[arena.Provider]struct{ in, out float64 }{
	arena.ProviderAnthropic: {0.000003, 0.000015},
	arena.ProviderOpenAI:    {0.00000125, 0.000010},
	arena.ProviderGoogle:    {0.000002, 0.000012},
	arena.ProviderXAI:       {0.000003, 0.000015},
}

func estimateCost(provider arena.Provider, promptTokens, completionTokens int) float64 {
	r, ok := tokenRates[provider]
	if !ok {
		return 0
	}
	return float64(promptTokens)*r.in + float64(completionTokens)*r.out
}

// Registry maps provider tags to constructed clients. The set of supported
// providers is fixed at startup; an agent row with an unknown tag is a
// configuration error surfaced by the orchestrator.
type Registry map[arena.Provider]Client

// BuildRegistry constructs one client per provider that has an API key
// configured. Clients share a single pooled HTTP client.
func BuildRegistry(cfgs map[arena.Provider]ClientConfig, logger zerolog.Logger) Registry {
	shared := NewHTTPClient(90 * time.Second)

	reg := make(Registry, len(cfgs))
	for provider, cfg := range cfgs {
		if cfg.APIKey == "" {
			continue
		}
		cfg.Logger = logger
		if cfg.HTTPClient == nil {
			cfg.HTTPClient = shared
		}
		switch provider {
		case arena.ProviderAnthropic:
			reg[provider] = NewAnthropicClient(cfg)
		case arena.ProviderOpenAI:
			reg[provider] = NewOpenAIClient(cfg)
		case arena.ProviderGoogle:
			reg[provider] = NewGoogleClient(cfg)
		case arena.ProviderXAI:
			reg[provider] = NewXAIClient(cfg)
		}
	}
	return reg
}
