// Package textgen is a small client for the OpenAI Responses API that only
// knows how to ask for strict JSON. It never retries: callers treat any
// error as "generator unavailable" and move on.
package textgen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/postcadence/planner/pkg/config"
	"github.com/postcadence/planner/pkg/logging"
)

var (
	// ErrMissingAPIKey is returned by New when no key is configured.
	ErrMissingAPIKey = errors.New("openai api key is not configured")
	// ErrRateLimited is returned when the local request budget is spent.
	ErrRateLimited = errors.New("text generator rate limit exceeded")
)

const responsesPath = "/v1/responses"

// Client calls the Responses API behind a circuit breaker and a
// non-blocking rate limiter.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[map[string]any]
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a client from configuration.
func New(cfg config.OpenAIConfig, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perMinute := cfg.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		logger:     logging.WithComponent("textgen"),
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openai.com"
	}
	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[map[string]any](gobreaker.Settings{
		Name:        "openai-responses",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about the upstream.
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c, nil
}

// BreakerState reports the circuit breaker state. The API server shows it
// on /health.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model string    `json:"model"`
	Input []message `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func (r responsesResponse) outputText() string {
	var out strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				out.WriteString(part.Text)
			}
		}
	}
	return out.String()
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

// GenerateJSON asks the model for an object matching schema and returns it
// decoded. The schema is sent with strict mode on.
func (c *Client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	if schemaName == "" {
		return nil, errors.New("schemaName required")
	}
	if schema == nil {
		return nil, errors.New("schema required")
	}
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}

	obj, err := c.breaker.Execute(func() (map[string]any, error) {
		return c.generateJSON(ctx, system, user, schemaName, schema)
	})
	if err != nil {
		c.logger.Debug("Text generation failed", zap.String("schema", schemaName), zap.Error(err))
		return nil, err
	}
	return obj, nil
}

func (c *Client) generateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	req := responsesRequest{
		Model: c.model,
		Input: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.post(ctx, responsesPath, &req, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}

	text := resp.outputText()
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("no output_text found in response")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return obj, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("openai decode error: %w", err)
	}
	return nil
}
