// Package llm provides the text-generation client used for dialogue and
// thoughts. Anthropic and OpenAI-compatible providers are supported.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Provider selects the upstream API.
type Provider string

const (
	Anthropic Provider = "anthropic"
	OpenAI    Provider = "openai"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
	openAIURL        = "https://api.openai.com/v1/chat/completions"

	defaultAnthropicModel = "claude-haiku-4-5-20251001"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultMaxPerMin      = 20
	defaultMaxTokens      = 300
)

var (
	ErrNotConfigured = errors.New("llm client not configured")
	ErrRateLimited   = errors.New("llm rate limit exceeded")
	ErrEmpty         = errors.New("llm returned empty response")
)

// Config configures a Client.
type Config struct {
	Provider  Provider
	APIKey    string
	Model     string
	MaxPerMin int
	BaseURL   string // overrides the provider endpoint; used by tests and proxies
	Timeout   time.Duration
}

// Client wraps one provider's chat API.
type Client struct {
	provider   Provider
	apiKey     string
	model      string
	url        string
	httpClient *http.Client

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a client. Returns nil if the API key is empty, which
// disables generation; a nil *Client is safe to call.
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	c := &Client{
		provider:   cfg.Provider,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		url:        cfg.BaseURL,
		maxPerMin:  cfg.MaxPerMin,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if c.provider == "" {
		c.provider = Anthropic
	}
	if c.maxPerMin <= 0 {
		c.maxPerMin = defaultMaxPerMin
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 30 * time.Second
	}
	switch c.provider {
	case OpenAI:
		if c.model == "" {
			c.model = defaultOpenAIModel
		}
		if c.url == "" {
			c.url = openAIURL
		}
	default:
		if c.model == "" {
			c.model = defaultAnthropicModel
		}
		if c.url == "" {
			c.url = anthropicURL
		}
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Provider returns the configured provider.
func (c *Client) Provider() Provider {
	if c == nil {
		return ""
	}
	return c.provider
}

// Message is one turn of prior conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is a single generation call.
type Request struct {
	System    string
	Prompt    string
	History   []Message
	MaxTokens int
}

func (r Request) messages() []Message {
	out := make([]Message, 0, len(r.History)+1)
	out = append(out, r.History...)
	return append(out, Message{Role: "user", Content: r.Prompt})
}

// allow consumes one call from the per-minute budget.
func (c *Client) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return fmt.Errorf("%w (%d calls/min)", ErrRateLimited, c.maxPerMin)
	}
	c.callCount++
	return nil
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type openAIRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
	Stream    bool      `json:"stream,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends the request and returns the full response text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	if err := c.allow(); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var text string
	switch c.provider {
	case OpenAI:
		var r openAIResponse
		if err := json.Unmarshal(respBody, &r); err != nil {
			return "", fmt.Errorf("unmarshal response: %w", err)
		}
		if len(r.Choices) > 0 {
			text = r.Choices[0].Message.Content
		}
		slog.Debug("llm call", "provider", c.provider,
			"input_tokens", r.Usage.PromptTokens, "output_tokens", r.Usage.CompletionTokens)
	default:
		var r anthropicResponse
		if err := json.Unmarshal(respBody, &r); err != nil {
			return "", fmt.Errorf("unmarshal response: %w", err)
		}
		if len(r.Content) > 0 {
			text = r.Content[0].Text
		}
		slog.Debug("llm call", "provider", c.provider,
			"input_tokens", r.Usage.InputTokens, "output_tokens", r.Usage.OutputTokens)
	}
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// do builds and sends the provider-specific HTTP request. Non-200 responses
// are returned as errors with the body attached.
func (c *Client) do(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	var payload any
	switch c.provider {
	case OpenAI:
		msgs := req.messages()
		if req.System != "" {
			msgs = append([]Message{{Role: "system", Content: req.System}}, msgs...)
		}
		payload = openAIRequest{Model: c.model, MaxTokens: maxTokens, Messages: msgs, Stream: stream}
	default:
		payload = anthropicRequest{Model: c.model, MaxTokens: maxTokens, System: req.System, Messages: req.messages(), Stream: stream}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	switch c.provider {
	case OpenAI:
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	default:
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API call: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(b))
	}
	return resp, nil
}
