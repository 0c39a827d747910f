package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/logger"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient talks to the Messages API.
type AnthropicClient struct {
	id          string
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	headers     map[string]string
	http        *resty.Client
}

type AnthropicOptions struct {
	ID          string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Headers     map[string]string
	Timeout     time.Duration
}

func NewAnthropicClient(opts AnthropicOptions) *AnthropicClient {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://api.anthropic.com"
	}
	base = strings.TrimSuffix(base, "/v1/messages")
	return &AnthropicClient{
		id:          opts.ID,
		endpoint:    base + "/v1/messages",
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		headers:     opts.Headers,
		http:        newHTTPClient(opts.Timeout),
	}
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

func (c *AnthropicClient) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		System:      system,
		Messages:    []chatMessage{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("encode messages request: %w", err)
	}

	symbol := decision.SymbolFrom(ctx)
	logger.LogLLMRequest(c.id, symbol, system, user, string(body))

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetHeaders(c.headers).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return "", err
	}
	logger.LogLLMResponse(c.id, symbol, resp.String())
	if resp.IsError() {
		return "", statusError(resp)
	}
	text := gjson.GetBytes(resp.Body(), "content.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("%w: content[0].text missing", ErrMalformedResponse)
	}
	return text.String(), nil
}
