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

// OpenAIChatClient talks to /chat/completions on OpenAI, Grok or any compatible server.
type OpenAIChatClient struct {
	id          string
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	topP        float64
	maxTokens   int
	headers     map[string]string
	http        *resty.Client
}

type OpenAIOptions struct {
	ID          string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Headers     map[string]string
	Timeout     time.Duration
}

func NewOpenAIChatClient(opts OpenAIOptions) *OpenAIChatClient {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	// tolerate a base url that already names the endpoint
	base = strings.TrimSuffix(base, "/chat/completions")
	return &OpenAIChatClient{
		id:          opts.ID,
		endpoint:    base + "/chat/completions",
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		topP:        opts.TopP,
		maxTokens:   opts.MaxTokens,
		headers:     opts.Headers,
		http:        newHTTPClient(opts.Timeout),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
	TopP           float64           `json:"top_p"`
	MaxTokens      int               `json:"max_tokens"`
}

func (c *OpenAIChatClient) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    c.temperature,
		TopP:           c.topP,
		MaxTokens:      c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	symbol := decision.SymbolFrom(ctx)
	logger.LogLLMRequest(c.id, symbol, system, user, string(body))
	logger.Debugf("source %s POST %s key=%s", c.id, c.endpoint, maskKey(c.apiKey))

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
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
	content := gjson.GetBytes(resp.Body(), "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%w: choices[0].message.content missing", ErrMalformedResponse)
	}
	return content.String(), nil
}
