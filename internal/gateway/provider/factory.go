package provider

import (
	"time"

	"quorumtrader/internal/config"
	"quorumtrader/internal/decision"
	"quorumtrader/internal/logger"
)

// BuildSources turns every enabled, credentialed source in cfg into a decision.Source.
func BuildSources(cfg *config.Config, parser *decision.Parser) []decision.Source {
	resolved, skipped := cfg.ResolveSources()
	for _, s := range skipped {
		logger.Warnf("decision source %s skipped: api key not resolved", s)
	}
	out := make([]decision.Source, 0, len(resolved))
	for _, src := range resolved {
		out = append(out, NewSource(src, parser))
		logger.Infof("decision source %s ready (provider=%s model=%s timeout=%.0fs)",
			src.ID, src.Provider, src.Model, src.TimeoutSeconds)
	}
	return out
}

// NewSource builds a single source from its resolved configuration.
func NewSource(src config.ResolvedSource, parser *decision.Parser) *ChatSource {
	timeout := time.Duration(src.TimeoutSeconds * float64(time.Second))
	var client ChatClient
	switch src.Provider {
	case config.ProviderAnthropic:
		client = NewAnthropicClient(AnthropicOptions{
			ID:          src.ID,
			BaseURL:     src.APIURL,
			APIKey:      src.APIKey,
			Model:       src.Model,
			Temperature: src.Temperature,
			MaxTokens:   src.MaxTokens,
			Headers:     src.Headers,
			Timeout:     timeout,
		})
	default:
		client = NewOpenAIChatClient(OpenAIOptions{
			ID:          src.ID,
			BaseURL:     src.APIURL,
			APIKey:      src.APIKey,
			Model:       src.Model,
			Temperature: src.Temperature,
			TopP:        src.TopP,
			MaxTokens:   src.MaxTokens,
			Headers:     src.Headers,
			Timeout:     timeout,
		})
	}
	return NewChatSource(src.ID, timeout, client, parser)
}
