package provider

import (
	"context"
	"errors"
	"time"

	"quorumtrader/internal/decision"
)

// ChatSource adapts a ChatClient to decision.Source.
type ChatSource struct {
	id      string
	enabled bool
	timeout time.Duration
	client  ChatClient
	parser  *decision.Parser
}

func NewChatSource(id string, timeout time.Duration, client ChatClient, parser *decision.Parser) *ChatSource {
	return &ChatSource{id: id, enabled: true, timeout: timeout, client: client, parser: parser}
}

func (s *ChatSource) ID() string             { return s.id }
func (s *ChatSource) Enabled() bool          { return s.enabled && s.client != nil }
func (s *ChatSource) Timeout() time.Duration { return s.timeout }

func (s *ChatSource) Decide(ctx context.Context, prompt string) (decision.Decision, error) {
	raw, err := s.client.Complete(ctx, SystemPrompt, prompt)
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			return decision.Decision{}, &decision.DecodeError{SourceID: s.id, Raw: raw, Err: err}
		}
		return decision.Decision{}, &decision.SourceError{SourceID: s.id, Err: err}
	}
	return s.parser.Parse(s.id, raw)
}
