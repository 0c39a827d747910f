// Package provider implements decision sources backed by chat-completion APIs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// SystemPrompt is sent as the system message to every chat source.
const SystemPrompt = "You are a trading signal model. Reply with JSON only."

// ChatClient sends one system+user exchange and returns the assistant text.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ErrMalformedResponse marks a 2xx reply whose envelope lacks the message text.
var ErrMalformedResponse = errors.New("malformed chat response")

// StatusError is returned for non-2xx replies.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d: %s", e.StatusCode, e.Message)
}

func newHTTPClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	c.SetHeader("Content-Type", "application/json")
	return c
}

// statusError pulls the provider's error message out of the body when present.
func statusError(resp *resty.Response) error {
	msg := strings.TrimSpace(gjson.GetBytes(resp.Body(), "error.message").String())
	if msg == "" {
		msg = strings.TrimSpace(resp.Status())
	}
	return &StatusError{StatusCode: resp.StatusCode(), Message: msg}
}

// maskKey keeps the last four characters for debug output.
func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
