package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const defaultTelegramAPI = "https://api.telegram.org"

// Telegram 通知器：把成交、平仓与熔断推送至指定群/频道。
type Telegram struct {
	botToken string
	chatID   string
	client   *resty.Client
}

// NewTelegram builds a client with up to 2 retries on transport errors and 5xx.
func NewTelegram(botToken, chatID string) *Telegram {
	return newTelegram(defaultTelegramAPI, botToken, chatID, time.Second)
}

func newTelegram(baseURL, botToken, chatID string, backoff time.Duration) *Telegram {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(backoff).
		SetRetryMaxWaitTime(3*backoff).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &Telegram{botToken: botToken, chatID: chatID, client: client}
}

// SendText 发送 Markdown 文本。
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram config incomplete")
	}
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "Markdown",
		}).
		Post("/bot" + t.botToken + "/sendMessage")
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.IsSuccess() {
		desc := gjson.GetBytes(resp.Body(), "description").String()
		return fmt.Errorf("telegram status=%d %s", resp.StatusCode(), desc)
	}
	return nil
}
