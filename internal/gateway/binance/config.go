// Package binance adapts the Binance spot REST API to the market and execution boundaries.
package binance

import (
	"net/http"
	"strings"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
)

type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
	APIKey      string
	APISecret   string
	Testnet     bool
}

func (c Config) withDefaults() Config {
	out := c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	return out
}

// newClient builds a spot client. An explicit RESTBaseURL wins over the testnet switch.
func newClient(cfg Config) *gobinance.Client {
	gobinance.UseTestnet = cfg.Testnet
	client := gobinance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.RESTBaseURL != "" {
		client.BaseURL = cfg.RESTBaseURL
	}
	client.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	return client
}
