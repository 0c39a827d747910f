package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/execution"
	"quorumtrader/internal/pkg/symbol"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// quantityScale is the number of decimals sent with market order quantities.
const quantityScale = 8

// Sink places spot market orders and reads free balances.
type Sink struct {
	client *gobinance.Client
}

func NewSink(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "" {
		return nil, fmt.Errorf("live trading requires exchange api_key and api_secret")
	}
	return &Sink{client: newClient(cfg.withDefaults())}, nil
}

func (s *Sink) CreateMarketOrder(ctx context.Context, sym string, side decision.Action, size float64) (execution.SinkResult, error) {
	var sideType gobinance.SideType
	switch side {
	case decision.Buy:
		sideType = gobinance.SideTypeBuy
	case decision.Sell:
		sideType = gobinance.SideTypeSell
	default:
		return execution.SinkResult{}, fmt.Errorf("unsupported side %q", side)
	}
	qty := decimal.NewFromFloat(size).Truncate(quantityScale)
	if !qty.IsPositive() {
		return execution.SinkResult{}, fmt.Errorf("quantity %v rounds to zero", size)
	}
	resp, err := s.client.NewCreateOrderService().
		Symbol(symbol.ToExchange(sym)).
		Side(sideType).
		Type(gobinance.OrderTypeMarket).
		Quantity(qty.String()).
		Do(ctx)
	if err != nil {
		return execution.SinkResult{}, err
	}
	return execution.SinkResult{
		Status:  strings.ToLower(string(resp.Status)),
		OrderID: strconv.FormatInt(resp.OrderID, 10),
	}, nil
}

func (s *Sink) QuoteBalance(ctx context.Context, asset string) (float64, error) {
	acct, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch account: %w", err)
	}
	for _, b := range acct.Balances {
		if strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.Free), nil
		}
	}
	return 0, nil
}
