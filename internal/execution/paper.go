package execution

import (
	"context"
	"sort"
	"sync"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ModePaper = "paper"

type paperPosition struct {
	Position
	size  decimal.Decimal
	entry decimal.Decimal
}

// PaperAccount is the simulated backend: a balance plus at most one position
// per symbol (a re-open overwrites). PnL stays in the balance.
type PaperAccount struct {
	mu         sync.Mutex
	balance    decimal.Decimal
	priceFloor decimal.Decimal
	positions  map[string]paperPosition
	now        func() time.Time
}

func NewPaperAccount(startingBalance, priceFloor float64) *PaperAccount {
	floor := decimal.NewFromFloat(priceFloor)
	if !floor.IsPositive() {
		floor = decimal.New(1, -9)
	}
	return &PaperAccount{
		balance:    decimal.NewFromFloat(startingBalance),
		priceFloor: floor,
		positions:  make(map[string]paperPosition),
		now:        time.Now,
	}
}

func (p *PaperAccount) Mode() string        { return ModePaper }
func (p *PaperAccount) RequiresPrice() bool { return false }

func (p *PaperAccount) AvailableBalance(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance.InexactFloat64(), nil
}

func (p *PaperAccount) Open(_ context.Context, req OpenRequest) (*OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price := decimal.NewFromFloat(req.Price)
	if price.LessThan(p.priceFloor) {
		price = p.priceFloor
	}
	size := decimal.NewFromFloat(req.Notional).Div(price)
	now := p.now().UTC()

	if prev, ok := p.positions[req.Symbol]; ok {
		logger.Warnf("paper %s: overwriting open %s position size=%s", req.Symbol, prev.Side, prev.size.String())
	}
	p.positions[req.Symbol] = paperPosition{
		Position: Position{
			Symbol:       req.Symbol,
			Side:         req.Side,
			Size:         size.InexactFloat64(),
			EntryPrice:   price.InexactFloat64(),
			StopFraction: req.StopFraction,
			TakeFraction: req.TakeFraction,
			OpenedAt:     now,
		},
		size:  size,
		entry: price,
	}
	logger.Infof("paper trade %s %s size=%s @ %s", req.Side, req.Symbol, size.StringFixed(8), price.String())
	return &OrderResult{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Size:     size.InexactFloat64(),
		Price:    price.InexactFloat64(),
		Notional: req.Notional,
		Status:   StatusFilled,
		OrderID:  uuid.NewString(),
		Mode:     ModePaper,
		At:       now,
	}, nil
}

// Close pops the position for symbol and books its PnL into the balance.
func (p *PaperAccount) Close(symbol string, price float64) (*OrderResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return nil, false
	}
	delete(p.positions, symbol)

	exit := decimal.NewFromFloat(price)
	pnl := exit.Sub(pos.entry).Mul(pos.size)
	if pos.Side == decision.Sell {
		pnl = pnl.Neg()
	}
	p.balance = p.balance.Add(pnl)
	logger.Infof("paper position closed %s pnl=%s balance=%s", symbol, pnl.StringFixed(4), p.balance.StringFixed(4))
	return &OrderResult{
		Symbol:      symbol,
		Side:        pos.Side.Opposite(),
		Size:        pos.size.InexactFloat64(),
		Price:       price,
		Status:      StatusClosed,
		OrderID:     uuid.NewString(),
		Mode:        ModePaper,
		RealizedPnL: pnl.InexactFloat64(),
		At:          p.now().UTC(),
	}, true
}

// Positions returns the open positions sorted by symbol.
func (p *PaperAccount) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos.Position)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
