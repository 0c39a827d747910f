package execution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) CreateMarketOrder(ctx context.Context, symbol string, side decision.Action, size float64) (SinkResult, error) {
	args := m.Called(ctx, symbol, side, size)
	return args.Get(0).(SinkResult), args.Error(1)
}

func (m *MockSink) QuoteBalance(ctx context.Context, asset string) (float64, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(float64), args.Error(1)
}

type memRecorder struct {
	mu      sync.Mutex
	results []OrderResult
}

func (r *memRecorder) RecordOrder(_ context.Context, res OrderResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	return nil
}

type memNotifier struct {
	texts []string
}

func (n *memNotifier) SendText(_ context.Context, text string) error {
	n.texts = append(n.texts, text)
	return nil
}

func newPaperDispatcher(limit float64, opts ...Option) (*Dispatcher, *PaperAccount, *risk.Ledger) {
	ledger := risk.NewLedger(risk.Policy{RiskPerTrade: 0.01, DailyLossLimit: limit, KillSwitch: true})
	acct := NewPaperAccount(10_000, 1e-9)
	return NewDispatcher(ledger, acct, opts...), acct, ledger
}

func TestExecute_PaperFill(t *testing.T) {
	rec := &memRecorder{}
	d, acct, ledger := newPaperDispatcher(1_000, WithRecorder(rec))

	res, skip, err := d.Execute(context.Background(), Order{Symbol: "BTC/USDT", Action: decision.Buy, Price: 50_000, StopFraction: 0.01, TakeFraction: 0.02})
	require.NoError(t, err)
	assert.Equal(t, SkipNone, skip)
	require.NotNil(t, res)
	assert.Equal(t, StatusFilled, res.Status)
	assert.Equal(t, 100.0, res.Notional)
	assert.InDelta(t, 0.002, res.Size, 1e-12)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, ModePaper, res.Mode)

	assert.Equal(t, -100.0, ledger.SessionLoss())
	positions := acct.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, 0.01, positions[0].StopFraction)
	assert.Len(t, rec.results, 1)
}

func TestExecute_SkipReasons(t *testing.T) {
	t.Run("hold", func(t *testing.T) {
		d, _, ledger := newPaperDispatcher(1_000)
		res, skip, err := d.Execute(context.Background(), Order{Symbol: "BTC/USDT", Action: decision.Hold, Price: 1})
		assert.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, SkipHold, skip)
		assert.Zero(t, ledger.SessionLoss())
	})

	t.Run("risk denied", func(t *testing.T) {
		// first notional is 100, which exceeds a 50 budget
		d, acct, ledger := newPaperDispatcher(50)
		res, skip, err := d.Execute(context.Background(), Order{Symbol: "BTC/USDT", Action: decision.Buy, Price: 1})
		assert.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, SkipRiskDenied, skip)
		assert.Zero(t, ledger.SessionLoss())
		assert.Empty(t, acct.Positions())
	})

	t.Run("kill switch beats hold", func(t *testing.T) {
		n := &memNotifier{}
		d, _, ledger := newPaperDispatcher(50, WithNotifier(n))
		ledger.RegisterLoss(60)
		for i := 0; i < 3; i++ {
			_, skip, err := d.Execute(context.Background(), Order{Symbol: "BTC/USDT", Action: decision.Hold})
			assert.NoError(t, err)
			assert.Equal(t, SkipKillSwitch, skip)
		}
		assert.Len(t, n.texts, 1, "operator is told once per trip")
	})
}

func TestExecute_ReservesUntilKillSwitch(t *testing.T) {
	d, _, ledger := newPaperDispatcher(250)
	ctx := context.Background()
	order := Order{Symbol: "ETH/USDT", Action: decision.Sell, Price: 2_000}

	_, skip, _ := d.Execute(ctx, order)
	assert.Equal(t, SkipNone, skip)
	_, skip, _ = d.Execute(ctx, order)
	assert.Equal(t, SkipNone, skip)
	// 200 reserved, another 100 would breach 250
	_, skip, _ = d.Execute(ctx, order)
	assert.Equal(t, SkipRiskDenied, skip)
	assert.Equal(t, -200.0, ledger.SessionLoss())
	assert.False(t, ledger.KillSwitchTripped())
}

func TestPaperAccount_PriceFloor(t *testing.T) {
	acct := NewPaperAccount(1_000, 0.5)
	res, err := acct.Open(context.Background(), OpenRequest{Symbol: "X/USDT", Side: decision.Buy, Notional: 10, Price: 0})
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Size)
	assert.Equal(t, 0.5, res.Price)
}

func TestPaperAccount_CloseRealizesPnL(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		side decision.Action
		want float64
	}{
		{"buy gains when price rises", decision.Buy, 20},
		{"sell loses when price rises", decision.Sell, -20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			acct := NewPaperAccount(1_000, 1e-9)
			_, err := acct.Open(ctx, OpenRequest{Symbol: "BTC/USDT", Side: tc.side, Notional: 100, Price: 100})
			require.NoError(t, err)

			res, ok := acct.Close("BTC/USDT", 120)
			require.True(t, ok)
			assert.Equal(t, StatusClosed, res.Status)
			assert.Equal(t, tc.side.Opposite(), res.Side)
			assert.Equal(t, 1.0, res.Size)
			assert.Equal(t, tc.want, res.RealizedPnL)

			bal, _ := acct.AvailableBalance(ctx)
			assert.Equal(t, 1_000+tc.want, bal)
			assert.Empty(t, acct.Positions())

			_, ok = acct.Close("BTC/USDT", 120)
			assert.False(t, ok)
		})
	}
}

func TestPaperAccount_ReopenOverwrites(t *testing.T) {
	acct := NewPaperAccount(1_000, 1e-9)
	ctx := context.Background()
	_, _ = acct.Open(ctx, OpenRequest{Symbol: "BTC/USDT", Side: decision.Buy, Notional: 10, Price: 10})
	_, _ = acct.Open(ctx, OpenRequest{Symbol: "BTC/USDT", Side: decision.Sell, Notional: 10, Price: 5})
	positions := acct.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, decision.Sell, positions[0].Side)
	assert.Equal(t, 2.0, positions[0].Size)
}

func TestClosePosition_RealizedFeedback(t *testing.T) {
	ctx := context.Background()
	for _, feedback := range []bool{false, true} {
		d, _, ledger := newPaperDispatcher(1_000, WithRealizedFeedback(feedback))
		_, _, err := d.Execute(ctx, Order{Symbol: "BTC/USDT", Action: decision.Buy, Price: 100})
		require.NoError(t, err)
		res, err := d.ClosePosition(ctx, "BTC/USDT", 90)
		require.NoError(t, err)
		assert.Equal(t, -10.0, res.RealizedPnL)
		if feedback {
			assert.Equal(t, -110.0, ledger.SessionLoss())
		} else {
			assert.Equal(t, -100.0, ledger.SessionLoss())
		}
	}

	d, _, _ := newPaperDispatcher(1_000)
	_, err := d.ClosePosition(ctx, "NONE/USDT", 1)
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestExecute_Live(t *testing.T) {
	ctx := context.Background()
	newLive := func(sink *MockSink) (*Dispatcher, *risk.Ledger) {
		ledger := risk.NewLedger(risk.Policy{RiskPerTrade: 0.01, DailyLossLimit: 1_000, KillSwitch: true})
		return NewDispatcher(ledger, NewLiveBackend(sink, "USDT")), ledger
	}

	t.Run("fills from sink", func(t *testing.T) {
		sink := new(MockSink)
		sink.On("QuoteBalance", mock.Anything, "USDT").Return(5_000.0, nil)
		sink.On("CreateMarketOrder", mock.Anything, "BTC/USDT", decision.Buy, 0.001).
			Return(SinkResult{Status: "FILLED", OrderID: "42"}, nil)
		d, ledger := newLive(sink)

		res, skip, err := d.Execute(ctx, Order{Symbol: "BTC/USDT", Action: decision.Buy, Price: 50_000})
		require.NoError(t, err)
		assert.Equal(t, SkipNone, skip)
		assert.Equal(t, "FILLED", res.Status)
		assert.Equal(t, "42", res.OrderID)
		assert.Equal(t, -50.0, ledger.SessionLoss())
		sink.AssertExpectations(t)
	})

	t.Run("sink error is a dispatch failure", func(t *testing.T) {
		sink := new(MockSink)
		sink.On("QuoteBalance", mock.Anything, "USDT").Return(5_000.0, nil)
		sink.On("CreateMarketOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(SinkResult{}, errors.New("insufficient balance"))
		d, _ := newLive(sink)

		res, _, err := d.Execute(ctx, Order{Symbol: "BTC/USDT", Action: decision.Sell, Price: 50_000})
		assert.Nil(t, res)
		var de *DispatchError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "open", de.Stage)
	})

	t.Run("non-positive price rejected before reserving", func(t *testing.T) {
		sink := new(MockSink)
		d, ledger := newLive(sink)
		_, _, err := d.Execute(ctx, Order{Symbol: "BTC/USDT", Action: decision.Buy, Price: 0})
		assert.ErrorIs(t, err, ErrInvalidPrice)
		assert.Zero(t, ledger.SessionLoss())
		sink.AssertNotCalled(t, "CreateMarketOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("close unsupported", func(t *testing.T) {
		d, _ := newLive(new(MockSink))
		_, err := d.ClosePosition(ctx, "BTC/USDT", 1)
		assert.ErrorIs(t, err, ErrCloseUnsupported)
		assert.Nil(t, d.Positions())
	})
}

func TestExecute_SerializesConcurrentCalls(t *testing.T) {
	d, _, ledger := newPaperDispatcher(550)
	var wg sync.WaitGroup
	var mu sync.Mutex
	filled := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, _ := d.Execute(context.Background(), Order{Symbol: "BTC/USDT", Action: decision.Buy, Price: 100})
			if res != nil {
				mu.Lock()
				filled++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	// balance never changes on open, so every notional is 100
	assert.Equal(t, 5, filled)
	assert.Equal(t, -500.0, ledger.SessionLoss())
	assert.GreaterOrEqual(t, ledger.SessionLoss(), -550.0)
}
