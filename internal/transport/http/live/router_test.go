package livehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quorumtrader/internal/execution"
	"quorumtrader/internal/risk"
	"quorumtrader/internal/store/decisionlog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	price float64
	err   error
	asked []string
}

func (f *fakePrices) LastPrice(_ context.Context, symbol string) (float64, error) {
	f.asked = append(f.asked, symbol)
	return f.price, f.err
}

type fakeDecisionLog struct{ q decisionlog.Query }

func (f *fakeDecisionLog) Recent(_ context.Context, q decisionlog.Query) ([]decisionlog.Record, error) {
	f.q = q
	return []decisionlog.Record{{TraceID: "t1", Symbol: "BTC/USDT", Stage: decisionlog.StageConsensus}}, nil
}

func (f *fakeDecisionLog) ByTrace(_ context.Context, traceID string) ([]decisionlog.Record, error) {
	if traceID != "t1" {
		return nil, nil
	}
	return []decisionlog.Record{
		{TraceID: "t1", Stage: decisionlog.StageSource, SourceID: "openai", Seq: 0},
		{TraceID: "t1", Stage: decisionlog.StageConsensus, SourceID: "ensemble", Seq: 1},
	}, nil
}

type fixture struct {
	handler http.Handler
	prices  *fakePrices
	ledger  *risk.Ledger
	disp    *execution.Dispatcher
	logs    *fakeDecisionLog
}

func newFixture(t *testing.T, secret string) *fixture {
	t.Helper()
	ledger := risk.NewLedger(risk.Policy{RiskPerTrade: 0.01, DailyLossLimit: 1000, KillSwitch: true})
	disp := execution.NewDispatcher(ledger, execution.NewPaperAccount(10_000, 1e-9))
	prices := &fakePrices{price: 50_000}
	logs := &fakeDecisionLog{}
	srv, err := NewServer(ServerConfig{
		Secret: secret, Trader: disp, Risk: ledger, Prices: prices, Decisions: logs,
	})
	require.NoError(t, err)
	return &fixture{handler: srv.Handler(), prices: prices, ledger: ledger, disp: disp, logs: logs}
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

const validSignal = `{"symbol":"btc/usdt","side":"BUY","reason":"breakout","confidence":0.9,"stop_pct":0.01,"take_pct":0.02}`

func TestSignal_OpensPaperPosition(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(http.MethodPost, "/api/signal", validSignal, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SignalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "BTC/USDT", resp.Result.Symbol)
	assert.InDelta(t, 100.0, resp.Result.Notional, 1e-9)
	assert.Equal(t, []string{"BTC/USDT"}, f.prices.asked)

	positions := f.disp.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, 0.01, positions[0].StopFraction)
}

func TestSignal_Secret(t *testing.T) {
	f := newFixture(t, "s3cret")
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/api/signal", validSignal, nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		f.do(http.MethodPost, "/api/signal", validSignal, map[string]string{secretHeader: "nope"}).Code)
	assert.Equal(t, http.StatusOK,
		f.do(http.MethodPost, "/api/signal", validSignal, map[string]string{secretHeader: "s3cret"}).Code)
}

func TestSignal_Validation(t *testing.T) {
	f := newFixture(t, "")
	cases := []struct {
		name string
		body string
		code int
	}{
		{"hold side", `{"symbol":"BTC/USDT","side":"hold","confidence":1,"stop_pct":0,"take_pct":0}`, http.StatusBadRequest},
		{"bad symbol", `{"symbol":"???","side":"buy","confidence":1,"stop_pct":0,"take_pct":0}`, http.StatusBadRequest},
		{"missing confidence", `{"symbol":"BTC/USDT","side":"buy","stop_pct":0,"take_pct":0}`, http.StatusUnprocessableEntity},
		{"not json", `nope`, http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, f.do(http.MethodPost, "/api/signal", tc.body, nil).Code)
		})
	}
	assert.Empty(t, f.disp.Positions())
}

func TestSignal_PriceFailure(t *testing.T) {
	f := newFixture(t, "")
	f.prices.err = errors.New("exchange down")
	w := f.do(http.MethodPost, "/api/signal", validSignal, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to fetch price")
}

func TestSignal_KillSwitchIsReportedAsSkip(t *testing.T) {
	f := newFixture(t, "")
	f.ledger.RegisterLoss(1000)
	w := f.do(http.MethodPost, "/api/signal", validSignal, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp SignalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, execution.SkipKillSwitch, resp.Skipped)
	assert.Nil(t, resp.Result)
}

func TestClosePosition(t *testing.T) {
	f := newFixture(t, "")
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/signal", validSignal, nil).Code)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/positions/ETH-USDT/close", "", nil).Code)

	w := f.do(http.MethodPost, "/api/positions/BTCUSDT/close", `{"price":51000}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var body struct {
		Result execution.OrderResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, execution.StatusClosed, body.Result.Status)
	assert.InDelta(t, 2.0, body.Result.RealizedPnL, 1e-9)
	assert.Empty(t, f.disp.Positions())
}

func TestStatusEndpoints(t *testing.T) {
	f := newFixture(t, "")

	w := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"paper"`)

	w = f.do(http.MethodGet, "/api/risk", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st risk.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 1000.0, st.DailyLossLimit)
	assert.True(t, st.KillSwitch)

	w = f.do(http.MethodGet, "/api/positions", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"positions":[]`)

	w = f.do(http.MethodGet, "/api/decisions?symbol=BTC/USDT&limit=5", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, f.logs.q.Limit)
	assert.Equal(t, "BTC/USDT", f.logs.q.Symbol)

	w = f.do(http.MethodGet, "/api/decisions/t1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source_id":"openai"`)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/decisions/missing", "", nil).Code)

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/orders", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/pnl", "", nil).Code)
}

func TestNewServer_RequiresTrader(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

type fakeOrders struct{ since time.Time }

func (f *fakeOrders) RecentOrders(_ context.Context, symbol string, limit int) ([]execution.OrderResult, error) {
	return []execution.OrderResult{{Symbol: symbol, Status: execution.StatusFilled}}, nil
}

func (f *fakeOrders) RealizedPnL(_ context.Context, since time.Time) (float64, error) {
	f.since = since
	return -12.5, nil
}

func TestOrdersAndPnL(t *testing.T) {
	ledger := risk.NewLedger(risk.Policy{RiskPerTrade: 0.01, DailyLossLimit: 1000, KillSwitch: true})
	disp := execution.NewDispatcher(ledger, execution.NewPaperAccount(10_000, 1e-9))
	orders := &fakeOrders{}
	srv, err := NewServer(ServerConfig{Trader: disp, Prices: &fakePrices{price: 1}, Orders: orders})
	require.NoError(t, err)
	f := &fixture{handler: srv.Handler()}

	w := f.do(http.MethodGet, "/api/orders?symbol=ethusdt&limit=3", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"symbol":"ETH/USDT"`)

	w = f.do(http.MethodGet, "/api/pnl?since=2024-05-01T00:00:00Z", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"realized_pnl":-12.5`)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), orders.since)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/pnl?since=yesterday", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/decisions/t1", "", nil).Code)
}
