package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"quorumtrader/internal/config"
	"quorumtrader/internal/execution"
	"quorumtrader/internal/gateway/notifier"
	"quorumtrader/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse(`
symbols: [BTC/USDT]
data:
  timeframe: 15m
  decision_offset_seconds: 5
sources:
  local:
    api_url: http://127.0.0.1:1/v1
    model: m
    api_key: k
`)
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Store.DecisionLogPath = filepath.Join(dir, "decisions.db")
	cfg.Store.OrdersPath = filepath.Join(dir, "orders.db")
	return cfg
}

func TestProvideScheduler(t *testing.T) {
	cfg := testConfig(t)

	sched, err := provideScheduler(cfg, Options{})
	require.NoError(t, err)
	aligned, ok := sched.(*scheduler.Aligned)
	require.True(t, ok)
	assert.Equal(t, 15*time.Minute, aligned.Interval)
	assert.Equal(t, 5*time.Second, aligned.Offset)

	sched, err = provideScheduler(cfg, Options{Sleep: 30 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, scheduler.Fixed{Pause: 30 * time.Second}, sched)

	cfg.Data.Timeframe = "90s"
	_, err = provideScheduler(cfg, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, scheduler.ErrInvalidTimeframe)
}

func TestProvideBackend(t *testing.T) {
	cfg := testConfig(t)
	backend, err := provideBackend(cfg)
	require.NoError(t, err)
	_, paper := backend.(*execution.PaperAccount)
	assert.True(t, paper)

	cfg.Trading.Mode = config.ModeLive
	cfg.Exchange.APIKey = ""
	_, err = provideBackend(cfg)
	assert.Error(t, err, "live mode requires exchange credentials")
}

func TestProvideNotifier(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, notifier.Nop{}, provideNotifier(cfg))

	cfg.Notify.Telegram = config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c"}
	_, isTelegram := provideNotifier(cfg).(*notifier.Telegram)
	assert.True(t, isTelegram)
}

func TestStartupSummary(t *testing.T) {
	cfg := testConfig(t)
	s := NewStartupSummary(cfg, []string{"local"}, Options{Serve: true})
	assert.Equal(t, "aligned to 15m close +5s", s.Schedule)
	assert.Equal(t, cfg.App.HTTPAddr, s.HTTPAddr)

	out := s.Render()
	assert.Contains(t, out, "BTC/USDT")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "fewer than require_agreement=2")

	s = NewStartupSummary(cfg, []string{"a", "b"}, Options{Sleep: time.Minute})
	assert.Equal(t, "every 1m0s", s.Schedule)
	assert.Empty(t, s.HTTPAddr)
	assert.NotContains(t, s.Render(), "fewer than")
}

func TestNewAppRunOnceWithUnreachableMarket(t *testing.T) {
	cfg := testConfig(t)
	cfg.Market.RESTBaseURL = "http://127.0.0.1:1"
	cfg.Market.TimeoutSeconds = 1

	a, err := NewApp(cfg, Options{})
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Dispatcher())

	report, err := a.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, report.Symbols, 1)
	assert.Error(t, report.Symbols[0].Err)
}

func TestNewAppRejectsNilConfig(t *testing.T) {
	_, err := NewApp(nil, Options{})
	assert.Error(t, err)
}
