package config

import (
	"fmt"
	"strings"

	"quorumtrader/internal/logger"
	"quorumtrader/internal/scheduler"
)

const minLookback = 20

// validate 对配置进行基础校验。
func validate(c *Config) error {
	switch strings.ToLower(c.App.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("app.log_format must be text or json")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols requires at least one instrument")
	}
	for _, sym := range c.Symbols {
		if !strings.Contains(sym, "/") {
			return fmt.Errorf("symbol %q must use BASE/QUOTE form", sym)
		}
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	for id, src := range c.Sources {
		if err := src.validate(id); err != nil {
			return err
		}
	}
	if err := c.Ensemble.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	warnUnreachableBudget(c)
	return nil
}

func (d *DataConfig) validate() error {
	if _, err := scheduler.ParseTimeframe(d.Timeframe); err != nil {
		return fmt.Errorf("data.timeframe: %w", err)
	}
	if d.Lookback < minLookback {
		return fmt.Errorf("data.lookback must be >= %d", minLookback)
	}
	if d.DecisionOffsetSeconds < 0 {
		return fmt.Errorf("data.decision_offset_seconds must be >= 0")
	}
	return nil
}

func (s SourceConfig) validate(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("sources contains an entry with empty id")
	}
	if !s.Enabled {
		return nil
	}
	switch s.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGrok, ProviderOpenAICompatible:
	default:
		return fmt.Errorf("sources.%s.provider %q is not supported", id, s.Provider)
	}
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("sources.%s missing model", id)
	}
	if strings.TrimSpace(s.APIURL) == "" {
		return fmt.Errorf("sources.%s missing api_url", id)
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("sources.%s.temperature must be within [0,2]", id)
	}
	if s.TopP <= 0 || s.TopP > 1 {
		return fmt.Errorf("sources.%s.top_p must be within (0,1]", id)
	}
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("sources.%s.timeout_seconds must be > 0", id)
	}
	return nil
}

func (e *EnsembleConfig) validate() error {
	if e.MinConfidence < 0 || e.MinConfidence > 1 {
		return fmt.Errorf("ensemble.min_confidence must be within [0,1]")
	}
	if e.RequireAgreement < 1 {
		return fmt.Errorf("ensemble.require_agreement must be >= 1")
	}
	if e.RoundTimeoutSeconds < 0 {
		return fmt.Errorf("ensemble.round_timeout_seconds must be >= 0")
	}
	switch e.TieBreak {
	case TieBreakConfidence, TieBreakArrival:
	default:
		return fmt.Errorf("ensemble.tie_break must be %q or %q", TieBreakConfidence, TieBreakArrival)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.RiskPerTrade <= 0 || r.RiskPerTrade > 1 {
		return fmt.Errorf("risk.risk_per_trade must be within (0,1]")
	}
	if r.DailyLossLimit <= 0 {
		return fmt.Errorf("risk.daily_loss_limit must be > 0")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	switch t.Mode {
	case ModePaper, ModeLive:
	default:
		return fmt.Errorf("trading.mode must be %q or %q", ModePaper, ModeLive)
	}
	if t.StartingBalance < 0 {
		return fmt.Errorf("trading.starting_balance must be >= 0")
	}
	if t.PriceFloor <= 0 {
		return fmt.Errorf("trading.price_floor must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "" {
		return fmt.Errorf("notify.telegram requires bot_token and chat_id when enabled")
	}
	return nil
}

// warnUnreachableBudget 提示：daily_loss_limit 与名义仓位同单位，
// 若首笔名义仓位已超过限额，则所有交易都会被风控拒绝。
func warnUnreachableBudget(c *Config) {
	if !c.Risk.KillSwitch || c.Trading.IsLive() {
		return
	}
	notional := c.Trading.StartingBalance * c.Risk.RiskPerTrade
	if notional > c.Risk.DailyLossLimit {
		logger.Warnf("risk.daily_loss_limit=%.4f is below the first trade notional %.4f (%s); every trade will be risk-denied",
			c.Risk.DailyLossLimit, notional, c.Trading.QuoteCurrency)
	}
}

// IsValidInterval reports whether s is a timeframe the scheduler and kline source accept.
func IsValidInterval(s string) bool {
	_, err := scheduler.ParseTimeframe(s)
	return err == nil
}
