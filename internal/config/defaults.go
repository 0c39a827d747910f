package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogFormat      = "text"
	defaultAppHTTPAddr       = ":9991"
	defaultSymbol            = "BTC/USDT"
	defaultTimeframe         = "5m"
	defaultLookback          = 200
	defaultDecisionOffset    = 10
	defaultSourceTemperature = 0.2
	defaultSourceTopP        = 1.0
	defaultSourceMaxTokens   = 512
	defaultSourceTimeout     = 30.0
	defaultMinConfidence     = 0.6
	defaultRequireAgreement  = 2
	defaultRiskPerTrade      = 0.01
	defaultDailyLossLimit    = 0.05
	defaultStartingBalance   = 10_000.0
	defaultPriceFloor        = 1e-9
	defaultMarketREST        = "https://api.binance.com"
	defaultMarketTimeout     = 15.0
	defaultDecisionLogPath   = "data/decisions.db"
	defaultOrdersPath        = "data/orders.db"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Symbols = normalizeSymbols(c.Symbols)
	if len(c.Symbols) == 0 && !keys.isSet("symbols") {
		c.Symbols = []string{defaultSymbol}
	}
	c.Data.applyDefaults(keys)
	if c.Sources == nil {
		c.Sources = make(map[string]SourceConfig)
	}
	for id, src := range c.Sources {
		src.applyDefaults(strings.ToLower(id), keys)
		c.Sources[id] = src
	}
	c.Ensemble.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Trading.applyDefaults(keys, c.Symbols)
	c.Market.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	d.Timeframe = strings.ToLower(strings.TrimSpace(d.Timeframe))
	applyFieldDefaults(keys,
		stringFieldDefault("data.timeframe", &d.Timeframe, defaultTimeframe),
		fieldDefault{
			key:   "data.lookback",
			need:  func() bool { return d.Lookback <= 0 },
			apply: func() { d.Lookback = defaultLookback },
		},
		fieldDefault{
			key:   "data.decision_offset_seconds",
			need:  func() bool { return d.DecisionOffsetSeconds == 0 },
			apply: func() { d.DecisionOffsetSeconds = defaultDecisionOffset },
		},
	)
}

func (s *SourceConfig) applyDefaults(id string, keys keySet) {
	prefix := "sources." + id + "."
	s.Provider = strings.ToLower(strings.TrimSpace(s.Provider))
	if s.Provider == "" {
		switch id {
		case ProviderOpenAI, ProviderAnthropic, ProviderGrok:
			s.Provider = id
		default:
			s.Provider = ProviderOpenAICompatible
		}
	}
	applyFieldDefaults(keys,
		boolFieldDefault(prefix+"enabled", &s.Enabled, true),
		fieldDefault{
			key:   prefix + "temperature",
			need:  func() bool { return s.Temperature == 0 },
			apply: func() { s.Temperature = defaultSourceTemperature },
		},
		fieldDefault{
			key:   prefix + "top_p",
			need:  func() bool { return s.TopP == 0 },
			apply: func() { s.TopP = defaultSourceTopP },
		},
		fieldDefault{
			key:   prefix + "max_tokens",
			need:  func() bool { return s.MaxTokens <= 0 },
			apply: func() { s.MaxTokens = defaultSourceMaxTokens },
		},
		fieldDefault{
			key:   prefix + "timeout_seconds",
			need:  func() bool { return s.TimeoutSeconds <= 0 },
			apply: func() { s.TimeoutSeconds = defaultSourceTimeout },
		},
	)
	if strings.TrimSpace(s.Model) == "" {
		s.Model = defaultModels[s.Provider]
	}
	if strings.TrimSpace(s.APIURL) == "" {
		s.APIURL = defaultAPIURLs[s.Provider]
	}
}

func (e *EnsembleConfig) applyDefaults(keys keySet) {
	e.TieBreak = strings.ToLower(strings.TrimSpace(e.TieBreak))
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "ensemble.min_confidence",
			need:  func() bool { return e.MinConfidence == 0 },
			apply: func() { e.MinConfidence = defaultMinConfidence },
		},
		fieldDefault{
			key:   "ensemble.require_agreement",
			need:  func() bool { return e.RequireAgreement == 0 },
			apply: func() { e.RequireAgreement = defaultRequireAgreement },
		},
		stringFieldDefault("ensemble.tie_break", &e.TieBreak, TieBreakConfidence),
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.risk_per_trade",
			need:  func() bool { return r.RiskPerTrade == 0 },
			apply: func() { r.RiskPerTrade = defaultRiskPerTrade },
		},
		fieldDefault{
			key:   "risk.daily_loss_limit",
			need:  func() bool { return r.DailyLossLimit == 0 },
			apply: func() { r.DailyLossLimit = defaultDailyLossLimit },
		},
		boolFieldDefault("risk.kill_switch", &r.KillSwitch, true),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet, symbols []string) {
	t.Mode = strings.ToLower(strings.TrimSpace(t.Mode))
	applyFieldDefaults(keys,
		stringFieldDefault("trading.mode", &t.Mode, ModePaper),
		fieldDefault{
			key:   "trading.starting_balance",
			need:  func() bool { return t.StartingBalance == 0 },
			apply: func() { t.StartingBalance = defaultStartingBalance },
		},
		fieldDefault{
			key:   "trading.price_floor",
			need:  func() bool { return t.PriceFloor <= 0 },
			apply: func() { t.PriceFloor = defaultPriceFloor },
		},
	)
	t.QuoteCurrency = strings.ToUpper(strings.TrimSpace(t.QuoteCurrency))
	if t.QuoteCurrency == "" && len(symbols) > 0 {
		if parts := strings.SplitN(symbols[0], "/", 2); len(parts) == 2 {
			t.QuoteCurrency = parts[1]
		}
	}
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("market.rest_base_url", &m.RESTBaseURL, defaultMarketREST),
		fieldDefault{
			key:   "market.timeout_seconds",
			need:  func() bool { return m.TimeoutSeconds <= 0 },
			apply: func() { m.TimeoutSeconds = defaultMarketTimeout },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("store.decision_log_path", &s.DecisionLogPath, defaultDecisionLogPath),
		stringFieldDefault("store.orders_path", &s.OrdersPath, defaultOrdersPath),
	)
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, sym := range in {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}

// SplitSymbols parses a comma separated CLI value into normalized symbols.
func SplitSymbols(raw string) []string {
	return normalizeSymbols(strings.Split(raw, ","))
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() {
			*target = def
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func describeSource(id string, s SourceConfig) string {
	return fmt.Sprintf("%s(provider=%s model=%s)", id, s.Provider, s.Model)
}
