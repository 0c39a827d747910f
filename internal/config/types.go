package config

import "strings"

// Config 是 quorumtrader 的主配置载体。
type Config struct {
	App      AppConfig               `toml:"app"`
	Symbols  []string                `toml:"symbols"`
	Data     DataConfig              `toml:"data"`
	Sources  map[string]SourceConfig `toml:"sources"`
	Ensemble EnsembleConfig          `toml:"ensemble"`
	Risk     RiskConfig              `toml:"risk"`
	Trading  TradingConfig           `toml:"trading"`
	Market   MarketConfig            `toml:"market"`
	Exchange ExchangeConfig          `toml:"exchange"`
	Store    StoreConfig             `toml:"store"`
	Prompt   PromptConfig            `toml:"prompt"`
	Webhook  WebhookConfig           `toml:"webhook"`
	Notify   NotifyConfig            `toml:"notify"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	HTTPAddr  string `toml:"http_addr"`
	LogPath   string `toml:"log_path"`
	LLMLog    string `toml:"llm_log_path"`
	LLMDump   bool   `toml:"llm_dump_payload"`
}

// DataConfig 控制行情拉取窗口与决策节奏。
type DataConfig struct {
	Timeframe             string `toml:"timeframe"`
	Lookback              int    `toml:"lookback"`
	DecisionOffsetSeconds int    `toml:"decision_offset_seconds"`
}

// SourceConfig 描述一个参与投票的决策源（模型）。
type SourceConfig struct {
	Enabled        bool              `toml:"enabled"`
	Provider       string            `toml:"provider"`
	Model          string            `toml:"model"`
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	APIKeyEnv      string            `toml:"api_key_env"`
	Headers        map[string]string `toml:"headers"`
	Temperature    float64           `toml:"temperature"`
	TopP           float64           `toml:"top_p"`
	MaxTokens      int               `toml:"max_tokens"`
	TimeoutSeconds float64           `toml:"timeout_seconds"`
}

// ResolvedSource 是合并默认值与环境变量后的最终决策源配置。
type ResolvedSource struct {
	ID             string
	Provider       string
	Model          string
	APIURL         string
	APIKey         string
	Headers        map[string]string
	Temperature    float64
	TopP           float64
	MaxTokens      int
	TimeoutSeconds float64
}

// EnsembleConfig 控制投票阈值与平票规则。
type EnsembleConfig struct {
	MinConfidence       float64 `toml:"min_confidence"`
	RequireAgreement    int     `toml:"require_agreement"`
	RoundTimeoutSeconds float64 `toml:"round_timeout_seconds"`
	TieBreak            string  `toml:"tie_break"`
}

// RiskConfig 描述日内风险预算。daily_loss_limit 与名义仓位使用同一计价单位。
type RiskConfig struct {
	RiskPerTrade     float64 `toml:"risk_per_trade"`
	DailyLossLimit   float64 `toml:"daily_loss_limit"`
	KillSwitch       bool    `toml:"kill_switch"`
	RealizedFeedback bool    `toml:"realized_feedback"`
}

// TradingConfig 控制模拟/实盘与模拟账户参数。
type TradingConfig struct {
	Mode            string  `toml:"mode"`
	StartingBalance float64 `toml:"starting_balance"`
	QuoteCurrency   string  `toml:"quote_currency"`
	PriceFloor      float64 `toml:"price_floor"`
}

func (t TradingConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(t.Mode), ModeLive)
}

type MarketConfig struct {
	RESTBaseURL    string  `toml:"rest_base_url"`
	TimeoutSeconds float64 `toml:"timeout_seconds"`
}

// ExchangeConfig 描述实盘下单所用的 Binance 账户。
type ExchangeConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Testnet   bool   `toml:"testnet"`
}

type StoreConfig struct {
	DecisionLogPath string `toml:"decision_log_path"`
	OrdersPath      string `toml:"orders_path"`
}

type PromptConfig struct {
	TemplatesPath string `toml:"templates_path"`
}

type WebhookConfig struct {
	Secret string `toml:"secret"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

const (
	ModePaper = "paper"
	ModeLive  = "live"

	TieBreakConfidence = "confidence"
	TieBreakArrival    = "arrival"
)

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	if k == nil {
		return
	}
	k[strings.ToLower(path)] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if k == nil {
		return false
	}
	_, ok := k[strings.ToLower(path)]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
