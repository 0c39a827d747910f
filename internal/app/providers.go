package app

import (
	"fmt"
	"strings"
	"time"

	"quorumtrader/internal/config"
	"quorumtrader/internal/decision"
	"quorumtrader/internal/engine"
	"quorumtrader/internal/execution"
	"quorumtrader/internal/gateway/binance"
	"quorumtrader/internal/gateway/notifier"
	"quorumtrader/internal/gateway/provider"
	"quorumtrader/internal/logger"
	"quorumtrader/internal/prompt"
	"quorumtrader/internal/risk"
	"quorumtrader/internal/scheduler"
	"quorumtrader/internal/store/decisionlog"
	"quorumtrader/internal/store/gormstore"
	livehttp "quorumtrader/internal/transport/http/live"
)

// Options 是命令行层面的运行参数，不进入配置文件。
type Options struct {
	// Serve 启动 HTTP（webhook + 状态接口）。
	Serve bool
	// Sleep > 0 时使用固定间隔调度，否则按 K 线收盘对齐。
	Sleep time.Duration
}

func provideParser() (*decision.Parser, error) {
	return decision.NewParser()
}

func provideSources(cfg *config.Config, parser *decision.Parser) []decision.Source {
	return provider.BuildSources(cfg, parser)
}

func provideDecisionLog(cfg *config.Config) (*decisionlog.Store, func(), error) {
	st, err := decisionlog.Open(cfg.Store.DecisionLogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open decision log: %w", err)
	}
	return st, func() { _ = st.Close() }, nil
}

func provideOrderStore(cfg *config.Config) (*gormstore.Store, func(), error) {
	st, err := gormstore.Open(cfg.Store.OrdersPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open order store: %w", err)
	}
	return st, func() { _ = st.Close() }, nil
}

func provideEnsemble(cfg *config.Config, sources []decision.Source, logs *decisionlog.Store) *decision.Ensemble {
	if len(sources) == 0 {
		logger.Warnf("no decision source is enabled with a resolvable api key; every round will hold")
	}
	policy := decision.EnsemblePolicy{
		MinConfidence:     cfg.Ensemble.MinConfidence,
		RequiredAgreement: cfg.Ensemble.RequireAgreement,
		TieBreak:          decision.TieBreak(cfg.Ensemble.TieBreak),
		RoundTimeout:      seconds(cfg.Ensemble.RoundTimeoutSeconds),
	}
	return decision.NewEnsemble(sources, policy, logs)
}

func provideLedger(cfg *config.Config) *risk.Ledger {
	return risk.NewLedger(risk.Policy{
		RiskPerTrade:   cfg.Risk.RiskPerTrade,
		DailyLossLimit: cfg.Risk.DailyLossLimit,
		KillSwitch:     cfg.Risk.KillSwitch,
	})
}

func binanceConfig(cfg *config.Config) binance.Config {
	return binance.Config{
		RESTBaseURL: cfg.Market.RESTBaseURL,
		HTTPTimeout: seconds(cfg.Market.TimeoutSeconds),
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		Testnet:     cfg.Exchange.Testnet,
	}
}

func provideMarket(cfg *config.Config) *binance.Source {
	bc := binanceConfig(cfg)
	if cfg.Exchange.Testnet {
		// 测试网行情走 go-binance 内置地址
		bc.RESTBaseURL = ""
	}
	return binance.NewSource(bc)
}

func provideBackend(cfg *config.Config) (execution.Backend, error) {
	if !cfg.Trading.IsLive() {
		return execution.NewPaperAccount(cfg.Trading.StartingBalance, cfg.Trading.PriceFloor), nil
	}
	bc := binanceConfig(cfg)
	if cfg.Exchange.Testnet {
		bc.RESTBaseURL = ""
	}
	sink, err := binance.NewSink(bc)
	if err != nil {
		return nil, err
	}
	return execution.NewLiveBackend(sink, cfg.Trading.QuoteCurrency), nil
}

func provideNotifier(cfg *config.Config) execution.Notifier {
	tg := cfg.Notify.Telegram
	if !tg.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(tg.BotToken, tg.ChatID)
}

func provideDispatcher(cfg *config.Config, ledger *risk.Ledger, backend execution.Backend, orders *gormstore.Store, n execution.Notifier) *execution.Dispatcher {
	return execution.NewDispatcher(ledger, backend,
		execution.WithRecorder(orders),
		execution.WithNotifier(n),
		execution.WithRealizedFeedback(cfg.Risk.RealizedFeedback),
	)
}

func providePrompts(cfg *config.Config) (*prompt.Builder, error) {
	path := strings.TrimSpace(cfg.Prompt.TemplatesPath)
	if path == "" {
		return prompt.NewBuilder(nil), nil
	}
	reg, err := prompt.NewRegistry(path)
	if err != nil {
		return nil, err
	}
	return prompt.NewBuilder(reg), nil
}

func provideScheduler(cfg *config.Config, opts Options) (scheduler.Scheduler, error) {
	if opts.Sleep > 0 {
		return scheduler.Fixed{Pause: opts.Sleep}, nil
	}
	interval, err := scheduler.ParseTimeframe(cfg.Data.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	offset := time.Duration(cfg.Data.DecisionOffsetSeconds) * time.Second
	return scheduler.NewAligned(interval, offset, config.DecisionRunImmediately), nil
}

func provideEngine(cfg *config.Config, candles *binance.Source, prompts *prompt.Builder, ens *decision.Ensemble,
	disp *execution.Dispatcher, sched scheduler.Scheduler, n execution.Notifier) *engine.Engine {
	return engine.New(engine.Params{
		Symbols:   cfg.Symbols,
		Timeframe: cfg.Data.Timeframe,
		Lookback:  cfg.Data.Lookback,
		Candles:   candles,
		Prompts:   prompts,
		Decider:   ens,
		Executor:  disp,
		Scheduler: sched,
		Notifier:  n,
	})
}

func provideHTTP(cfg *config.Config, opts Options, disp *execution.Dispatcher, ledger *risk.Ledger,
	prices *binance.Source, logs *decisionlog.Store, orders *gormstore.Store) (*livehttp.Server, error) {
	if !opts.Serve {
		return nil, nil
	}
	return livehttp.NewServer(livehttp.ServerConfig{
		Addr:      cfg.App.HTTPAddr,
		Secret:    cfg.Webhook.Secret,
		Trader:    disp,
		Risk:      ledger,
		Prices:    prices,
		Decisions: logs,
		Orders:    orders,
	})
}

func provideSummary(cfg *config.Config, ens *decision.Ensemble, opts Options) *StartupSummary {
	return NewStartupSummary(cfg, ens.SourceIDs(), opts)
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
