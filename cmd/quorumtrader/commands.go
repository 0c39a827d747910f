package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quorumtrader/internal/app"
	"quorumtrader/internal/config"
	"quorumtrader/internal/engine"
	"quorumtrader/internal/logger"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

var (
	reportOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	reportSkipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	reportErrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
)

type runFlags struct {
	symbols   string
	timeframe string
	paper     bool
	live      bool
	once      bool
	sleep     time.Duration
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quorumtrader",
		Short:         "Multi-model consensus trader",
		Long:          `quorumtrader polls several LLM decision sources, executes only when a quorum agrees and guards every order with a daily risk budget.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().String("config", "", "Configuration file path (default $QUORUM_CONFIG or "+defaultConfigPath+")")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop",
		Example: `  quorumtrader run --symbols BTC/USDT,ETH/USDT --timeframe 15m --paper
  quorumtrader run --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, f, app.Options{Sleep: f.sleep})
		},
	}
	bindRunFlags(cmd, &f)
	return cmd
}

func newServeCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the trading loop together with the webhook/status HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.once {
				return fmt.Errorf("--once cannot be combined with serve")
			}
			return execute(cmd, f, app.Options{Serve: true, Sleep: f.sleep})
		},
	}
	bindRunFlags(cmd, &f)
	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quorumtrader %s\n", version)
		},
	}
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	fl := cmd.Flags()
	fl.StringVar(&f.symbols, "symbols", "", "Comma separated symbols, e.g. BTC/USDT,ETH/USDT")
	fl.StringVar(&f.timeframe, "timeframe", "", "Candle timeframe, e.g. 5m")
	fl.BoolVar(&f.paper, "paper", false, "Force paper trading")
	fl.BoolVar(&f.live, "live", false, "Force live trading")
	fl.BoolVar(&f.once, "once", false, "Run one cycle and exit")
	fl.DurationVar(&f.sleep, "sleep", 0, "Fixed pause between cycles (0 aligns to candle close)")
	cmd.MarkFlagsMutuallyExclusive("paper", "live")
}

func execute(cmd *cobra.Command, f runFlags, opts app.Options) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadEnv(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger.SetFormat(cfg.App.LogFormat)
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		return fmt.Errorf("初始化日志文件失败: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLLMWriter(nil)
	if cfg.App.LLMDump {
		llmFile, err := setupLLMLogOutput(cfg.App.LLMLog)
		if err != nil {
			return fmt.Errorf("初始化 LLM 日志失败: %w", err)
		}
		if llmFile != nil {
			defer llmFile.Close()
		}
	}
	logger.EnableLLMPayloadDump(cfg.App.LLMDump)
	logger.Infof("✓ 配置加载成功（环境=%s，模式=%s，symbols=%s）", cfg.App.Env, cfg.Trading.Mode, strings.Join(cfg.Symbols, ","))

	a, err := app.NewApp(cfg, opts)
	if err != nil {
		return fmt.Errorf("初始化应用失败: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.once {
		report, err := a.RunOnce(ctx)
		printReport(cmd, report)
		if errors.Is(err, engine.ErrCycleFailed) {
			return err
		}
		return nil
	}
	return a.Run(ctx)
}

// loadConfig 解析配置路径（flag > QUORUM_CONFIG > 默认）并应用命令行覆盖。
func loadConfig(cmd *cobra.Command, f runFlags) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("QUORUM_CONFIG")
	}
	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	if err := applyOverrides(cfg, f); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, f runFlags) error {
	if strings.TrimSpace(f.symbols) != "" {
		syms := config.SplitSymbols(f.symbols)
		for _, s := range syms {
			if !strings.Contains(s, "/") {
				return fmt.Errorf("--symbols: %q must use BASE/QUOTE form", s)
			}
		}
		if len(syms) > 0 {
			cfg.Symbols = syms
		}
	}
	if tf := strings.ToLower(strings.TrimSpace(f.timeframe)); tf != "" {
		if !config.IsValidInterval(tf) {
			return fmt.Errorf("--timeframe %q is invalid", f.timeframe)
		}
		cfg.Data.Timeframe = tf
	}
	switch {
	case f.paper:
		cfg.Trading.Mode = config.ModePaper
	case f.live:
		cfg.Trading.Mode = config.ModeLive
	}
	if f.sleep < 0 {
		return fmt.Errorf("--sleep must be >= 0")
	}
	return nil
}

func printReport(cmd *cobra.Command, report engine.CycleReport) {
	out := cmd.OutOrStdout()
	for _, sr := range report.Symbols {
		switch {
		case sr.Err != nil:
			fmt.Fprintf(out, "%s %s: %v\n", reportErrStyle.Render("ERR "), sr.Symbol, sr.Err)
		case sr.Consensus == nil:
			fmt.Fprintf(out, "%s %s: no consensus\n", reportSkipStyle.Render("HOLD"), sr.Symbol)
		case sr.Skip != "":
			fmt.Fprintf(out, "%s %s %s: %s\n", reportSkipStyle.Render("SKIP"), sr.Symbol, sr.Consensus.Action, sr.Skip)
		default:
			fmt.Fprintf(out, "%s %s %s conf=%.2f\n", reportOKStyle.Render("OK  "), sr.Symbol, sr.Consensus.Action, sr.Consensus.Confidence)
		}
	}
}
