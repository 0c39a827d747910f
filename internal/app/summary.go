package app

import (
	"fmt"
	"os"
	"strings"

	"quorumtrader/internal/config"

	"github.com/charmbracelet/lipgloss"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#7C3AED")).
				Padding(0, 1)

	summaryBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	summaryKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(18)

	summaryWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#EF4444")).
				Bold(true)
)

// StartupSummary 启动配置摘要。
type StartupSummary struct {
	Mode          string
	Symbols       []string
	Timeframe     string
	Lookback      int
	Sources       []string
	MinConfidence float64
	Agreement     int
	TieBreak      string
	RiskPerTrade  float64
	DailyLimit    float64
	KillSwitch    bool
	Feedback      bool
	Schedule      string
	HTTPAddr      string
}

func NewStartupSummary(cfg *config.Config, sources []string, opts Options) *StartupSummary {
	s := &StartupSummary{
		Mode:          cfg.Trading.Mode,
		Symbols:       append([]string(nil), cfg.Symbols...),
		Timeframe:     cfg.Data.Timeframe,
		Lookback:      cfg.Data.Lookback,
		Sources:       append([]string(nil), sources...),
		MinConfidence: cfg.Ensemble.MinConfidence,
		Agreement:     cfg.Ensemble.RequireAgreement,
		TieBreak:      cfg.Ensemble.TieBreak,
		RiskPerTrade:  cfg.Risk.RiskPerTrade,
		DailyLimit:    cfg.Risk.DailyLossLimit,
		KillSwitch:    cfg.Risk.KillSwitch,
		Feedback:      cfg.Risk.RealizedFeedback,
		Schedule:      fmt.Sprintf("aligned to %s close +%ds", cfg.Data.Timeframe, cfg.Data.DecisionOffsetSeconds),
	}
	if opts.Sleep > 0 {
		s.Schedule = "every " + opts.Sleep.String()
	}
	if opts.Serve {
		s.HTTPAddr = cfg.App.HTTPAddr
	}
	return s
}

// Render 生成带边框的摘要文本。
func (s *StartupSummary) Render() string {
	row := func(k, v string) string {
		return summaryKeyStyle.Render(k) + v
	}
	mode := s.Mode
	if strings.EqualFold(mode, config.ModeLive) {
		mode = summaryWarnStyle.Render(strings.ToUpper(mode))
	}
	sources := formatList(s.Sources)
	if len(s.Sources) < s.Agreement {
		sources = summaryWarnStyle.Render(sources + fmt.Sprintf(" (fewer than require_agreement=%d)", s.Agreement))
	}
	lines := []string{
		row("mode", mode),
		row("symbols", formatList(s.Symbols)),
		row("timeframe", fmt.Sprintf("%s (lookback %d)", s.Timeframe, s.Lookback)),
		row("schedule", s.Schedule),
		row("sources", sources),
		row("quorum", fmt.Sprintf("%d votes, min confidence %.2f, tie-break %s", s.Agreement, s.MinConfidence, s.TieBreak)),
		row("risk per trade", fmt.Sprintf("%.4f", s.RiskPerTrade)),
		row("daily loss limit", fmt.Sprintf("%.4f (kill switch %v, realized feedback %v)", s.DailyLimit, s.KillSwitch, s.Feedback)),
	}
	if s.HTTPAddr != "" {
		lines = append(lines, row("http", s.HTTPAddr))
	}
	return summaryTitleStyle.Render("STARTUP SUMMARY") + "\n" + summaryBoxStyle.Render(strings.Join(lines, "\n"))
}

func (s *StartupSummary) Print() {
	fmt.Fprintln(os.Stdout, s.Render())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
