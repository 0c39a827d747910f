// Package app wires configuration into a running trader.
package app

import (
	"context"
	"fmt"
	"time"

	"quorumtrader/internal/config"
	"quorumtrader/internal/engine"
	"quorumtrader/internal/execution"
	"quorumtrader/internal/gateway/notifier"
	"quorumtrader/internal/logger"
	livehttp "quorumtrader/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：交易循环 + 可选 HTTP 服务。
type App struct {
	cfg        *config.Config
	engine     *engine.Engine
	http       *livehttp.Server
	dispatcher *execution.Dispatcher
	notifier   execution.Notifier
	Summary    *StartupSummary
	cleanup    func()
}

func newApp(cfg *config.Config, eng *engine.Engine, srv *livehttp.Server, disp *execution.Dispatcher,
	n execution.Notifier, summary *StartupSummary) *App {
	return &App{cfg: cfg, engine: eng, http: srv, dispatcher: disp, notifier: n, Summary: summary}
}

// NewApp 根据配置构建应用对象（不启动）。调用方负责 Close。
func NewApp(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	a, cleanup, err := buildAppWithWire(cfg, opts)
	if err != nil {
		return nil, err
	}
	a.cleanup = cleanup
	return a, nil
}

// Run 启动交易循环与 HTTP 服务，任一退出即整体退出。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	a.announce(ctx)

	group, gctx := errgroup.WithContext(ctx)
	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(gctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.engine.Run(gctx)
	})
	err := group.Wait()
	if ctx.Err() != nil {
		// 正常退出（信号/取消）
		return nil
	}
	return err
}

// RunOnce 执行一轮后返回，用于 --once。
func (a *App) RunOnce(ctx context.Context) (engine.CycleReport, error) {
	if a == nil || a.engine == nil {
		return engine.CycleReport{}, fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	return a.engine.RunOnce(ctx)
}

func (a *App) Dispatcher() *execution.Dispatcher { return a.dispatcher }

func (a *App) Close() {
	if a != nil && a.cleanup != nil {
		a.cleanup()
		a.cleanup = nil
	}
}

func (a *App) announce(ctx context.Context) {
	if a.notifier == nil || a.Summary == nil {
		return
	}
	if _, nop := a.notifier.(notifier.Nop); nop {
		return
	}
	msg := notifier.StructuredMessage{
		Title:     "quorumtrader started",
		Footer:    fmt.Sprintf("mode=%s timeframe=%s", a.Summary.Mode, a.Summary.Timeframe),
		Timestamp: time.Now(),
	}.
		Section("Symbols", a.Summary.Symbols...).
		Section("Sources", a.Summary.Sources...)
	if err := a.notifier.SendText(ctx, msg.RenderMarkdown()); err != nil {
		logger.Warnf("startup notification failed: %v", err)
	}
}
