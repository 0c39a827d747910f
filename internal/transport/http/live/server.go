// Package livehttp serves the signal webhook and read-only status endpoints.
package livehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"quorumtrader/internal/logger"
	"quorumtrader/internal/market"

	"github.com/gin-gonic/gin"
)

// Server 提供 webhook 与状态查询 HTTP 服务。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖；Decisions/Orders 可为空。
type ServerConfig struct {
	Addr      string
	Secret    string
	Trader    Trader
	Risk      RiskReporter
	Prices    market.PriceSource
	Decisions DecisionLog
	Orders    OrderLog
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Trader == nil || cfg.Prices == nil {
		return nil, errors.New("http server requires a trader and a price source")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": cfg.Trader.Mode()})
	})
	NewRouter(cfg).Register(router.Group("/api"))
	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// requestLogger 记录接口调用，便于追踪。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path += "?" + q
		}
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http server listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
