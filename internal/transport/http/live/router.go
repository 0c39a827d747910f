package livehttp

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/execution"
	"quorumtrader/internal/logger"
	"quorumtrader/internal/market"
	"quorumtrader/internal/pkg/symbol"
	"quorumtrader/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
)

const (
	secretHeader = "X-Webhook-Secret"
	defaultLimit = 50
)

// Router 暴露 webhook 与查询接口。
type Router struct {
	secret    string
	trader    Trader
	risk      RiskReporter
	prices    market.PriceSource
	decisions DecisionLog
	orders    OrderLog
}

func NewRouter(cfg ServerConfig) *Router {
	return &Router{
		secret:    strings.TrimSpace(cfg.Secret),
		trader:    cfg.Trader,
		risk:      cfg.Risk,
		prices:    cfg.Prices,
		decisions: cfg.Decisions,
		orders:    cfg.Orders,
	}
}

// Register 将路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/signal", r.requireSecret, r.handleSignal)
	group.POST("/positions/:symbol/close", r.requireSecret, r.handleClose)
	group.GET("/positions", r.handlePositions)
	group.GET("/risk", r.handleRisk)
	group.GET("/decisions", r.handleDecisions)
	group.GET("/decisions/:trace", r.handleTrace)
	group.GET("/orders", r.handleOrders)
	group.GET("/pnl", r.handlePnL)
}

// requireSecret 仅在配置了 secret 时校验。
func (r *Router) requireSecret(c *gin.Context) {
	if r.secret == "" {
		c.Next()
		return
	}
	got := c.GetHeader(secretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(r.secret)) != 1 {
		logger.Warnf("invalid webhook secret ip=%s", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid secret"})
		return
	}
	c.Next()
}

func (r *Router) handleSignal(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	side := strings.ToLower(strings.TrimSpace(req.Side))
	if side != string(decision.Buy) && side != string(decision.Sell) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be buy or sell"})
		return
	}
	sym, err := symbol.Parse(req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("received webhook signal for %s: %s conf=%.2f reason=%q", sym, side, *req.Confidence, req.Reason)

	ctx := c.Request.Context()
	price, err := r.prices.LastPrice(ctx, sym.String())
	if err != nil {
		logger.Errorf("webhook: fetch latest price for %s failed: %v", sym, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch price"})
		return
	}
	res, skip, err := r.trader.Execute(ctx, execution.Order{
		Symbol:       sym.String(),
		Action:       decision.Action(side),
		Price:        price,
		StopFraction: *req.StopPct,
		TakeFraction: *req.TakePct,
	})
	if err != nil {
		logger.TaggedErrorf(logger.TagDispatch, "webhook signal %s %s: %v", sym, side, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, SignalResponse{Status: "ok", Skipped: skip, Result: res})
}

func (r *Router) handleClose(c *gin.Context) {
	raw := strings.ReplaceAll(c.Param("symbol"), "-", "/")
	sym, err := symbol.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req CloseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	ctx := c.Request.Context()
	price := req.Price
	if price <= 0 {
		if price, err = r.prices.LastPrice(ctx, sym.String()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch price"})
			return
		}
	}
	res, err := r.trader.ClosePosition(ctx, sym.String(), price)
	switch {
	case errors.Is(err, execution.ErrNoPosition):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, execution.ErrCloseUnsupported):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "result": res})
	}
}

func (r *Router) handlePositions(c *gin.Context) {
	positions := r.trader.Positions()
	if positions == nil {
		positions = []execution.Position{}
	}
	c.JSON(http.StatusOK, gin.H{"mode": r.trader.Mode(), "positions": positions})
}

func (r *Router) handleRisk(c *gin.Context) {
	if r.risk == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "risk ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, r.risk.Status())
}

func (r *Router) handleDecisions(c *gin.Context) {
	if r.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log disabled"})
		return
	}
	recs, err := r.decisions.Recent(c.Request.Context(), decisionlog.Query{
		Symbol:   c.Query("symbol"),
		SourceID: c.Query("source"),
		Stage:    c.Query("stage"),
		Limit:    parseLimit(c),
	})
	if err != nil {
		logger.Errorf("[api] decisions list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if recs == nil {
		recs = []decisionlog.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": recs})
}

// handleTrace 返回一轮投票的全部记录（各决策源 + 共识）。
func (r *Router) handleTrace(c *gin.Context) {
	if r.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log disabled"})
		return
	}
	trace := strings.TrimSpace(c.Param("trace"))
	recs, err := r.decisions.ByTrace(c.Request.Context(), trace)
	if err != nil {
		logger.Errorf("[api] trace %s lookup failed ip=%s err=%v", trace, c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(recs) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trace_id": trace, "records": recs})
}

func (r *Router) handleOrders(c *gin.Context) {
	if r.orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order log disabled"})
		return
	}
	sym := c.Query("symbol")
	if sym != "" {
		if parsed, err := symbol.Parse(sym); err == nil {
			sym = parsed.String()
		}
	}
	orders, err := r.orders.RecentOrders(c.Request.Context(), sym, parseLimit(c))
	if err != nil {
		logger.Errorf("[api] orders list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if orders == nil {
		orders = []execution.OrderResult{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// handlePnL 汇总 since（RFC3339，默认当日 UTC 零点）之后的已实现盈亏。
func (r *Router) handlePnL(c *gin.Context) {
	if r.orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order log disabled"})
		return
	}
	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = ts.UTC()
	}
	pnl, err := r.orders.RealizedPnL(c.Request.Context(), since)
	if err != nil {
		logger.Errorf("[api] pnl failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since.Format(time.RFC3339), "realized_pnl": pnl})
}

func parseLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	return limit
}
