// Package gormstore keeps the order audit trail in SQLite through gorm.
package gormstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quorumtrader/internal/decision"
	"quorumtrader/internal/execution"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// OrderModel 对应 orders 表，每次成交/平仓一行，只追加。
type OrderModel struct {
	ID          int64          `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID     string         `gorm:"column:order_id;index"`
	Symbol      string         `gorm:"column:symbol;index:idx_orders_symbol_at"`
	Side        string         `gorm:"column:side"`
	Size        float64        `gorm:"column:size"`
	Price       float64        `gorm:"column:price"`
	Notional    float64        `gorm:"column:notional"`
	Status      string         `gorm:"column:status"`
	Mode        string         `gorm:"column:mode"`
	RealizedPnL float64        `gorm:"column:realized_pnl"`
	At          time.Time      `gorm:"column:at;index:idx_orders_symbol_at"`
	Raw         datatypes.JSON `gorm:"column:raw"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
}

func (OrderModel) TableName() string { return "orders" }

// Store implements execution.OrderRecorder.
type Store struct {
	db *gorm.DB
}

var _ execution.OrderRecorder = (*Store)(nil)

// Open 初始化 gorm + SQLite。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: orders path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return FromDB(db)
}

// FromDB wraps an existing gorm handle and migrates the schema.
func FromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&OrderModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		// SQLite + WAL: a little read parallelism for HTTP while keeping lock contention low.
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) RecordOrder(ctx context.Context, res execution.OrderResult) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	at := res.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	row := OrderModel{
		OrderID:     res.OrderID,
		Symbol:      res.Symbol,
		Side:        string(res.Side),
		Size:        res.Size,
		Price:       res.Price,
		Notional:    res.Notional,
		Status:      res.Status,
		Mode:        res.Mode,
		RealizedPnL: res.RealizedPnL,
		At:          at,
		Raw:         datatypes.JSON(raw),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// RecentOrders lists the newest orders first; symbol filters when non-empty.
func (s *Store) RecentOrders(ctx context.Context, symbol string, limit int) ([]execution.OrderResult, error) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	q := s.db.WithContext(ctx).Model(&OrderModel{})
	if sym := strings.ToUpper(strings.TrimSpace(symbol)); sym != "" {
		q = q.Where("symbol = ?", sym)
	}
	var rows []OrderModel
	if err := q.Order("at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]execution.OrderResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toResult())
	}
	return out, nil
}

// RealizedPnL sums realized PnL of closes at or after since.
func (s *Store) RealizedPnL(ctx context.Context, since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := s.db.WithContext(ctx).Model(&OrderModel{}).
		Where("status = ? AND at >= ?", execution.StatusClosed, since).
		Select("SUM(realized_pnl)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

func (m OrderModel) toResult() execution.OrderResult {
	return execution.OrderResult{
		Symbol:      m.Symbol,
		Side:        decision.Action(m.Side),
		Size:        m.Size,
		Price:       m.Price,
		Notional:    m.Notional,
		Status:      m.Status,
		OrderID:     m.OrderID,
		Mode:        m.Mode,
		RealizedPnL: m.RealizedPnL,
		At:          m.At.UTC(),
	}
}
