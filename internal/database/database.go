package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

// Models

// HedgeTrade is one completed two-leg hedge round trip
type HedgeTrade struct {
	ID       string `gorm:"primaryKey"`
	RoundID  string `gorm:"index"`
	Question string

	Leg1Outcome string // "UP" or "DOWN"
	Leg1TokenID string
	Leg1Price   decimal.Decimal `gorm:"type:decimal(10,6)"`
	Leg1Shares  decimal.Decimal `gorm:"type:decimal(20,6)"`

	Leg2Outcome string
	Leg2TokenID string
	Leg2Price   decimal.Decimal `gorm:"type:decimal(10,6)"`
	Leg2Shares  decimal.Decimal `gorm:"type:decimal(20,6)"`

	CombinedCost   decimal.Decimal `gorm:"type:decimal(20,6)"`
	ExpectedPayout decimal.Decimal `gorm:"type:decimal(20,6)"`
	Profit         decimal.Decimal `gorm:"type:decimal(20,6)"`

	ExecutedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RoundSnapshot records each round the bot watched, for later review
type RoundSnapshot struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	RoundID          string `gorm:"index"`
	Question         string
	UpTokenID        string
	DownTokenID      string
	EndTime          time.Time
	AttachedAt       time.Time
	Triggered        bool
	Hedged           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	// Check if this is a PostgreSQL connection string
	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		// SQLite fallback
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&HedgeTrade{}, &RoundSnapshot{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Trade operations

func (d *Database) SaveTrade(trade *HedgeTrade) error {
	return d.db.Create(trade).Error
}

func (d *Database) GetTrade(id string) (*HedgeTrade, error) {
	var trade HedgeTrade
	err := d.db.First(&trade, "id = ?", id).Error
	return &trade, err
}

func (d *Database) GetRecentTrades(limit int) ([]HedgeTrade, error) {
	var trades []HedgeTrade
	err := d.db.Order("executed_at DESC").Limit(limit).Find(&trades).Error
	return trades, err
}

func (d *Database) GetTradesByRound(roundID string) ([]HedgeTrade, error) {
	var trades []HedgeTrade
	err := d.db.Where("round_id = ?", roundID).Order("executed_at ASC").Find(&trades).Error
	return trades, err
}

// TradeStats aggregates lifetime performance over the journal
type TradeStats struct {
	Count       int64
	TotalCost   decimal.Decimal
	TotalProfit decimal.Decimal
}

func (d *Database) GetTradeStats() (TradeStats, error) {
	stats := TradeStats{TotalCost: decimal.Zero, TotalProfit: decimal.Zero}

	if err := d.db.Model(&HedgeTrade{}).Count(&stats.Count).Error; err != nil {
		return stats, err
	}

	var trades []HedgeTrade
	if err := d.db.Select("combined_cost", "profit").Find(&trades).Error; err != nil {
		return stats, err
	}
	for _, t := range trades {
		stats.TotalCost = stats.TotalCost.Add(t.CombinedCost)
		stats.TotalProfit = stats.TotalProfit.Add(t.Profit)
	}
	return stats, nil
}

// Round operations

func (d *Database) SaveRound(round *RoundSnapshot) error {
	return d.db.Create(round).Error
}

func (d *Database) MarkRoundHedged(roundID string) error {
	return d.db.Model(&RoundSnapshot{}).Where("round_id = ?", roundID).
		Updates(map[string]interface{}{"triggered": true, "hedged": true}).Error
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
