package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"straddle-bot-go/internal/models"
)

// Store is the persistence layer for trades and the bot configuration.
// The engine saves through it after every trade creation, close, and
// config update.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an opened database connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// SaveTrade inserts a new trade or updates an existing one in place.
func (s *Store) SaveTrade(trade *models.Trade) error {
	if trade.ID == 0 {
		if err := s.db.Create(trade).Error; err != nil {
			return fmt.Errorf("failed to create trade %s: %w", trade.TradeID, err)
		}
		return nil
	}
	if err := s.db.Save(trade).Error; err != nil {
		return fmt.Errorf("failed to save trade %s: %w", trade.TradeID, err)
	}
	return nil
}

// LoadTrades returns the full trade history, oldest first.
func (s *Store) LoadTrades() ([]*models.Trade, error) {
	var trades []*models.Trade
	if err := s.db.Order("entry_time asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("failed to load trades: %w", err)
	}
	return trades, nil
}

// LoadConfig returns the saved bot configuration, seeding the single row
// with defaults on first run.
func (s *Store) LoadConfig() (models.BotConfig, error) {
	cfg := models.DefaultBotConfig()
	if err := s.db.FirstOrCreate(&cfg, models.BotConfig{}).Error; err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// SaveConfig overwrites the single configuration row.
func (s *Store) SaveConfig(cfg *models.BotConfig) error {
	var current models.BotConfig
	err := s.db.First(&current).Error
	if err == nil {
		cfg.ID = current.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := s.db.Save(cfg).Error; err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}
