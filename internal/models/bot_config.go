package models

import (
	"errors"

	"gorm.io/gorm"
)

// BotConfig holds the runtime strategy parameters. It is persisted as a
// single row and only mutated through the engine's update operation.
type BotConfig struct {
	gorm.Model           `json:"-"`
	Quantity             float64 `json:"quantity"`
	PremiumMin           float64 `json:"premiumMin"`
	PremiumMax           float64 `json:"premiumMax"`
	PremiumGap           float64 `json:"premiumGap"`
	StopLossPercentage   float64 `json:"stopLossPercentage"`
	TakeProfitPercentage float64 `json:"takeProfitPercentage"`
	EntryHour            int     `json:"entryHour"`
	EntryMinute          int     `json:"entryMinute"`
	ExitHour             int     `json:"exitHour"`
	ExitMinute           int     `json:"exitMinute"`
	ReentryCutoffHour    int     `json:"reentryCutoffHour"`
	NoTradeOnThursday    bool    `json:"noTradeOnThursday"`
}

// DefaultBotConfig returns the stock parameters used when no saved
// configuration exists yet.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Quantity:             1, // in lots
		PremiumMin:           360,
		PremiumMax:           440,
		PremiumGap:           50,
		StopLossPercentage:   90,
		TakeProfitPercentage: 90,
		EntryHour:            21,
		EntryMinute:          35,
		ExitHour:             17,
		ExitMinute:           25,
		ReentryCutoffHour:    15,
		NoTradeOnThursday:    true,
	}
}

// Validate rejects parameter combinations the engine cannot trade with.
func (c *BotConfig) Validate() error {
	if c.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if c.PremiumMin > c.PremiumMax {
		return errors.New("premiumMin must not exceed premiumMax")
	}
	if c.StopLossPercentage < 0 || c.TakeProfitPercentage < 0 {
		return errors.New("stop-loss and take-profit percentages must be non-negative")
	}
	if c.EntryHour < 0 || c.EntryHour > 23 || c.ExitHour < 0 || c.ExitHour > 23 {
		return errors.New("entry/exit hour must be within 0-23")
	}
	if c.EntryMinute < 0 || c.EntryMinute > 59 || c.ExitMinute < 0 || c.ExitMinute > 59 {
		return errors.New("entry/exit minute must be within 0-59")
	}
	if c.ReentryCutoffHour < 0 || c.ReentryCutoffHour > 23 {
		return errors.New("reentryCutoffHour must be within 0-23")
	}
	return nil
}

// BotConfigPatch is a field-by-field merge update. Nil fields keep their
// current value, so a caller can change one parameter without knowing the
// rest.
type BotConfigPatch struct {
	Quantity             *float64 `json:"quantity,omitempty"`
	PremiumMin           *float64 `json:"premiumMin,omitempty"`
	PremiumMax           *float64 `json:"premiumMax,omitempty"`
	PremiumGap           *float64 `json:"premiumGap,omitempty"`
	StopLossPercentage   *float64 `json:"stopLossPercentage,omitempty"`
	TakeProfitPercentage *float64 `json:"takeProfitPercentage,omitempty"`
	EntryHour            *int     `json:"entryHour,omitempty"`
	EntryMinute          *int     `json:"entryMinute,omitempty"`
	ExitHour             *int     `json:"exitHour,omitempty"`
	ExitMinute           *int     `json:"exitMinute,omitempty"`
	ReentryCutoffHour    *int     `json:"reentryCutoffHour,omitempty"`
	NoTradeOnThursday    *bool    `json:"noTradeOnThursday,omitempty"`
}

// Apply merges the patch into a copy of cfg and returns it. The receiver
// and cfg are left untouched, so an invalid result can be discarded.
func (p *BotConfigPatch) Apply(cfg BotConfig) BotConfig {
	if p.Quantity != nil {
		cfg.Quantity = *p.Quantity
	}
	if p.PremiumMin != nil {
		cfg.PremiumMin = *p.PremiumMin
	}
	if p.PremiumMax != nil {
		cfg.PremiumMax = *p.PremiumMax
	}
	if p.PremiumGap != nil {
		cfg.PremiumGap = *p.PremiumGap
	}
	if p.StopLossPercentage != nil {
		cfg.StopLossPercentage = *p.StopLossPercentage
	}
	if p.TakeProfitPercentage != nil {
		cfg.TakeProfitPercentage = *p.TakeProfitPercentage
	}
	if p.EntryHour != nil {
		cfg.EntryHour = *p.EntryHour
	}
	if p.EntryMinute != nil {
		cfg.EntryMinute = *p.EntryMinute
	}
	if p.ExitHour != nil {
		cfg.ExitHour = *p.ExitHour
	}
	if p.ExitMinute != nil {
		cfg.ExitMinute = *p.ExitMinute
	}
	if p.ReentryCutoffHour != nil {
		cfg.ReentryCutoffHour = *p.ReentryCutoffHour
	}
	if p.NoTradeOnThursday != nil {
		cfg.NoTradeOnThursday = *p.NoTradeOnThursday
	}
	return cfg
}
