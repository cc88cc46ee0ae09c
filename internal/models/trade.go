package models

import (
	"time"

	"gorm.io/gorm"
)

// TradeType identifies which leg of the straddle a trade belongs to.
type TradeType string

const (
	TradeTypeCall TradeType = "CALL"
	TradeTypePut  TradeType = "PUT"
)

// TradeStatus is the lifecycle state of a trade. Every status other than
// ACTIVE is terminal.
type TradeStatus string

const (
	StatusActive       TradeStatus = "ACTIVE"
	StatusClosedSL     TradeStatus = "CLOSED_SL"
	StatusClosedTP     TradeStatus = "CLOSED_TP"
	StatusClosedEOD    TradeStatus = "CLOSED_EOD"
	StatusClosedManual TradeStatus = "CLOSED_MANUAL"
	StatusClosedKilled TradeStatus = "CLOSED_KILLED"
)

// IsStopOrTarget reports whether the status represents a stop or target
// exit, the two closures that are eligible for re-entry.
func (s TradeStatus) IsStopOrTarget() bool {
	return s == StatusClosedSL || s == StatusClosedTP
}

// Trade is one option leg of the straddle. A record is created only when an
// entry order fills and is never deleted, only closed.
type Trade struct {
	gorm.Model
	TradeID         string      `gorm:"uniqueIndex" json:"id"`
	Type            TradeType   `json:"type"`
	Status          TradeStatus `json:"status"`
	StrikePrice     float64     `json:"strikePrice"`
	Quantity        float64     `json:"quantity"`
	EntryTime       time.Time   `json:"entryTime"`
	EntryPrice      float64     `json:"entryPrice"`
	StopLossPrice   float64     `json:"stopLossPrice"`
	TakeProfitPrice float64     `json:"takeProfitPrice"`
	CurrentPrice    float64     `json:"currentPrice"`
	ExitTime        *time.Time  `json:"exitTime,omitempty"`
	ExitPrice       *float64    `json:"exitPrice,omitempty"`
	Pnl             float64     `json:"pnl"`
}

// IsActive reports whether the trade is still open.
func (t *Trade) IsActive() bool {
	return t.Status == StatusActive
}

// UnrealizedPnL computes the mark-to-market P&L at the given price.
// Legs are sold short, so a falling premium is profit.
func (t *Trade) UnrealizedPnL(price float64) float64 {
	return (t.EntryPrice - price) * t.Quantity
}
