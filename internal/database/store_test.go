package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"straddle-bot-go/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	db, err := NewDatabase("file::memory:")
	assert.NoError(t, err)
	return NewStore(db)
}

func TestStore_TradeRoundTrip(t *testing.T) {
	// Arrange
	store := setupStore(t)
	trade := &models.Trade{
		TradeID:         "ord-1",
		Type:            models.TradeTypeCall,
		Status:          models.StatusActive,
		StrikePrice:     50000,
		Quantity:        1,
		EntryTime:       time.Date(2026, 8, 26, 21, 35, 0, 0, time.UTC),
		EntryPrice:      400,
		StopLossPrice:   760,
		TakeProfitPrice: 40,
		CurrentPrice:    400,
	}

	// Act: create, then close and update in place.
	assert.NoError(t, store.SaveTrade(trade))

	exitTime := time.Date(2026, 8, 26, 22, 0, 0, 0, time.UTC)
	exitPrice := 350.0
	trade.Status = models.StatusClosedTP
	trade.ExitTime = &exitTime
	trade.ExitPrice = &exitPrice
	trade.Pnl = 50
	assert.NoError(t, store.SaveTrade(trade))

	// Assert: one record, with the close preserved.
	trades, err := store.LoadTrades()
	assert.NoError(t, err)
	assert.Len(t, trades, 1)
	loaded := trades[0]
	assert.Equal(t, "ord-1", loaded.TradeID)
	assert.Equal(t, models.StatusClosedTP, loaded.Status)
	if assert.NotNil(t, loaded.ExitPrice) {
		assert.Equal(t, 350.0, *loaded.ExitPrice)
	}
	assert.Equal(t, 50.0, loaded.Pnl)
}

func TestStore_LoadTradesOrdering(t *testing.T) {
	store := setupStore(t)
	for i, id := range []string{"older", "newer"} {
		trade := &models.Trade{
			TradeID:   id,
			Type:      models.TradeTypeCall,
			Status:    models.StatusClosedEOD,
			EntryTime: time.Date(2026, 8, 20+i, 12, 0, 0, 0, time.UTC),
		}
		assert.NoError(t, store.SaveTrade(trade))
	}

	trades, err := store.LoadTrades()
	assert.NoError(t, err)
	assert.Len(t, trades, 2)
	assert.Equal(t, "older", trades[0].TradeID)
	assert.Equal(t, "newer", trades[1].TradeID)
}

func TestStore_ConfigSeededWithDefaults(t *testing.T) {
	store := setupStore(t)

	cfg, err := store.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, models.DefaultBotConfig().PremiumMin, cfg.PremiumMin)
	assert.Equal(t, models.DefaultBotConfig().StopLossPercentage, cfg.StopLossPercentage)
}

func TestStore_ConfigRoundTrip(t *testing.T) {
	// Arrange
	store := setupStore(t)
	cfg, err := store.LoadConfig()
	assert.NoError(t, err)

	// Act
	cfg.Quantity = 3
	cfg.ReentryCutoffHour = 14
	assert.NoError(t, store.SaveConfig(&cfg))

	// Assert: still a single row, with the update applied.
	loaded, err := store.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, 3.0, loaded.Quantity)
	assert.Equal(t, 14, loaded.ReentryCutoffHour)
}
