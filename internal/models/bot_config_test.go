package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBotConfig_Validate(t *testing.T) {
	t.Run("DefaultsAreValid", func(t *testing.T) {
		cfg := DefaultBotConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("PremiumBandInverted", func(t *testing.T) {
		cfg := DefaultBotConfig()
		cfg.PremiumMin = 500
		cfg.PremiumMax = 400
		assert.Error(t, cfg.Validate())
	})

	t.Run("NegativePercentage", func(t *testing.T) {
		cfg := DefaultBotConfig()
		cfg.StopLossPercentage = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("HourOutOfRange", func(t *testing.T) {
		cfg := DefaultBotConfig()
		cfg.EntryHour = 24
		assert.Error(t, cfg.Validate())
	})

	t.Run("ZeroQuantity", func(t *testing.T) {
		cfg := DefaultBotConfig()
		cfg.Quantity = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestBotConfigPatch_Apply(t *testing.T) {
	cfg := DefaultBotConfig()
	qty := 5.0
	thursday := false

	patch := BotConfigPatch{Quantity: &qty, NoTradeOnThursday: &thursday}
	merged := patch.Apply(cfg)

	assert.Equal(t, 5.0, merged.Quantity)
	assert.False(t, merged.NoTradeOnThursday)
	// Untouched fields carry over.
	assert.Equal(t, cfg.PremiumMin, merged.PremiumMin)
	assert.Equal(t, cfg.EntryHour, merged.EntryHour)
	// The original is not mutated.
	assert.Equal(t, 1.0, cfg.Quantity)
}

func TestTrade_UnrealizedPnL(t *testing.T) {
	trade := Trade{EntryPrice: 400, Quantity: 2}
	// Short premium: price falling is profit.
	assert.Equal(t, 100.0, trade.UnrealizedPnL(350))
	assert.Equal(t, -100.0, trade.UnrealizedPnL(450))
	assert.Equal(t, 0.0, trade.UnrealizedPnL(400))
}
