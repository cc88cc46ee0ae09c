package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"straddle-bot-go/internal/models"
)

// Run drives the engine's clock: a one-second trigger tick for the daily
// entry and exit times, and the recurring price-monitor tick. Blocks until
// the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	trigger := time.NewTicker(time.Second)
	defer trigger.Stop()
	priceTick := time.NewTicker(e.priceTickInterval)
	defer priceTick.Stop()

	e.logger.Info("Scheduler started",
		zap.Duration("price_tick", e.priceTickInterval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Scheduler stopped")
			return
		case <-trigger.C:
			e.checkTriggers(ctx)
		case <-priceTick.C:
			e.monitorPrices()
		}
	}
}

// sameMinute reports whether two instants fall in the same clock minute.
func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

// checkTriggers fires the entry and exit triggers when their configured
// time arrives. A trigger acts at most once per minute; missed fires are
// not queued.
func (e *Engine) checkTriggers(ctx context.Context) {
	now := e.now().UTC()

	e.mu.Lock()
	cfg := e.cfg
	running := e.isRunning

	fireEntry := running &&
		now.Hour() == cfg.EntryHour && now.Minute() == cfg.EntryMinute &&
		!sameMinute(e.lastEntry, now)
	if fireEntry {
		e.lastEntry = now
	}

	// The exit trigger is a safety net: it fires whether or not the bot is
	// running.
	fireExit := now.Hour() == cfg.ExitHour && now.Minute() == cfg.ExitMinute &&
		!sameMinute(e.lastExit, now)
	if fireExit {
		e.lastExit = now
	}
	hasActive := len(e.activeLocked()) > 0
	e.mu.Unlock()

	if fireEntry {
		switch {
		case now.Weekday() == time.Thursday && cfg.NoTradeOnThursday:
			e.emitLog("No trading on Thursdays")
		case hasActive:
			e.logger.Info("Entry trigger skipped, trades already active")
		default:
			go e.placeInitialTrades(ctx)
		}
	}

	if fireExit && hasActive {
		e.emitLog("EOD square-off initiated")
		go e.SquareOffAll(models.StatusClosedEOD)
	}
}
