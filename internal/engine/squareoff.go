package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"straddle-bot-go/internal/delta"
	"straddle-bot-go/internal/metrics"
	"straddle-bot-go/internal/models"
)

// SquareOffTrade closes one trade: cancels its bracket orders, flattens
// the position with a market order and records the exit. If the closing
// order fails the trade stays ACTIVE so the operation is visible and
// retryable. Stop and target closures feed the re-entry policy.
func (e *Engine) SquareOffTrade(trade *models.Trade, reason models.TradeStatus) error {
	e.mu.Lock()
	if !trade.IsActive() || e.closing[trade.TradeID] {
		e.mu.Unlock()
		return nil
	}
	e.closing[trade.TradeID] = true
	quantity := trade.Quantity
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.closing, trade.TradeID)
		e.mu.Unlock()
	}()

	productID, err := e.productFor(trade)
	if err != nil {
		e.emitError(fmt.Sprintf("Failed to square off trade %s: %v", trade.TradeID, err))
		return err
	}

	e.cancelBracketOrders(trade.TradeID)

	if _, err := e.gateway.PlaceOrder(productID, delta.OrderSideBuy, quantity, 0, delta.OrderTypeMarket); err != nil {
		metrics.SquareOffFailures.Inc()
		e.emitError(fmt.Sprintf("Failed to square off trade %s: %v", trade.TradeID, err))
		return err
	}

	e.mu.Lock()
	now := e.now().UTC()
	exitPrice := trade.CurrentPrice
	trade.Status = reason
	trade.ExitTime = &now
	trade.ExitPrice = &exitPrice
	trade.Pnl = trade.UnrealizedPnL(exitPrice)
	snapshot := *trade
	e.mu.Unlock()

	if err := e.store.SaveTrade(trade); err != nil {
		e.logger.Error("Failed to persist closed trade", zap.Error(err))
	}

	metrics.TradesClosed.WithLabelValues(string(reason)).Inc()
	e.logger.Info("Trade closed",
		zap.String("trade_id", snapshot.TradeID),
		zap.String("type", string(snapshot.Type)),
		zap.String("reason", string(reason)),
		zap.Float64("exit_price", exitPrice),
		zap.Float64("pnl", snapshot.Pnl))
	e.emit(EventTradeClosed, snapshot)

	if reason.IsStopOrTarget() {
		e.scheduleReentry(snapshot)
	}
	return nil
}

// SquareOffTradeByID closes a single trade by its exchange id, used by the
// manual close command.
func (e *Engine) SquareOffTradeByID(id string, reason models.TradeStatus) error {
	trade := e.tradeByID(id)
	if trade == nil {
		return fmt.Errorf("trade %s not found", id)
	}
	if !trade.IsActive() {
		return fmt.Errorf("trade %s is not active", id)
	}
	return e.SquareOffTrade(trade, reason)
}

// SquareOffAll closes every active trade with the given reason. A failure
// on one trade does not abort the close attempts for the rest.
func (e *Engine) SquareOffAll(reason models.TradeStatus) error {
	e.mu.Lock()
	actives := append([]*models.Trade(nil), e.activeLocked()...)
	e.mu.Unlock()

	var firstErr error
	for _, trade := range actives {
		if err := e.SquareOffTrade(trade, reason); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// scheduleReentry decides whether a stopped-out or target-hit leg gets a
// replacement. Before the cutoff hour a new entry of the same type only is
// opened after a short delay; past it, nothing happens. Single-shot per
// closure.
func (e *Engine) scheduleReentry(closed models.Trade) {
	cfg := e.Config()
	if e.now().UTC().Hour() >= cfg.ReentryCutoffHour {
		e.emitLog("Re-entry cutoff time reached. No re-entry.")
		return
	}

	e.emitLog(fmt.Sprintf("Looking for re-entry for %s...", closed.Type))
	ctx := e.runContext()
	time.AfterFunc(e.reentryDelay, func() {
		if !e.IsRunning() {
			e.logger.Info("Re-entry skipped, bot not running",
				zap.String("type", string(closed.Type)))
			return
		}
		if err := e.enterLeg(ctx, closed.Type, nextExpiry(e.now())); err != nil {
			e.emitError(fmt.Sprintf("Re-entry failed: %v", err))
		}
	})
}

func (e *Engine) runContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runCtx
}
