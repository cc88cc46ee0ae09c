package engine

import (
	"fmt"

	"go.uber.org/zap"

	"straddle-bot-go/internal/metrics"
	"straddle-bot-go/internal/models"
)

// monitorPrices is the recurring price tick: it refreshes the mark price
// and P&L of every active trade, routes stop/target breaches through
// square-off and applies the single-leg stop adjustment. Individual
// gateway failures are logged and retried on the next tick.
func (e *Engine) monitorPrices() {
	e.mu.Lock()
	actives := append([]*models.Trade(nil), e.activeLocked()...)
	e.mu.Unlock()
	if len(actives) == 0 {
		return
	}

	type breach struct {
		trade  *models.Trade
		reason models.TradeStatus
	}
	var breaches []breach

	for _, trade := range actives {
		productID, err := e.productFor(trade)
		if err != nil {
			e.logger.Warn("Price tick could not resolve product",
				zap.String("trade_id", trade.TradeID), zap.Error(err))
			continue
		}
		price, err := e.gateway.GetMarketPrice(productID)
		if err != nil {
			e.logger.Warn("Price lookup failed",
				zap.String("trade_id", trade.TradeID), zap.Error(err))
			continue
		}

		e.mu.Lock()
		if !trade.IsActive() {
			e.mu.Unlock()
			continue
		}
		trade.CurrentPrice = price
		trade.Pnl = trade.UnrealizedPnL(price)

		var reason models.TradeStatus
		switch {
		case price >= trade.StopLossPrice:
			reason = models.StatusClosedSL
		case price <= trade.TakeProfitPrice:
			reason = models.StatusClosedTP
		}
		e.mu.Unlock()

		if reason != "" {
			breaches = append(breaches, breach{trade: trade, reason: reason})
		}
	}

	// Status transitions happen only through square-off; the tick itself
	// never pre-writes a closed status.
	for _, b := range breaches {
		if err := e.SquareOffTrade(b.trade, b.reason); err != nil {
			e.logger.Error("Square-off after price breach failed",
				zap.String("trade_id", b.trade.TradeID), zap.Error(err))
		}
	}

	e.adjustSingleLegStop()
	e.updateMetrics()
	e.emit(EventPriceUpdate, e.AllTrades())
}

// adjustSingleLegStop moves the stop-loss of the last remaining leg to its
// entry price, making the rest of the trade risk-free. Applies only while
// exactly one trade is active and fires once per closure; the active count
// and the stop mutation share one critical section so both legs closing in
// the same tick cannot trigger it spuriously.
func (e *Engine) adjustSingleLegStop() {
	e.mu.Lock()
	actives := e.activeLocked()
	if len(actives) != 1 {
		e.mu.Unlock()
		return
	}
	trade := actives[0]
	if trade.StopLossPrice == trade.EntryPrice {
		e.mu.Unlock()
		return
	}
	trade.StopLossPrice = trade.EntryPrice
	newStop := trade.EntryPrice
	e.mu.Unlock()

	productID, err := e.productFor(trade)
	if err == nil {
		err = e.moveStopLoss(trade, productID, newStop)
	}
	if err != nil {
		e.emitError(fmt.Sprintf("Failed to move stop-loss order for trade %s: %v", trade.TradeID, err))
	}

	if err := e.store.SaveTrade(trade); err != nil {
		e.logger.Error("Failed to persist stop adjustment", zap.Error(err))
	}
	e.emitLog(fmt.Sprintf("Moved SL to entry for remaining %s leg", trade.Type))
}

// updateMetrics refreshes the gauges derived from the trade list.
func (e *Engine) updateMetrics() {
	e.mu.Lock()
	defer e.mu.Unlock()
	var openPnl float64
	active := 0
	for _, t := range e.trades {
		if t.IsActive() {
			active++
			openPnl += t.Pnl
		}
	}
	metrics.ActiveTrades.Set(float64(active))
	metrics.OpenPnl.Set(openPnl)
}
