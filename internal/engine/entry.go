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

// placeInitialTrades opens both straddle legs. The legs are placed
// concurrently; a failure on one leaves the other unaffected.
func (e *Engine) placeInitialTrades(ctx context.Context) {
	expiry := nextExpiry(e.now())
	for _, tradeType := range []models.TradeType{models.TradeTypeCall, models.TradeTypePut} {
		go func(tt models.TradeType) {
			if err := e.enterLeg(ctx, tt, expiry); err != nil {
				e.emitError(fmt.Sprintf("Failed to place %s entry: %v", tt, err))
			}
		}(tradeType)
	}
}

// enterLeg sells one option leg: selects a strike, resolves the contract,
// places a limit order inside the premium band and hands the order to a
// fill monitor.
func (e *Engine) enterLeg(ctx context.Context, tradeType models.TradeType, expiry string) error {
	if e.hasActiveTrade(tradeType) {
		e.logger.Info("Skipping entry, leg already active", zap.String("type", string(tradeType)))
		return nil
	}
	cfg := e.Config()

	strike := e.selector.SelectStrike(tradeType, expiry, cfg)
	product, err := e.gateway.GetProductByStrike(strike, tradeType == models.TradeTypeCall, expiry)
	if err != nil {
		return fmt.Errorf("no product for %s at strike %.0f: %w", tradeType, strike, err)
	}

	price := e.premiumPrice(cfg)
	order, err := e.gateway.PlaceOrder(product.ID, delta.OrderSideSell, cfg.Quantity, price, delta.OrderTypeLimit)
	if err != nil {
		return fmt.Errorf("entry order for %s rejected: %w", tradeType, err)
	}

	e.logger.Info("Entry order placed",
		zap.String("type", string(tradeType)),
		zap.Float64("strike", strike),
		zap.Float64("limit_price", price),
		zap.String("order_id", order.ID))

	go e.monitorOrder(ctx, order.ID, tradeType, product, strike, true)
	return nil
}

// monitorOrder polls the order until it reaches a terminal status. On fill
// the trade is activated; on cancellation (when allowed) the entry falls
// back to a market order after a grace delay. Poll failures are retried on
// the next tick and never abort the monitor.
func (e *Engine) monitorOrder(ctx context.Context, orderID string, tradeType models.TradeType, product *delta.Product, strike float64, allowFallback bool) {
	ticker := time.NewTicker(e.orderPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			order, err := e.gateway.GetOrderStatus(orderID)
			if err != nil {
				e.logger.Warn("Order status poll failed",
					zap.String("order_id", orderID), zap.Error(err))
				continue
			}

			switch order.Status {
			case delta.OrderStatusFilled:
				e.onOrderFilled(order, tradeType, product, strike)
				return
			case delta.OrderStatusCancelled:
				if !allowFallback {
					e.emitError(fmt.Sprintf("Market fallback for %s was cancelled, leg not entered", tradeType))
					return
				}
				// Grace delay before giving up on the limit price.
				select {
				case <-ctx.Done():
					return
				case <-time.After(e.fallbackDelay):
				}
				e.placeMarketFallback(ctx, tradeType, product, strike)
				return
			}
		}
	}
}

// placeMarketFallback replaces a cancelled limit entry with an immediate
// market order for the same leg. Monitored once, with no further fallback.
func (e *Engine) placeMarketFallback(ctx context.Context, tradeType models.TradeType, product *delta.Product, strike float64) {
	cfg := e.Config()
	order, err := e.gateway.PlaceOrder(product.ID, delta.OrderSideSell, cfg.Quantity, 0, delta.OrderTypeMarket)
	if err != nil {
		e.emitError(fmt.Sprintf("Market fallback for %s rejected: %v", tradeType, err))
		return
	}
	e.logger.Info("Market fallback order placed",
		zap.String("type", string(tradeType)),
		zap.String("order_id", order.ID))
	go e.monitorOrder(ctx, order.ID, tradeType, product, strike, false)
}

// onOrderFilled constructs the Trade record from the fill, places the
// protective bracket pair and persists the new state. This is the only
// place a trade comes into existence.
func (e *Engine) onOrderFilled(order *delta.Order, tradeType models.TradeType, product *delta.Product, strike float64) {
	cfg := e.Config()
	entryPrice := order.EntryPrice()

	trade := &models.Trade{
		TradeID:         order.ID,
		Type:            tradeType,
		Status:          models.StatusActive,
		StrikePrice:     strike,
		Quantity:        cfg.Quantity,
		EntryTime:       e.now().UTC(),
		EntryPrice:      entryPrice,
		StopLossPrice:   entryPrice * (1 + cfg.StopLossPercentage/100),
		TakeProfitPrice: entryPrice * (1 - cfg.TakeProfitPercentage/100),
		CurrentPrice:    entryPrice,
	}

	e.mu.Lock()
	e.trades = append(e.trades, trade)
	e.products[trade.TradeID] = product.ID
	e.mu.Unlock()

	if err := e.store.SaveTrade(trade); err != nil {
		e.logger.Error("Failed to persist new trade", zap.Error(err))
	}

	if err := e.placeBracketOrders(trade, product.ID); err != nil {
		e.emitError(fmt.Sprintf("Bracket placement failed for trade %s, position is unprotected: %v", trade.TradeID, err))
	}

	metrics.TradesOpened.WithLabelValues(string(tradeType)).Inc()
	e.logger.Info("Trade opened",
		zap.String("trade_id", trade.TradeID),
		zap.String("type", string(tradeType)),
		zap.Float64("entry_price", entryPrice),
		zap.Float64("stop_loss", trade.StopLossPrice),
		zap.Float64("take_profit", trade.TakeProfitPrice))
	e.emit(EventTradeOpened, *trade)
}
