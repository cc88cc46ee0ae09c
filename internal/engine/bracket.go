package engine

import (
	"fmt"

	"go.uber.org/zap"

	"straddle-bot-go/internal/delta"
	"straddle-bot-go/internal/models"
)

// bracketOrders is the pair of resting closing orders protecting an active
// trade. An active trade always has exactly zero or two of them.
type bracketOrders struct {
	slOrderID string
	tpOrderID string
}

// placeBracketOrders places the stop-loss and take-profit pair for a
// freshly filled entry. The pair is placed atomically from the trade's
// point of view: if the second leg fails the first is cancelled and the
// whole placement retried once, so the trade never ends up with a single
// protective order.
func (e *Engine) placeBracketOrders(trade *models.Trade, productID int) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		pair, err := e.placeBracketPair(trade, productID)
		if err != nil {
			lastErr = err
			e.logger.Warn("Bracket pair placement failed",
				zap.String("trade_id", trade.TradeID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		e.mu.Lock()
		e.brackets[trade.TradeID] = pair
		e.mu.Unlock()
		return nil
	}
	return lastErr
}

func (e *Engine) placeBracketPair(trade *models.Trade, productID int) (bracketOrders, error) {
	e.mu.Lock()
	slPrice := trade.StopLossPrice
	tpPrice := trade.TakeProfitPrice
	quantity := trade.Quantity
	e.mu.Unlock()

	slOrder, err := e.gateway.PlaceOrder(productID, delta.OrderSideBuy, quantity, slPrice, delta.OrderTypeLimit)
	if err != nil {
		return bracketOrders{}, fmt.Errorf("stop-loss order: %w", err)
	}

	tpOrder, err := e.gateway.PlaceOrder(productID, delta.OrderSideBuy, quantity, tpPrice, delta.OrderTypeLimit)
	if err != nil {
		// Do not leave a lone stop-loss behind.
		if cancelErr := e.gateway.CancelOrder(slOrder.ID); cancelErr != nil {
			e.logger.Error("Failed to cancel orphaned stop-loss order",
				zap.String("order_id", slOrder.ID), zap.Error(cancelErr))
		}
		return bracketOrders{}, fmt.Errorf("take-profit order: %w", err)
	}

	return bracketOrders{slOrderID: slOrder.ID, tpOrderID: tpOrder.ID}, nil
}

// cancelBracketOrders removes both protective orders for a trade ahead of
// a close. Cancel failures are logged and do not block the close.
func (e *Engine) cancelBracketOrders(tradeID string) {
	e.mu.Lock()
	pair, ok := e.brackets[tradeID]
	delete(e.brackets, tradeID)
	e.mu.Unlock()
	if !ok {
		return
	}

	for _, orderID := range []string{pair.slOrderID, pair.tpOrderID} {
		if err := e.gateway.CancelOrder(orderID); err != nil {
			e.logger.Warn("Failed to cancel bracket order",
				zap.String("trade_id", tradeID),
				zap.String("order_id", orderID),
				zap.Error(err))
		}
	}
}

// moveStopLoss re-points a trade's resting stop-loss order at a new price,
// used by the single-leg risk-free adjustment.
func (e *Engine) moveStopLoss(trade *models.Trade, productID int, newPrice float64) error {
	e.mu.Lock()
	pair, ok := e.brackets[trade.TradeID]
	quantity := trade.Quantity
	e.mu.Unlock()

	if ok && pair.slOrderID != "" {
		if err := e.gateway.CancelOrder(pair.slOrderID); err != nil {
			return fmt.Errorf("cancel old stop-loss: %w", err)
		}
	}

	slOrder, err := e.gateway.PlaceOrder(productID, delta.OrderSideBuy, quantity, newPrice, delta.OrderTypeLimit)
	if err != nil {
		return fmt.Errorf("place new stop-loss: %w", err)
	}

	e.mu.Lock()
	pair = e.brackets[trade.TradeID]
	pair.slOrderID = slOrder.ID
	e.brackets[trade.TradeID] = pair
	e.mu.Unlock()
	return nil
}
