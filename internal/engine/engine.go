package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"straddle-bot-go/internal/database"
	"straddle-bot-go/internal/delta"
	"straddle-bot-go/internal/models"
)

// Default timing for the engine's loops. Fields on Engine override these
// in tests.
const (
	defaultOrderPollInterval = 1 * time.Second
	defaultFallbackDelay     = 15 * time.Second
	defaultReentryDelay      = 2 * time.Second
)

// Engine owns the trade lifecycle: it opens the straddle legs on schedule,
// tracks fills, manages bracket orders, applies stop/target logic and
// drives square-off and re-entry. It is the only component that mutates
// Trade records.
type Engine struct {
	logger   *zap.Logger
	gateway  delta.Gateway
	store    *database.Store
	selector StrikeSelector
	bus      *eventBus

	// mu guards everything below. It is never held across a gateway call.
	mu        sync.Mutex
	cfg       models.BotConfig
	trades    []*models.Trade
	isRunning bool
	brackets  map[string]bracketOrders // trade id -> protective order pair
	products  map[string]int           // trade id -> product id
	closing   map[string]bool          // trade ids with a square-off in flight
	lastEntry time.Time
	lastExit  time.Time

	runCtx context.Context

	rngMu sync.Mutex
	rng   *rand.Rand

	// now is the clock; replaced in tests.
	now func() time.Time

	priceTickInterval time.Duration
	orderPollInterval time.Duration
	fallbackDelay     time.Duration
	reentryDelay      time.Duration
}

// New builds an engine and restores persisted state: the saved config and
// the full trade history, including any legs that were still active when
// the process last exited.
func New(logger *zap.Logger, gateway delta.Gateway, store *database.Store, selector StrikeSelector, priceTick time.Duration) (*Engine, error) {
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, err
	}
	trades, err := store.LoadTrades()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		logger:            logger.Named("engine"),
		gateway:           gateway,
		store:             store,
		selector:          selector,
		bus:               newEventBus(),
		cfg:               cfg,
		trades:            trades,
		brackets:          make(map[string]bracketOrders),
		products:          make(map[string]int),
		closing:           make(map[string]bool),
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
		now:               time.Now,
		priceTickInterval: priceTick,
		orderPollInterval: defaultOrderPollInterval,
		fallbackDelay:     defaultFallbackDelay,
		reentryDelay:      defaultReentryDelay,
	}
	e.runCtx = context.Background()

	active := 0
	for _, t := range trades {
		if t.IsActive() {
			active++
		}
	}
	e.logger.Info("Engine state restored",
		zap.Int("trades", len(trades)),
		zap.Int("active", active))
	return e, nil
}

// Subscribe returns a channel of engine events plus a cancel func. The
// transport layer drains it and broadcasts to observers.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.bus.subscribe()
}

func (e *Engine) emit(t EventType, data any) {
	e.bus.publish(Event{Type: t, Data: data})
}

func (e *Engine) emitError(msg string) {
	e.logger.Error(msg)
	e.emit(EventError, msg)
}

func (e *Engine) emitLog(msg string) {
	e.logger.Info(msg)
	e.emit(EventLog, msg)
}

// Start arms the scheduler triggers. Idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = true
	e.mu.Unlock()

	e.logger.Info("Bot started")
	e.emit(EventBotStarted, nil)
}

// Stop makes the scheduler's entry trigger inert. Active trades keep being
// monitored; nothing new is opened and nothing is force-closed except by
// the end-of-day safety net. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.isRunning {
		e.mu.Unlock()
		return
	}
	e.isRunning = false
	e.mu.Unlock()

	e.logger.Info("Bot stopped")
	e.emit(EventBotStopped, nil)
}

// IsRunning reports the engine running flag.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isRunning
}

// Config returns a copy of the current strategy parameters.
func (e *Engine) Config() models.BotConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// UpdateConfig merges the patch into the current configuration. The merge
// is validated as a whole before it is committed, so a bad update leaves
// the configuration untouched. Takes effect on the next scheduled action.
func (e *Engine) UpdateConfig(patch models.BotConfigPatch) (models.BotConfig, error) {
	e.mu.Lock()
	candidate := patch.Apply(e.cfg)
	if err := candidate.Validate(); err != nil {
		e.mu.Unlock()
		return e.cfg, fmt.Errorf("invalid config update: %w", err)
	}
	e.cfg = candidate
	cfg := candidate
	e.mu.Unlock()

	if err := e.store.SaveConfig(&cfg); err != nil {
		e.logger.Error("Failed to persist config", zap.Error(err))
	}
	e.logger.Info("Configuration updated")
	e.emit(EventConfigUpdated, cfg)
	return cfg, nil
}

// ActiveTrades returns a snapshot of all open trades.
func (e *Engine) ActiveTrades() []models.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Trade, 0, 2)
	for _, t := range e.trades {
		if t.IsActive() {
			out = append(out, *t)
		}
	}
	return out
}

// AllTrades returns a snapshot of the full trade history.
func (e *Engine) AllTrades() []models.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Trade, len(e.trades))
	for i, t := range e.trades {
		out[i] = *t
	}
	return out
}

// activeLocked returns the open trades. Caller holds e.mu.
func (e *Engine) activeLocked() []*models.Trade {
	var out []*models.Trade
	for _, t := range e.trades {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out
}

// hasActiveTrade reports whether an open trade of the given type exists.
func (e *Engine) hasActiveTrade(tradeType models.TradeType) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.trades {
		if t.IsActive() && t.Type == tradeType {
			return true
		}
	}
	return false
}

// tradeByID finds a trade by its exchange id.
func (e *Engine) tradeByID(id string) *models.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.trades {
		if t.TradeID == id {
			return t
		}
	}
	return nil
}

// premiumPrice picks the limit price for an entry order inside the
// configured premium band.
func (e *Engine) premiumPrice(cfg models.BotConfig) float64 {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return cfg.PremiumMin + e.rng.Float64()*(cfg.PremiumMax-cfg.PremiumMin)
}

// nextExpiry returns the expiry date traded at entry: the day after the
// given time, formatted YYYY-MM-DD.
func nextExpiry(now time.Time) string {
	return now.UTC().AddDate(0, 0, 1).Format("2006-01-02")
}

// productFor resolves (and caches) the exchange product backing a trade.
// Needed after a restart, when the cache is cold.
func (e *Engine) productFor(trade *models.Trade) (int, error) {
	e.mu.Lock()
	if id, ok := e.products[trade.TradeID]; ok {
		e.mu.Unlock()
		return id, nil
	}
	strike := trade.StrikePrice
	isCall := trade.Type == models.TradeTypeCall
	expiry := nextExpiry(trade.EntryTime)
	e.mu.Unlock()

	product, err := e.gateway.GetProductByStrike(strike, isCall, expiry)
	if err != nil {
		return 0, fmt.Errorf("could not resolve product for trade %s: %w", trade.TradeID, err)
	}

	e.mu.Lock()
	e.products[trade.TradeID] = product.ID
	e.mu.Unlock()
	return product.ID, nil
}
