package engine

import (
	"math/rand"
	"sync"
	"time"

	"straddle-bot-go/internal/models"
)

// StrikeSelector picks the strike to trade for a leg. Implementations are
// stateless from the engine's point of view and swappable; tests inject a
// deterministic one.
type StrikeSelector interface {
	SelectStrike(tradeType models.TradeType, expiry string, cfg models.BotConfig) float64
}

// RandomStrikeSelector is the placeholder selection strategy: a fixed base
// strike offset by a random amount, above for calls and below for puts.
type RandomStrikeSelector struct {
	mu   sync.Mutex
	rng  *rand.Rand
	base float64
	span float64
}

// NewRandomStrikeSelector returns a selector around the given base strike.
func NewRandomStrikeSelector(base, span float64) *RandomStrikeSelector {
	return &RandomStrikeSelector{
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		base: base,
		span: span,
	}
}

// SelectStrike returns a strike candidate rounded to the premium gap.
func (s *RandomStrikeSelector) SelectStrike(tradeType models.TradeType, expiry string, cfg models.BotConfig) float64 {
	s.mu.Lock()
	offset := s.rng.Float64() * s.span
	s.mu.Unlock()

	gap := cfg.PremiumGap
	if gap > 0 {
		offset = float64(int(offset/gap)) * gap
	}
	if tradeType == models.TradeTypeCall {
		return s.base + offset
	}
	return s.base - offset
}

// FixedStrikeSelector always returns the same strike; used for tests and
// manual runs against a known contract.
type FixedStrikeSelector struct {
	Strike float64
}

func (s FixedStrikeSelector) SelectStrike(models.TradeType, string, models.BotConfig) float64 {
	return s.Strike
}
