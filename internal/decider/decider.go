// Package decider produces trading decisions from market context.
//
// A Provider proposes a raw payload and may fail; Guard wraps it so callers
// always receive a normalized decision.Decision.
package decider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tradebot/internal/decision"
	"tradebot/internal/history"
	"tradebot/internal/indicators"
	"tradebot/internal/portfolio"
	"tradebot/internal/signal"
)

// Context is everything a provider may look at for one tick.
type Context struct {
	Symbol       string
	MarketType   string
	LatestPrice  float64
	Indicators   indicators.Snapshot
	Balances     map[string]float64
	Positions    []portfolio.Position
	RecentOrders []history.Record
	CandlesFast  []signal.Candle
	CandlesSlow  []signal.Candle
}

// HasPosition reports whether any position is open.
func (c Context) HasPosition() bool {
	for _, p := range c.Positions {
		if p.Qty > 0 {
			return true
		}
	}
	return false
}

// Decider never fails: errors become a hold with FallbackReason set.
type Decider interface {
	Name() string
	Decide(ctx context.Context, in Context) decision.Decision
}

// Provider proposes an untyped decision payload.
type Provider interface {
	Name() string
	// Unit declares how the provider expresses position_size_pct.
	Unit() decision.SizeUnit
	Propose(ctx context.Context, in Context) (map[string]any, error)
}

// Guard adapts a Provider into a Decider.
type Guard struct {
	provider Provider
	log      zerolog.Logger
}

// NewGuard wraps provider.
func NewGuard(provider Provider, log zerolog.Logger) *Guard {
	return &Guard{provider: provider, log: log.With().Str("component", "decider").Str("provider", provider.Name()).Logger()}
}

// Name returns the wrapped provider's name.
func (g *Guard) Name() string { return g.provider.Name() }

// Decide asks the provider and normalizes the answer.
func (g *Guard) Decide(ctx context.Context, in Context) (d decision.Decision) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Interface("panic", r).Msg("provider panicked")
			d = decision.Fallback(fmt.Sprintf("%s panicked: %v", g.provider.Name(), r))
		}
	}()
	raw, err := g.provider.Propose(ctx, in)
	if err != nil {
		g.log.Warn().Err(err).Msg("provider failed, holding")
		return decision.Fallback(fmt.Sprintf("%s: %v", g.provider.Name(), err))
	}
	return decision.Normalize(raw, g.provider.Unit())
}
