// Package risk validates decisions against position, sizing, loss and cooldown limits.
package risk

import (
	"time"

	"tradebot/internal/decision"
)

// Rejection reasons returned by Validate.
const (
	ReasonOK                  = "ok"
	ReasonMaxPositions        = "max positions"
	ReasonMaxSize             = "max size"
	ReasonDailyLoss           = "daily loss reached"
	ReasonInsufficientBalance = "insufficient balance"
	ReasonCooldown            = "cooldown"
)

// Limits are the guard-rails a decision must clear. Sizes are percentages of balance.
type Limits struct {
	MaxPositions       int
	MaxPositionSizePct float64
	// MaxDailyLoss is an absolute quote amount; zero or negative disables the rule.
	MaxDailyLoss float64
	Cooldown     time.Duration
}

// Gate is the stateful per-symbol validator. Not safe for concurrent use.
type Gate struct {
	limits    Limits
	now       func() time.Time
	lastTrade map[string]time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the wall clock used for cooldown checks.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a gate enforcing limits.
func NewGate(limits Limits, opts ...Option) *Gate {
	g := &Gate{
		limits:    limits,
		now:       time.Now,
		lastTrade: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limits returns the configured limits.
func (g *Gate) Limits() Limits { return g.limits }

// Validate applies the rules in fixed precedence; the first failing rule wins.
func (g *Gate) Validate(symbol string, d decision.Decision, availableBalance float64, openPositions int, sessionRealizedPnL float64) (bool, string) {
	if d.Action == decision.Buy && openPositions >= g.limits.MaxPositions {
		return false, ReasonMaxPositions
	}
	// Closing must stay possible however large the position is.
	if d.Action != decision.Close && d.PositionSizePct > g.limits.MaxPositionSizePct {
		return false, ReasonMaxSize
	}
	if g.limits.MaxDailyLoss > 0 && -sessionRealizedPnL >= g.limits.MaxDailyLoss {
		return false, ReasonDailyLoss
	}
	if d.Action == decision.Buy && availableBalance <= 0 {
		return false, ReasonInsufficientBalance
	}
	if last, ok := g.lastTrade[symbol]; ok && g.now().Sub(last) < g.limits.Cooldown {
		return false, ReasonCooldown
	}
	return true, ReasonOK
}

// RegisterTrade starts the cooldown clock for symbol. Call it only after a fill.
func (g *Gate) RegisterTrade(symbol string) {
	g.lastTrade[symbol] = g.now()
}

// LastTrade reports when symbol last filled.
func (g *Gate) LastTrade(symbol string) (time.Time, bool) {
	ts, ok := g.lastTrade[symbol]
	return ts, ok
}
