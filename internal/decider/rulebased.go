package decider

import (
	"context"

	"tradebot/internal/decision"
)

// RuleBasedName identifies the built-in EMA/RSI provider.
const RuleBasedName = "rule_based"

// RuleBased trades an EMA9/EMA21 crossover filtered by RSI14.
type RuleBased struct {
	// BuySizePct is the percent of available balance committed on a buy signal.
	BuySizePct float64
}

// NewRuleBased returns the crossover provider; non-positive sizes fall back to 10%.
func NewRuleBased(buySizePct float64) *RuleBased {
	if buySizePct <= 0 {
		buySizePct = 10
	}
	return &RuleBased{BuySizePct: buySizePct}
}

func (r *RuleBased) Name() string { return RuleBasedName }

func (r *RuleBased) Unit() decision.SizeUnit { return decision.UnitPercent }

func (r *RuleBased) Propose(_ context.Context, in Context) (map[string]any, error) {
	ind := in.Indicators
	action, reason, size := decision.Hold, "no strong signal", 0.0

	switch {
	case ind.EMA9 > ind.EMA21 && ind.RSI14 < 70:
		action, reason, size = decision.Buy, "EMA bullish and RSI below overbought", r.BuySizePct
	case ind.EMA9 < ind.EMA21 && in.HasPosition():
		action, reason, size = decision.Close, "trend weakening while in position", 100
	case ind.RSI14 > 75 && in.HasPosition():
		action, reason, size = decision.Sell, "RSI overbought", 50
	}

	return map[string]any{
		"action":            string(action),
		"confidence":        0.65,
		"reason":            reason,
		"position_size_pct": size,
		"stop_loss":         nil,
		"take_profit":       nil,
	}, nil
}
