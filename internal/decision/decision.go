// Package decision defines the fixed-shape trading decision and the normalizer every decision source goes through.
package decision

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Action enumerates what a decider may ask the executor to do.
type Action string

const (
	Buy   Action = "buy"
	Sell  Action = "sell"
	Hold  Action = "hold"
	Close Action = "close"
)

// MaxReasonLen bounds the free-text reason carried by a decision.
const MaxReasonLen = 500

// SizeUnit tells the normalizer how a source expresses position_size_pct.
type SizeUnit int

const (
	// UnitPercent means 0..100; this is the canonical unit.
	UnitPercent SizeUnit = iota
	// UnitFraction means 0..1 and is scaled by 100.
	UnitFraction
)

// Decision is the normalized output of a decider. PositionSizePct is always a percentage in [0,100].
type Decision struct {
	Action          Action   `json:"action"`
	Confidence      float64  `json:"confidence"`
	Reason          string   `json:"reason"`
	PositionSizePct float64  `json:"position_size_pct"`
	StopLoss        *float64 `json:"stop_loss"`
	TakeProfit      *float64 `json:"take_profit"`
	FallbackReason  string   `json:"fallback_reason,omitempty"`
}

// SizeFraction converts the percentage size into a 0..1 multiplier.
func (d Decision) SizeFraction() float64 { return d.PositionSizePct / 100 }

// Default returns the safe hold decision.
func Default() Decision {
	return Decision{Action: Hold, Reason: "default hold"}
}

// Fallback returns the default hold annotated with why the upstream source was bypassed.
func Fallback(reason string) Decision {
	d := Default()
	d.FallbackReason = truncate(reason)
	return d
}

// Normalize sanitizes an untyped payload into a Decision. It never panics.
func Normalize(raw map[string]any, unit SizeUnit) (d Decision) {
	defer func() {
		if recover() != nil {
			d = Default()
		}
	}()
	if raw == nil {
		return Default()
	}

	d.Action = parseAction(raw["action"])
	d.Confidence = clamp(number(raw["confidence"]), 0, 1)
	d.Reason = truncate(cast.ToString(raw["reason"]))

	size := number(raw["position_size_pct"])
	if unit == UnitFraction {
		size *= 100
	}
	d.PositionSizePct = clamp(size, 0, 100)

	d.StopLoss = nullableNumber(raw["stop_loss"])
	d.TakeProfit = nullableNumber(raw["take_profit"])
	if fb, ok := raw["fallback_reason"]; ok && fb != nil {
		d.FallbackReason = truncate(cast.ToString(fb))
	}
	return d
}

func parseAction(v any) Action {
	s, ok := v.(string)
	if !ok {
		return Hold
	}
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Buy, Sell, Hold, Close:
		return a
	default:
		return Hold
	}
}

// number coerces v to a finite float, yielding 0 on anything unusable.
func number(v any) float64 {
	if p := nullableNumber(v); p != nil {
		return *p
	}
	return 0
}

func nullableNumber(v any) *float64 {
	switch v.(type) {
	case nil, bool:
		return nil
	case string:
		if strings.TrimSpace(v.(string)) == "" {
			return nil
		}
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxReasonLen {
		return s
	}
	return string(runes[:MaxReasonLen])
}
