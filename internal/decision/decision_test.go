package decision

import (
	"strings"
	"testing"
)

func TestNormalizeFullPayload(t *testing.T) {
	d := Normalize(map[string]any{
		"action":            "BUY",
		"confidence":        0.7,
		"reason":            "ema cross",
		"position_size_pct": 15,
		"stop_loss":         "0.095",
		"take_profit":       0.12,
	}, UnitPercent)

	if d.Action != Buy {
		t.Fatalf("expected buy, got %s", d.Action)
	}
	if d.Confidence != 0.7 {
		t.Fatalf("unexpected confidence %.2f", d.Confidence)
	}
	if d.PositionSizePct != 15 {
		t.Fatalf("unexpected size %.2f", d.PositionSizePct)
	}
	if d.StopLoss == nil || *d.StopLoss != 0.095 {
		t.Fatalf("expected parsed stop loss, got %v", d.StopLoss)
	}
	if d.TakeProfit == nil || *d.TakeProfit != 0.12 {
		t.Fatalf("expected take profit, got %v", d.TakeProfit)
	}
	if d.FallbackReason != "" {
		t.Fatalf("unexpected fallback reason %q", d.FallbackReason)
	}
}

func TestNormalizeUnknownActionDegradesToHold(t *testing.T) {
	for _, raw := range []map[string]any{
		nil,
		{},
		{"action": "short"},
		{"action": 42},
	} {
		d := Normalize(raw, UnitPercent)
		if d.Action != Hold {
			t.Fatalf("expected hold for %v, got %s", raw, d.Action)
		}
		if d.PositionSizePct != 0 {
			t.Fatalf("expected zero size for %v", raw)
		}
	}
}

func TestNormalizeClampsAndTruncates(t *testing.T) {
	d := Normalize(map[string]any{
		"action":            "sell",
		"confidence":        3,
		"position_size_pct": 250,
		"reason":            strings.Repeat("x", 800),
	}, UnitPercent)
	if d.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %.2f", d.Confidence)
	}
	if d.PositionSizePct != 100 {
		t.Fatalf("expected size clamped to 100, got %.2f", d.PositionSizePct)
	}
	if len(d.Reason) != MaxReasonLen {
		t.Fatalf("expected reason truncated to %d, got %d", MaxReasonLen, len(d.Reason))
	}

	d = Normalize(map[string]any{"action": "buy", "confidence": -1, "position_size_pct": -5}, UnitPercent)
	if d.Confidence != 0 || d.PositionSizePct != 0 {
		t.Fatalf("expected negatives clamped to zero, got %+v", d)
	}
}

func TestNormalizeFractionUnit(t *testing.T) {
	d := Normalize(map[string]any{"action": "buy", "position_size_pct": 0.25}, UnitFraction)
	if d.PositionSizePct != 25 {
		t.Fatalf("expected 25 percent, got %.2f", d.PositionSizePct)
	}
	if d.SizeFraction() != 0.25 {
		t.Fatalf("expected fraction 0.25, got %.4f", d.SizeFraction())
	}
}

func TestNormalizeNonNumericBecomesNull(t *testing.T) {
	d := Normalize(map[string]any{
		"action":            "close",
		"confidence":        "high",
		"position_size_pct": "lots",
		"stop_loss":         "n/a",
		"take_profit":       true,
		"fallback_reason":   "openai: timeout",
	}, UnitPercent)
	if d.Confidence != 0 || d.PositionSizePct != 0 {
		t.Fatalf("expected zeroed numerics, got %+v", d)
	}
	if d.StopLoss != nil || d.TakeProfit != nil {
		t.Fatalf("expected nil stop/take, got %v %v", d.StopLoss, d.TakeProfit)
	}
	if d.FallbackReason != "openai: timeout" {
		t.Fatalf("fallback reason not preserved: %q", d.FallbackReason)
	}
}

func TestFallback(t *testing.T) {
	d := Fallback("gemini unavailable")
	if d.Action != Hold || d.FallbackReason != "gemini unavailable" {
		t.Fatalf("unexpected fallback decision %+v", d)
	}
}
