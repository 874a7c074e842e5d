package risk

import (
	"testing"
	"time"

	"tradebot/internal/decision"
)

func testLimits() Limits {
	return Limits{MaxPositions: 1, MaxPositionSizePct: 20, MaxDailyLoss: 100, Cooldown: 30 * time.Second}
}

func TestValidatePasses(t *testing.T) {
	gate := NewGate(testLimits())
	ok, reason := gate.Validate("BTCUSDT", decision.Decision{Action: decision.Buy, PositionSizePct: 10}, 1000, 0, 0)
	if !ok || reason != ReasonOK {
		t.Fatalf("expected ok, got %v %s", ok, reason)
	}
}

func TestValidateRules(t *testing.T) {
	cases := []struct {
		name      string
		d         decision.Decision
		available float64
		open      int
		realized  float64
		want      string
	}{
		{"max positions", decision.Decision{Action: decision.Buy, PositionSizePct: 10}, 1000, 1, 0, ReasonMaxPositions},
		{"max size buy", decision.Decision{Action: decision.Buy, PositionSizePct: 50}, 1000, 0, 0, ReasonMaxSize},
		{"max size sell", decision.Decision{Action: decision.Sell, PositionSizePct: 50}, 1000, 1, 0, ReasonMaxSize},
		{"daily loss", decision.Decision{Action: decision.Sell, PositionSizePct: 10}, 1000, 1, -100, ReasonDailyLoss},
		{"insufficient balance", decision.Decision{Action: decision.Buy, PositionSizePct: 10}, 0, 0, 0, ReasonInsufficientBalance},
		{"precedence positions before size", decision.Decision{Action: decision.Buy, PositionSizePct: 90}, 0, 3, -500, ReasonMaxPositions},
		{"precedence size before loss", decision.Decision{Action: decision.Sell, PositionSizePct: 90}, 0, 1, -500, ReasonMaxSize},
	}
	for _, tc := range cases {
		gate := NewGate(testLimits())
		ok, reason := gate.Validate("BTCUSDT", tc.d, tc.available, tc.open, tc.realized)
		if ok || reason != tc.want {
			t.Fatalf("%s: expected reject %q, got ok=%v reason=%q", tc.name, tc.want, ok, reason)
		}
	}
}

func TestCloseExemptFromMaxSize(t *testing.T) {
	gate := NewGate(testLimits())
	ok, reason := gate.Validate("BTCUSDT", decision.Decision{Action: decision.Close, PositionSizePct: 100}, 0, 1, 0)
	if !ok {
		t.Fatalf("close must not be blocked by max size, got %s", reason)
	}
}

func TestDailyLossDisabledWhenZero(t *testing.T) {
	limits := testLimits()
	limits.MaxDailyLoss = 0
	gate := NewGate(limits)
	ok, reason := gate.Validate("BTCUSDT", decision.Decision{Action: decision.Sell, PositionSizePct: 10}, 0, 1, -1e6)
	if !ok {
		t.Fatalf("expected disabled loss rule, got %s", reason)
	}
}

func TestCooldownOnlyAfterRegisteredTrade(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(testLimits(), WithClock(func() time.Time { return now }))
	buy := decision.Decision{Action: decision.Buy, PositionSizePct: 10}

	// Validation alone must not start the clock.
	for i := 0; i < 3; i++ {
		if ok, reason := gate.Validate("BTCUSDT", buy, 1000, 0, 0); !ok {
			t.Fatalf("unexpected reject before any trade: %s", reason)
		}
	}

	gate.RegisterTrade("BTCUSDT")
	now = now.Add(10 * time.Second)
	if ok, reason := gate.Validate("BTCUSDT", buy, 1000, 0, 0); ok || reason != ReasonCooldown {
		t.Fatalf("expected cooldown, got ok=%v reason=%s", ok, reason)
	}
	if ok, _ := gate.Validate("ETHUSDT", buy, 1000, 0, 0); !ok {
		t.Fatalf("cooldown must be per symbol")
	}

	now = now.Add(21 * time.Second)
	if ok, reason := gate.Validate("BTCUSDT", buy, 1000, 0, 0); !ok {
		t.Fatalf("expected cooldown expired, got %s", reason)
	}
	if _, ok := gate.LastTrade("BTCUSDT"); !ok {
		t.Fatalf("expected last trade recorded")
	}
}
