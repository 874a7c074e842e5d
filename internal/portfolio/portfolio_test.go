package portfolio

import (
	"math"
	"testing"
)

func TestBuildPositionLong(t *testing.T) {
	pos := BuildPosition("DOGEUSDT", 100, 0.1, 0.11)
	if pos.Side != SideLong {
		t.Fatalf("expected long, got %s", pos.Side)
	}
	if math.Abs(pos.UnrealizedPnL-1) > 1e-9 {
		t.Fatalf("expected unrealized 1, got %.6f", pos.UnrealizedPnL)
	}
	if math.Abs(pos.PnLPct-10) > 1e-9 {
		t.Fatalf("expected pnl pct 10, got %.6f", pos.PnLPct)
	}
	if math.Abs(pos.PositionNotional-11) > 1e-9 {
		t.Fatalf("expected notional 11, got %.6f", pos.PositionNotional)
	}
}

func TestBuildPositionFlatAndZeroEntry(t *testing.T) {
	flat := BuildPosition("BTCUSDT", 0, 0, 50000)
	if flat.Side != SideFlat || flat.UnrealizedPnL != 0 || flat.PnLPct != 0 {
		t.Fatalf("unexpected flat position %+v", flat)
	}

	zeroEntry := BuildPosition("BTCUSDT", 1, 0, 50000)
	if math.IsNaN(zeroEntry.PnLPct) || math.IsInf(zeroEntry.PnLPct, 0) || zeroEntry.PnLPct != 0 {
		t.Fatalf("expected guarded pnl pct, got %.4f", zeroEntry.PnLPct)
	}
}

func TestAccountCards(t *testing.T) {
	pos := BuildPosition("DOGEUSDT", 100, 0.1, 0.11)
	var session Session
	session.AddRealized(5)
	session.AddRealized(-2)

	cards := AccountCards(1000, 900, []Position{pos}, session.RealizedPnL())
	if cards.Equity < cards.WalletBalance {
		t.Fatalf("equity should include positive unrealized pnl")
	}
	if math.Abs(cards.Equity-1001) > 1e-9 {
		t.Fatalf("expected equity 1001, got %.6f", cards.Equity)
	}
	if cards.RealizedPnL != 3 {
		t.Fatalf("expected realized 3, got %.2f", cards.RealizedPnL)
	}
	if cards.AvailableBalance != 900 {
		t.Fatalf("unexpected available %.2f", cards.AvailableBalance)
	}
}
