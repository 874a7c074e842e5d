package paper

import (
	"math"
	"testing"
)

func TestBuySellRealizesProfit(t *testing.T) {
	wallet := NewWallet(1000)

	qty := wallet.Buy(100, 100)
	if qty <= 0 {
		t.Fatalf("expected positive qty, got %.4f", qty)
	}
	if wallet.AvailableBalance() != 900 {
		t.Fatalf("expected 900 available, got %.2f", wallet.AvailableBalance())
	}
	if wallet.WalletBalance() != 1000 {
		t.Fatalf("buy must not touch wallet balance, got %.2f", wallet.WalletBalance())
	}

	before := wallet.WalletBalance()
	sold, realized := wallet.Sell(120, qty)
	if sold != qty {
		t.Fatalf("expected full sell of %.4f, got %.4f", qty, sold)
	}
	if realized <= 0 {
		t.Fatalf("expected positive realized pnl, got %.4f", realized)
	}
	if math.Abs(wallet.WalletBalance()-(before+realized)) > 1e-9 {
		t.Fatalf("wallet balance should grow by exactly realized pnl")
	}
	if wallet.BaseQty() != 0 || wallet.EntryPrice() != 0 {
		t.Fatalf("expected flat wallet, got qty=%.6f entry=%.6f", wallet.BaseQty(), wallet.EntryPrice())
	}
	if math.Abs(wallet.AvailableBalance()-1020) > 1e-9 {
		t.Fatalf("expected 1020 available, got %.4f", wallet.AvailableBalance())
	}
}

func TestWeightedAverageEntry(t *testing.T) {
	wallet := NewWallet(10_000)
	a1, p1 := 2.0, 100.0
	a2, p2 := 3.0, 150.0

	wallet.Buy(p1, a1*p1)
	wallet.Buy(p2, a2*p2)

	want := (a1*p1 + a2*p2) / (a1 + a2)
	if math.Abs(wallet.EntryPrice()-want) > 1e-9 {
		t.Fatalf("expected entry %.6f, got %.6f", want, wallet.EntryPrice())
	}
	if math.Abs(wallet.BaseQty()-(a1+a2)) > 1e-9 {
		t.Fatalf("expected qty %.2f, got %.6f", a1+a2, wallet.BaseQty())
	}
}

func TestSellClampsToHeld(t *testing.T) {
	wallet := NewWallet(1000)
	qty := wallet.Buy(50, 100)

	sold, _ := wallet.Sell(55, qty*10)
	if math.Abs(sold-qty) > 1e-12 {
		t.Fatalf("expected clamp to %.6f, got %.6f", qty, sold)
	}
	if wallet.BaseQty() < 0 {
		t.Fatalf("base qty went negative: %.6f", wallet.BaseQty())
	}

	sold, realized := wallet.Sell(55, 1)
	if sold != 0 || realized != 0 {
		t.Fatalf("expected no-op sell on flat wallet, got %.4f %.4f", sold, realized)
	}
}

func TestBuySpendCappedByAvailable(t *testing.T) {
	wallet := NewWallet(100)
	qty := wallet.Buy(10, 500)
	if qty != 10 {
		t.Fatalf("expected qty 10 from capped spend, got %.4f", qty)
	}
	if wallet.AvailableBalance() != 0 {
		t.Fatalf("expected zero available, got %.4f", wallet.AvailableBalance())
	}
	if got := wallet.Buy(10, 50); got != 0 {
		t.Fatalf("expected no-op buy with no balance, got %.4f", got)
	}
}

func TestDegenerateInputsDoNotMutate(t *testing.T) {
	wallet := NewWallet(1000)
	wallet.Buy(100, 200)
	snapshot := *wallet

	cases := []struct {
		name string
		fn   func()
	}{
		{"zero price buy", func() { wallet.Buy(0, 100) }},
		{"negative price buy", func() { wallet.Buy(-1, 100) }},
		{"nan price buy", func() { wallet.Buy(math.NaN(), 100) }},
		{"zero amount buy", func() { wallet.Buy(100, 0) }},
		{"negative amount buy", func() { wallet.Buy(100, -10) }},
		{"inf amount buy", func() { wallet.Buy(100, math.Inf(1)) }},
		{"zero qty sell", func() { wallet.Sell(100, 0) }},
		{"negative qty sell", func() { wallet.Sell(100, -1) }},
		{"zero price sell", func() { wallet.Sell(0, 1) }},
		{"nan qty sell", func() { wallet.Sell(100, math.NaN()) }},
	}
	for _, tc := range cases {
		tc.fn()
		if *wallet != snapshot {
			t.Fatalf("%s mutated wallet: %+v vs %+v", tc.name, *wallet, snapshot)
		}
	}
}

func TestEquity(t *testing.T) {
	wallet := NewWallet(1000)
	wallet.Buy(100, 500)
	if got := wallet.Equity(110); math.Abs(got-1050) > 1e-9 {
		t.Fatalf("expected equity 1050, got %.4f", got)
	}
}
