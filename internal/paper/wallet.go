package paper

import "math"

const epsilon = 1e-12

// Wallet tracks a single-symbol paper account with weighted-average cost.
// It is not safe for concurrent use; callers serialize ticks.
type Wallet struct {
	walletBalance    float64
	availableBalance float64
	baseQty          float64
	entryPrice       float64
}

// NewWallet seeds both balances with the starting bankroll.
func NewWallet(startingBalance float64) *Wallet {
	if !finite(startingBalance) || startingBalance < 0 {
		startingBalance = 0
	}
	return &Wallet{walletBalance: startingBalance, availableBalance: startingBalance}
}

// Buy spends up to quoteAmount at price and returns the quantity acquired.
func (w *Wallet) Buy(price, quoteAmount float64) float64 {
	if !finite(price) || !finite(quoteAmount) || price <= 0 {
		return 0
	}
	spend := math.Min(w.availableBalance, quoteAmount)
	if spend <= 0 {
		return 0
	}
	qty := spend / price
	newQty := w.baseQty + qty
	w.entryPrice = (w.baseQty*w.entryPrice + spend) / newQty
	w.baseQty = newQty
	w.availableBalance -= spend
	return qty
}

// Sell disposes of up to qty at price, returning the filled quantity and realized PnL.
func (w *Wallet) Sell(price, qty float64) (filled, realized float64) {
	if !finite(price) || !finite(qty) || price <= 0 {
		return 0, 0
	}
	qty = math.Min(w.baseQty, qty)
	if qty <= 0 {
		return 0, 0
	}
	realized = (price - w.entryPrice) * qty
	w.availableBalance += qty * price
	w.walletBalance += realized
	w.baseQty -= qty
	if w.baseQty <= epsilon {
		w.baseQty = 0
		w.entryPrice = 0
	}
	return qty, realized
}

// WalletBalance is the starting bankroll plus realized PnL.
func (w *Wallet) WalletBalance() float64 { return w.walletBalance }

// AvailableBalance is free quote currency.
func (w *Wallet) AvailableBalance() float64 { return w.availableBalance }

// BaseQty is the held quantity of the traded asset.
func (w *Wallet) BaseQty() float64 { return w.baseQty }

// EntryPrice is the weighted-average cost, zero when flat.
func (w *Wallet) EntryPrice() float64 { return w.entryPrice }

// Equity marks the account at lastPrice.
func (w *Wallet) Equity(lastPrice float64) float64 {
	return w.availableBalance + w.baseQty*lastPrice
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
