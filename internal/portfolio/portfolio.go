// Package portfolio derives position valuation and account summary cards.
package portfolio

// Side values for a normalized position.
const (
	SideLong = "long"
	SideFlat = "flat"
)

// Position is a derived, never persisted view of a holding at a mark price.
type Position struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Qty              float64 `json:"qty"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	PnLPct           float64 `json:"pnl_pct"`
	PositionNotional float64 `json:"position_notional"`
}

// Cards summarizes the account for display.
type Cards struct {
	WalletBalance    float64 `json:"wallet_balance"`
	AvailableBalance float64 `json:"available_balance"`
	Equity           float64 `json:"equity"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	RealizedPnL      float64 `json:"realized_pnl"`
}

// BuildPosition values qty held at entry against mark.
func BuildPosition(symbol string, qty, entryPrice, markPrice float64) Position {
	p := Position{
		Symbol:           symbol,
		Side:             SideFlat,
		Qty:              qty,
		EntryPrice:       entryPrice,
		MarkPrice:        markPrice,
		PositionNotional: qty * markPrice,
	}
	if qty > 0 {
		p.Side = SideLong
		p.UnrealizedPnL = (markPrice - entryPrice) * qty
		if entryPrice != 0 {
			p.PnLPct = (markPrice - entryPrice) / entryPrice * 100
		}
	}
	return p
}

// AccountCards aggregates positions; realized comes from the caller's session accumulator.
func AccountCards(walletBalance, availableBalance float64, positions []Position, realized float64) Cards {
	var unrealized float64
	for _, p := range positions {
		unrealized += p.UnrealizedPnL
	}
	return Cards{
		WalletBalance:    walletBalance,
		AvailableBalance: availableBalance,
		Equity:           walletBalance + unrealized,
		UnrealizedPnL:    unrealized,
		RealizedPnL:      realized,
	}
}

// Session accumulates realized PnL across fills for the life of the process.
type Session struct {
	realized float64
}

// AddRealized books the realized PnL of a sell or close.
func (s *Session) AddRealized(v float64) { s.realized += v }

// RealizedPnL returns the session total.
func (s *Session) RealizedPnL() float64 { return s.realized }
