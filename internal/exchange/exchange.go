// Package exchange hosts venue connectors, lot rules and mark-price sources.
package exchange

import (
	"context"
	"errors"
	"math"

	"tradebot/internal/signal"
)

// Side enumerates order directions sent to a venue.
type Side string

const (
	// Buy indicates a long order.
	Buy Side = "BUY"
	// Sell indicates a reducing order.
	Sell Side = "SELL"
)

// ErrNoSymbol is returned when the venue has no data for the requested symbol.
var ErrNoSymbol = errors.New("symbol not found")

// Rules are the venue's quantization and minimum-size constraints for a symbol.
type Rules struct {
	StepSize    float64 `json:"step_size"`
	MinQty      float64 `json:"min_qty"`
	MinNotional float64 `json:"min_notional"`
	TickSize    float64 `json:"tick_size"`
}

// DefaultRules apply when a venue reports nothing for a symbol.
func DefaultRules() Rules {
	return Rules{StepSize: 0.001, MinQty: 0, MinNotional: 5, TickSize: 0.0001}
}

// Credentials authenticate signed venue calls.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Empty reports whether either half of the key pair is missing.
func (c Credentials) Empty() bool { return c.APIKey == "" || c.APISecret == "" }

// Order statuses that mean quantity actually traded.
const (
	FillFilled          = "FILLED"
	FillPartiallyFilled = "PARTIALLY_FILLED"
)

// Fill is the venue's answer to a market order. Qty is the executed quantity.
type Fill struct {
	Status  string
	Qty     float64
	Price   float64
	OrderID string
}

// Executed reports whether the venue traded a positive quantity.
func (f Fill) Executed() bool {
	if f.Status != FillFilled && f.Status != FillPartiallyFilled {
		return false
	}
	return !math.IsNaN(f.Qty) && !math.IsInf(f.Qty, 0) && f.Qty > 0
}

// Balances are quote-asset balances reported by the venue.
type Balances struct {
	Wallet    float64
	Available float64
}

// Client is the venue collaborator used by the executor and the bot loop.
type Client interface {
	SymbolRules(ctx context.Context, symbol string) (Rules, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
	PlaceMarketOrder(ctx context.Context, creds Credentials, symbol string, side Side, qty float64) (Fill, error)
	AccountBalances(ctx context.Context, creds Credentials) (Balances, error)
}

// CandleSource serves OHLCV history.
type CandleSource interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error)
}
