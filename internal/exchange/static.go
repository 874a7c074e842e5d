package exchange

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradebot/internal/signal"
)

// Static is an offline venue: fixed lot rules, a settable price and synthetic candles.
// Orders fill immediately at the current price.
type Static struct {
	mu       sync.Mutex
	rules    Rules
	prices   map[string]float64
	balances Balances
}

// NewStatic seeds the venue with rules shared by every symbol.
func NewStatic(rules Rules) *Static {
	return &Static{rules: rules, prices: make(map[string]float64)}
}

// SetPrice updates the last price for symbol.
func (s *Static) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	s.prices[symbol] = price
	s.mu.Unlock()
}

// SetBalances overrides what AccountBalances reports.
func (s *Static) SetBalances(b Balances) {
	s.mu.Lock()
	s.balances = b
	s.mu.Unlock()
}

func (s *Static) SymbolRules(_ context.Context, _ string) (Rules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules, nil
}

func (s *Static) LatestPrice(_ context.Context, symbol string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	px, ok := s.prices[symbol]
	if !ok {
		return 0, ErrNoSymbol
	}
	return px, nil
}

func (s *Static) PlaceMarketOrder(ctx context.Context, _ Credentials, symbol string, _ Side, qty float64) (Fill, error) {
	px, err := s.LatestPrice(ctx, symbol)
	if err != nil {
		return Fill{}, err
	}
	return Fill{Status: FillFilled, Qty: qty, Price: px, OrderID: uuid.NewString()}, nil
}

func (s *Static) AccountBalances(_ context.Context, _ Credentials) (Balances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances, nil
}

// Candles synthesizes a gently trending series ending at the current price.
func (s *Static) Candles(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error) {
	last, err := s.LatestPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	step, err := time.ParseDuration(interval)
	if err != nil {
		step = time.Minute
	}
	end := time.Now().UTC().Truncate(step)
	out := make([]signal.Candle, limit)
	for i := 0; i < limit; i++ {
		back := float64(limit - 1 - i)
		px := last * (1 - 0.0005*back + 0.002*math.Sin(float64(i)/3))
		out[i] = signal.Candle{
			OpenTime: end.Add(-time.Duration(limit-1-i) * step),
			Open:     px * 0.999,
			High:     px * 1.002,
			Low:      px * 0.997,
			Close:    px,
			Volume:   100,
		}
	}
	out[limit-1].Close = last
	return out, nil
}
