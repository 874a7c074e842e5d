// Package signal standardizes market data payloads shared between ingestion, indicators and deciders.
package signal

import "time"

// Tick models a single trade print used to keep mark prices fresh.
type Tick struct {
	Symbol string
	Price  float64
	Size   float64
	Side   int // +1 buy, -1 sell (aggressor)
	Ts     time.Time
}

// Candle is one OHLCV bar.
type Candle struct {
	OpenTime time.Time `json:"open_time"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
}

// Closes extracts close prices in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Tail returns at most the last n candles.
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 || n >= len(candles) {
		return candles
	}
	return candles[len(candles)-n:]
}
