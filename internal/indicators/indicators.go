// Package indicators computes the technical snapshot fed to deciders.
package indicators

import (
	"errors"
	"math"

	"github.com/markcheno/go-talib"

	"tradebot/internal/signal"
)

// MinCandles is the shortest series Compute accepts (EMA21 plus one bar for RSI/ATR deltas).
const MinCandles = 22

// ErrNotEnoughData is returned when the series is shorter than MinCandles.
var ErrNotEnoughData = errors.New("indicators: not enough candles")

// Snapshot holds the latest value of each indicator.
type Snapshot struct {
	EMA9  float64 `json:"ema_9"`
	EMA21 float64 `json:"ema_21"`
	RSI14 float64 `json:"rsi_14"`
	ATR14 float64 `json:"atr_14"`
}

// Map is the flat form used in prompts and logs.
func (s Snapshot) Map() map[string]float64 {
	return map[string]float64{
		"ema_9":  s.EMA9,
		"ema_21": s.EMA21,
		"rsi_14": s.RSI14,
		"atr_14": s.ATR14,
	}
}

// Compute returns EMA9, EMA21, RSI14 and ATR14 for the last candle.
func Compute(candles []signal.Candle) (Snapshot, error) {
	if len(candles) < MinCandles {
		return Snapshot{}, ErrNotEnoughData
	}
	n := len(candles)
	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		highs[i], lows[i] = c.High, c.Low
	}
	closes := signal.Closes(candles)

	snap := Snapshot{
		EMA9:  last(talib.Ema(closes, 9)),
		EMA21: last(talib.Ema(closes, 21)),
		RSI14: last(talib.Rsi(closes, 14)),
		ATR14: last(talib.Atr(highs, lows, closes, 14)),
	}
	// A flat series leaves RSI undefined; treat it as neutral.
	if math.IsNaN(snap.RSI14) || math.IsInf(snap.RSI14, 0) {
		snap.RSI14 = 50
	}
	return snap, nil
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
