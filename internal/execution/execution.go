// Package execution turns approved decisions into fills against the paper ledger or a venue.
package execution

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradebot/internal/decision"
	"tradebot/internal/exchange"
	"tradebot/internal/history"
	"tradebot/internal/metrics"
	"tradebot/internal/paper"
)

// Status is the outcome class of an execution attempt.
type Status string

const (
	StatusHold      Status = "hold"
	StatusBlocked   Status = "blocked"
	StatusRejected  Status = "rejected"
	StatusFilled    Status = "filled"
	StatusSimulated Status = "simulated"
	StatusError     Status = "error"
	StatusNoop      Status = "noop"
)

// Execution modes.
const (
	ModePaper = "paper"
	ModeDemo  = "demo"
	ModeLive  = "live"
)

// DefaultDuplicateWindow suppresses an identical (symbol, action) order right after a fill.
const DefaultDuplicateWindow = 2 * time.Second

// Result describes what happened to one decision.
type Result struct {
	Status      Status        `json:"status"`
	Side        exchange.Side `json:"side,omitempty"`
	Qty         float64       `json:"qty,omitempty"`
	Price       float64       `json:"price,omitempty"`
	RealizedPnL *float64      `json:"realized_pnl,omitempty"`
	Details     string        `json:"details,omitempty"`
	OrderID     string        `json:"order_id,omitempty"`
}

// Traded reports whether the result moved the ledger.
func (r Result) Traded() bool {
	return r.Status == StatusFilled || r.Status == StatusSimulated
}

// Config controls routing and the guards in front of it.
type Config struct {
	Mode               string
	LiveTradingEnabled bool
	DuplicateWindow    time.Duration
	Credentials        exchange.Credentials
}

// Option tweaks executor internals, mostly for tests.
type Option func(*Executor)

// WithClock swaps the time source used by the duplicate guard.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// Executor routes decisions for a single session. Not safe for concurrent use.
type Executor struct {
	cfg      Config
	wallet   *paper.Wallet
	history  *history.Store
	venue    exchange.Client
	log      zerolog.Logger
	now      func() time.Time
	lastFill map[string]time.Time
}

// NewExecutor wires the ledger, the order history and the venue together.
func NewExecutor(cfg Config, wallet *paper.Wallet, store *history.Store, venue exchange.Client, log zerolog.Logger, opts ...Option) *Executor {
	cfg.Mode = strings.ToLower(cfg.Mode)
	if cfg.Mode == "" {
		cfg.Mode = ModePaper
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = DefaultDuplicateWindow
	}
	e := &Executor{
		cfg:      cfg,
		wallet:   wallet,
		history:  store,
		venue:    venue,
		log:      log.With().Str("component", "execution").Str("mode", cfg.Mode).Logger(),
		now:      time.Now,
		lastFill: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the routing mode.
func (e *Executor) Mode() string { return e.cfg.Mode }

// Execute applies the guards and routes the decision. It always returns a Result.
func (e *Executor) Execute(ctx context.Context, symbol string, price float64, d decision.Decision, emergencyStop bool) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("symbol", symbol).Msg("execution panicked")
			res = Result{Status: StatusError, Details: fmt.Sprintf("internal error: %v", r)}
		}
		metrics.ExecutionsTotal.WithLabelValues(symbol, string(res.Status)).Inc()
	}()

	switch d.Action {
	case decision.Buy, decision.Sell, decision.Close:
	default:
		return Result{Status: StatusHold, Details: "no order"}
	}

	directional := d.Action == decision.Buy || d.Action == decision.Sell
	if directional && emergencyStop {
		return Result{Status: StatusBlocked, Details: "emergency stop"}
	}
	if directional {
		if last, ok := e.lastFill[guardKey(symbol, d.Action)]; ok && e.now().Sub(last) < e.cfg.DuplicateWindow {
			return Result{Status: StatusBlocked, Details: "duplicate order guard"}
		}
	}
	return e.route(ctx, symbol, price, d)
}

// CloseAll flattens the position regardless of emergency stop or duplicate guard.
func (e *Executor) CloseAll(ctx context.Context, symbol string, price float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Interface("panic", r).Str("symbol", symbol).Msg("close all panicked")
			res = Result{Status: StatusError, Details: fmt.Sprintf("internal error: %v", r)}
		}
		metrics.ExecutionsTotal.WithLabelValues(symbol, string(res.Status)).Inc()
	}()

	if e.wallet.BaseQty() <= 0 {
		return Result{Status: StatusNoop, Details: "no open position"}
	}
	d := decision.Decision{Action: decision.Close, Confidence: 1, Reason: "close all", PositionSizePct: 100}
	return e.route(ctx, symbol, price, d)
}

func (e *Executor) route(ctx context.Context, symbol string, price float64, d decision.Decision) Result {
	if e.cfg.Mode == ModeLive && !e.cfg.LiveTradingEnabled {
		return Result{Status: StatusBlocked, Details: "live guard"}
	}
	if e.cfg.Mode != ModePaper && e.cfg.Credentials.Empty() {
		return Result{Status: StatusBlocked, Details: "missing API credentials"}
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Result{Status: StatusRejected, Details: "invalid price"}
	}

	rules, err := e.venue.SymbolRules(ctx, symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("symbol rules unavailable")
		return Result{Status: StatusError, Details: fmt.Sprintf("symbol rules: %v", err)}
	}

	side := exchange.Buy
	var qty float64
	switch d.Action {
	case decision.Buy:
		qty = e.wallet.AvailableBalance() * d.SizeFraction() / price
	case decision.Sell:
		side = exchange.Sell
		qty = e.wallet.BaseQty() * d.SizeFraction()
	case decision.Close:
		side = exchange.Sell
		qty = e.wallet.BaseQty()
	}
	if side == exchange.Sell && e.wallet.BaseQty() <= 0 {
		return Result{Status: StatusRejected, Side: side, Details: "no open position"}
	}

	qty = RoundStep(qty, rules.StepSize)
	switch {
	case qty <= 0:
		return Result{Status: StatusRejected, Side: side, Details: "quantity rounds to zero"}
	case rules.MinQty > 0 && qty < rules.MinQty:
		return Result{Status: StatusRejected, Side: side, Qty: qty, Details: fmt.Sprintf("qty %.8f below min qty %.8f", qty, rules.MinQty)}
	case qty*price < rules.MinNotional:
		return Result{Status: StatusRejected, Side: side, Qty: qty, Details: fmt.Sprintf("notional %.4f below min notional %.4f", qty*price, rules.MinNotional)}
	}

	status := StatusFilled
	recordStatus := "FILLED"
	orderID := uuid.NewString()
	fillPx, fillQty := price, qty

	if e.cfg.Mode != ModePaper {
		fill, err := e.venue.PlaceMarketOrder(ctx, e.cfg.Credentials, symbol, side, qty)
		if err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Str("side", string(side)).Float64("qty", qty).Msg("order placement failed")
			return Result{Status: StatusError, Side: side, Qty: qty, Details: fmt.Sprintf("order failed: %v", err)}
		}
		if !fill.Executed() {
			state := fill.Status
			if state == "" {
				state = "no status"
			}
			e.log.Warn().Str("symbol", symbol).Str("side", string(side)).Str("status", fill.Status).Float64("executed", fill.Qty).
				Str("order_id", fill.OrderID).Msg("order not filled")
			return Result{Status: StatusError, Side: side, Qty: qty, OrderID: fill.OrderID, Details: fmt.Sprintf("order not filled: %s", state)}
		}
		if fill.Price > 0 && !math.IsInf(fill.Price, 0) {
			fillPx = fill.Price
		}
		fillQty = fill.Qty
		if fill.OrderID != "" {
			orderID = fill.OrderID
		}
		if e.cfg.Mode == ModeDemo {
			status, recordStatus = StatusSimulated, "SIMULATED"
		}
	}

	res := Result{Status: status, Side: side, Price: fillPx, OrderID: orderID}
	var booked float64
	if side == exchange.Buy {
		booked = e.wallet.Buy(fillPx, fillQty*fillPx)
	} else {
		filled, realized := e.wallet.Sell(fillPx, fillQty)
		booked = filled
		res.RealizedPnL = &realized
	}
	res.Qty = booked
	if e.cfg.Mode == ModePaper {
		if booked <= 0 {
			return Result{Status: StatusRejected, Side: side, Details: "ledger could not absorb fill"}
		}
	} else {
		// The venue traded fillQty whatever the ledger managed to mirror.
		res.Qty = fillQty
		if math.Abs(booked-fillQty) > 1e-9 {
			e.log.Warn().Str("symbol", symbol).Str("side", string(side)).Float64("executed", fillQty).Float64("booked", booked).
				Msg("ledger clamped exchange fill")
			res.Details = fmt.Sprintf("ledger booked %.8f of %.8f", booked, fillQty)
		}
	}

	if e.history != nil {
		if _, err := e.history.Add(symbol, string(side), res.Qty, fillPx, e.cfg.Mode, recordStatus, orderID); err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Msg("persist order history")
		}
	}
	e.lastFill[guardKey(symbol, d.Action)] = e.now()
	metrics.OrdersTotal.WithLabelValues(symbol, strings.ToLower(string(side))).Inc()

	evt := e.log.Info().Str("sym", symbol).Str("side", string(side)).Float64("qty", res.Qty).Float64("px", fillPx).Str("status", string(status)).Str("order_id", orderID)
	if res.RealizedPnL != nil {
		evt = evt.Float64("realized", *res.RealizedPnL)
	}
	evt.Msg("order executed")
	return res
}

// RoundStep floors qty to a multiple of step. A tiny tolerance absorbs float noise
// such as 0.59999999 that should be 0.6.
func RoundStep(qty, step float64) float64 {
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty <= 0 {
		return 0
	}
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return qty
	}
	s := decimal.NewFromFloat(step)
	units := decimal.NewFromFloat(qty).Div(s).Add(decimal.New(1, -9)).Floor()
	return units.Mul(s).InexactFloat64()
}

func guardKey(symbol string, action decision.Action) string {
	return symbol + "|" + string(action)
}
