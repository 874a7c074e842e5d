// Package bot runs the decide/validate/execute cycle for one symbol.
package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradebot/internal/decider"
	"tradebot/internal/decision"
	"tradebot/internal/exchange"
	"tradebot/internal/execution"
	"tradebot/internal/history"
	"tradebot/internal/indicators"
	"tradebot/internal/metrics"
	"tradebot/internal/paper"
	"tradebot/internal/portfolio"
	"tradebot/internal/risk"
	"tradebot/internal/signal"
	"tradebot/internal/util"
)

const (
	snapshotOrders = 20
	snapshotLogs   = 80
	contextOrders  = 10
	contextCandles = 20
)

// Snapshot is the read model handed to the API and CLIs after every action.
type Snapshot struct {
	Symbol        string                `json:"symbol"`
	Mode          string                `json:"mode"`
	MarketType    string                `json:"market_type"`
	Price         float64               `json:"price"`
	AccountCards  portfolio.Cards       `json:"account_cards"`
	Positions     []portfolio.Position  `json:"positions"`
	RecentOrders  []history.Record      `json:"recent_orders"`
	Indicators    *indicators.Snapshot  `json:"indicators,omitempty"`
	LastDecision  decision.Decision     `json:"last_decision"`
	OrderResult   execution.Result      `json:"order_result"`
	EmergencyStop bool                  `json:"emergency_stop"`
	Logs          []string              `json:"logs"`
	Error         string                `json:"error,omitempty"`
	Timestamp     time.Time             `json:"ts"`
}

// Options carries the collaborators of a Service.
type Options struct {
	Symbol        string
	Mode          string
	MarketType    string
	TimeframeFast string
	TimeframeSlow string
	Lookback      int
	EmergencyStop bool

	Venue    exchange.Client
	Candles  exchange.CandleSource
	Prices   *exchange.PriceBook
	Decider  decider.Decider
	Executor *execution.Executor
	Wallet   *paper.Wallet
	History  *history.Store
	Risk     *risk.Gate
	Recent   *util.RecentLogs
}

// Service serializes ticks, close-all and snapshot reads for one symbol.
type Service struct {
	mu   sync.Mutex
	opts Options
	log  zerolog.Logger

	session       portfolio.Session
	emergencyStop bool
	lastDecision  decision.Decision
	lastResult    execution.Result
	lastInd       *indicators.Snapshot
}

// NewService validates opts and returns a ready service.
func NewService(opts Options, log zerolog.Logger) (*Service, error) {
	switch {
	case opts.Symbol == "":
		return nil, errors.New("bot: symbol is required")
	case opts.Venue == nil || opts.Candles == nil:
		return nil, errors.New("bot: venue and candle source are required")
	case opts.Decider == nil || opts.Executor == nil || opts.Wallet == nil || opts.Risk == nil || opts.History == nil:
		return nil, errors.New("bot: decider, executor, wallet, risk and history are required")
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 200
	}
	if opts.TimeframeFast == "" {
		opts.TimeframeFast = "1m"
	}
	if opts.TimeframeSlow == "" {
		opts.TimeframeSlow = "5m"
	}
	return &Service{
		opts:          opts,
		log:           log.With().Str("component", "bot").Str("symbol", opts.Symbol).Logger(),
		emergencyStop: opts.EmergencyStop,
		lastDecision:  decision.Default(),
		lastResult:    execution.Result{Status: execution.StatusHold},
	}, nil
}

// SetEmergencyStop toggles blocking of new buy/sell orders.
func (s *Service) SetEmergencyStop(enabled bool) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emergencyStop = enabled
	s.log.Warn().Bool("enabled", enabled).Msg("emergency stop toggled")
	return s.snapshot(context.Background(), 0, "")
}

// Refresh rebuilds the snapshot without trading.
func (s *Service) Refresh(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(ctx, 0, "")
}

// Tick runs one full cycle. Failures are reported on the snapshot, never returned.
func (s *Service) Tick(ctx context.Context) (snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("tick.failed")
			s.lastResult = execution.Result{Status: execution.StatusError}
			snap = s.snapshot(ctx, 0, fmt.Sprintf("tick panicked: %v", r))
		}
	}()

	price, err := s.tick(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("tick.failed")
		s.lastResult = execution.Result{Status: execution.StatusError, Details: err.Error()}
		return s.snapshot(ctx, 0, err.Error())
	}
	return s.snapshot(ctx, price, "")
}

func (s *Service) tick(ctx context.Context) (float64, error) {
	symbol := s.opts.Symbol
	fast, err := s.opts.Candles.Candles(ctx, symbol, s.opts.TimeframeFast, s.opts.Lookback)
	if err != nil {
		return 0, fmt.Errorf("fetch %s candles: %w", s.opts.TimeframeFast, err)
	}
	slow, err := s.opts.Candles.Candles(ctx, symbol, s.opts.TimeframeSlow, s.opts.Lookback)
	if err != nil {
		return 0, fmt.Errorf("fetch %s candles: %w", s.opts.TimeframeSlow, err)
	}
	s.log.Info().Int("rows", len(fast)).Int("rows_slow", len(slow)).Msg("tick.data_fetched")

	ind, err := indicators.Compute(fast)
	if err != nil {
		return 0, fmt.Errorf("compute indicators: %w", err)
	}
	s.lastInd = &ind

	price := fast[len(fast)-1].Close
	if mark, ok := s.opts.Prices.Mark(symbol); ok {
		price = mark
	}

	w := s.opts.Wallet
	var positions []portfolio.Position
	if w.BaseQty() > 0 {
		positions = append(positions, portfolio.BuildPosition(symbol, w.BaseQty(), w.EntryPrice(), price))
	}

	in := decider.Context{
		Symbol:       symbol,
		MarketType:   s.opts.MarketType,
		LatestPrice:  price,
		Indicators:   ind,
		Balances:     map[string]float64{"wallet": w.WalletBalance(), "available": w.AvailableBalance()},
		Positions:    positions,
		RecentOrders: s.opts.History.List(contextOrders),
		CandlesFast:  signal.Tail(fast, contextCandles),
		CandlesSlow:  signal.Tail(slow, contextCandles),
	}
	d := s.opts.Decider.Decide(ctx, in)
	s.lastDecision = d
	s.log.Info().Str("action", string(d.Action)).Float64("confidence", d.Confidence).Float64("size_pct", d.PositionSizePct).
		Str("reason", d.Reason).Str("fallback", d.FallbackReason).Msg("tick.decision")

	if d.Action != decision.Hold {
		ok, reason := s.opts.Risk.Validate(symbol, d, w.AvailableBalance(), len(positions), s.session.RealizedPnL())
		s.log.Info().Bool("ok", ok).Str("reason", reason).Msg("tick.risk")
		if !ok {
			metrics.RiskRejectionsTotal.WithLabelValues(symbol, reason).Inc()
			s.lastResult = execution.Result{Status: execution.StatusBlocked, Details: reason}
			return price, nil
		}
	}

	res := s.opts.Executor.Execute(ctx, symbol, price, d, s.emergencyStop)
	s.record(res)
	s.log.Info().Str("status", string(res.Status)).Str("side", string(res.Side)).Float64("qty", res.Qty).
		Str("details", res.Details).Msg("tick.execution")
	return price, nil
}

// CloseAll flattens the position at the current mark.
func (s *Service) CloseAll(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	price, err := s.markPrice(ctx)
	if err != nil {
		s.lastResult = execution.Result{Status: execution.StatusError, Details: err.Error()}
		return s.snapshot(ctx, 0, err.Error())
	}
	res := s.opts.Executor.CloseAll(ctx, s.opts.Symbol, price)
	s.record(res)
	s.log.Info().Str("status", string(res.Status)).Float64("qty", res.Qty).Msg("close_all")
	return s.snapshot(ctx, price, "")
}

func (s *Service) record(res execution.Result) {
	s.lastResult = res
	if res.RealizedPnL != nil {
		s.session.AddRealized(*res.RealizedPnL)
	}
	if res.Traded() {
		s.opts.Risk.RegisterTrade(s.opts.Symbol)
	}
}

func (s *Service) markPrice(ctx context.Context) (float64, error) {
	if mark, ok := s.opts.Prices.Mark(s.opts.Symbol); ok {
		return mark, nil
	}
	px, err := s.opts.Venue.LatestPrice(ctx, s.opts.Symbol)
	if err != nil {
		return 0, fmt.Errorf("latest price: %w", err)
	}
	return px, nil
}

// snapshot must be called with mu held. A zero price triggers a mark lookup
// falling back to the entry price.
func (s *Service) snapshot(ctx context.Context, price float64, errMsg string) Snapshot {
	w := s.opts.Wallet
	if price <= 0 {
		if px, err := s.markPrice(ctx); err == nil {
			price = px
		} else {
			price = w.EntryPrice()
		}
	}

	positions := []portfolio.Position{}
	if w.BaseQty() > 0 {
		positions = append(positions, portfolio.BuildPosition(s.opts.Symbol, w.BaseQty(), w.EntryPrice(), price))
	}
	cards := portfolio.AccountCards(w.WalletBalance(), w.AvailableBalance(), positions, s.session.RealizedPnL())
	metrics.Equity.WithLabelValues(s.opts.Symbol).Set(cards.Equity)

	var logs []string
	if s.opts.Recent != nil {
		logs = s.opts.Recent.Lines(snapshotLogs)
	}
	return Snapshot{
		Symbol:        s.opts.Symbol,
		Mode:          s.opts.Executor.Mode(),
		MarketType:    s.opts.MarketType,
		Price:         price,
		AccountCards:  cards,
		Positions:     positions,
		RecentOrders:  s.opts.History.List(snapshotOrders),
		Indicators:    s.lastInd,
		LastDecision:  s.lastDecision,
		OrderResult:   s.lastResult,
		EmergencyStop: s.emergencyStop,
		Logs:          logs,
		Error:         errMsg,
		Timestamp:     time.Now().UTC(),
	}
}
