package bot

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"tradebot/internal/config"
	"tradebot/internal/decider"
	"tradebot/internal/exchange"
	"tradebot/internal/execution"
	"tradebot/internal/history"
	"tradebot/internal/paper"
	"tradebot/internal/risk"
	"tradebot/internal/util"
)

// stubStartPrice seeds the offline venue and the stub feed.
const stubStartPrice = 100.0

// Runtime is a fully wired service plus the pieces the binaries drive directly.
type Runtime struct {
	Service *Service
	Feed    *exchange.Feed
	Prices  *exchange.PriceBook
	closers []io.Closer
}

// Close releases persistence handles.
func (r *Runtime) Close() (err error) {
	for _, c := range r.closers {
		err = multierr.Append(err, c.Close())
	}
	return err
}

// Wire assembles a Runtime from configuration.
func Wire(cfg *config.Config, log zerolog.Logger, recent *util.RecentLogs) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rt := &Runtime{Prices: exchange.NewPriceBook(30 * time.Second)}

	var venue interface {
		exchange.Client
		exchange.CandleSource
	}
	switch cfg.Exchange.Name {
	case "stub":
		static := exchange.NewStatic(exchange.DefaultRules())
		static.SetPrice(cfg.Exchange.Symbol, stubStartPrice)
		static.SetBalances(exchange.Balances{Wallet: cfg.Paper.StartingBalance, Available: cfg.Paper.StartingBalance})
		venue = static
	default:
		venue = exchange.NewBinance(cfg.Exchange.Testnet, log, exchange.WithBaseURL(cfg.Exchange.BaseURL))
	}

	var persister history.Persister
	switch cfg.History.Backend {
	case "sqlite":
		p, err := history.NewSQLitePersister(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		rt.closers = append(rt.closers, p)
		persister = p
	default:
		persister = history.NewFilePersister(cfg.History.Path)
	}
	store := history.NewStore(persister, cfg.History.Capacity, log)

	creds := exchange.Credentials{APIKey: cfg.Exchange.APIKey, APISecret: cfg.Exchange.APISecret}
	log.Info().Str("mode", cfg.Bot.Mode).Str("symbol", cfg.Exchange.Symbol).Bool("testnet", cfg.Exchange.Testnet).
		Str("api_key", util.MaskSecret(creds.APIKey)).Str("history", cfg.History.Backend).Msg("wiring bot")
	if cfg.Bot.Mode != config.ModePaper && !creds.Empty() {
		checkBalances(venue, creds, log)
	}

	wallet := paper.NewWallet(cfg.Paper.StartingBalance)
	executor := execution.NewExecutor(execution.Config{
		Mode:               cfg.Bot.Mode,
		LiveTradingEnabled: cfg.Bot.LiveTradingEnabled,
		DuplicateWindow:    cfg.DuplicateWindow(),
		Credentials:        creds,
	}, wallet, store, venue, log)
	gate := risk.NewGate(risk.Limits{
		MaxPositions:       cfg.Risk.MaxPositions,
		MaxPositionSizePct: cfg.Risk.MaxPositionSizePct,
		MaxDailyLoss:       cfg.Risk.MaxDailyLoss,
		Cooldown:           cfg.Cooldown(),
	})

	svc, err := NewService(Options{
		Symbol:        cfg.Exchange.Symbol,
		Mode:          cfg.Bot.Mode,
		MarketType:    cfg.Exchange.MarketType,
		TimeframeFast: cfg.Bot.TimeframeFast,
		TimeframeSlow: cfg.Bot.TimeframeSlow,
		Lookback:      cfg.Bot.Lookback,
		EmergencyStop: cfg.Bot.EmergencyStop,
		Venue:         venue,
		Candles:       venue,
		Prices:        rt.Prices,
		Decider:       decider.Build(cfg.Decider, cfg.Execution.PositionSizePct, log),
		Executor:      executor,
		Wallet:        wallet,
		History:       store,
		Risk:          gate,
		Recent:        recent,
	}, log)
	if err != nil {
		return nil, multierr.Append(err, rt.Close())
	}
	rt.Service = svc

	if cfg.Exchange.Feed != "" {
		rt.Feed = exchange.NewFeed(cfg.Exchange.Feed, []string{cfg.Exchange.Symbol}, log,
			exchange.WithTestnet(cfg.Exchange.Testnet),
			exchange.WithStub(0, stubStartPrice),
		)
	}
	return rt, nil
}

// checkBalances confirms signed access at startup. Failures are logged, not fatal.
func checkBalances(venue exchange.Client, creds exchange.Credentials, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	bal, err := venue.AccountBalances(ctx, creds)
	if err != nil {
		log.Warn().Err(err).Msg("exchange balances unavailable")
		return
	}
	log.Info().Float64("wallet", bal.Wallet).Float64("available", bal.Available).Msg("exchange balances")
}
