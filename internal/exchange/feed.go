package exchange

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tradebot/internal/metrics"
	"tradebot/internal/signal"
)

// Feed providers.
const (
	ProviderStub    = "stub"
	ProviderBinance = "binance"
)

const (
	defaultStubInterval = 500 * time.Millisecond
	defaultStubPrice    = 100.0
	// stubDrift is the per-tick relative move of the synthetic price.
	stubDrift = 0.001

	binanceStreamURL  = "wss://stream.binance.com:9443"
	binanceTestStream = "wss://testnet.binance.vision"
)

// Feed streams trade prints for a fixed set of symbols. It is used only to keep
// marks fresh between ticks; orders never depend on it.
type Feed struct {
	provider     string
	symbols      []string
	log          zerolog.Logger
	streamURL    string
	stubInterval time.Duration
	stubPrice    float64
}

// Option configures a Feed.
type Option func(*Feed)

// WithStreamURL overrides the websocket host for the binance provider.
func WithStreamURL(url string) Option {
	return func(f *Feed) {
		if url != "" {
			f.streamURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithTestnet points the binance provider at the testnet stream host.
func WithTestnet(testnet bool) Option {
	return func(f *Feed) {
		if testnet {
			f.streamURL = binanceTestStream
		}
	}
}

// WithStub tunes the synthetic provider. Zero values keep the defaults.
func WithStub(interval time.Duration, startPrice float64) Option {
	return func(f *Feed) {
		if interval > 0 {
			f.stubInterval = interval
		}
		if startPrice > 0 {
			f.stubPrice = startPrice
		}
	}
}

// NewFeed builds a feed for provider; unknown or empty providers fall back to the stub.
func NewFeed(provider string, symbols []string, log zerolog.Logger, opts ...Option) *Feed {
	f := &Feed{
		provider:     strings.ToLower(strings.TrimSpace(provider)),
		symbols:      normalizeSymbols(symbols),
		log:          log.With().Str("component", "feed").Str("provider", provider).Logger(),
		streamURL:    binanceStreamURL,
		stubInterval: defaultStubInterval,
		stubPrice:    defaultStubPrice,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
			out = append(out, sym)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Symbols returns the tracked symbols, upper-cased and sorted.
func (f *Feed) Symbols() []string { return slices.Clone(f.symbols) }

// Run pushes ticks onto out until ctx is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.Tick) error {
	if f.provider == ProviderBinance {
		return f.runBinance(ctx, out)
	}
	return f.runStub(ctx, out)
}

// Track runs the feed and records every tick into book until ctx ends.
func (f *Feed) Track(ctx context.Context, book *PriceBook) error {
	ticks := make(chan signal.Tick, 256)
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx, ticks) }()
	for {
		select {
		case tk := <-ticks:
			book.Update(tk)
		case err := <-errCh:
			return err
		}
	}
}

func (f *Feed) runStub(ctx context.Context, out chan<- signal.Tick) error {
	ticker := time.NewTicker(f.stubInterval)
	defer ticker.Stop()

	step := f.stubPrice * stubDrift
	px := f.stubPrice
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			px += step
			for _, sym := range f.symbols {
				select {
				case out <- signal.Tick{Symbol: sym, Price: px, Size: 1, Side: 1, Ts: ts}:
					metrics.TicksTotal.WithLabelValues(sym).Inc()
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}
