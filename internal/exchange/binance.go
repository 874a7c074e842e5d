package exchange

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"golang.org/x/time/rate"

	"tradebot/internal/signal"
)

const (
	// BinanceMainnetURL is the production spot REST endpoint.
	BinanceMainnetURL = "https://api.binance.com"
	// BinanceTestnetURL is the spot testnet REST endpoint.
	BinanceTestnetURL = "https://testnet.binance.vision"

	defaultCallTimeout = 15 * time.Second
	defaultQuoteAsset  = "USDT"
)

// Binance talks to the Binance spot REST API through go-binance.
type Binance struct {
	baseURL    string
	quoteAsset string
	timeout    time.Duration
	attempts   int
	backoff    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
	public     *binance.Client
	log        zerolog.Logger
}

// BinanceOption configures the client.
type BinanceOption func(*Binance)

// WithBaseURL points the client at another REST host (tests use httptest servers).
func WithBaseURL(url string) BinanceOption {
	return func(b *Binance) {
		if url != "" {
			b.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithCallTimeout bounds every REST call.
func WithCallTimeout(d time.Duration) BinanceOption {
	return func(b *Binance) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithRetry sets how often public reads are attempted and the linear backoff step.
func WithRetry(attempts int, backoff time.Duration) BinanceOption {
	return func(b *Binance) {
		if attempts > 0 {
			b.attempts = attempts
		}
		if backoff >= 0 {
			b.backoff = backoff
		}
	}
}

// WithRateLimit caps outbound requests per second.
func WithRateLimit(perSecond float64, burst int) BinanceOption {
	return func(b *Binance) {
		if perSecond > 0 && burst > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithQuoteAsset selects which balance AccountBalances reports.
func WithQuoteAsset(asset string) BinanceOption {
	return func(b *Binance) {
		if asset != "" {
			b.quoteAsset = strings.ToUpper(asset)
		}
	}
}

// NewBinance builds a spot client against mainnet or testnet.
func NewBinance(testnet bool, log zerolog.Logger, opts ...BinanceOption) *Binance {
	b := &Binance{
		baseURL:    BinanceMainnetURL,
		quoteAsset: defaultQuoteAsset,
		timeout:    defaultCallTimeout,
		attempts:   defaultAttempts,
		backoff:    defaultBackoff,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
		log:        log.With().Str("component", "binance").Logger(),
	}
	if testnet {
		b.baseURL = BinanceTestnetURL
	}
	for _, opt := range opts {
		opt(b)
	}
	b.httpClient = &http.Client{Timeout: b.timeout}
	b.public = b.client(Credentials{})
	return b
}

// BaseURL reports the REST host in use.
func (b *Binance) BaseURL() string { return b.baseURL }

func (b *Binance) client(creds Credentials) *binance.Client {
	c := binance.NewClient(creds.APIKey, creds.APISecret)
	c.BaseURL = b.baseURL
	c.HTTPClient = b.httpClient
	return c
}

// call waits on the limiter and runs fn under the per-call timeout.
func (b *Binance) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return fn(callCtx)
}

// read retries idempotent public calls.
func (b *Binance) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	return Retry(ctx, b.attempts, b.backoff, func(ctx context.Context) error {
		attempt++
		err := b.call(ctx, fn)
		if err != nil {
			b.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("binance read failed")
		}
		return err
	})
}

// SymbolRules resolves LOT_SIZE, notional and PRICE_FILTER constraints.
func (b *Binance) SymbolRules(ctx context.Context, symbol string) (Rules, error) {
	var info *binance.ExchangeInfo
	err := b.read(ctx, "exchangeInfo", func(ctx context.Context) error {
		var err error
		info, err = b.public.NewExchangeInfoService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return Rules{}, fmt.Errorf("exchange info %s: %w", symbol, err)
	}
	rules := DefaultRules()
	if info == nil || len(info.Symbols) == 0 {
		return rules, nil
	}
	for _, f := range info.Symbols[0].Filters {
		switch cast.ToString(f["filterType"]) {
		case "LOT_SIZE":
			setIfParsed(&rules.StepSize, f["stepSize"])
			setIfParsed(&rules.MinQty, f["minQty"])
		case "MIN_NOTIONAL", "NOTIONAL":
			setIfParsed(&rules.MinNotional, f["minNotional"])
		case "PRICE_FILTER":
			setIfParsed(&rules.TickSize, f["tickSize"])
		}
	}
	return rules, nil
}

func setIfParsed(dst *float64, v any) {
	if v == nil {
		return
	}
	if f, err := cast.ToFloat64E(v); err == nil && f >= 0 {
		*dst = f
	}
}

// LatestPrice returns the last traded price for symbol.
func (b *Binance) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	var prices []*binance.SymbolPrice
	err := b.read(ctx, "ticker/price", func(ctx context.Context) error {
		var err error
		prices, err = b.public.NewListPricesService().Symbol(symbol).Do(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("ticker price %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p == nil || !strings.EqualFold(p.Symbol, symbol) {
			continue
		}
		px, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("parse price %q: %w", p.Price, err)
		}
		return px, nil
	}
	return 0, fmt.Errorf("ticker price %s: %w", symbol, ErrNoSymbol)
}

// Candles fetches klines; rows with unparsable numbers are dropped.
func (b *Binance) Candles(ctx context.Context, symbol, interval string, limit int) ([]signal.Candle, error) {
	var klines []*binance.Kline
	err := b.read(ctx, "klines", func(ctx context.Context) error {
		var err error
		klines, err = b.public.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}
	out := make([]signal.Candle, 0, len(klines))
	for _, k := range klines {
		if k == nil {
			continue
		}
		c, ok := parseKline(k)
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func parseKline(k *binance.Kline) (signal.Candle, bool) {
	var vals [5]float64
	for i, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return signal.Candle{}, false
		}
		vals[i] = v
	}
	return signal.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, true
}

// PlaceMarketOrder submits a signed market order. It is never retried.
func (b *Binance) PlaceMarketOrder(ctx context.Context, creds Credentials, symbol string, side Side, qty float64) (Fill, error) {
	if creds.Empty() {
		return Fill{}, fmt.Errorf("place order %s: missing credentials", symbol)
	}
	sideType := binance.SideTypeBuy
	if side == Sell {
		sideType = binance.SideTypeSell
	}
	var resp *binance.CreateOrderResponse
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = b.client(creds).NewCreateOrderService().
			Symbol(symbol).
			Side(sideType).
			Type(binance.OrderTypeMarket).
			Quantity(strconv.FormatFloat(qty, 'f', -1, 64)).
			Do(ctx)
		return err
	})
	if err != nil {
		return Fill{}, fmt.Errorf("place order %s %s: %w", side, symbol, err)
	}
	fill := Fill{
		Status:  string(resp.Status),
		OrderID: strconv.FormatInt(resp.OrderID, 10),
	}
	fill.Qty, _ = strconv.ParseFloat(resp.ExecutedQuantity, 64)
	if quote, err := strconv.ParseFloat(resp.CummulativeQuoteQuantity, 64); err == nil && fill.Qty > 0 {
		fill.Price = quote / fill.Qty
	}
	b.log.Info().Str("sym", symbol).Str("side", string(side)).Float64("qty", fill.Qty).Str("order_id", fill.OrderID).Str("status", fill.Status).Msg("market order placed")
	return fill, nil
}

// AccountBalances reports the quote asset: free as available, free+locked as wallet.
func (b *Binance) AccountBalances(ctx context.Context, creds Credentials) (Balances, error) {
	if creds.Empty() {
		return Balances{}, fmt.Errorf("account balances: missing credentials")
	}
	var acct *binance.Account
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		acct, err = b.client(creds).NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return Balances{}, fmt.Errorf("account balances: %w", err)
	}
	for _, bal := range acct.Balances {
		if !strings.EqualFold(bal.Asset, b.quoteAsset) {
			continue
		}
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		return Balances{Wallet: free + locked, Available: free}, nil
	}
	return Balances{}, nil
}
