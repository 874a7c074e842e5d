package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/cast"

	"tradebot/internal/metrics"
	"tradebot/internal/signal"
)

const (
	streamReadTimeout = 30 * time.Second
	streamPingEvery   = 15 * time.Second
	reconnectMin      = time.Second
	reconnectMax      = 30 * time.Second
	// A session that stayed up this long resets the reconnect backoff.
	stableSession = time.Minute
)

type binanceEnvelope struct {
	Stream string       `json:"stream"`
	Data   binanceTrade `json:"data"`
}

type binanceTrade struct {
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

func binanceStreamPath(base string, symbols []string) string {
	streams := make([]string, len(symbols))
	for i, sym := range symbols {
		streams[i] = strings.ToLower(sym) + "@trade"
	}
	return fmt.Sprintf("%s/stream?streams=%s", base, strings.Join(streams, "/"))
}

func (f *Feed) runBinance(ctx context.Context, out chan<- signal.Tick) error {
	symbols := f.symbols
	if len(symbols) == 0 {
		return errors.New("binance feed: no symbols")
	}
	url := binanceStreamPath(f.streamURL, symbols)

	backoff := reconnectMin
	for {
		started := time.Now()
		err := f.consumeBinanceStream(ctx, url, symbols, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > stableSession {
			backoff = reconnectMin
		}
		metrics.FeedReconnectsTotal.WithLabelValues(ProviderBinance).Inc()
		f.log.Warn().Err(err).Dur("backoff", backoff).Msg("trade stream dropped, reconnecting")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		if backoff *= 2; backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (f *Feed) consumeBinanceStream(ctx context.Context, url string, symbols []string, out chan<- signal.Tick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial trade stream: %w", err)
	}
	defer conn.Close()

	f.log.Info().Strs("symbols", symbols).Msg("trade stream connected")

	conn.SetReadLimit(1 << 20)
	extend := func(string) error { return conn.SetReadDeadline(time.Now().Add(streamReadTimeout)) }
	_ = extend("")
	conn.SetPongHandler(extend)

	sessionCtx, stop := context.WithCancel(ctx)
	defer stop()
	go f.keepAlive(sessionCtx, conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = extend("")

		tick, err := decodeBinanceTrade(message)
		if err != nil {
			f.log.Debug().Err(err).Msg("skipping trade message")
			continue
		}

		select {
		case out <- tick:
			metrics.TicksTotal.WithLabelValues(tick.Symbol).Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// keepAlive pings until ctx ends, then closes conn so a blocked read returns.
func (f *Feed) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				f.log.Debug().Err(err).Msg("trade stream ping failed")
				return
			}
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func decodeBinanceTrade(message []byte) (signal.Tick, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return signal.Tick{}, err
	}
	px, err := cast.ToFloat64E(env.Data.Price)
	if err != nil {
		return signal.Tick{}, fmt.Errorf("trade price %q: %w", env.Data.Price, err)
	}
	if px <= 0 {
		return signal.Tick{}, fmt.Errorf("trade price %q is not positive", env.Data.Price)
	}
	qty, err := cast.ToFloat64E(env.Data.Quantity)
	if err != nil {
		return signal.Tick{}, fmt.Errorf("trade qty %q: %w", env.Data.Quantity, err)
	}
	side := 1
	if env.Data.IsBuyerMaker {
		side = -1
	}
	return signal.Tick{
		Symbol: parseBinanceSymbol(env.Stream),
		Price:  px,
		Size:   qty,
		Side:   side,
		Ts:     time.UnixMilli(env.Data.TradeTime),
	}, nil
}

func parseBinanceSymbol(stream string) string {
	sym, _, _ := strings.Cut(stream, "@")
	if sym == "" {
		return strings.ToUpper(stream)
	}
	return strings.ToUpper(sym)
}
