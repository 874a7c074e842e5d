package decider

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"tradebot/internal/config"
	"tradebot/internal/decision"
	"tradebot/internal/indicators"
	"tradebot/internal/portfolio"
)

func sampleContext(withPosition bool) Context {
	in := Context{
		Symbol:      "BTCUSDT",
		MarketType:  "spot",
		LatestPrice: 100,
		Indicators:  indicators.Snapshot{EMA9: 101, EMA21: 100, RSI14: 55, ATR14: 1.2},
		Balances:    map[string]float64{"wallet": 1000, "available": 1000},
	}
	if withPosition {
		in.Positions = []portfolio.Position{portfolio.BuildPosition("BTCUSDT", 1, 90, 100)}
	}
	return in
}

func TestRuleBased(t *testing.T) {
	guard := NewGuard(NewRuleBased(15), zerolog.Nop())
	ctx := context.Background()

	cases := []struct {
		name     string
		ind      indicators.Snapshot
		position bool
		action   decision.Action
		size     float64
	}{
		{name: "bullish", ind: indicators.Snapshot{EMA9: 2, EMA21: 1, RSI14: 60}, action: decision.Buy, size: 15},
		{name: "bullish overbought", ind: indicators.Snapshot{EMA9: 2, EMA21: 1, RSI14: 72}, action: decision.Hold},
		{name: "bearish in position", ind: indicators.Snapshot{EMA9: 1, EMA21: 2, RSI14: 40}, position: true, action: decision.Close, size: 100},
		{name: "bearish flat", ind: indicators.Snapshot{EMA9: 1, EMA21: 2, RSI14: 40}, action: decision.Hold},
		{name: "overbought in position", ind: indicators.Snapshot{EMA9: 2, EMA21: 2, RSI14: 80}, position: true, action: decision.Sell, size: 50},
	}
	for _, tc := range cases {
		in := sampleContext(tc.position)
		in.Indicators = tc.ind
		d := guard.Decide(ctx, in)
		if d.Action != tc.action || d.PositionSizePct != tc.size {
			t.Fatalf("%s: got %s size %.2f", tc.name, d.Action, d.PositionSizePct)
		}
		if d.Confidence != 0.65 || d.FallbackReason != "" {
			t.Fatalf("%s: unexpected decision %+v", tc.name, d)
		}
	}
}

type stubProvider struct {
	raw   map[string]any
	err   error
	panic bool
	unit  decision.SizeUnit
}

func (s stubProvider) Name() string            { return "stub" }
func (s stubProvider) Unit() decision.SizeUnit { return s.unit }
func (s stubProvider) Propose(context.Context, Context) (map[string]any, error) {
	if s.panic {
		panic("boom")
	}
	return s.raw, s.err
}

func TestGuardFallsBackOnError(t *testing.T) {
	var buf bytes.Buffer
	guard := NewGuard(stubProvider{err: errors.New("timeout")}, zerolog.New(&buf))
	d := guard.Decide(context.Background(), sampleContext(false))
	if d.Action != decision.Hold || !strings.Contains(d.FallbackReason, "timeout") {
		t.Fatalf("expected fallback hold, got %+v", d)
	}
	if !strings.Contains(buf.String(), "provider failed") {
		t.Fatalf("expected warning log, got %s", buf.String())
	}

	d = NewGuard(stubProvider{panic: true}, zerolog.Nop()).Decide(context.Background(), sampleContext(false))
	if d.Action != decision.Hold || !strings.Contains(d.FallbackReason, "panicked") {
		t.Fatalf("expected fallback after panic, got %+v", d)
	}
}

func TestGuardConvertsFractionUnit(t *testing.T) {
	guard := NewGuard(stubProvider{raw: map[string]any{"action": "buy", "position_size_pct": 0.25}, unit: decision.UnitFraction}, zerolog.Nop())
	d := guard.Decide(context.Background(), sampleContext(false))
	if d.Action != decision.Buy || d.PositionSizePct != 25 {
		t.Fatalf("expected 25%% buy, got %+v", d)
	}
}

func TestParseDecisionJSON(t *testing.T) {
	raw, err := ParseDecisionJSON("Sure!\n```json\n{\"action\":\"sell\",\"confidence\":0.8}\n```")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if raw["action"] != "sell" {
		t.Fatalf("unexpected payload %+v", raw)
	}
	if _, err := ParseDecisionJSON("no json here"); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
	if _, err := ParseDecisionJSON("{not json}"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(sampleContext(true))
	for _, want := range []string{"symbol=BTCUSDT", "ema_9=101", "rsi_14=55", "available=1000.00", "positions=1", "strict JSON"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestOpenAIProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model != "gpt-test" || len(req.Messages) != 1 {
			t.Errorf("unexpected request %+v err=%v", req, err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"action\":\"buy\",\"confidence\":0.9,\"reason\":\"breakout\",\"position_size_pct\":12,\"stop_loss\":95,\"take_profit\":null}"}}]}`))
	}))
	defer server.Close()

	guard := NewGuard(NewOpenAI("sk-test", "gpt-test", server.URL, time.Second), zerolog.Nop())
	d := guard.Decide(context.Background(), sampleContext(false))
	if d.Action != decision.Buy || d.PositionSizePct != 12 || d.Reason != "breakout" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if d.StopLoss == nil || *d.StopLoss != 95 || d.TakeProfit != nil {
		t.Fatalf("unexpected stops %+v %+v", d.StopLoss, d.TakeProfit)
	}
}

func TestGeminiProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/gemini-test:generateContent") || r.URL.Query().Get("key") != "g-key" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"action\":\"close\",\"confidence\":0.4,\"position_size_pct\":100}"}]}}]}`))
	}))
	defer server.Close()

	d := NewGuard(NewGemini("g-key", "gemini-test", server.URL, time.Second), zerolog.Nop()).Decide(context.Background(), sampleContext(true))
	if d.Action != decision.Close || d.PositionSizePct != 100 {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestOllamaProviderFallsBackOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("model loading"))
	}))
	defer server.Close()

	d := NewGuard(NewOllama(server.URL, "llama-test", time.Second), zerolog.Nop()).Decide(context.Background(), sampleContext(false))
	if d.Action != decision.Hold || !strings.Contains(d.FallbackReason, "503") {
		t.Fatalf("expected fallback with status, got %+v", d)
	}
}

func TestOllamaProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.URL.Path != "/api/generate" || req.Stream || req.Model != "llama-test" {
			t.Errorf("unexpected request %s %+v", r.URL.Path, req)
		}
		_, _ = w.Write([]byte(`{"response":"{\"action\":\"hold\",\"confidence\":0.3,\"reason\":\"chop\"}"}`))
	}))
	defer server.Close()

	d := NewGuard(NewOllama(server.URL, "llama-test", time.Second), zerolog.Nop()).Decide(context.Background(), sampleContext(false))
	if d.Action != decision.Hold || d.Reason != "chop" || d.FallbackReason != "" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestBuildFallsBackWithoutKey(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default().Decider
	cfg.Provider = "openai"
	d := Build(cfg, 10, zerolog.New(&buf))
	if d.Name() != RuleBasedName {
		t.Fatalf("expected rule_based fallback, got %s", d.Name())
	}
	if !strings.Contains(buf.String(), "api key missing") {
		t.Fatalf("expected warning, got %s", buf.String())
	}

	cfg.Provider = "gemini"
	cfg.GeminiKey = "k"
	if d := Build(cfg, 10, zerolog.Nop()); d.Name() != GeminiName {
		t.Fatalf("expected gemini, got %s", d.Name())
	}
	cfg.Provider = "ollama"
	if d := Build(cfg, 10, zerolog.Nop()); d.Name() != OllamaName {
		t.Fatalf("expected ollama, got %s", d.Name())
	}
}
