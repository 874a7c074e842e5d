package decider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ErrNoJSON is returned when a model reply carries no JSON object.
var ErrNoJSON = errors.New("decider: no JSON object in reply")

const maxReplyBytes = 1 << 20

// BuildPrompt renders the instruction sent to every LLM provider.
func BuildPrompt(in Context) string {
	var b strings.Builder
	b.WriteString("You are a cautious spot trading assistant. ")
	b.WriteString("Return only strict JSON with keys: action (buy|sell|hold|close), confidence (0..1), reason, ")
	b.WriteString("position_size_pct (percent of available balance, 0..100), stop_loss, take_profit (numbers or null).\n")
	fmt.Fprintf(&b, "symbol=%s market=%s price=%g\n", in.Symbol, in.MarketType, in.LatestPrice)

	ind := in.Indicators.Map()
	keys := make([]string, 0, len(ind))
	for k := range ind {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("indicators:")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%.6g", k, ind[k])
	}
	b.WriteString("\nbalances:")
	for _, k := range []string{"wallet", "available"} {
		fmt.Fprintf(&b, " %s=%.2f", k, in.Balances[k])
	}
	fmt.Fprintf(&b, "\npositions=%d", len(in.Positions))
	for _, p := range in.Positions {
		fmt.Fprintf(&b, " [%s %s qty=%g entry=%g pnl_pct=%.2f]", p.Symbol, p.Side, p.Qty, p.EntryPrice, p.PnLPct)
	}
	fmt.Fprintf(&b, "\nrecent_orders=%d", len(in.RecentOrders))
	if n := len(in.CandlesFast); n > 0 {
		last := in.CandlesFast[n-1]
		fmt.Fprintf(&b, "\nlast_candle open=%g high=%g low=%g close=%g volume=%g", last.Open, last.High, last.Low, last.Close, last.Volume)
	}
	return b.String()
}

// ParseDecisionJSON extracts the outermost {...} span of a model reply.
func ParseDecisionJSON(text string) (map[string]any, error) {
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, ErrNoJSON
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	if out == nil {
		return nil, ErrNoJSON
	}
	return out, nil
}

// httpJSON is the small transport shared by the LLM providers.
type httpJSON struct {
	client *http.Client
}

func newHTTPJSON(timeout time.Duration) httpJSON {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return httpJSON{client: &http.Client{Timeout: timeout}}
}

func (h httpJSON) post(ctx context.Context, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
