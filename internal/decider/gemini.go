package decider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tradebot/internal/decision"
)

const (
	GeminiName         = "gemini"
	defaultGeminiBase  = "https://generativelanguage.googleapis.com"
	defaultGeminiModel = "gemini-1.5-flash"
)

// Gemini calls the generateContent REST endpoint.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	http    httpJSON
}

func NewGemini(apiKey, model, baseURL string, timeout time.Duration) *Gemini {
	if model == "" {
		model = defaultGeminiModel
	}
	if baseURL == "" {
		baseURL = defaultGeminiBase
	}
	return &Gemini{apiKey: apiKey, model: model, baseURL: strings.TrimSuffix(baseURL, "/"), http: newHTTPJSON(timeout)}
}

func (g *Gemini) Name() string { return GeminiName }

func (g *Gemini) Unit() decision.SizeUnit { return decision.UnitPercent }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Propose(ctx context.Context, in Context) (map[string]any, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: BuildPrompt(in)}}}}}
	var resp geminiResponse
	if err := g.http.post(ctx, endpoint, nil, req, &resp); err != nil {
		return nil, err
	}
	var text strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	if text.Len() == 0 {
		return nil, errors.New("empty candidates")
	}
	return ParseDecisionJSON(text.String())
}
