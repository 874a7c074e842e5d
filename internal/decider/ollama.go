package decider

import (
	"context"
	"strings"
	"time"

	"tradebot/internal/decision"
)

const (
	OllamaName         = "ollama"
	defaultOllamaBase  = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// Ollama talks to a local model server; no key is needed.
type Ollama struct {
	model   string
	baseURL string
	http    httpJSON
}

func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if model == "" {
		model = defaultOllamaModel
	}
	if baseURL == "" {
		baseURL = defaultOllamaBase
	}
	return &Ollama{model: model, baseURL: strings.TrimSuffix(baseURL, "/"), http: newHTTPJSON(timeout)}
}

func (o *Ollama) Name() string { return OllamaName }

func (o *Ollama) Unit() decision.SizeUnit { return decision.UnitPercent }

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (o *Ollama) Propose(ctx context.Context, in Context) (map[string]any, error) {
	var resp ollamaResponse
	req := ollamaRequest{Model: o.model, Prompt: BuildPrompt(in), Format: "json"}
	if err := o.http.post(ctx, o.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return nil, err
	}
	return ParseDecisionJSON(resp.Response)
}
