package decider

import (
	"context"
	"errors"
	"strings"
	"time"

	"tradebot/internal/decision"
)

const (
	OpenAIName         = "openai"
	defaultOpenAIBase  = "https://api.openai.com"
	defaultOpenAIModel = "gpt-4o-mini"
)

// OpenAI asks the chat completions endpoint for a decision.
type OpenAI struct {
	apiKey  string
	model   string
	baseURL string
	http    httpJSON
}

// NewOpenAI builds the provider; empty model and baseURL use the public defaults.
func NewOpenAI(apiKey, model, baseURL string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = defaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	return &OpenAI{apiKey: apiKey, model: model, baseURL: strings.TrimSuffix(baseURL, "/"), http: newHTTPJSON(timeout)}
}

func (o *OpenAI) Name() string { return OpenAIName }

func (o *OpenAI) Unit() decision.SizeUnit { return decision.UnitPercent }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Propose(ctx context.Context, in Context) (map[string]any, error) {
	req := chatRequest{
		Model:    o.model,
		Messages: []chatMessage{{Role: "user", Content: BuildPrompt(in)}},
	}
	var resp chatResponse
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := o.http.post(ctx, o.baseURL+"/v1/chat/completions", headers, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty choices")
	}
	return ParseDecisionJSON(resp.Choices[0].Message.Content)
}
