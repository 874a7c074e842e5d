package decider

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tradebot/internal/config"
)

// Build resolves the configured provider once. Providers that need a key fall
// back to rule-based when it is missing.
func Build(cfg config.Decider, buySizePct float64, log zerolog.Logger) Decider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	model := cfg.Model
	if model == "rule-v1" {
		model = ""
	}

	var provider Provider
	switch strings.ToLower(cfg.Provider) {
	case OpenAIName:
		if cfg.OpenAIKey == "" {
			log.Warn().Str("provider", OpenAIName).Msg("api key missing, using rule_based")
			break
		}
		provider = NewOpenAI(cfg.OpenAIKey, model, cfg.OpenAIBaseURL, timeout)
	case GeminiName:
		if cfg.GeminiKey == "" {
			log.Warn().Str("provider", GeminiName).Msg("api key missing, using rule_based")
			break
		}
		provider = NewGemini(cfg.GeminiKey, model, cfg.GeminiBaseURL, timeout)
	case OllamaName:
		provider = NewOllama(cfg.OllamaBaseURL, model, timeout)
	case RuleBasedName, "":
	default:
		log.Warn().Str("provider", cfg.Provider).Msg("unknown decider provider, using rule_based")
	}
	if provider == nil {
		provider = NewRuleBased(buySizePct)
	}
	log.Info().Str("provider", provider.Name()).Msg("decider ready")
	return NewGuard(provider, log)
}
