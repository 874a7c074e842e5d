// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Execution modes.
const (
	ModePaper = "paper"
	ModeDemo  = "demo"
	ModeLive  = "live"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	MetricsAddr string `yaml:"metrics_addr"`
	HTTPAddr    string `yaml:"http_addr"`
}

// Exchange describes the venue the bot reads prices from and routes orders to.
type Exchange struct {
	Name       string `yaml:"name" validate:"oneof=binance stub"`
	Symbol     string `yaml:"symbol" validate:"required"`
	MarketType string `yaml:"market_type"`
	Testnet    bool   `yaml:"testnet"`
	APIKey     string `yaml:"api_key"`
	APISecret  string `yaml:"api_secret"`
	BaseURL    string `yaml:"base_url"`
	// Feed selects the trade stream provider: stub, binance or empty to disable.
	Feed string `yaml:"feed" validate:"omitempty,oneof=stub binance"`
}

// Bot drives the tick loop.
type Bot struct {
	Mode               string `yaml:"mode" validate:"oneof=paper demo live"`
	LiveTradingEnabled bool   `yaml:"live_trading_enabled"`
	IntervalSeconds    int    `yaml:"interval_seconds" validate:"gte=1"`
	TimeframeFast      string `yaml:"timeframe_fast" validate:"required"`
	TimeframeSlow      string `yaml:"timeframe_slow" validate:"required"`
	Lookback           int    `yaml:"lookback" validate:"gte=22,lte=1000"`
	EmergencyStop      bool   `yaml:"emergency_stop"`
}

// Risk encodes guard-rails applied before any order is attempted. Sizes are percent of balance.
type Risk struct {
	MaxPositions       int     `yaml:"max_positions" validate:"gte=0"`
	MaxPositionSizePct float64 `yaml:"max_position_size_pct" validate:"gte=0,lte=100"`
	// MaxDailyLoss is an absolute quote amount of session loss; 0 disables the rule.
	MaxDailyLoss       float64 `yaml:"max_daily_loss" validate:"gte=0"`
	CooldownSeconds    int     `yaml:"cooldown_seconds" validate:"gte=0"`
}

// Execution tunes order routing.
type Execution struct {
	PositionSizePct   float64 `yaml:"position_size_pct" validate:"gte=0,lte=100"`
	DuplicateWindowMs int     `yaml:"duplicate_window_ms" validate:"gte=0"`
}

// Paper captures paper-trading account settings.
type Paper struct {
	StartingBalance float64 `yaml:"starting_balance" validate:"gt=0"`
}

// History selects where the order ring is persisted.
type History struct {
	Backend  string `yaml:"backend" validate:"oneof=file sqlite"`
	Path     string `yaml:"path" validate:"required"`
	Capacity int    `yaml:"capacity" validate:"gte=1"`
}

// Decider picks the decision provider and its credentials.
type Decider struct {
	Provider       string `yaml:"provider" validate:"oneof=rule_based openai gemini ollama"`
	Model          string `yaml:"model"`
	OpenAIKey      string `yaml:"openai_api_key"`
	OpenAIBaseURL  string `yaml:"openai_base_url"`
	GeminiKey      string `yaml:"gemini_api_key"`
	GeminiBaseURL  string `yaml:"gemini_base_url"`
	OllamaBaseURL  string `yaml:"ollama_base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=1"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Exchange  Exchange  `yaml:"exchange"`
	Bot       Bot       `yaml:"bot"`
	Risk      Risk      `yaml:"risk"`
	Execution Execution `yaml:"execution"`
	Paper     Paper     `yaml:"paper"`
	History   History   `yaml:"history"`
	Decider   Decider   `yaml:"decider"`
}

// Default returns a paper-mode configuration that runs offline.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "tradebot",
			Env:         "dev",
			LogLevel:    "info",
			MetricsAddr: ":9090",
			HTTPAddr:    ":8080",
		},
		Exchange: Exchange{
			Name:       "binance",
			Symbol:     "BTCUSDT",
			MarketType: "spot",
			Testnet:    true,
		},
		Bot: Bot{
			Mode:            ModePaper,
			IntervalSeconds: 10,
			TimeframeFast:   "1m",
			TimeframeSlow:   "5m",
			Lookback:        200,
		},
		Risk: Risk{
			MaxPositions:       1,
			MaxPositionSizePct: 25,
		},
		Execution: Execution{
			PositionSizePct:   10,
			DuplicateWindowMs: 2000,
		},
		Paper: Paper{StartingBalance: 10000},
		History: History{
			Backend:  "file",
			Path:     "data/order_history.json",
			Capacity: 200,
		},
		Decider: Decider{
			Provider:       "rule_based",
			Model:          "rule-v1",
			OllamaBaseURL:  "http://localhost:11434",
			TimeoutSeconds: 30,
		},
	}
}

// Load reads a YAML file from disk on top of Default.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	config := Default()
	if err := yaml.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.normalize()
	return config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv loads the given .env files (missing files are ignored) and overlays
// environment variables. Existing process variables win over .env entries.
func (c *Config) ApplyEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}

	c.Bot.Mode = getEnv("BOT_MODE", c.Bot.Mode)
	c.Exchange.Symbol = getEnv("BOT_SYMBOL", c.Exchange.Symbol)
	c.Exchange.APIKey = getEnv("BINANCE_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BINANCE_API_SECRET", c.Exchange.APISecret)
	c.Exchange.Testnet = boolFromEnv("BINANCE_TESTNET", c.Exchange.Testnet)
	c.Bot.LiveTradingEnabled = boolFromEnv("LIVE_TRADING_ENABLED", c.Bot.LiveTradingEnabled)
	c.Bot.IntervalSeconds = intFromEnv("BOT_INTERVAL_SECONDS", c.Bot.IntervalSeconds)
	c.Decider.Provider = getEnv("DECIDER_PROVIDER", c.Decider.Provider)
	c.Decider.Model = getEnv("DECIDER_MODEL", c.Decider.Model)
	c.Decider.OpenAIKey = getEnv("OPENAI_API_KEY", c.Decider.OpenAIKey)
	c.Decider.GeminiKey = getEnv("GEMINI_API_KEY", c.Decider.GeminiKey)
	c.Decider.OllamaBaseURL = getEnv("OLLAMA_BASE_URL", c.Decider.OllamaBaseURL)
	c.Paper.StartingBalance = floatFromEnv("PAPER_STARTING_BALANCE", c.Paper.StartingBalance)
	c.Execution.PositionSizePct = floatFromEnv("POSITION_SIZE_PCT", c.Execution.PositionSizePct)
	c.Risk.MaxPositions = intFromEnv("MAX_POSITIONS", c.Risk.MaxPositions)
	c.Risk.MaxPositionSizePct = floatFromEnv("MAX_POSITION_SIZE_PCT", c.Risk.MaxPositionSizePct)
	c.Risk.CooldownSeconds = intFromEnv("COOLDOWN_SECONDS", c.Risk.CooldownSeconds)
	c.App.LogLevel = getEnv("LOG_LEVEL", c.App.LogLevel)
	c.normalize()
}

func (c *Config) normalize() {
	c.Bot.Mode = strings.ToLower(strings.TrimSpace(c.Bot.Mode))
	c.Exchange.Symbol = strings.ToUpper(strings.TrimSpace(c.Exchange.Symbol))
	c.Exchange.Name = strings.ToLower(strings.TrimSpace(c.Exchange.Name))
	c.Decider.Provider = normalizeProvider(c.Decider.Provider)
}

// normalizeProvider accepts both "RuleBased" and "rule_based" spellings.
func normalizeProvider(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	switch p {
	case "", "rulebased", "rule-based", "rule":
		return "rule_based"
	}
	return p
}

var validate = validator.New()

// Validate checks field constraints declared on the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Interval is the tick period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Bot.IntervalSeconds) * time.Second
}

// Cooldown is the per-symbol pause enforced by the risk gate.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Risk.CooldownSeconds) * time.Second
}

// DuplicateWindow is how long an identical order is suppressed after a fill.
func (c *Config) DuplicateWindow() time.Duration {
	return time.Duration(c.Execution.DuplicateWindowMs) * time.Millisecond
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}
