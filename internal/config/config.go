package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // LoadLocation must work in minimal containers

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"RiseScreener/internal/calculator"
	"RiseScreener/internal/model"
	"RiseScreener/internal/strategy"
)

// Source kinds.
const (
	KindHTTP   = "http"
	KindSQLite = "sqlite"
	KindYahoo  = "yahoo"
	KindAlpaca = "alpaca"
	KindMock   = "mock"
)

// SourceConfig selects and configures one bar source.
type SourceConfig struct {
	Kind      string   `yaml:"kind"`
	BaseURL   string   `yaml:"base_url"`
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
	Symbols   []string `yaml:"symbols"`
	Market    int      `yaml:"market"`
	RateLimit int      `yaml:"rate_limit"`
}

// Config holds all application configuration.
type Config struct {
	Screening struct {
		Markets           []int    `yaml:"markets"`
		LookbackDays      *int     `yaml:"lookback_days"`
		RatioMin          string   `yaml:"ratio_min"`
		RatioMax          string   `yaml:"ratio_max"`
		MaxBucket         *int     `yaml:"max_bucket"`
		SupersessionCheck *bool    `yaml:"supersession_check"`
		TieBreak          string   `yaml:"tie_break"`
		AnchorScope       string   `yaml:"anchor_scope"`
		VerifyHigh        bool     `yaml:"verify_high"`
		Timezone          string   `yaml:"timezone"`
		RatioMultiple     *float64 `yaml:"ratio_multiple"` // accepted, never used
	} `yaml:"screening"`
	Sources struct {
		Historical SourceConfig `yaml:"historical"`
		Live       SourceConfig `yaml:"live"`
	} `yaml:"sources"`
	Schedule struct {
		DailyCron string `yaml:"daily_cron"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SCREENER_BASE_URL"); v != "" {
		cfg.Sources.Historical.BaseURL = v
	}
	if v := os.Getenv("SCREENER_API_KEY"); v != "" {
		cfg.Sources.Historical.APIKey = v
	}
	for _, src := range []*SourceConfig{&cfg.Sources.Historical, &cfg.Sources.Live} {
		if src.Kind != KindAlpaca {
			continue
		}
		if v := os.Getenv("ALPACA_API_KEY"); v != "" {
			src.APIKey = v
		}
		if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
			src.APISecret = v
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Schedule.DailyCron = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	s := &c.Screening
	if len(s.Markets) == 0 {
		s.Markets = []int{int(model.MarketTSEPrime), int(model.MarketTSEStandard), int(model.MarketTSEGrowth)}
	}
	if s.LookbackDays == nil {
		days := 14
		s.LookbackDays = &days
	}
	if s.RatioMin == "" {
		s.RatioMin = "1.3"
	}
	if s.RatioMax == "" {
		s.RatioMax = "2.0"
	}
	if s.MaxBucket == nil {
		mb := strategy.MaxSupportedBucket
		s.MaxBucket = &mb
	}
	if s.SupersessionCheck == nil {
		on := true
		s.SupersessionCheck = &on
	}
	if s.TieBreak == "" {
		s.TieBreak = "earliest"
	}
	if s.AnchorScope == "" {
		s.AnchorScope = string(strategy.ScopeWindow)
	}
	if s.Timezone == "" {
		s.Timezone = "Asia/Tokyo"
	}

	if c.Sources.Historical.Kind == "" {
		c.Sources.Historical.Kind = KindSQLite
	}
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 30 15 * * 1-5"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/screener.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// TelegramEnabled reports whether chat notifications are configured.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Warnings lists accepted but ignored settings.
func (c *Config) Warnings() []string {
	var out []string
	if c.Screening.RatioMultiple != nil {
		out = append(out, fmt.Sprintf("screening.ratio_multiple=%v is ignored; use ratio_min and ratio_max", *c.Screening.RatioMultiple))
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		out = append(out, "telegram needs both bot_token and chat_id; notifications disabled")
	}
	return out
}

// Policy builds the engine policy from the screening section.
func (c *Config) Policy() (strategy.Policy, error) {
	s := c.Screening
	p := strategy.DefaultPolicy()

	var err error
	if p.RatioMin, err = decimal.NewFromString(s.RatioMin); err != nil {
		return strategy.Policy{}, fmt.Errorf("%w: screening.ratio_min %q: %w", strategy.ErrConfiguration, s.RatioMin, err)
	}
	if p.RatioMax, err = decimal.NewFromString(s.RatioMax); err != nil {
		return strategy.Policy{}, fmt.Errorf("%w: screening.ratio_max %q: %w", strategy.ErrConfiguration, s.RatioMax, err)
	}
	if p.TieBreak, err = calculator.ParseTieBreak(s.TieBreak); err != nil {
		return strategy.Policy{}, fmt.Errorf("%w: screening.tie_break: %w", strategy.ErrConfiguration, err)
	}
	if p.AnchorScope, err = strategy.ParseAnchorScope(s.AnchorScope); err != nil {
		return strategy.Policy{}, fmt.Errorf("screening.anchor_scope: %w", err)
	}
	if s.LookbackDays != nil {
		p.LookbackDays = *s.LookbackDays
	}
	if s.MaxBucket != nil {
		p.MaxBucket = *s.MaxBucket
	}
	if s.SupersessionCheck != nil {
		p.SupersessionCheck = *s.SupersessionCheck
	}

	if err := p.Validate(); err != nil {
		return strategy.Policy{}, err
	}
	return p, nil
}

// Markets returns the market allow-list.
func (c *Config) Markets() []model.Market {
	out := make([]model.Market, 0, len(c.Screening.Markets))
	for _, m := range c.Screening.Markets {
		out = append(out, model.Market(m))
	}
	return out
}

// Location resolves the screening timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Screening.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: screening.timezone %q: %w", strategy.ErrConfiguration, c.Screening.Timezone, err)
	}
	return loc, nil
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	if _, err := c.Policy(); err != nil {
		return err
	}
	if len(c.Screening.Markets) == 0 {
		return fmt.Errorf("%w: screening.markets must not be empty", strategy.ErrConfiguration)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if err := c.Sources.Historical.validate("sources.historical", false); err != nil {
		return err
	}
	if err := c.Sources.Live.validate("sources.live", true); err != nil {
		return err
	}
	if c.Screening.VerifyHigh && c.Sources.Historical.Kind != KindHTTP && c.Sources.Live.Kind != KindHTTP {
		return fmt.Errorf("%w: screening.verify_high needs an http source", strategy.ErrConfiguration)
	}
	return nil
}

func (s SourceConfig) validate(field string, optional bool) error {
	switch s.Kind {
	case "":
		if optional {
			return nil
		}
		return fmt.Errorf("%w: %s.kind is required", strategy.ErrConfiguration, field)
	case KindSQLite, KindMock:
	case KindHTTP:
		if s.BaseURL == "" {
			return fmt.Errorf("%w: %s.base_url is required for http", strategy.ErrConfiguration, field)
		}
	case KindYahoo, KindAlpaca:
		if len(s.Symbols) == 0 {
			return fmt.Errorf("%w: %s.symbols is required for %s", strategy.ErrConfiguration, field, s.Kind)
		}
		if s.Kind == KindAlpaca && (s.APIKey == "" || s.APISecret == "") {
			return fmt.Errorf("%w: %s needs api_key and api_secret", strategy.ErrConfiguration, field)
		}
	default:
		return fmt.Errorf("%w: %s.kind %q is not one of %s", strategy.ErrConfiguration, field, s.Kind,
			strings.Join([]string{KindHTTP, KindSQLite, KindYahoo, KindAlpaca, KindMock}, ", "))
	}
	return nil
}
