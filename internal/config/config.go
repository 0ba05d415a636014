package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kurokishi/stock-analysis-id/internal/forecast"
	"github.com/kurokishi/stock-analysis-id/internal/model"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		Provider       string `yaml:"provider"` // yahoo | mock
		BaseURL        string `yaml:"base_url"`
		Period         string `yaml:"period"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"data_source"`
	Schedule struct {
		DailyCron   string `yaml:"daily_cron"`
		WeeklyCron  string `yaml:"weekly_cron"`
		MonthlyCron string `yaml:"monthly_cron"`
	} `yaml:"schedule"`
	Portfolio struct {
		StateFile      string  `yaml:"state_file"`
		MonthlyCapital float64 `yaml:"monthly_capital"`
	} `yaml:"portfolio"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Server struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Analysis struct {
		IndustryPE   float64                 `yaml:"industry_pe"`
		IndustryPBV  float64                 `yaml:"industry_pbv"`
		ForecastDays int                     `yaml:"forecast_days"`
		Model        string                  `yaml:"model"`
		MinHistory   int                     `yaml:"min_history"`
		MaxHorizon   int                     `yaml:"max_horizon"`
		Confidence   float64                 `yaml:"confidence"`
		MinCapital   float64                 `yaml:"min_capital"`
		Backtest     bool                    `yaml:"backtest"`
		Additive     forecast.AdditiveConfig `yaml:"additive"`
	} `yaml:"analysis"`
	Watchlist []string `yaml:"watchlist"`
	Proxy     string   `yaml:"proxy"`
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads config from a YAML file, then .env, then environment variable
// overrides, then fills defaults. A missing file is not an error.
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

	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("MONTHLY_CAPITAL"); v != "" {
		var capital float64
		if _, err := fmt.Sscanf(v, "%f", &capital); err == nil {
			c.Portfolio.MonthlyCapital = capital
		}
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		c.Schedule.DailyCron = v
	}
	if v := os.Getenv("CRON_WEEKLY"); v != "" {
		c.Schedule.WeeklyCron = v
	}
	if v := os.Getenv("CRON_MONTHLY"); v != "" {
		c.Schedule.MonthlyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Watchlist = nil
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				c.Watchlist = append(c.Watchlist, t)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.BaseURL == "" {
		c.DataSource.BaseURL = "https://query1.finance.yahoo.com"
	}
	if c.DataSource.Period == "" {
		c.DataSource.Period = "2y"
	}
	if c.DataSource.TimeoutSeconds == 0 {
		c.DataSource.TimeoutSeconds = 30
	}
	// IDX closes at 16:00 WIB.
	if c.Schedule.DailyCron == "" {
		c.Schedule.DailyCron = "0 30 16 * * 1-5"
	}
	if c.Schedule.WeeklyCron == "" {
		c.Schedule.WeeklyCron = "0 0 8 * * 1"
	}
	if c.Schedule.MonthlyCron == "" {
		c.Schedule.MonthlyCron = "0 0 9 1 * *"
	}
	if c.Portfolio.StateFile == "" {
		c.Portfolio.StateFile = "data/portfolio.json"
	}
	if c.Portfolio.MonthlyCapital == 0 {
		c.Portfolio.MonthlyCapital = 5_000_000
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/idx_sentinel.db"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Analysis.IndustryPE == 0 {
		c.Analysis.IndustryPE = 15
	}
	if c.Analysis.IndustryPBV == 0 {
		c.Analysis.IndustryPBV = 1.5
	}
	if c.Analysis.ForecastDays == 0 {
		c.Analysis.ForecastDays = 30
	}
	if c.Analysis.Model == "" {
		c.Analysis.Model = string(model.ModelARIMA)
	}
	if c.Analysis.MinHistory == 0 {
		c.Analysis.MinHistory = forecast.DefaultMinHistory
	}
	if c.Analysis.MaxHorizon == 0 {
		c.Analysis.MaxHorizon = forecast.DefaultMaxHorizon
	}
	if c.Analysis.Confidence == 0 {
		c.Analysis.Confidence = forecast.DefaultConfidence
	}
	if c.Analysis.MinCapital == 0 {
		c.Analysis.MinCapital = 100_000
	}
	c.Analysis.Additive = c.Analysis.Additive.WithDefaults()
	if len(c.Watchlist) == 0 {
		c.Watchlist = []string{"BBCA", "BBRI", "TLKM", "ASII", "UNVR"}
	}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	default:
		return fmt.Errorf("data_source.provider %q must be yahoo or mock", c.DataSource.Provider)
	}
	if _, ok := model.ParseModelKind(c.Analysis.Model); !ok {
		return fmt.Errorf("analysis.model %q must be arima, additive or naive", c.Analysis.Model)
	}
	if c.Analysis.ForecastDays < 1 || c.Analysis.ForecastDays > c.Analysis.MaxHorizon {
		return fmt.Errorf("analysis.forecast_days must be within 1..%d", c.Analysis.MaxHorizon)
	}
	if c.Analysis.IndustryPE <= 0 || c.Analysis.IndustryPBV <= 0 {
		return fmt.Errorf("analysis.industry_pe and analysis.industry_pbv must be positive")
	}
	if c.Analysis.Confidence <= 0 || c.Analysis.Confidence >= 1 {
		return fmt.Errorf("analysis.confidence must be within (0, 1)")
	}
	if c.Portfolio.MonthlyCapital <= 0 {
		return fmt.Errorf("portfolio.monthly_capital must be positive")
	}
	return nil
}

// ValidateTelegram checks the settings the daemon needs to notify.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}
