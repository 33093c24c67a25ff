package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	Valuation struct {
		DiscountRate       string   `yaml:"discount_rate"`
		GrowthRate         string   `yaml:"growth_rate"`
		TerminalGrowthRate string   `yaml:"terminal_growth_rate"`
		ProjectionYears    int      `yaml:"projection_years"`
		WatchTickers       []string `yaml:"watch_tickers"`
		SensitivityWorkers int      `yaml:"sensitivity_workers"`
	} `yaml:"valuation"`
	Cache struct {
		ResultTTL        time.Duration `yaml:"result_ttl"`
		ResultCapacity   int           `yaml:"result_capacity"`
		SnapshotTTL      time.Duration `yaml:"snapshot_ttl"`
		SnapshotCapacity int           `yaml:"snapshot_capacity"`
	} `yaml:"cache"`
	Math struct {
		PowerCapacity      int `yaml:"power_capacity"`
		ProjectionCapacity int `yaml:"projection_capacity"`
	} `yaml:"math"`
	Profiler struct {
		SlowThreshold time.Duration `yaml:"slow_threshold"`
		Window        int           `yaml:"window"`
		AlertPercent  float64       `yaml:"alert_percent"`
	} `yaml:"profiler"`
	Schedule struct {
		ReportCron  string `yaml:"report_cron"`
		SweepCron   string `yaml:"sweep_cron"`
		RevalueCron string `yaml:"revalue_cron"`
	} `yaml:"schedule"`
	DataSource struct {
		Provider    string        `yaml:"provider"`     // standin | rest
		PriceSource string        `yaml:"price_source"` // yahoo | static
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"api_key"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		Driver      string `yaml:"driver"` // sqlite | postgres
		SQLitePath  string `yaml:"sqlite_path"`
		PostgresDSN string `yaml:"postgres_dsn"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. A missing file is not an error.
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

	// .env never overrides variables already set in the process environment.
	_ = godotenv.Load()

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		c.Log.Pretty, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("WATCH_TICKERS"); v != "" {
		c.Valuation.WatchTickers = splitList(v)
	}
	if v := os.Getenv("DATA_PROVIDER"); v != "" {
		c.DataSource.Provider = v
	}
	if v := os.Getenv("PRICE_SOURCE"); v != "" {
		c.DataSource.PriceSource = v
	}
	if v := os.Getenv("FINANCIALS_BASE_URL"); v != "" {
		c.DataSource.BaseURL = v
	}
	if v := os.Getenv("FINANCIALS_API_KEY"); v != "" {
		c.DataSource.APIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("CRON_REVALUE"); v != "" {
		c.Schedule.RevalueCron = v
	}
	if v := os.Getenv("RESULT_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.ResultTTL = d
		}
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.PostgresDSN = v
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Valuation.DiscountRate == "" {
		c.Valuation.DiscountRate = "10"
	}
	if c.Valuation.GrowthRate == "" {
		c.Valuation.GrowthRate = "5"
	}
	if c.Valuation.TerminalGrowthRate == "" {
		c.Valuation.TerminalGrowthRate = "2.5"
	}
	if c.Valuation.ProjectionYears == 0 {
		c.Valuation.ProjectionYears = 5
	}
	if c.Cache.ResultTTL == 0 {
		c.Cache.ResultTTL = 30 * time.Minute
	}
	if c.Cache.ResultCapacity == 0 {
		c.Cache.ResultCapacity = 500
	}
	if c.Cache.SnapshotTTL == 0 {
		c.Cache.SnapshotTTL = 24 * time.Hour
	}
	if c.Cache.SnapshotCapacity == 0 {
		c.Cache.SnapshotCapacity = 1000
	}
	if c.Math.PowerCapacity == 0 {
		c.Math.PowerCapacity = 1000
	}
	if c.Math.ProjectionCapacity == 0 {
		c.Math.ProjectionCapacity = 200
	}
	if c.Profiler.SlowThreshold == 0 {
		c.Profiler.SlowThreshold = 100 * time.Millisecond
	}
	if c.Profiler.Window == 0 {
		c.Profiler.Window = 256
	}
	if c.Profiler.AlertPercent == 0 {
		c.Profiler.AlertPercent = 5
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 */5 * * * *"
	}
	if c.Schedule.SweepCron == "" {
		c.Schedule.SweepCron = "0 * * * * *"
	}
	if c.Schedule.RevalueCron == "" {
		c.Schedule.RevalueCron = "0 30 21 * * 1-5"
	}
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "standin"
	}
	if c.DataSource.PriceSource == "" {
		c.DataSource.PriceSource = "static"
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 30 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/fairvalue.db"
	}
}

// Validate checks that all settings are usable.
func (c *Config) Validate() error {
	switch c.DataSource.Provider {
	case "standin":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not supported", c.DataSource.Provider)
	}
	switch c.DataSource.PriceSource {
	case "static", "yahoo":
	default:
		return fmt.Errorf("data_source.price_source %q is not supported", c.DataSource.PriceSource)
	}
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.PostgresDSN == "" {
			return fmt.Errorf("database.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	if _, _, _, err := c.DefaultRates(); err != nil {
		return err
	}
	if c.Valuation.ProjectionYears < 1 || c.Valuation.ProjectionYears > 20 {
		return fmt.Errorf("valuation.projection_years must be between 1 and 20")
	}
	if c.Cache.ResultTTL < 0 || c.Cache.SnapshotTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	if c.Cache.ResultCapacity < 0 || c.Cache.SnapshotCapacity < 0 {
		return fmt.Errorf("cache capacity must not be negative")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.report_cron":  c.Schedule.ReportCron,
		"schedule.sweep_cron":   c.Schedule.SweepCron,
		"schedule.revalue_cron": c.Schedule.RevalueCron,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// DefaultRates parses the configured percentage-scale rates used for
// scheduled revaluations.
func (c *Config) DefaultRates() (discount, growth, terminal decimal.Decimal, err error) {
	if discount, err = decimal.NewFromString(c.Valuation.DiscountRate); err != nil {
		return discount, growth, terminal, fmt.Errorf("valuation.discount_rate: %w", err)
	}
	if growth, err = decimal.NewFromString(c.Valuation.GrowthRate); err != nil {
		return discount, growth, terminal, fmt.Errorf("valuation.growth_rate: %w", err)
	}
	if terminal, err = decimal.NewFromString(c.Valuation.TerminalGrowthRate); err != nil {
		return discount, growth, terminal, fmt.Errorf("valuation.terminal_growth_rate: %w", err)
	}
	return discount, growth, terminal, nil
}

// NotifierEnabled reports whether Telegram delivery is configured.
func (c *Config) NotifierEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
