// Package config provides configuration management for the market-data CLI.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
)

// Config holds all application configuration.
type Config struct {
	Provider    ProviderConfig    `mapstructure:"provider"`
	Zerodha     ZerodhaConfig     `mapstructure:"zerodha"`
	Yahoo       YahooConfig       `mapstructure:"yahoo"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Security    SecurityConfig    `mapstructure:"security"`
	Log         logging.LogConfig `mapstructure:"log"`
	Credentials Credentials       `mapstructure:"-" json:"-"` // env and credentials.toml only

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// ProviderConfig selects the provider used when no --provider flag is given.
type ProviderConfig struct {
	Default string `mapstructure:"default"` // zerodha, yahoo
}

// RateLimits are per-second ceilings per request category. Zero means the
// category falls back to the default ceiling.
type RateLimits struct {
	MarketData int `mapstructure:"market_data"`
	Orders     int `mapstructure:"orders"`
	Historical int `mapstructure:"historical"`
	Portfolio  int `mapstructure:"portfolio"`
	Default    int `mapstructure:"default"`
}

// Limits converts the configured ceilings for the rate governor.
func (r RateLimits) Limits() ratelimit.Limits {
	out := ratelimit.Limits{}
	set := func(cat ratelimit.Category, n int) {
		if n > 0 {
			out[cat] = n
		}
	}
	set(ratelimit.MarketData, r.MarketData)
	set(ratelimit.Orders, r.Orders)
	set(ratelimit.Historical, r.Historical)
	set(ratelimit.Portfolio, r.Portfolio)
	set(ratelimit.Default, r.Default)
	return out
}

func (r RateLimits) validate(prefix string) error {
	for name, n := range map[string]int{
		"market_data": r.MarketData,
		"orders":      r.Orders,
		"historical":  r.Historical,
		"portfolio":   r.Portfolio,
		"default":     r.Default,
	} {
		if n < 0 {
			return apperrors.NewValidationError(prefix+".rate_limits."+name, n, "must not be negative")
		}
	}
	if r.Default == 0 {
		return apperrors.NewValidationError(prefix+".rate_limits.default", 0, "default ceiling is required")
	}
	return nil
}

// ZerodhaConfig holds Kite Connect endpoint settings.
type ZerodhaConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	LoginURL   string        `mapstructure:"login_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimits RateLimits    `mapstructure:"rate_limits"`
	RateWindow time.Duration `mapstructure:"rate_window"`
}

// YahooConfig holds Yahoo Finance endpoint settings.
type YahooConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	CookieURL  string        `mapstructure:"cookie_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimits RateLimits    `mapstructure:"rate_limits"`
}

// HTTPConfig holds transport behaviour shared by all providers.
type HTTPConfig struct {
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	RateMode   string        `mapstructure:"rate_mode"` // blocking, non_blocking
}

// SecurityConfig holds the write guard and audit settings.
type SecurityConfig struct {
	ReadOnly     bool   `mapstructure:"read_only"`
	AuditEnabled bool   `mapstructure:"audit_enabled"`
	AuditDir     string `mapstructure:"audit_dir"`
}

// Credentials holds API credentials.
type Credentials struct {
	Zerodha ZerodhaCredentials `mapstructure:"zerodha"`
}

// ZerodhaCredentials holds Kite Connect credentials.
type ZerodhaCredentials struct {
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
	AccessToken string `mapstructure:"access_token"`
	UserID      string `mapstructure:"user_id"`
	TOTPSecret  string `mapstructure:"totp_secret"` // For the login helper
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "stock-analyser")
	}
	return filepath.Join(home, ".config", "stock-analyser")
}

// SessionPath is where the login helper stores the day's access token.
func (c *Config) SessionPath() string {
	return filepath.Join(c.Dir, "session.json")
}

func setDefaults(v *viper.Viper, configDir string) {
	kite := ratelimit.DefaultKiteLimits()
	logCfg := logging.DefaultLogConfig()

	v.SetDefault("provider.default", "zerodha")

	v.SetDefault("zerodha.base_url", "https://api.kite.trade")
	v.SetDefault("zerodha.login_url", "https://kite.zerodha.com/connect/login")
	v.SetDefault("zerodha.timeout", 7*time.Second)
	v.SetDefault("zerodha.rate_window", time.Second)
	v.SetDefault("zerodha.rate_limits.market_data", kite[ratelimit.MarketData])
	v.SetDefault("zerodha.rate_limits.orders", kite[ratelimit.Orders])
	v.SetDefault("zerodha.rate_limits.historical", kite[ratelimit.Historical])
	v.SetDefault("zerodha.rate_limits.portfolio", kite[ratelimit.Portfolio])
	v.SetDefault("zerodha.rate_limits.default", kite[ratelimit.Default])

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.cookie_url", "https://fc.yahoo.com")
	v.SetDefault("yahoo.timeout", 10*time.Second)
	v.SetDefault("yahoo.rate_limits.market_data", 2)
	v.SetDefault("yahoo.rate_limits.historical", 2)
	v.SetDefault("yahoo.rate_limits.default", 2)

	v.SetDefault("http.retry_delay", 250*time.Millisecond)
	v.SetDefault("http.rate_mode", "blocking")

	v.SetDefault("security.read_only", false)
	v.SetDefault("security.audit_enabled", true)
	v.SetDefault("security.audit_dir", filepath.Join(configDir, "audit"))

	v.SetDefault("log.level", logCfg.Level)
	v.SetDefault("log.console", logCfg.Console)
	v.SetDefault("log.file", logCfg.File)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "stockdata.log"))
	v.SetDefault("log.max_size", logCfg.MaxSize)
	v.SetDefault("log.max_backups", logCfg.MaxBackups)
	v.SetDefault("log.max_age", logCfg.MaxAge)
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml or credentials.toml is not an error; every key has a default.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{Dir: configDir}

	v := viper.New()
	setDefaults(v, configDir)
	if err := readFile(v, configDir, "config"); err != nil {
		return nil, apperrors.Wrap(err, "loading config.toml")
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, "decoding config.toml")
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, apperrors.Wrap(err, "loading credentials.toml")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, "validating config")
	}

	return cfg, nil
}

func readFile(v *viper.Viper, configDir, name string) error {
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if apperrors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	if err := readFile(v, configDir, "credentials"); err != nil {
		return err
	}
	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	// Zerodha credentials
	if v := os.Getenv("ZERODHA_API_KEY"); v != "" {
		cfg.Credentials.Zerodha.APIKey = v
	}
	if v := os.Getenv("ZERODHA_ACCESS_TOKEN"); v != "" {
		cfg.Credentials.Zerodha.AccessToken = v
	}
	if v := os.Getenv("ZERODHA_API_SECRET"); v != "" {
		cfg.Credentials.Zerodha.APISecret = v
	}
	if v := os.Getenv("ZERODHA_TOTP_SECRET"); v != "" {
		cfg.Credentials.Zerodha.TOTPSecret = v
	}
	if v := os.Getenv("ZERODHA_USER_ID"); v != "" {
		cfg.Credentials.Zerodha.UserID = v
	}

	if v := os.Getenv("STOCKDATA_PROVIDER"); v != "" {
		cfg.Provider.Default = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider.Default) {
	case "zerodha", "yahoo":
	default:
		return apperrors.NewValidationError("provider.default", c.Provider.Default, "must be 'zerodha' or 'yahoo'")
	}

	if _, ok := ratelimit.ParseMode(c.HTTP.RateMode); !ok {
		return apperrors.NewValidationError("http.rate_mode", c.HTTP.RateMode, "must be 'blocking' or 'non_blocking'")
	}
	if c.HTTP.RetryDelay < 0 {
		return apperrors.NewValidationError("http.retry_delay", c.HTTP.RetryDelay, "must not be negative")
	}

	if err := c.Zerodha.RateLimits.validate("zerodha"); err != nil {
		return err
	}
	if err := c.Yahoo.RateLimits.validate("yahoo"); err != nil {
		return err
	}
	if c.Zerodha.RateWindow < 0 {
		return apperrors.NewValidationError("zerodha.rate_window", c.Zerodha.RateWindow, "must not be negative")
	}
	if c.Zerodha.Timeout < 0 || c.Yahoo.Timeout < 0 {
		return apperrors.NewValidationError("timeout", "", "timeouts must not be negative")
	}

	return nil
}

// RateMode returns the configured default rate-limit mode.
func (c *Config) RateMode() ratelimit.Mode {
	m, _ := ratelimit.ParseMode(c.HTTP.RateMode)
	return m
}

// HasZerodhaCredentials reports whether both halves of a Kite credential
// are configured.
func (c *Config) HasZerodhaCredentials() bool {
	return c.Credentials.Zerodha.APIKey != "" && c.Credentials.Zerodha.AccessToken != ""
}
