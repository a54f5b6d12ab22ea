package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ZERODHA_API_KEY", "ZERODHA_ACCESS_TOKEN", "ZERODHA_API_SECRET",
		"ZERODHA_TOTP_SECRET", "ZERODHA_USER_ID", "STOCKDATA_PROVIDER",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_DefaultsWithoutFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, dir, cfg.Dir)
	require.Equal(t, "zerodha", cfg.Provider.Default)
	require.Equal(t, "https://api.kite.trade", cfg.Zerodha.BaseURL)
	require.Equal(t, 7*time.Second, cfg.Zerodha.Timeout)
	require.Equal(t, ratelimit.DefaultKiteLimits(), cfg.Zerodha.RateLimits.Limits())
	require.Equal(t, ratelimit.Limits{
		ratelimit.MarketData: 2,
		ratelimit.Historical: 2,
		ratelimit.Default:    2,
	}, cfg.Yahoo.RateLimits.Limits())
	require.Equal(t, ratelimit.Blocking, cfg.RateMode())
	require.Equal(t, 250*time.Millisecond, cfg.HTTP.RetryDelay)
	require.True(t, cfg.Security.AuditEnabled)
	require.Equal(t, filepath.Join(dir, "session.json"), cfg.SessionPath())
	require.False(t, cfg.HasZerodhaCredentials())
}

func TestLoad_FileAndEnvLayering(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[provider]
default = "yahoo"

[zerodha]
timeout = "3s"

[zerodha.rate_limits]
market_data = 5

[http]
rate_mode = "non_blocking"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.toml"), []byte(`
[zerodha]
api_key = "filekey"
api_secret = "filesecret"
`), 0o600))
	t.Setenv("ZERODHA_API_KEY", "envkey")
	t.Setenv("ZERODHA_ACCESS_TOKEN", "envtoken")

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "yahoo", cfg.Provider.Default)
	require.Equal(t, 3*time.Second, cfg.Zerodha.Timeout)
	require.Equal(t, 5, cfg.Zerodha.RateLimits.MarketData)
	require.Equal(t, 10, cfg.Zerodha.RateLimits.Orders, "unset keys keep defaults")
	require.Equal(t, ratelimit.NonBlocking, cfg.RateMode())
	require.Equal(t, "envkey", cfg.Credentials.Zerodha.APIKey)
	require.Equal(t, "filesecret", cfg.Credentials.Zerodha.APISecret)
	require.True(t, cfg.HasZerodhaCredentials())
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"unknown provider", "[provider]\ndefault = \"bloomberg\"\n"},
		{"bad rate mode", "[http]\nrate_mode = \"sometimes\"\n"},
		{"negative limit", "[zerodha.rate_limits]\norders = -1\n"},
		{"missing default ceiling", "[yahoo.rate_limits]\ndefault = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(tt.toml), 0o644))

			_, err := Load(dir)
			require.ErrorIs(t, err, apperrors.ErrInputValidation)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[provider\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestWriteTemplates(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "conf")

	written, err := WriteTemplates(dir)
	require.NoError(t, err)
	require.Len(t, written, 2)

	info, err := os.Stat(filepath.Join(dir, "credentials.toml"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	written, err = WriteTemplates(dir)
	require.NoError(t, err)
	require.Empty(t, written, "existing files are kept")

	cfg, err := Load(dir)
	require.NoError(t, err, "the template loads cleanly")
	require.Equal(t, "zerodha", cfg.Provider.Default)
	require.Equal(t, ratelimit.DefaultKiteLimits(), cfg.Zerodha.RateLimits.Limits())
}
