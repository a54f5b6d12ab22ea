package config

import (
	"os"
	"path/filepath"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

const configTemplate = `# stockdata configuration

[provider]
# Provider used when --provider is not given: "zerodha" or "yahoo"
default = "zerodha"

[zerodha]
base_url = "https://api.kite.trade"
login_url = "https://kite.zerodha.com/connect/login"
timeout = "7s"
rate_window = "1s"

# Documented Kite Connect ceilings, requests per window
[zerodha.rate_limits]
market_data = 3
orders = 10
historical = 1
portfolio = 1
default = 10

[yahoo]
base_url = "https://query1.finance.yahoo.com"
cookie_url = "https://fc.yahoo.com"
timeout = "10s"

[yahoo.rate_limits]
market_data = 2
historical = 2
default = 2

[http]
# Delay before the single automatic retry
retry_delay = "250ms"
# "blocking" waits for the rate window, "non_blocking" fails fast
rate_mode = "blocking"

[security]
# Block order, GTT and mutual-fund writes
read_only = false
audit_enabled = true

[log]
level = "info"
console = true
file = false
`

const credentialsTemplate = `# stockdata credentials
# Environment variables ZERODHA_API_KEY, ZERODHA_API_SECRET,
# ZERODHA_ACCESS_TOKEN and ZERODHA_TOTP_SECRET override these values.

[zerodha]
api_key = ""
api_secret = ""
user_id = ""
totp_secret = ""
`

// WriteTemplates creates config.toml and credentials.toml in configDir
// unless they already exist. It returns the paths it wrote.
func WriteTemplates(configDir string) ([]string, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, apperrors.Wrap(err, "creating config directory")
	}

	var written []string
	for name, body := range map[string]string{
		"config.toml":      configTemplate,
		"credentials.toml": credentialsTemplate,
	} {
		path := filepath.Join(configDir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		perm := os.FileMode(0o644)
		if name == "credentials.toml" {
			perm = 0o600
		}
		if err := os.WriteFile(path, []byte(body), perm); err != nil {
			return written, apperrors.Wrapf(err, "writing %s", name)
		}
		written = append(written, path)
	}
	return written, nil
}
