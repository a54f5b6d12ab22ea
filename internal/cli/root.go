// Package cli provides the stockdata command-line interface.
package cli

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/broker"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/config"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/marketdata"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/ratelimit"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/security"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/transport"
)

// Version information
const (
	Version   = "0.3.0"
	BuildDate = "2026-10-01"
)

// App holds the application dependencies. The facade is built on first use
// so commands such as "version" and "config init" never touch providers.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Tokens *auth.TokenStore

	// HTTPClient replaces the Kite transport client, for tests.
	HTTPClient transport.HTTPClient
	Now        func() time.Time

	mu       sync.Mutex
	provider string
	facade   *marketdata.Facade
	audit    *security.AuditTrail
}

// NewApp wires an App around a loaded configuration.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger,
		Tokens: auth.NewTokenStore(cfg.SessionPath()),
		Now:    time.Now,
	}
}

// Facade returns the market-data facade, building it on first call.
func (a *App) Facade() (*marketdata.Facade, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.facade != nil {
		return a.facade, nil
	}

	cfg := a.Config
	mode := cfg.RateMode()

	yahoo, err := broker.NewYahooBroker(broker.YahooConfig{
		BaseURL:    cfg.Yahoo.BaseURL,
		CookieURL:  cfg.Yahoo.CookieURL,
		Governor:   ratelimit.New(cfg.Yahoo.RateLimits.Limits(), ratelimit.WithDefaultMode(mode), ratelimit.WithLogger(a.Logger)),
		Timeout:    cfg.Yahoo.Timeout,
		RetryDelay: cfg.HTTP.RetryDelay,
		Logger:     a.Logger,
	})
	if err != nil {
		return nil, err
	}
	providers := []broker.Provider{yahoo}

	active := broker.ProviderID(strings.ToLower(cfg.Provider.Default))
	if a.provider != "" {
		active = broker.ProviderID(strings.ToLower(a.provider))
	}

	cred, credErr := a.kiteCredential()
	if credErr == nil {
		govOpts := []ratelimit.Option{ratelimit.WithDefaultMode(mode), ratelimit.WithLogger(a.Logger)}
		if cfg.Zerodha.RateWindow > 0 {
			govOpts = append(govOpts, ratelimit.WithWindow(cfg.Zerodha.RateWindow))
		}
		zerodha, err := broker.NewZerodhaBroker(broker.ZerodhaConfig{
			BaseURL:    cfg.Zerodha.BaseURL,
			Credential: cred,
			Governor:   ratelimit.New(cfg.Zerodha.RateLimits.Limits(), govOpts...),
			HTTPClient: a.HTTPClient,
			Timeout:    cfg.Zerodha.Timeout,
			RetryDelay: cfg.HTTP.RetryDelay,
			Logger:     a.Logger,
		})
		if err != nil {
			return nil, err
		}
		providers = append(providers, zerodha)
	} else {
		a.Logger.Debug().Err(credErr).Msg("Zerodha provider unavailable")
		if active == broker.Zerodha {
			return nil, apperrors.NewConfigurationError("zerodha.credential",
				"no Kite session ("+credErr.Error()+"); run 'stockdata auth login' or set ZERODHA_API_KEY and ZERODHA_ACCESS_TOKEN")
		}
	}

	opts := []marketdata.Option{
		marketdata.WithLogger(a.Logger),
		marketdata.WithActive(active),
		marketdata.WithAccessController(security.NewAccessController(cfg.Security.ReadOnly, a.Logger)),
	}
	if cfg.Security.AuditEnabled {
		auditCfg := security.DefaultAuditConfig()
		if cfg.Security.AuditDir != "" {
			auditCfg.Dir = cfg.Security.AuditDir
		}
		trail, err := security.OpenAuditLog(auditCfg)
		if err != nil {
			return nil, err
		}
		a.audit = trail
		opts = append(opts, marketdata.WithAuditTrail(trail))
	}

	f, err := marketdata.New(providers, opts...)
	if err != nil {
		return nil, err
	}
	a.facade = f
	return f, nil
}

// kiteCredential prefers an explicit access token from the environment or
// credentials.toml and falls back to the session saved by "auth login".
func (a *App) kiteCredential() (*auth.Credential, error) {
	creds := a.Config.Credentials.Zerodha
	if creds.APIKey == "" {
		return nil, apperrors.NewConfigurationError("zerodha.api_key", "api key is not configured")
	}
	if creds.AccessToken != "" {
		return auth.NewKiteCredential(creds.APIKey, creds.AccessToken)
	}
	return a.Tokens.Load(creds.APIKey)
}

// Close releases the audit log.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.audit == nil {
		return nil
	}
	err := a.audit.Close()
	a.audit = nil
	return err
}

// reload re-reads configuration from dir after --config is parsed.
func (a *App) reload(dir string) error {
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	a.Config = cfg
	a.Tokens = auth.NewTokenStore(cfg.SessionPath())
	return nil
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockdata",
		Short: "Unified Indian and global market data",
		Long: `stockdata fetches quotes, candles, portfolio, orders and mutual-fund data
from Zerodha Kite Connect and Yahoo Finance behind one interface.

Zerodha needs an API key and a daily access token ('stockdata auth login').
Yahoo needs no credentials but only serves quotes and history.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dir, _ := cmd.Flags().GetString("config"); dir != "" {
				if err := app.reload(dir); err != nil {
					return err
				}
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			app.provider, _ = cmd.Flags().GetString("provider")

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = logging.WithLogger(ctx, app.Logger)
			if nb, _ := cmd.Flags().GetBool("non-blocking"); nb {
				ctx = ratelimit.WithMode(ctx, ratelimit.NonBlocking)
			}
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-analyser)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringP("provider", "p", "", "provider to use: zerodha or yahoo (default from config)")
	rootCmd.PersistentFlags().Bool("non-blocking", false, "fail with RateLimitedError instead of waiting for the rate window")

	addAuthCommands(rootCmd, app)
	addMarketDataCommands(rootCmd, app)
	addTradingCommands(rootCmd, app)
	addUtilityCommands(rootCmd, app)

	return rootCmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, app *App, args []string, stdout, stderr io.Writer) int {
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to close audit log")
		}
	}()

	rootCmd := NewRootCmd(app)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ReportError(stderr, err)
		return 1
	}
	return 0
}

// commandContext bounds a command's provider calls.
func commandContext(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
