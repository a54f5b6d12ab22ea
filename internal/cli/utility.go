package cli

import (
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/config"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/security"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

// addUtilityCommands adds status, config and version commands.
func addUtilityCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("stockdata v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show market hours, provider and session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			now := app.Now()

			market := utils.GetMarketStatus(now)
			provider := app.Config.Provider.Default
			if app.provider != "" {
				provider = app.provider
			}
			cred, credErr := app.kiteCredential()

			if output.IsJSON() {
				status := map[string]any{
					"market":      market,
					"next_open":   utils.GetNextMarketOpen(now),
					"close":       utils.GetMarketClose(now),
					"provider":    provider,
					"read_only":   app.Config.Security.ReadOnly,
					"rate_mode":   app.Config.RateMode().String(),
					"kite_active": credErr == nil,
				}
				if credErr == nil {
					status["session_expires"] = cred.ExpiresAt()
				}
				return output.JSON(status)
			}

			output.Printf("Market:    %s\n", output.MarketStatus(string(market)))
			if utils.IsMarketOpen(now) {
				output.Printf("Closes:    %s\n", formatTime(utils.GetMarketClose(now)))
			} else {
				output.Printf("Next open: %s\n", formatTime(utils.GetNextMarketOpen(now)))
			}
			output.Printf("Provider:  %s\n", provider)
			output.Printf("Rate mode: %s\n", app.Config.RateMode())
			if app.Config.Security.ReadOnly {
				output.Printf("Writes:    %s\n", output.Yellow("read-only"))
			}
			if credErr == nil {
				output.Printf("Kite:      %s until %s\n", output.Green("session active"), formatTime(cred.ExpiresAt()))
			} else {
				output.Printf("Kite:      %s\n", output.DimText("no session"))
			}
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and initialise the configuration files.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write config.toml and credentials.toml templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			written, err := config.WriteTemplates(app.Config.Dir)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]any{"written": written})
			}
			if len(written) == 0 {
				output.Dim("Configuration already present in %s", app.Config.Dir)
				return nil
			}
			for _, path := range written {
				output.Success("✓ Wrote %s", path)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			if output.IsJSON() {
				return output.JSON(cfg)
			}

			output.Bold("Provider")
			output.Printf("  Default:        %s\n", cfg.Provider.Default)
			output.Println()
			output.Bold("Zerodha")
			output.Printf("  Base URL:       %s\n", cfg.Zerodha.BaseURL)
			output.Printf("  Timeout:        %s\n", cfg.Zerodha.Timeout)
			output.Printf("  Rate limits:    %s\n", formatLimits(cfg.Zerodha.RateLimits))
			output.Printf("  API key:        %s\n", security.MaskCredential(cfg.Credentials.Zerodha.APIKey))
			output.Println()
			output.Bold("Yahoo")
			output.Printf("  Base URL:       %s\n", cfg.Yahoo.BaseURL)
			output.Printf("  Timeout:        %s\n", cfg.Yahoo.Timeout)
			output.Printf("  Rate limits:    %s\n", formatLimits(cfg.Yahoo.RateLimits))
			output.Println()
			output.Bold("HTTP")
			output.Printf("  Retry delay:    %s\n", cfg.HTTP.RetryDelay)
			output.Printf("  Rate mode:      %s\n", cfg.RateMode())
			output.Println()
			output.Bold("Security")
			output.Printf("  Read-only:      %v\n", cfg.Security.ReadOnly)
			output.Printf("  Audit:          %v (%s)\n", cfg.Security.AuditEnabled, cfg.Security.AuditDir)
			output.Println()
			output.Bold("Logging")
			output.Printf("  Level:          %s\n", cfg.Log.Level)
			if cfg.Log.File {
				output.Printf("  File:           %s\n", cfg.Log.FilePath)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"dir":     app.Config.Dir,
					"config":  filepath.Join(app.Config.Dir, "config.toml"),
					"session": app.Config.SessionPath(),
				})
			}
			output.Println(app.Config.Dir)
			return nil
		},
	})

	return cmd
}

func formatLimits(r config.RateLimits) string {
	return "market_data=" + strconv.Itoa(r.MarketData) +
		" orders=" + strconv.Itoa(r.Orders) +
		" historical=" + strconv.Itoa(r.Historical) +
		" portfolio=" + strconv.Itoa(r.Portfolio) +
		" default=" + strconv.Itoa(r.Default)
}
