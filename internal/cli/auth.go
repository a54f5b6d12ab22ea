package cli

import (
	"bufio"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hrushikesh9921/AIStockAnalyser/internal/auth"
	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/logging"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/security"
)

// addAuthCommands adds the Kite login helper commands.
func addAuthCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the daily Kite Connect session",
		Long: `Kite access tokens expire at 06:00 IST every day. 'auth login' exchanges
a request token for a new access token and stores it for later commands.`,
	}
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	cmd.AddCommand(newLogoutCmd(app))
	cmd.AddCommand(newTOTPCmd(app))
	rootCmd.AddCommand(cmd)
}

// newSession builds the login helper from configured credentials.
func (a *App) newSession() (*auth.Session, error) {
	creds := a.Config.Credentials.Zerodha
	var client *http.Client
	if hc, ok := a.HTTPClient.(*http.Client); ok {
		client = hc
	}
	return auth.NewSession(auth.SessionConfig{
		APIKey:     creds.APIKey,
		APISecret:  creds.APISecret,
		TOTPSecret: creds.TOTPSecret,
		BaseURL:    a.Config.Zerodha.BaseURL,
		HTTPClient: client,
	})
}

func readRequestToken(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", apperrors.Wrap(err, "reading request token")
	}
	token := strings.TrimSpace(line)
	// Accept the whole redirect URL as well as the bare token.
	if _, after, ok := strings.Cut(token, "request_token="); ok {
		token, _, _ = strings.Cut(after, "&")
	}
	return token, nil
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Kite Connect",
		Long: `Print the Kite login URL, then exchange the request token from the
redirect for an access token. The token can be passed with --request-token
or pasted when prompted; pasting the full redirect URL also works.`,
		Example: `  stockdata auth login
  stockdata auth login --request-token <token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, 5*time.Minute)
			defer cancel()

			session, err := app.newSession()
			if err != nil {
				return err
			}

			requestToken, _ := cmd.Flags().GetString("request-token")
			if requestToken == "" {
				output.Info("Open this URL and log in:")
				output.Println(session.LoginURL())
				if code, err := session.TOTPCode(); err == nil {
					output.Dim("TOTP: %s", code)
				}
				output.Printf("Request token: ")
				if requestToken, err = readRequestToken(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			cred, err := session.Exchange(ctx, requestToken)
			if err != nil {
				return err
			}
			if err := app.Tokens.Save(cred, app.Config.Credentials.Zerodha.UserID); err != nil {
				return err
			}
			logger := logging.FromContext(cmd.Context())
			logger.Info().Str("api_key", security.MaskCredential(cred.APIKey())).Msg("Kite session stored")

			if output.IsJSON() {
				return output.JSON(map[string]any{
					"logged_in":  true,
					"expires_at": cred.ExpiresAt(),
				})
			}
			output.Success("✓ Logged in. Session valid until %s", formatTime(cred.ExpiresAt()))
			return nil
		},
	}
	cmd.Flags().String("request-token", "", "request token from the login redirect")
	return cmd
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a usable Kite session exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			cred, err := app.kiteCredential()
			status := map[string]any{"authenticated": err == nil}
			if err == nil {
				status["api_key"] = security.MaskCredential(cred.APIKey())
				status["expires_at"] = cred.ExpiresAt()
			} else {
				status["reason"] = security.MaskString(err.Error())
			}

			if output.IsJSON() {
				return output.JSON(status)
			}
			if err != nil {
				output.Warning("Not logged in: %s", status["reason"])
				return nil
			}
			output.Success("✓ Logged in (%s)", status["api_key"])
			output.Printf("  Expires: %s\n", formatTime(cred.ExpiresAt()))
			return nil
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the access token and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := commandContext(cmd, orderTimeout)
			defer cancel()

			if cred, err := app.kiteCredential(); err == nil {
				session, err := app.newSession()
				if err != nil {
					return err
				}
				if err := session.Invalidate(ctx, cred); err != nil {
					logger := logging.FromContext(cmd.Context())
					security.MaskedErr(logger.Warn(), err).Msg("Failed to invalidate access token")
				}
			}
			if err := app.Tokens.Clear(); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"logged_out": true})
			}
			output.Success("✓ Logged out")
			return nil
		},
	}
}

func newTOTPCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "totp",
		Short: "Print the current two-factor code",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			session, err := app.newSession()
			if err != nil {
				return err
			}
			code, err := session.TOTPCode()
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"code": code})
			}
			output.Println(code)
			return nil
		},
	}
}
