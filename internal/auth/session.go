package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

// SessionConfig holds what the Kite login exchange needs.
type SessionConfig struct {
	APIKey     string
	APISecret  string
	TOTPSecret string
	// BaseURL overrides the Kite API root, for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Session performs the request-token to access-token exchange that starts
// each trading day. It is only used by the login helper; data calls go
// through the transport with the resulting Credential.
type Session struct {
	apiKey     string
	apiSecret  string
	totpSecret string
	kite       *kiteconnect.Client
	now        func() time.Time
}

// NewSession creates a login session helper.
func NewSession(cfg SessionConfig) (*Session, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.NewConfigurationError("api_key", "api key is required")
	}

	kite := kiteconnect.New(cfg.APIKey)
	if cfg.BaseURL != "" {
		kite.SetBaseURI(strings.TrimRight(cfg.BaseURL, "/"))
	}
	if cfg.HTTPClient != nil {
		kite.SetHTTPClient(cfg.HTTPClient)
	}

	return &Session{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		totpSecret: cfg.TOTPSecret,
		kite:       kite,
		now:        time.Now,
	}, nil
}

// LoginURL returns the Kite login page the user must visit to obtain a
// request token.
func (s *Session) LoginURL() string {
	return s.kite.GetLoginURL()
}

// Exchange trades a request token for an access token and returns a
// Credential stamped with the issue time.
func (s *Session) Exchange(ctx context.Context, requestToken string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.apiSecret == "" {
		return nil, apperrors.NewConfigurationError("api_secret", "api secret is required for the token exchange")
	}
	if strings.TrimSpace(requestToken) == "" {
		return nil, apperrors.NewValidationError("request_token", "", "request token is required")
	}

	session, err := s.kite.GenerateSession(requestToken, s.apiSecret)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate session")
	}

	return NewKiteCredential(s.apiKey, session.AccessToken, WithIssuedAt(s.now()))
}

// Invalidate revokes the credential's access token at the broker.
func (s *Session) Invalidate(ctx context.Context, cred *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.kite.SetAccessToken(cred.AccessToken())
	if _, err := s.kite.InvalidateAccessToken(); err != nil {
		return apperrors.Wrap(err, "failed to invalidate access token")
	}
	return nil
}

// TOTPCode returns the current two-factor code for the configured secret,
// for accounts that log in with an authenticator app.
func (s *Session) TOTPCode() (string, error) {
	if s.totpSecret == "" {
		return "", apperrors.NewConfigurationError("totp_secret", "totp secret is not configured")
	}
	code, err := totp.GenerateCode(s.totpSecret, s.now())
	if err != nil {
		return "", apperrors.Wrap(err, "failed to generate totp code")
	}
	return code, nil
}
