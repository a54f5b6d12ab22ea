// Package auth holds provider credentials and the Kite login exchange.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/internal/security"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

// Authorizer attaches provider authentication to outbound requests.
type Authorizer interface {
	Authorize(h http.Header) error
}

// Anonymous is the Authorizer for providers that take no credentials.
type Anonymous struct{}

// Authorize implements Authorizer.
func (Anonymous) Authorize(http.Header) error { return nil }

// Credential is a Kite Connect API key and access token pair. It is
// immutable after construction and safe for concurrent use.
type Credential struct {
	apiKey      string
	accessToken string
	issuedAt    time.Time
	now         func() time.Time
}

// CredentialOption configures a Credential.
type CredentialOption func(*Credential)

// WithIssuedAt records when the access token was minted. Without it the
// construction time is used.
func WithIssuedAt(t time.Time) CredentialOption {
	return func(c *Credential) {
		c.issuedAt = t
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) CredentialOption {
	return func(c *Credential) {
		c.now = now
	}
}

// NewKiteCredential validates both fields eagerly and fails with a
// ConfigurationError if either is empty.
func NewKiteCredential(apiKey, accessToken string, opts ...CredentialOption) (*Credential, error) {
	apiKey = strings.TrimSpace(apiKey)
	accessToken = strings.TrimSpace(accessToken)
	if apiKey == "" {
		return nil, apperrors.NewConfigurationError("api_key", "api key is required")
	}
	if accessToken == "" {
		return nil, apperrors.NewConfigurationError("access_token", "access token is required")
	}

	c := &Credential{apiKey: apiKey, accessToken: accessToken, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.issuedAt.IsZero() {
		c.issuedAt = c.now()
	}
	return c, nil
}

// APIKey returns the API key.
func (c *Credential) APIKey() string { return c.apiKey }

// AccessToken returns the access token.
func (c *Credential) AccessToken() string { return c.accessToken }

// IssuedAt returns when the token was issued.
func (c *Credential) IssuedAt() time.Time { return c.issuedAt }

// ExpiresAt returns the 06:00 IST boundary after which Kite rejects the token.
func (c *Credential) ExpiresAt() time.Time { return utils.SessionExpiry(c.issuedAt) }

// Expired reports whether the token has passed its daily expiry at now.
func (c *Credential) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt()) }

// Header returns the Authorization header value, "token {key}:{token}".
func (c *Credential) Header() string {
	return "token " + c.apiKey + ":" + c.accessToken
}

// Authorize implements Authorizer. An expired token fails here rather than
// being sent.
func (c *Credential) Authorize(h http.Header) error {
	if c.Expired(c.now()) {
		return &apperrors.ConfigurationError{
			Field:   "access_token",
			Message: fmt.Sprintf("access token expired at %s; run the login flow again", c.ExpiresAt().Format(time.RFC3339)),
			Err:     apperrors.ErrSessionExpired,
		}
	}
	h.Set("Authorization", c.Header())
	return nil
}

// String masks both fields.
func (c *Credential) String() string {
	return fmt.Sprintf("Credential{api_key=%s, access_token=%s, issued_at=%s}",
		security.MaskCredential(c.apiKey), security.MaskCredential(c.accessToken),
		c.issuedAt.Format(time.RFC3339))
}
