package auth

import (
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

// sessionData is the persisted form of the day's access token.
type sessionData struct {
	APIKey      string    `json:"api_key"`
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenStore keeps the access token from the last login on disk so later
// invocations can reuse it until the 06:00 IST expiry. It is owned by the
// CLI; the market-data layer itself never reads files.
type TokenStore struct {
	path string
	now  func() time.Time
}

// NewTokenStore creates a store backed by path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path, now: time.Now}
}

// Path returns the backing file.
func (s *TokenStore) Path() string { return s.path }

// Save writes cred with owner-only permissions.
func (s *TokenStore) Save(cred *Credential, userID string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return apperrors.Wrap(err, "creating session directory")
	}
	data, err := json.Marshal(sessionData{
		APIKey:      cred.APIKey(),
		AccessToken: cred.AccessToken(),
		UserID:      userID,
		IssuedAt:    cred.IssuedAt(),
		ExpiresAt:   cred.ExpiresAt(),
	})
	if err != nil {
		return apperrors.Wrap(err, "encoding session")
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Load returns the stored credential. A token stored for a different API
// key, or one past its expiry, is reported as ErrSessionExpired.
func (s *TokenStore) Load(apiKey string) (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.ErrSessionExpired, "no stored session")
		}
		return nil, apperrors.Wrap(err, "reading session")
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.Wrap(err, "decoding session")
	}
	if session.APIKey != apiKey {
		return nil, apperrors.Wrap(apperrors.ErrSessionExpired, "stored session belongs to another api key")
	}
	if !s.now().Before(session.ExpiresAt) {
		return nil, apperrors.Wrapf(apperrors.ErrSessionExpired, "stored session expired at %s", session.ExpiresAt.Format(time.RFC3339))
	}
	return NewKiteCredential(session.APIKey, session.AccessToken, WithIssuedAt(session.IssuedAt))
}

// Clear removes the stored session.
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(err, "removing session")
	}
	return nil
}
