// Package oauth manages external provider credentials: the authorization
// code flow, cached access tokens, refresh, and revocation.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
)

var (
	// ErrAccountNotLinked means the user never completed the consent flow.
	ErrAccountNotLinked = shareddomain.NewAuthError(shareddomain.AuthReasonRelink, "account not linked")
	// ErrReauthRequired means the stored grant cannot be refreshed and the
	// user must go through consent again.
	ErrReauthRequired = shareddomain.NewAuthError(shareddomain.AuthReasonRelink, "re-authentication required")
)

// expiryBuffer is how close to expiry a cached access token is still
// trusted. Inside the buffer a refresh is forced.
const expiryBuffer = 5 * time.Minute

// StoredToken is a user's credential set for one provider, decrypted.
type StoredToken struct {
	ID           uuid.UUID
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scope        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenRepository persists stored tokens, encrypting at rest.
type TokenRepository interface {
	// Save upserts on (user, provider).
	Save(ctx context.Context, token *StoredToken) error
	// FindByUser returns ErrAccountNotLinked when no row exists.
	FindByUser(ctx context.Context, userID, provider string) (*StoredToken, error)
	Delete(ctx context.Context, userID, provider string) error
}

// TokenManager hands out valid access tokens, refreshing them as needed.
// Refresh is not mutex-guarded: concurrent refreshes waste a round trip but
// are safe, last write wins.
type TokenManager struct {
	config        *oauth2.Config
	provider      string
	revocationURL string
	tokens        TokenRepository
	httpClient    *http.Client
	logger        *slog.Logger
	now           func() time.Time
}

// NewTokenManager creates a token manager for one provider.
func NewTokenManager(config *oauth2.Config, provider, revocationURL string, tokens TokenRepository, logger *slog.Logger) *TokenManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		config:        config,
		provider:      provider,
		revocationURL: revocationURL,
		tokens:        tokens,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
		now:           time.Now,
	}
}

// AuthURL builds the consent URL for the authorization code flow. Offline
// access is requested so a refresh token comes back.
func (m *TokenManager) AuthURL(state string) string {
	return m.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// ExchangeAndStore trades an authorization code for tokens and persists
// them, linking the account.
func (m *TokenManager) ExchangeAndStore(ctx context.Context, userID, code string) error {
	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	now := m.now().UTC()
	stored := &StoredToken{
		ID:           uuid.New(),
		UserID:       userID,
		Provider:     m.provider,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry.UTC(),
		Scope:        strings.Join(m.config.Scopes, " "),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.tokens.Save(ctx, stored); err != nil {
		return fmt.Errorf("storing tokens: %w", err)
	}

	m.logger.Info("account linked", "user_id", userID, "provider", m.provider)
	return nil
}

// GetValidToken returns an access token good for at least the expiry
// buffer, refreshing and persisting when the cached one is stale.
func (m *TokenManager) GetValidToken(ctx context.Context, userID string) (string, error) {
	stored, err := m.tokens.FindByUser(ctx, userID, m.provider)
	if err != nil {
		return "", err
	}
	if stored.AccessToken == "" {
		return "", ErrAccountNotLinked
	}
	if stored.RefreshToken == "" {
		return "", ErrReauthRequired
	}

	if stored.Expiry.After(m.now().Add(expiryBuffer)) {
		return stored.AccessToken, nil
	}

	source := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: stored.RefreshToken})
	fresh, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}

	stored.AccessToken = fresh.AccessToken
	stored.Expiry = fresh.Expiry.UTC()
	if fresh.RefreshToken != "" {
		stored.RefreshToken = fresh.RefreshToken
	}
	stored.UpdatedAt = m.now().UTC()
	if err := m.tokens.Save(ctx, stored); err != nil {
		return "", fmt.Errorf("persisting refreshed token: %w", err)
	}

	m.logger.Debug("access token refreshed", "user_id", userID, "provider", m.provider)
	return fresh.AccessToken, nil
}

// Revoke tells the provider to invalidate the grant, best effort, then
// unconditionally clears the stored tokens.
func (m *TokenManager) Revoke(ctx context.Context, userID string) error {
	stored, err := m.tokens.FindByUser(ctx, userID, m.provider)
	if err != nil && !errors.Is(err, ErrAccountNotLinked) {
		return err
	}

	if stored != nil && m.revocationURL != "" {
		token := stored.RefreshToken
		if token == "" {
			token = stored.AccessToken
		}
		if token != "" {
			if err := m.revokeRemote(ctx, token); err != nil {
				m.logger.Warn("provider revocation failed",
					"user_id", userID, "provider", m.provider, "error", err)
			}
		}
	}

	if err := m.tokens.Delete(ctx, userID, m.provider); err != nil {
		return fmt.Errorf("clearing stored tokens: %w", err)
	}
	m.logger.Info("account unlinked", "user_id", userID, "provider", m.provider)
	return nil
}

func (m *TokenManager) revokeRemote(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.revocationURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revocation endpoint returned %d", resp.StatusCode)
	}
	return nil
}
