package persistence

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/goalpost-app/goalpost/internal/identity/application/oauth"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/crypto"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database"
)

// PostgresTokenRepository implements oauth.TokenRepository using pgx.
type PostgresTokenRepository struct {
	pool      *pgxpool.Pool
	encrypter crypto.Encrypter
}

// NewPostgresTokenRepository creates a new PostgreSQL token repository.
func NewPostgresTokenRepository(pool *pgxpool.Pool, encrypter crypto.Encrypter) *PostgresTokenRepository {
	return &PostgresTokenRepository{pool: pool, encrypter: encrypter}
}

// Save upserts a token set on (user, provider).
func (r *PostgresTokenRepository) Save(ctx context.Context, token *oauth.StoredToken) error {
	access, refresh, err := encryptPair(r.encrypter, token)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO oauth_tokens (
			id, user_id, provider, access_token, refresh_token,
			expires_at, scope, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			updated_at = EXCLUDED.updated_at
	`
	var expiry *time.Time
	if !token.Expiry.IsZero() {
		e := token.Expiry.UTC()
		expiry = &e
	}

	_, err = r.pool.Exec(ctx, query,
		token.ID, token.UserID, token.Provider, access, refresh,
		expiry, token.Scope, token.CreatedAt, token.UpdatedAt)
	return err
}

// FindByUser loads and decrypts a user's tokens for the provider.
func (r *PostgresTokenRepository) FindByUser(ctx context.Context, userID, provider string) (*oauth.StoredToken, error) {
	query := `
		SELECT id, user_id, provider, access_token, refresh_token,
			   expires_at, scope, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = $1 AND provider = $2
	`

	var (
		token           oauth.StoredToken
		access, refresh []byte
		expiry          *time.Time
	)
	err := r.pool.QueryRow(ctx, query, userID, provider).Scan(
		&token.ID, &token.UserID, &token.Provider, &access, &refresh,
		&expiry, &token.Scope, &token.CreatedAt, &token.UpdatedAt,
	)
	if database.IsNoRows(err) {
		return nil, oauth.ErrAccountNotLinked
	}
	if err != nil {
		return nil, err
	}
	if expiry != nil {
		token.Expiry = *expiry
	}

	token.AccessToken, token.RefreshToken, err = decryptPair(r.encrypter, access, refresh)
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// Delete removes a user's tokens for the provider.
func (r *PostgresTokenRepository) Delete(ctx context.Context, userID, provider string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM oauth_tokens WHERE user_id = $1 AND provider = $2`, userID, provider)
	return err
}
