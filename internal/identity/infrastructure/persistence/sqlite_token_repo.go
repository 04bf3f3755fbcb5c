// Package persistence stores OAuth tokens, AES-GCM encrypted at rest.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalpost-app/goalpost/internal/identity/application/oauth"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/crypto"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database"
)

// SQLiteTokenRepository implements oauth.TokenRepository using SQLite.
type SQLiteTokenRepository struct {
	db        *sql.DB
	encrypter crypto.Encrypter
}

// NewSQLiteTokenRepository creates a new SQLite token repository.
func NewSQLiteTokenRepository(db *sql.DB, encrypter crypto.Encrypter) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db, encrypter: encrypter}
}

// Save upserts a token set on (user, provider).
func (r *SQLiteTokenRepository) Save(ctx context.Context, token *oauth.StoredToken) error {
	access, refresh, err := encryptPair(r.encrypter, token)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO oauth_tokens (
			id, user_id, provider, access_token, refresh_token,
			expires_at, scope, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			updated_at = excluded.updated_at
	`
	var expiry *string
	if !token.Expiry.IsZero() {
		s := token.Expiry.UTC().Format(time.RFC3339)
		expiry = &s
	}

	_, err = r.db.ExecContext(ctx, query,
		token.ID.String(),
		token.UserID,
		token.Provider,
		access,
		refresh,
		expiry,
		token.Scope,
		token.CreatedAt.UTC().Format(time.RFC3339),
		token.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// FindByUser loads and decrypts a user's tokens for the provider.
func (r *SQLiteTokenRepository) FindByUser(ctx context.Context, userID, provider string) (*oauth.StoredToken, error) {
	query := `
		SELECT id, user_id, provider, access_token, refresh_token,
			   expires_at, scope, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = ? AND provider = ?
	`

	var (
		idStr                      string
		uid, prov                  string
		access, refresh            []byte
		expiryStr                  sql.NullString
		scope                      string
		createdAtStr, updatedAtStr string
	)
	err := r.db.QueryRowContext(ctx, query, userID, provider).Scan(
		&idStr, &uid, &prov, &access, &refresh,
		&expiryStr, &scope, &createdAtStr, &updatedAtStr,
	)
	if database.IsNoRows(err) {
		return nil, oauth.ErrAccountNotLinked
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, err
	}
	var expiry time.Time
	if expiryStr.Valid {
		expiry, err = time.Parse(time.RFC3339, expiryStr.String)
		if err != nil {
			return nil, err
		}
	}

	accessPlain, refreshPlain, err := decryptPair(r.encrypter, access, refresh)
	if err != nil {
		return nil, err
	}

	return &oauth.StoredToken{
		ID:           id,
		UserID:       uid,
		Provider:     prov,
		AccessToken:  accessPlain,
		RefreshToken: refreshPlain,
		Expiry:       expiry,
		Scope:        scope,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

// Delete removes a user's tokens for the provider.
func (r *SQLiteTokenRepository) Delete(ctx context.Context, userID, provider string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM oauth_tokens WHERE user_id = ? AND provider = ?`, userID, provider)
	return err
}

func encryptPair(enc crypto.Encrypter, token *oauth.StoredToken) (access, refresh []byte, err error) {
	if token.AccessToken != "" {
		access, err = enc.Encrypt([]byte(token.AccessToken))
		if err != nil {
			return nil, nil, fmt.Errorf("encrypting access token: %w", err)
		}
	}
	if token.RefreshToken != "" {
		refresh, err = enc.Encrypt([]byte(token.RefreshToken))
		if err != nil {
			return nil, nil, fmt.Errorf("encrypting refresh token: %w", err)
		}
	}
	return access, refresh, nil
}

func decryptPair(enc crypto.Encrypter, access, refresh []byte) (string, string, error) {
	var accessPlain, refreshPlain string
	if len(access) > 0 {
		b, err := enc.Decrypt(access)
		if err != nil {
			return "", "", fmt.Errorf("decrypting access token: %w", err)
		}
		accessPlain = string(b)
	}
	if len(refresh) > 0 {
		b, err := enc.Decrypt(refresh)
		if err != nil {
			return "", "", fmt.Errorf("decrypting refresh token: %w", err)
		}
		refreshPlain = string(b)
	}
	return accessPlain, refreshPlain, nil
}
