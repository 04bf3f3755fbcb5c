package persistence

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalpost-app/goalpost/internal/identity/application/oauth"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/crypto"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database/sqlite"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/migrations"
)

func setupTokenRepo(t *testing.T) *SQLiteTokenRepository {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.OpenInMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.RunSQLiteMigrations(ctx, db))

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	enc, err := crypto.NewAESGCMFromBase64Key(key)
	require.NoError(t, err)

	return NewSQLiteTokenRepository(db, enc)
}

func TestSQLiteTokenRepository_RoundTrip(t *testing.T) {
	repo := setupTokenRepo(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	token := &oauth.StoredToken{
		ID:           uuid.New(),
		UserID:       "u1",
		Provider:     "google",
		AccessToken:  "access-secret",
		RefreshToken: "refresh-secret",
		Expiry:       now.Add(time.Hour),
		Scope:        "calendar",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Save(ctx, token))

	found, err := repo.FindByUser(ctx, "u1", "google")
	require.NoError(t, err)
	assert.Equal(t, "access-secret", found.AccessToken)
	assert.Equal(t, "refresh-secret", found.RefreshToken)
	assert.True(t, found.Expiry.Equal(now.Add(time.Hour)))

	// Upsert replaces the credentials in place.
	token.AccessToken = "rotated"
	require.NoError(t, repo.Save(ctx, token))
	found, err = repo.FindByUser(ctx, "u1", "google")
	require.NoError(t, err)
	assert.Equal(t, "rotated", found.AccessToken)
}

func TestSQLiteTokenRepository_EncryptedAtRest(t *testing.T) {
	repo := setupTokenRepo(t)
	ctx := context.Background()

	token := &oauth.StoredToken{
		ID:          uuid.New(),
		UserID:      "u1",
		Provider:    "google",
		AccessToken: "access-secret",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, token))

	var raw []byte
	err := repo.db.QueryRowContext(ctx,
		`SELECT access_token FROM oauth_tokens WHERE user_id = ?`, "u1").Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "access-secret")
}

func TestSQLiteTokenRepository_NotLinked(t *testing.T) {
	repo := setupTokenRepo(t)

	_, err := repo.FindByUser(context.Background(), "nobody", "google")
	assert.ErrorIs(t, err, oauth.ErrAccountNotLinked)

	require.NoError(t, repo.Delete(context.Background(), "nobody", "google"))
}
