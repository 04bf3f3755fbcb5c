package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeTokenRepo struct {
	tokens  map[string]*StoredToken
	deleted []string
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*StoredToken)}
}

func (r *fakeTokenRepo) Save(_ context.Context, token *StoredToken) error {
	r.tokens[token.UserID+"|"+token.Provider] = token
	return nil
}

func (r *fakeTokenRepo) FindByUser(_ context.Context, userID, provider string) (*StoredToken, error) {
	token, ok := r.tokens[userID+"|"+provider]
	if !ok {
		return nil, ErrAccountNotLinked
	}
	return token, nil
}

func (r *fakeTokenRepo) Delete(_ context.Context, userID, provider string) error {
	delete(r.tokens, userID+"|"+provider)
	r.deleted = append(r.deleted, userID)
	return nil
}

func managerWithEndpoint(tokenURL, revocationURL string, repo TokenRepository) *TokenManager {
	cfg := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       []string{"calendar"},
		Endpoint:     oauth2.Endpoint{AuthURL: tokenURL + "/auth", TokenURL: tokenURL + "/token"},
	}
	return NewTokenManager(cfg, "google", revocationURL, repo, nil)
}

func storeToken(repo *fakeTokenRepo, userID, access, refresh string, expiry time.Time) {
	repo.tokens[userID+"|google"] = &StoredToken{
		ID:           uuid.New(),
		UserID:       userID,
		Provider:     "google",
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       expiry,
	}
}

func TestGetValidToken_NotLinked(t *testing.T) {
	m := managerWithEndpoint("http://127.0.0.1:0", "", newFakeTokenRepo())
	_, err := m.GetValidToken(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrAccountNotLinked)
}

func TestGetValidToken_MissingRefreshToken(t *testing.T) {
	repo := newFakeTokenRepo()
	storeToken(repo, "u1", "access", "", time.Now().Add(time.Hour))

	m := managerWithEndpoint("http://127.0.0.1:0", "", repo)
	_, err := m.GetValidToken(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrReauthRequired)
}

func TestGetValidToken_CachedWhenFresh(t *testing.T) {
	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	}))
	defer server.Close()

	repo := newFakeTokenRepo()
	storeToken(repo, "u1", "cached-access", "refresh", time.Now().Add(10*time.Minute))

	m := managerWithEndpoint(server.URL, "", repo)
	token, err := m.GetValidToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "cached-access", token)
	assert.Zero(t, refreshCalls)
}

func TestGetValidToken_RefreshesNearExpiry(t *testing.T) {
	var refreshCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"new-access","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	repo := newFakeTokenRepo()
	storeToken(repo, "u1", "stale-access", "old-refresh", time.Now().Add(2*time.Minute))

	m := managerWithEndpoint(server.URL, "", repo)
	token, err := m.GetValidToken(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token)
	assert.Equal(t, 1, refreshCalls)

	// The refreshed token was persisted.
	stored, err := repo.FindByUser(context.Background(), "u1", "google")
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.AccessToken)
	assert.True(t, stored.Expiry.After(time.Now().Add(30*time.Minute)))
}

func TestRevoke_BestEffortThenClears(t *testing.T) {
	var revoked []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		revoked = append(revoked, r.Form.Get("token"))
	}))
	defer server.Close()

	repo := newFakeTokenRepo()
	storeToken(repo, "u1", "access", "refresh", time.Now().Add(time.Hour))

	m := managerWithEndpoint(server.URL, server.URL, repo)
	require.NoError(t, m.Revoke(context.Background(), "u1"))

	// Refresh token is preferred for revocation.
	assert.Equal(t, []string{"refresh"}, revoked)
	assert.Equal(t, []string{"u1"}, repo.deleted)
}

func TestRevoke_ClearsEvenWhenProviderFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := newFakeTokenRepo()
	storeToken(repo, "u1", "access", "refresh", time.Now().Add(time.Hour))

	m := managerWithEndpoint(server.URL, server.URL, repo)
	require.NoError(t, m.Revoke(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, repo.deleted)
}

func TestAuthURL_RequestsOfflineAccess(t *testing.T) {
	m := managerWithEndpoint("http://auth.example", "", newFakeTokenRepo())
	u := m.AuthURL("state-1")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=state-1")
}
