package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalpost-app/goalpost/internal/routines/domain"
	"github.com/goalpost-app/goalpost/pkg/config"
)

func TestNewContainer_LocalMode(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		AppEnv:     "development",
		SQLitePath: filepath.Join(t.TempDir(), "goalpost.db"),
	}

	container, err := NewContainer(ctx, cfg, nil)
	require.NoError(t, err)
	defer container.Close()

	require.NotNil(t, container.Routines)
	require.NotNil(t, container.Materializer)
	require.NotNil(t, container.SyncService)
	require.NotNil(t, container.TokenManager)

	// Migrations ran: a routine survives a save/load round trip.
	routine, err := domain.NewRoutine("u1", "Test", "", 0, "1D", time.Now().UTC(), 30)
	require.NoError(t, err)
	require.NoError(t, container.Routines.Save(ctx, routine))

	found, err := container.Routines.FindByID(ctx, routine.ID())
	require.NoError(t, err)
	assert.Equal(t, routine.Name(), found.Name())
}

func TestNewContainer_RejectsBadEncryptionKey(t *testing.T) {
	cfg := &config.Config{
		AppEnv:        "development",
		SQLitePath:    filepath.Join(t.TempDir(), "goalpost.db"),
		EncryptionKey: "not-base64!",
	}

	_, err := NewContainer(context.Background(), cfg, nil)
	assert.Error(t, err)
}
