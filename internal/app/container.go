// Package app wires repositories, services and handlers for the binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	calendarApp "github.com/goalpost-app/goalpost/internal/calendar/application"
	calendarDomain "github.com/goalpost-app/goalpost/internal/calendar/domain"
	calendarPersistence "github.com/goalpost-app/goalpost/internal/calendar/infrastructure/persistence"
	"github.com/goalpost-app/goalpost/internal/calendar/infrastructure/google"
	"github.com/goalpost-app/goalpost/internal/identity/application/oauth"
	identityPersistence "github.com/goalpost-app/goalpost/internal/identity/infrastructure/persistence"
	routinesApp "github.com/goalpost-app/goalpost/internal/routines/application"
	routinesDomain "github.com/goalpost-app/goalpost/internal/routines/domain"
	routinesPersistence "github.com/goalpost-app/goalpost/internal/routines/infrastructure/persistence"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/crypto"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database/postgres"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/database/sqlite"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/httpretry"
	"github.com/goalpost-app/goalpost/internal/shared/infrastructure/migrations"
	"github.com/goalpost-app/goalpost/pkg/config"
)

// Container holds the wired application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Routines routinesDomain.RoutineRepository
	Events   routinesDomain.EventRepository
	Skips    routinesDomain.SkipExceptionRepository
	Cursors  calendarDomain.SyncCursorRepository

	Materializer      *routinesApp.Materializer
	CatchUpHandler    *routinesApp.CatchUpHandler
	GenerationHandler *routinesApp.ScheduledGenerationHandler
	RecomputeHandler  *routinesApp.RecomputeFutureHandler
	RescheduleHandler *routinesApp.RescheduleBatchHandler
	SkipHandler       *routinesApp.SkipOccurrenceHandler
	TokenManager      *oauth.TokenManager
	SyncService       *calendarApp.SyncService

	closers []func() error
}

// NewContainer builds the dependency graph from configuration. An empty
// DATABASE_URL selects the local SQLite file; otherwise a PostgreSQL pool
// is used.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Container{Config: cfg, Logger: logger}

	encrypter, err := buildEncrypter(cfg)
	if err != nil {
		return nil, err
	}

	var tokens oauth.TokenRepository
	if cfg.UsePostgres() {
		pool, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres pool: %w", err)
		}
		c.closers = append(c.closers, func() error { pool.Close(); return nil })

		c.Routines = routinesPersistence.NewPostgresRoutineRepository(pool)
		c.Events = routinesPersistence.NewPostgresEventRepository(pool)
		c.Skips = routinesPersistence.NewPostgresSkipRepository(pool)
		c.Cursors = calendarPersistence.NewPostgresSyncCursorRepository(pool)
		tokens = identityPersistence.NewPostgresTokenRepository(pool, encrypter)
	} else {
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		c.closers = append(c.closers, db.Close)

		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}

		c.Routines = routinesPersistence.NewSQLiteRoutineRepository(db)
		c.Events = routinesPersistence.NewSQLiteEventRepository(db)
		c.Skips = routinesPersistence.NewSQLiteSkipRepository(db)
		c.Cursors = calendarPersistence.NewSQLiteSyncCursorRepository(db)
		tokens = identityPersistence.NewSQLiteTokenRepository(db, encrypter)
	}

	c.Materializer = routinesApp.NewMaterializer(c.Routines, c.Events, c.Skips, logger)
	c.CatchUpHandler = routinesApp.NewCatchUpHandler(c.Routines, c.Materializer, logger)
	c.GenerationHandler = routinesApp.NewScheduledGenerationHandler(c.Routines, c.Materializer, logger)
	c.RecomputeHandler = routinesApp.NewRecomputeFutureHandler(c.Routines, c.Events, c.Skips, c.Materializer, logger)
	c.RescheduleHandler = routinesApp.NewRescheduleBatchHandler(c.Routines, c.Events, c.Skips, logger)
	c.SkipHandler = routinesApp.NewSkipOccurrenceHandler(c.Routines, c.Skips)

	c.TokenManager = oauth.NewTokenManager(&oauth2.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.OAuthAuthURL,
			TokenURL: cfg.OAuthTokenURL,
		},
		RedirectURL: cfg.OAuthRedirectURL,
		Scopes:      cfg.OAuthScopes,
	}, calendarDomain.ProviderGoogle, cfg.OAuthRevocationURL, tokens, logger)

	calendarClient := google.NewClient(httpretry.New(httpretry.DefaultPolicy(), logger), logger)
	c.SyncService = calendarApp.NewSyncService(c.Events, c.Cursors, c.TokenManager, calendarClient, logger)

	return c, nil
}

// Close releases database handles.
func (c *Container) Close() {
	for _, close := range c.closers {
		if err := close(); err != nil {
			c.Logger.Warn("closing resource", "error", err)
		}
	}
}

func buildEncrypter(cfg *config.Config) (crypto.Encrypter, error) {
	if cfg.EncryptionKey == "" {
		return crypto.NoopEncrypter{}, nil
	}
	enc, err := crypto.NewAESGCMFromBase64Key(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("building token encrypter: %w", err)
	}
	return enc, nil
}
