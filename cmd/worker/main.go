package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/goalpost-app/goalpost/internal/app"
	"github.com/goalpost-app/goalpost/pkg/config"
)

// workerStats tracks scheduler activity for the health endpoint.
type workerStats struct {
	GenerationRuns int64
	EventsCreated  int64
	SyncRuns       int64
	SyncErrors     int64
	lastRunUnix    int64
}

func (s *workerStats) markRun() {
	atomic.StoreInt64(&s.lastRunUnix, time.Now().Unix())
}

func (s *workerStats) lastRunAt() string {
	unix := atomic.LoadInt64(&s.lastRunUnix)
	if unix == 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("starting goalpost worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.IsDevelopment() {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer container.Close()
	logger.Info("application initialized")

	stats := &workerStats{}

	scheduler := cron.New()

	_, err = scheduler.AddFunc(cfg.GenerationSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		result, err := container.GenerationHandler.Run(runCtx)
		atomic.AddInt64(&stats.GenerationRuns, 1)
		atomic.AddInt64(&stats.EventsCreated, int64(result.Created))
		stats.markRun()
		if err != nil {
			logger.Error("scheduled generation failed", "error", err)
			return
		}
		if result.Created > 0 {
			logger.Info("scheduled generation completed",
				"routines", result.Routines,
				"created", result.Created,
			)
		}
	})
	if err != nil {
		logger.Error("invalid generation schedule", "schedule", cfg.GenerationSchedule, "error", err)
		os.Exit(1)
	}

	_, err = scheduler.AddFunc(cfg.SyncSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		runSyncPass(runCtx, container, cfg, stats, logger)
	})
	if err != nil {
		logger.Error("invalid sync schedule", "schedule", cfg.SyncSchedule, "error", err)
		os.Exit(1)
	}

	scheduler.Start()
	logger.Info("scheduler started",
		"generation_schedule", cfg.GenerationSchedule,
		"sync_schedule", cfg.SyncSchedule,
	)

	if cfg.WorkerHealthAddr != "" {
		startHealthServer(ctx, cfg.WorkerHealthAddr, stats, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down worker")

	// Stop accepting new jobs and let running ones finish.
	<-scheduler.Stop().Done()
	logger.Info("worker stopped")
}

// runSyncPass syncs every stale, healthy cursor. A failing calendar is
// isolated to its own cursor; the pass continues with the rest.
func runSyncPass(ctx context.Context, container *app.Container, cfg *config.Config, stats *workerStats, logger *slog.Logger) {
	cursors, err := container.Cursors.FindPendingSync(ctx, cfg.SyncStaleAfter, cfg.SyncBatchSize)
	if err != nil {
		logger.Error("loading pending sync cursors", "error", err)
		atomic.AddInt64(&stats.SyncErrors, 1)
		return
	}

	atomic.AddInt64(&stats.SyncRuns, 1)
	stats.markRun()

	for _, cursor := range cursors {
		if ctx.Err() != nil {
			return
		}

		result, err := container.SyncService.SyncBidirectional(ctx, cursor.UserID(), cursor.CalendarID())
		if err != nil {
			atomic.AddInt64(&stats.SyncErrors, 1)
			logger.Error("calendar sync failed",
				"user_id", cursor.UserID(),
				"calendar_id", cursor.CalendarID(),
				"error", err,
			)
			continue
		}

		logger.Info("calendar sync completed",
			"user_id", cursor.UserID(),
			"calendar_id", cursor.CalendarID(),
			"imported", result.Imported,
			"exported", result.Exported,
			"updated", result.Updated,
			"conflicts", result.Conflicts,
		)
	}
}

func startHealthServer(ctx context.Context, addr string, stats *workerStats, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"status":          "ok",
			"generation_runs": atomic.LoadInt64(&stats.GenerationRuns),
			"events_created":  atomic.LoadInt64(&stats.EventsCreated),
			"sync_runs":       atomic.LoadInt64(&stats.SyncRuns),
			"sync_errors":     atomic.LoadInt64(&stats.SyncErrors),
			"last_run_at":     stats.lastRunAt(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	})

	healthSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := healthSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
