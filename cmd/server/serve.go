package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"artifact-sync-service/internal/adapters/primary/http/handlers"
	"artifact-sync-service/internal/adapters/primary/http/middleware"
	"artifact-sync-service/internal/adapters/secondary/indexer"
	"artifact-sync-service/internal/adapters/secondary/kube"
	"artifact-sync-service/internal/config"
	"artifact-sync-service/internal/core/services"
	"artifact-sync-service/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync scheduler and the operations HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().Bool("migrate", true, "apply the schema before serving")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	migrate, _ := cmd.Flags().GetBool("migrate")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ============================================================================
	// Hexagonal Architecture Wiring
	// ============================================================================

	// Secondary Adapters (Output Ports)
	repo, closeStore, err := openStore(ctx, &cfg.Store, migrate)
	if err != nil {
		return err
	}
	defer closeStore()

	indexerClient := indexer.NewIndexerClient(&cfg.Sync)
	log.WithField("endpoint", indexerClient.Endpoint()).Info("indexer client initialized")

	provider, err := telemetry.NewProvider(ctx, cfg.Metrics.Enabled, version)
	if err != nil {
		return err
	}
	syncMetrics, err := telemetry.NewSyncMetrics(provider.MeterProvider)
	if err != nil {
		return err
	}

	// Leader election (Optional - based on config)
	var elector *kube.LeaderElector
	if cfg.LeaderElection.Enabled {
		elector, err = kube.NewLeaderElectorForConfig(&cfg.Kubernetes, &cfg.LeaderElection)
		if err != nil {
			return fmt.Errorf("init leader election: %w", err)
		}
		log.WithField("identity", cfg.LeaderElection.Identity).Info("leader election enabled")
	}

	// Core Services (Application Layer)
	coordinator := services.NewSyncCoordinator(repo, indexerClient,
		services.WithBatchSize(cfg.Sync.BatchSize),
		services.WithSyncMetrics(syncMetrics),
	)
	schedOpts := []services.SchedulerOption{services.WithSchedulerMetrics(syncMetrics)}
	if elector != nil {
		schedOpts = append(schedOpts, services.WithLeaderCheck(elector.IsLeader))
	}
	scheduler := services.NewSyncScheduler(coordinator, cfg.Sync.Interval, schedOpts...)
	artifactSvc := services.NewArtifactService(repo)

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(artifactSvc, scheduler)

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging("/healthz", "/metrics"), gin.Recovery())

	h.RegisterHealth(router)
	h.RegisterRoutes(router.Group("/api/v1"))
	if mh := provider.Handler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	schedulerDone := startScheduler(ctx, cfg, scheduler, elector)

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down server...")
	case err := <-serverErr:
		log.WithError(err).Error("server error")
		stop()
	}

	// Waits for an in-flight cycle to finish.
	_ = scheduler.Stop()
	<-schedulerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced shutdown")
	}
	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("metrics provider shutdown failed")
	}

	log.Info("server stopped")
	return nil
}

// startScheduler runs the recurring sync until ctx is done. With leader
// election the scheduler only runs while this replica holds the lease.
func startScheduler(ctx context.Context, cfg *config.Config, scheduler *services.SyncScheduler, elector *kube.LeaderElector) <-chan struct{} {
	done := make(chan struct{})
	if !cfg.Sync.Enabled {
		log.Info("scheduled sync disabled")
		close(done)
		return done
	}

	go func() {
		defer close(done)
		if elector == nil {
			if err := scheduler.Start(ctx); err != nil {
				log.WithError(err).Error("sync scheduler failed")
			}
			return
		}
		err := elector.Run(ctx, func(leaderCtx context.Context) {
			if err := scheduler.Start(leaderCtx); err != nil {
				log.WithError(err).Error("sync scheduler failed")
			}
		})
		if err != nil {
			log.WithError(err).Error("leader election failed")
		}
	}()
	return done
}
