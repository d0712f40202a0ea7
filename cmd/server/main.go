// Package main is the entry point for the subgraph isomorphism search
// service. It wires the quantum backend, the oracle-circuit cache, the
// event bus and the HTTP API, then runs until interrupted.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qubitlab/subisom/internal/backend"
	"github.com/qubitlab/subisom/internal/backend/remote"
	"github.com/qubitlab/subisom/internal/backend/simulator"
	"github.com/qubitlab/subisom/internal/cache"
	"github.com/qubitlab/subisom/internal/config"
	"github.com/qubitlab/subisom/internal/events"
	"github.com/qubitlab/subisom/internal/scheduler"
	"github.com/qubitlab/subisom/internal/server"
	"github.com/qubitlab/subisom/pkg/logger"
)

func main() {
	// Load configuration first to get the log level.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting subisom")

	bus := events.NewBus(log)

	// Backend selection: a configured URL points at a remote execution
	// service, otherwise shots run on the in-process simulator.
	var exec backend.Backend
	if cfg.BackendURL != "" {
		exec = remote.NewClient(cfg.BackendURL, log)
		log.Info().Str("url", cfg.BackendURL).Msg("Using remote backend")
	} else {
		exec = simulator.New(cfg.Seed)
		log.Info().Msg("Using local statevector simulator")
	}

	// Oracle-circuit cache. Failure to open is not fatal: searches
	// still run, they just recompile every oracle.
	var store *cache.Store
	if cfg.Cache.Enabled {
		store, err = cache.NewStore(cfg.CacheDBPath(), log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open circuit cache, continuing without it")
		} else {
			defer store.Close()
			log.Info().Str("path", cfg.CacheDBPath()).Msg("Circuit cache opened")
		}
	}

	// Background maintenance: hourly cache pruning plus a nightly
	// backup of the cache database to object storage when configured.
	sched := scheduler.New(log)

	if store != nil && cfg.Cache.PruneEnabled {
		maxAge := time.Duration(cfg.Cache.MaxAgeHours) * time.Hour
		job := scheduler.NewCacheMaintenanceJob(store, bus, maxAge, log)
		if err := sched.AddJob("@hourly", job); err != nil {
			log.Error().Err(err).Msg("Failed to schedule cache maintenance")
		}
	}

	if store != nil && cfg.Backup.Enabled {
		client, err := cache.NewS3Client(context.Background(), cache.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize backup client, backups disabled")
		} else {
			backup := cache.NewBackupService(store, client, cfg.DataDir, log)
			job := scheduler.NewCacheBackupJob(backup, bus, cfg.Backup.RetentionDays, log)
			if err := sched.AddJob("0 3 * * *", job); err != nil {
				log.Error().Err(err).Msg("Failed to schedule cache backup")
			}
		}
	}

	sched.Start()

	srv := server.New(server.Config{
		Log:     log,
		Config:  cfg,
		Backend: exec,
		Store:   store,
		Bus:     bus,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	// In-flight searches get up to 10 seconds to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
