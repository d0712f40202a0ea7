package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/qubitlab/subisom/internal/cache"
	"github.com/qubitlab/subisom/internal/events"
)

// CacheMaintenanceJob prunes stale circuit cache entries and folds the
// WAL back into the main database file.
type CacheMaintenanceJob struct {
	store  *cache.Store
	bus    *events.Bus
	maxAge time.Duration
	log    zerolog.Logger
}

// NewCacheMaintenanceJob creates the cache janitor.
func NewCacheMaintenanceJob(store *cache.Store, bus *events.Bus, maxAge time.Duration, log zerolog.Logger) *CacheMaintenanceJob {
	return &CacheMaintenanceJob{
		store:  store,
		bus:    bus,
		maxAge: maxAge,
		log:    log.With().Str("job", "cache_maintenance").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *CacheMaintenanceJob) Name() string {
	return "cache_maintenance"
}

// Run executes the maintenance pass
func (j *CacheMaintenanceJob) Run() error {
	startTime := time.Now()

	pruned, err := j.store.Prune(j.maxAge)
	if err != nil {
		return err
	}

	if err := j.store.DB().WALCheckpoint("TRUNCATE"); err != nil {
		// Not critical, the autocheckpoint still bounds WAL growth.
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if pruned > 0 {
		if err := j.store.DB().Vacuum(); err != nil {
			j.log.Warn().Err(err).Msg("Vacuum failed")
		}
	}

	stats, err := j.store.Stats()
	if err != nil {
		return err
	}

	if j.bus != nil {
		j.bus.Publish("scheduler", &events.CacheMaintenanceData{
			Pruned:  pruned,
			Entries: stats.Entries,
		})
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int64("pruned", pruned).
		Int64("entries", stats.Entries).
		Msg("Cache maintenance completed")

	return nil
}

// CacheBackupJob ships the cache database to object storage and
// rotates old archives.
type CacheBackupJob struct {
	backup        *cache.BackupService
	bus           *events.Bus
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewCacheBackupJob creates the backup job.
func NewCacheBackupJob(backup *cache.BackupService, bus *events.Bus, retentionDays int, log zerolog.Logger) *CacheBackupJob {
	return &CacheBackupJob{
		backup:        backup,
		bus:           bus,
		retentionDays: retentionDays,
		timeout:       10 * time.Minute,
		log:           log.With().Str("job", "cache_backup").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *CacheBackupJob) Name() string {
	return "cache_backup"
}

// Run executes the backup job
func (j *CacheBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.backup.CreateAndUploadBackup(ctx); err != nil {
		return err
	}

	if err := j.backup.RotateOldBackups(ctx, j.retentionDays); err != nil {
		// The new backup is already safe, rotation can wait a day.
		j.log.Warn().Err(err).Msg("Backup rotation failed")
	}

	if j.bus != nil {
		backups, err := j.backup.ListBackups(ctx)
		if err == nil && len(backups) > 0 {
			j.bus.Publish("scheduler", &events.BackupCompletedData{
				Archive:   backups[0].Filename,
				SizeBytes: backups[0].SizeBytes,
			})
		}
	}

	return nil
}
