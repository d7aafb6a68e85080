// Package jobqueue runs AppForge's scheduled background work on a
// River-backed job queue. Its one job today is pruning old failed and
// cancelled generation sessions.
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/appforge/internal/sessions"
)

// DefaultRetentionDays keeps failed/cancelled sessions around for a week.
const DefaultRetentionDays = 7

// SessionCleanupJobArgs carries the retention window for one cleanup run.
type SessionCleanupJobArgs struct {
	RetentionDays int `json:"retention_days"`
}

// Kind returns the job kind for River.
func (SessionCleanupJobArgs) Kind() string {
	return "session_cleanup"
}

// SessionCleanupWorker prunes old failed and cancelled sessions.
type SessionCleanupWorker struct {
	river.WorkerDefaults[SessionCleanupJobArgs]
	store *sessions.Store
}

func (w *SessionCleanupWorker) Work(ctx context.Context, job *river.Job[SessionCleanupJobArgs]) error {
	retention := job.Args.RetentionDays
	if retention <= 0 {
		retention = DefaultRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -retention)

	pruned, err := w.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("session cleanup failed: %w", err)
	}

	log.Info().
		Int64("pruned", pruned).
		Int("retention_days", retention).
		Msg("Pruned old failed and cancelled sessions")
	return nil
}

// JobQueue manages the River client and its workers.
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewJobQueue creates a queue with the cleanup worker registered and a daily
// periodic cleanup job scheduled.
func NewJobQueue(pool *pgxpool.Pool, store *sessions.Store, retentionDays int) (*JobQueue, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &SessionCleanupWorker{store: store})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers: workers,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(24*time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return SessionCleanupJobArgs{RetentionDays: retentionDays}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool}, nil
}

// Start starts the queue workers and the periodic scheduler.
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop drains and stops the queue workers.
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}
