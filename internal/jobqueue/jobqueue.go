// Package jobqueue runs the background work the request path defers: the
// weekly content-idea batch and attachment media mirroring. Built on
// River over a pgx connection pool.
//
// Tuning knobs live in queue_config.go.
package jobqueue

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/content"
	"github.com/acqboard/internal/leads"
)

// WeeklyIdeasJobArgs generates this week's content ideas for one
// workspace. Enqueued by the weekly scheduler and by the ideas CLI.
type WeeklyIdeasJobArgs struct {
	WorkspaceID int64  `json:"workspace_id"`
	PhaseFilter string `json:"phase_filter,omitempty"`
}

func (WeeklyIdeasJobArgs) Kind() string { return "weekly_ideas" }

// WeeklyIdeasWorker runs the idea pipeline off the request path.
type WeeklyIdeasWorker struct {
	river.WorkerDefaults[WeeklyIdeasJobArgs]
	generator *content.Generator
}

func (w *WeeklyIdeasWorker) Work(ctx context.Context, job *river.Job[WeeklyIdeasJobArgs]) error {
	result := w.generator.GenerateWeekly(ctx, job.Args.WorkspaceID, job.Args.PhaseFilter)
	if !result.Success {
		return fmt.Errorf("weekly ideas for workspace %d failed: %s", job.Args.WorkspaceID, result.Error)
	}
	log.Info().
		Int64("workspace_id", job.Args.WorkspaceID).
		Str("mode", result.GenerationMode).
		Int("ideas", len(result.Ideas)).
		Msg("weekly idea batch complete")
	return nil
}

// MediaMirrorJobArgs re-hosts one provider asset. The ingest path
// enqueues these when inline mirroring fails or is disabled, so slow
// provider CDNs never stall webhook acknowledgment.
type MediaMirrorJobArgs struct {
	WorkspaceID       int64  `json:"workspace_id"`
	ProviderMessageID string `json:"provider_message_id"`
	SourceURL         string `json:"source_url"`
}

func (MediaMirrorJobArgs) Kind() string { return "media_mirror" }

// Mirror is the storage surface the mirror worker uses.
type Mirror interface {
	MirrorURL(ctx context.Context, workspaceID int64, sourceURL string) (string, error)
}

// PayloadPatcher attaches mirrored URLs to the stored message payload.
type PayloadPatcher interface {
	UpdateMessagePayload(ctx context.Context, providerMessageID string, rawPayload []byte) error
}

type MediaMirrorWorker struct {
	river.WorkerDefaults[MediaMirrorJobArgs]
	mirror Mirror
	store  *leads.Store
}

func (w *MediaMirrorWorker) Work(ctx context.Context, job *river.Job[MediaMirrorJobArgs]) error {
	if w.mirror == nil {
		return fmt.Errorf("media mirroring is not configured")
	}
	url, err := w.mirror.MirrorURL(ctx, job.Args.WorkspaceID, job.Args.SourceURL)
	if err != nil {
		return fmt.Errorf("mirroring %s: %w", job.Args.SourceURL, err)
	}

	payload := fmt.Sprintf(`{"stored_media_urls": [%q], "source_url": %q}`, url, job.Args.SourceURL)
	if err := w.store.UpdateMessagePayload(ctx, job.Args.ProviderMessageID, []byte(payload)); err != nil {
		return fmt.Errorf("patching message %s: %w", job.Args.ProviderMessageID, err)
	}
	log.Debug().Str("provider_message_id", job.Args.ProviderMessageID).Msg("media mirrored")
	return nil
}

// JobQueue wraps the River client and its pool.
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue wires the workers and the River client on an existing
// pool. The pool is owned by the caller.
func NewJobQueue(pool *pgxpool.Pool, generator *content.Generator, mirror Mirror, store *leads.Store) (*JobQueue, error) {
	config := GetQueueConfig()

	workers := river.NewWorkers()
	river.AddWorker(workers, &WeeklyIdeasWorker{generator: generator})
	river.AddWorker(workers, &MediaMirrorWorker{mirror: mirror, store: store})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:  config.RiverQueueConfig(),
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool, config: config}, nil
}

func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// EnqueueWeeklyIdeas queues an idea-generation run for one workspace.
func (jq *JobQueue) EnqueueWeeklyIdeas(ctx context.Context, workspaceID int64, phaseFilter string) error {
	_, err := jq.client.Insert(ctx, WeeklyIdeasJobArgs{WorkspaceID: workspaceID, PhaseFilter: phaseFilter},
		&river.InsertOpts{Queue: QueueIdeas})
	if err != nil {
		return fmt.Errorf("failed to queue weekly ideas job: %w", err)
	}
	return nil
}

// EnqueueMediaMirror queues one asset for background mirroring.
func (jq *JobQueue) EnqueueMediaMirror(ctx context.Context, workspaceID int64, providerMessageID, sourceURL string) error {
	_, err := jq.client.Insert(ctx, MediaMirrorJobArgs{
		WorkspaceID:       workspaceID,
		ProviderMessageID: providerMessageID,
		SourceURL:         sourceURL,
	}, &river.InsertOpts{Queue: QueueMedia})
	if err != nil {
		return fmt.Errorf("failed to queue media mirror job: %w", err)
	}
	return nil
}
