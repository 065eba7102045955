package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/acqboard/internal/api"
	"github.com/acqboard/internal/api/auth"
	"github.com/acqboard/internal/chat"
	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/content"
	"github.com/acqboard/internal/database"
	"github.com/acqboard/internal/inbox"
	"github.com/acqboard/internal/ingest"
	"github.com/acqboard/internal/jobqueue"
	"github.com/acqboard/internal/leads"
	"github.com/acqboard/internal/llm"
	"github.com/acqboard/internal/storage"
	"github.com/acqboard/internal/youtube"
)

// APICommand returns the CLI command for starting the API server.
func APICommand() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Start the ACQ API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "no-jobs",
				Usage: "Serve without the background job queue",
			},
		},
		Action: runAPI,
	}
}

func runAPI(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	port := cfg.Server.Port
	if c.Int("port") > 0 {
		port = c.Int("port")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	anthropic, err := llm.NewAnthropicClient()
	if err != nil {
		return fmt.Errorf("creating AI client: %w", err)
	}
	resilient := llm.NewResilientClient(anthropic, cfg.AI.FallbackModels)

	store := leads.NewStore(db)
	builder := inbox.NewBuilder(store, inbox.LimitsFromConfig(cfg))
	orchestrator := chat.NewOrchestrator(builder, resilient, cfg)

	// Media mirroring and YouTube sync are optional integrations; the
	// server runs without them when their secrets are absent.
	var mirror ingest.MediaMirror
	storageClient, err := storage.NewClient(cfg.Storage.BaseURL, cfg.Storage.Bucket)
	if err != nil {
		log.Warn().Err(err).Msg("media mirroring disabled")
	} else {
		mirror = storageClient
	}

	ytStore := youtube.NewStore(db)
	var syncer *youtube.Syncer
	if ytClient, err := youtube.NewClient(cfg.YouTube.RatePerSec); err != nil {
		log.Warn().Err(err).Msg("YouTube sync disabled")
	} else {
		syncer = youtube.NewSyncer(ytClient, ytStore)
	}

	corpus := content.NewCorpusBuilder(store, content.CorpusLimitsFromConfig(cfg))
	ideas := content.NewGenerator(corpus, ytStore, content.NewSQLIdeaStore(db), resilient, cfg)

	ingestor := ingest.NewIngestor(store, ingest.NewSQLAccountResolver(db), mirror)

	ctx := context.Background()
	var queue *jobqueue.JobQueue
	if !c.Bool("no-jobs") {
		pool, err := database.NewPool(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("job queue disabled, no pgx pool")
		} else {
			defer pool.Close()
			queue, err = jobqueue.NewJobQueue(pool, ideas, mirror, store)
			if err != nil {
				return fmt.Errorf("creating job queue: %w", err)
			}
			if err := queue.Start(ctx); err != nil {
				return fmt.Errorf("starting job queue: %w", err)
			}
			log.Info().Msg("background job queue started")
		}
	}

	server := api.NewServer(port, api.Deps{
		DB:       db,
		Config:   cfg,
		Tokens:   auth.NewTokenService(db, jwtSecret),
		Ingestor: ingestor,
		Chat:     orchestrator,
		Ideas:    ideas,
		Inbox:    builder,
		Syncer:   syncer,
	})

	log.Info().Int("port", port).Msg("starting ACQ API server")
	serveErr := server.Start()

	if queue != nil {
		if err := queue.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("job queue shutdown failed")
		}
	}
	return serveErr
}
