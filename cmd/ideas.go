package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/content"
	"github.com/acqboard/internal/database"
	"github.com/acqboard/internal/jobqueue"
	"github.com/acqboard/internal/leads"
	"github.com/acqboard/internal/llm"
	"github.com/acqboard/internal/youtube"
)

// IdeasCommand returns the ideas command for running or enqueueing the
// weekly content-idea batch outside the HTTP surface.
func IdeasCommand() *cli.Command {
	return &cli.Command{
		Name:  "ideas",
		Usage: "Run or enqueue the weekly content-idea batch",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "workspace",
				Aliases:  []string{"w"},
				Usage:    "Workspace id to generate ideas for",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "phase",
				Usage: "Optional lead phase filter (e.g. objection, ready-to-buy)",
			},
			&cli.BoolFlag{
				Name:  "enqueue",
				Usage: "Queue a background job instead of running inline",
			},
		},
		Action: runIdeas,
	}
}

func runIdeas(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	workspaceID := c.Int64("workspace")
	phase := c.String("phase")

	if c.Bool("enqueue") {
		pool, err := database.NewPool(ctx)
		if err != nil {
			return fmt.Errorf("connecting pgx pool: %w", err)
		}
		defer pool.Close()

		// Insert-only client; the API server's workers pick the job up.
		queue, err := jobqueue.NewJobQueue(pool, nil, nil, nil)
		if err != nil {
			return fmt.Errorf("creating job queue: %w", err)
		}
		if err := queue.EnqueueWeeklyIdeas(ctx, workspaceID, phase); err != nil {
			return err
		}
		fmt.Printf("Queued weekly ideas job for workspace %d\n", workspaceID)
		return nil
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
	corpus := content.NewCorpusBuilder(store, content.CorpusLimitsFromConfig(cfg))
	generator := content.NewGenerator(corpus, youtube.NewStore(db), content.NewSQLIdeaStore(db), resilient, cfg)

	result := generator.GenerateWeekly(ctx, workspaceID, phase)
	if !result.Success {
		return fmt.Errorf("idea generation failed: %s", result.Error)
	}

	fmt.Printf("Generated %d ideas (%s mode)\n", len(result.Ideas), result.GenerationMode)
	for _, idea := range result.Ideas {
		fmt.Printf("  - %s\n", idea.Title)
	}
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	return nil
}
