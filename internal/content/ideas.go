package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/llm"
	"github.com/acqboard/internal/logging"
	"github.com/acqboard/internal/youtube"
)

// Idea sources.
const (
	SourceAI     = "ai"
	SourceManual = "manual"
)

// Piece kinds for the follow-on generation actions.
const (
	PieceHook    = "hook"
	PieceOutline = "outline"
	PieceCTA     = "cta"
	PieceScript  = "script"
)

// Idea is one content idea record.
type Idea struct {
	ID          int64           `json:"id"`
	WorkspaceID int64           `json:"workspace_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Phase       string          `json:"phase,omitempty"`
	Source      string          `json:"source"`
	Hook        *string         `json:"hook,omitempty"`
	OutlineJSON json.RawMessage `json:"outline,omitempty"`
	CTA         *string         `json:"cta,omitempty"`
	Script      *string         `json:"script,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// WeeklyResult is the idea-generation response envelope.
type WeeklyResult struct {
	Success        bool                    `json:"success"`
	Ideas          []Idea                  `json:"ideas"`
	GenerationMode string                  `json:"generationMode,omitempty"`
	AutoSkipped    bool                    `json:"autoSkipped,omitempty"`
	Warnings       []string                `json:"warnings,omitempty"`
	Corpus         *Corpus                 `json:"corpus,omitempty"`
	YouTube        *youtube.ChannelSignals `json:"youtube,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

// IdeaStore is the persistence surface for idea records.
type IdeaStore interface {
	RecentAISourced(ctx context.Context, workspaceID int64, since time.Time) ([]Idea, error)
	Insert(ctx context.Context, idea *Idea) error
	Get(ctx context.Context, workspaceID, ideaID int64) (*Idea, error)
	UpdatePiece(ctx context.Context, workspaceID, ideaID int64, kind string, value string) (*Idea, error)
}

// CorpusSource produces the conversation corpus.
type CorpusSource interface {
	Build(ctx context.Context, workspaceID int64) (*Corpus, error)
}

// SignalSource produces YouTube channel signals from local tables.
type SignalSource interface {
	SignalsForWorkspace(ctx context.Context, workspaceID int64) (*youtube.ChannelSignals, error)
}

// Generator runs the weekly idea pipeline and the per-idea follow-on
// actions.
type Generator struct {
	corpus    CorpusSource
	signals   SignalSource
	store     IdeaStore
	llm       LLMGenerator
	cfg       *config.Config
	clock     func() time.Time
}

// LLMGenerator is the resilient provider client surface.
type LLMGenerator interface {
	Generate(ctx context.Context, cfg llm.ModelConfig, prompt string) (*llm.GenerateResult, error)
}

func NewGenerator(corpus CorpusSource, signals SignalSource, store IdeaStore, llmClient LLMGenerator, cfg *config.Config) *Generator {
	return &Generator{
		corpus:  corpus,
		signals: signals,
		store:   store,
		llm:     llmClient,
		cfg:     cfg,
		clock:   func() time.Time { return time.Now().UTC() },
	}
}

// generatedIdea is the shape the model is asked to emit.
type generatedIdea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Phase       string `json:"phase,omitempty"`
	Hook        string `json:"hook,omitempty"`
}

type generatedPayload struct {
	Ideas []generatedIdea `json:"ideas"`
}

const minGeneratedIdeas = 3

// GenerateWeekly produces this week's idea batch. A fresh enough
// cached batch short-circuits the whole pipeline; anything that fails
// mid-pipeline degrades to the cached set with warnings instead of
// erroring, as long as a cached set exists.
func (g *Generator) GenerateWeekly(ctx context.Context, workspaceID int64, phaseFilter string) WeeklyResult {
	runLog := logging.GetCurrentLogger()
	now := g.clock()
	since := now.AddDate(0, 0, -g.cfg.Ideas.CacheWindowDays)

	cached, err := g.store.RecentAISourced(ctx, workspaceID, since)
	if err != nil {
		log.Warn().Err(err).Msg("idea cache lookup failed, generating fresh")
		cached = nil
	}
	if len(cached) >= g.cfg.Ideas.CacheMin {
		runLog.Log("Idea cache hit: %d ideas within %d days, skipping generation", len(cached), g.cfg.Ideas.CacheWindowDays)
		return WeeklyResult{
			Success:        true,
			Ideas:          cached,
			GenerationMode: "cached",
			AutoSkipped:    true,
		}
	}

	var warnings []string

	corpus, err := g.corpus.Build(ctx, workspaceID)
	if err != nil {
		log.Warn().Err(err).Msg("corpus build failed, generating without conversation data")
		warnings = append(warnings, "conversation corpus unavailable: "+err.Error())
		corpus = nil
	}

	var signals *youtube.ChannelSignals
	if g.signals != nil {
		signals, err = g.signals.SignalsForWorkspace(ctx, workspaceID)
		if err != nil {
			log.Warn().Err(err).Msg("youtube signals unavailable")
			warnings = append(warnings, "youtube signals unavailable: "+err.Error())
			signals = nil
		}
	}

	prompt := buildWeeklyPrompt(corpus, signals, phaseFilter)
	result, err := g.llm.Generate(ctx, llm.ModelConfig{
		Model:       g.cfg.AI.Model,
		MaxTokens:   g.cfg.AI.MaxTokens,
		Temperature: g.cfg.AI.Temperature,
	}, prompt)
	if err != nil {
		return g.fallbackToCache(cached, warnings, fmt.Sprintf("idea generation failed: %v", err))
	}

	var payload generatedPayload
	if _, err := llm.ParseResponse(result.Response, &payload); err != nil {
		return g.fallbackToCache(cached, warnings, fmt.Sprintf("idea response unparseable: %v", err))
	}
	if len(payload.Ideas) < minGeneratedIdeas {
		return g.fallbackToCache(cached, warnings, fmt.Sprintf("idea generation returned only %d ideas", len(payload.Ideas)))
	}

	ideas := g.persistDeduped(ctx, workspaceID, payload.Ideas, cached, now, &warnings)
	return WeeklyResult{
		Success:        true,
		Ideas:          ideas,
		GenerationMode: "ai",
		Warnings:       warnings,
		Corpus:         corpus,
		YouTube:        signals,
	}
}

// fallbackToCache returns whatever cached ideas exist instead of
// erroring; a hard failure only surfaces when there is nothing to fall
// back to.
func (g *Generator) fallbackToCache(cached []Idea, warnings []string, cause string) WeeklyResult {
	warnings = append(warnings, cause)
	if len(cached) > 0 {
		log.Warn().Str("cause", cause).Int("cached", len(cached)).Msg("idea generation degraded to cached set")
		return WeeklyResult{
			Success:        true,
			Ideas:          cached,
			GenerationMode: "cached",
			Warnings:       warnings,
		}
	}
	return WeeklyResult{Success: false, Warnings: warnings, Error: cause, Ideas: []Idea{}}
}

// persistDeduped inserts generated ideas, dropping case-insensitive
// title duplicates within the batch and against the cached set.
func (g *Generator) persistDeduped(ctx context.Context, workspaceID int64, generated []generatedIdea, cached []Idea, now time.Time, warnings *[]string) []Idea {
	seen := map[string]bool{}
	for _, c := range cached {
		seen[strings.ToLower(strings.TrimSpace(c.Title))] = true
	}

	var out []Idea
	for _, gi := range generated {
		title := strings.TrimSpace(gi.Title)
		if title == "" {
			continue
		}
		key := strings.ToLower(title)
		if seen[key] {
			continue
		}
		seen[key] = true

		idea := Idea{
			WorkspaceID: workspaceID,
			Title:       title,
			Description: strings.TrimSpace(gi.Description),
			Phase:       gi.Phase,
			Source:      SourceAI,
			CreatedAt:   now,
		}
		if hook := strings.TrimSpace(gi.Hook); hook != "" {
			idea.Hook = &hook
		}
		if err := g.store.Insert(ctx, &idea); err != nil {
			log.Warn().Err(err).Str("title", title).Msg("idea insert failed, returning unpersisted")
			*warnings = append(*warnings, "some ideas could not be saved")
		}
		out = append(out, idea)
	}
	return out
}

// GeneratePiece generates one follow-on artifact for an existing idea
// and patches the record.
func (g *Generator) GeneratePiece(ctx context.Context, workspaceID, ideaID int64, kind string) (*Idea, error) {
	switch kind {
	case PieceHook, PieceOutline, PieceCTA, PieceScript:
	default:
		return nil, fmt.Errorf("unknown piece kind %q", kind)
	}

	idea, err := g.store.Get(ctx, workspaceID, ideaID)
	if err != nil {
		return nil, err
	}
	if idea == nil {
		return nil, fmt.Errorf("idea %d not found", ideaID)
	}

	prompt := buildPiecePrompt(idea, kind)
	result, err := g.llm.Generate(ctx, llm.ModelConfig{
		Model:       g.cfg.AI.Model,
		MaxTokens:   g.cfg.AI.MaxTokens,
		Temperature: g.cfg.AI.Temperature,
	}, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating %s: %w", kind, err)
	}

	value := strings.TrimSpace(result.Response)
	if kind == PieceOutline {
		// Outlines persist as JSON; repair the model output before
		// storing so readers never see a broken blob.
		repaired, _, repairErr := llm.RepairJSON(llm.ExtractJSON(value))
		if repairErr != nil {
			return nil, fmt.Errorf("outline response unparseable: %w", repairErr)
		}
		value = repaired
	}
	if value == "" {
		return nil, fmt.Errorf("empty %s response", kind)
	}
	return g.store.UpdatePiece(ctx, workspaceID, ideaID, kind, value)
}
