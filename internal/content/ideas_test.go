package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/llm"
	"github.com/acqboard/internal/youtube"
)

type fakeIdeaStore struct {
	cached  []Idea
	saved   []Idea
	nextID  int64
	getIdea *Idea
	updated map[string]string
}

func (f *fakeIdeaStore) RecentAISourced(ctx context.Context, workspaceID int64, since time.Time) ([]Idea, error) {
	return f.cached, nil
}

func (f *fakeIdeaStore) Insert(ctx context.Context, idea *Idea) error {
	f.nextID++
	idea.ID = f.nextID
	f.saved = append(f.saved, *idea)
	return nil
}

func (f *fakeIdeaStore) Get(ctx context.Context, workspaceID, ideaID int64) (*Idea, error) {
	return f.getIdea, nil
}

func (f *fakeIdeaStore) UpdatePiece(ctx context.Context, workspaceID, ideaID int64, kind, value string) (*Idea, error) {
	if f.updated == nil {
		f.updated = map[string]string{}
	}
	f.updated[kind] = value
	return f.getIdea, nil
}

type fakeCorpusSource struct {
	corpus *Corpus
	err    error
}

func (f *fakeCorpusSource) Build(ctx context.Context, workspaceID int64) (*Corpus, error) {
	return f.corpus, f.err
}

type fakeSignalSource struct{}

func (fakeSignalSource) SignalsForWorkspace(ctx context.Context, workspaceID int64) (*youtube.ChannelSignals, error) {
	return &youtube.ChannelSignals{}, nil
}

type fakeLLM struct {
	calls    int
	response string
	err      error
}

func (f *fakeLLM) Generate(ctx context.Context, cfg llm.ModelConfig, prompt string) (*llm.GenerateResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResult{Response: f.response, ModelUsed: cfg.Model}, nil
}

func ideasConfig() *config.Config {
	cfg := &config.Config{}
	cfg.AI.Model = "test-model"
	cfg.AI.MaxTokens = 2048
	cfg.Ideas.CacheMin = 10
	cfg.Ideas.CacheWindowDays = 7
	return cfg
}

func cachedIdeas(n int) []Idea {
	out := make([]Idea, n)
	for i := range out {
		out[i] = Idea{ID: int64(i + 1), Title: string(rune('A'+i)) + " idea", Source: SourceAI}
	}
	return out
}

func newTestGenerator(store *fakeIdeaStore, llmClient *fakeLLM, corpus *fakeCorpusSource) *Generator {
	if corpus == nil {
		corpus = &fakeCorpusSource{corpus: &Corpus{MessageCount: 3}}
	}
	return NewGenerator(corpus, fakeSignalSource{}, store, llmClient, ideasConfig())
}

const goodResponse = `{"ideas": [
	{"title": "Why leads ghost after the price", "description": "d1"},
	{"title": "Three DM openers that book calls", "description": "d2"},
	{"title": "The objection you should welcome", "description": "d3"},
	{"title": "why leads ghost after the price", "description": "duplicate"}
]}`

func TestGenerateWeeklyCacheHitSkipsLLM(t *testing.T) {
	store := &fakeIdeaStore{cached: cachedIdeas(10)}
	llmClient := &fakeLLM{}
	g := newTestGenerator(store, llmClient, nil)

	result := g.GenerateWeekly(context.Background(), 1, "")
	assert.True(t, result.Success)
	assert.True(t, result.AutoSkipped)
	assert.Equal(t, "cached", result.GenerationMode)
	assert.Len(t, result.Ideas, 10)
	assert.Zero(t, llmClient.calls, "a fresh cache must not trigger generation")
}

func TestGenerateWeeklyFreshGeneration(t *testing.T) {
	store := &fakeIdeaStore{}
	llmClient := &fakeLLM{response: goodResponse}
	g := newTestGenerator(store, llmClient, nil)

	result := g.GenerateWeekly(context.Background(), 1, "")
	require.True(t, result.Success)
	assert.Equal(t, "ai", result.GenerationMode)
	assert.False(t, result.AutoSkipped)
	assert.Len(t, result.Ideas, 3, "case-insensitive title duplicates are dropped")
	assert.Len(t, store.saved, 3)
	for _, idea := range result.Ideas {
		assert.Equal(t, SourceAI, idea.Source)
		assert.NotZero(t, idea.ID)
	}
}

func TestGenerateWeeklyDedupesAgainstCache(t *testing.T) {
	store := &fakeIdeaStore{cached: []Idea{{Title: "Why leads ghost after the price", Source: SourceAI}}}
	llmClient := &fakeLLM{response: goodResponse}
	g := newTestGenerator(store, llmClient, nil)

	result := g.GenerateWeekly(context.Background(), 1, "")
	require.True(t, result.Success)
	assert.Len(t, result.Ideas, 2, "titles already cached are not re-inserted")
}

func TestGenerateWeeklyProviderFailureFallsBackToCache(t *testing.T) {
	store := &fakeIdeaStore{cached: cachedIdeas(4)}
	llmClient := &fakeLLM{err: errors.New("500 overloaded")}
	g := newTestGenerator(store, llmClient, nil)

	result := g.GenerateWeekly(context.Background(), 1, "")
	assert.True(t, result.Success)
	assert.Equal(t, "cached", result.GenerationMode)
	assert.Len(t, result.Ideas, 4)
	assert.NotEmpty(t, result.Warnings)
}

func TestGenerateWeeklyFailureWithoutCacheErrors(t *testing.T) {
	store := &fakeIdeaStore{}
	llmClient := &fakeLLM{err: errors.New("500 overloaded")}
	g := newTestGenerator(store, llmClient, nil)

	result := g.GenerateWeekly(context.Background(), 1, "")
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.Ideas)
}

func TestGenerateWeeklyShortResultFallsBack(t *testing.T) {
	store := &fakeIdeaStore{cached: cachedIdeas(2)}
	llmClient := &fakeLLM{response: `{"ideas": [{"title": "only one"}]}`}
	g := newTestGenerator(store, llmClient, nil)

	result := g.GenerateWeekly(context.Background(), 1, "")
	assert.True(t, result.Success)
	assert.Equal(t, "cached", result.GenerationMode)
	assert.NotEmpty(t, result.Warnings)
}

func TestGenerateWeeklyCorpusFailureStillGenerates(t *testing.T) {
	store := &fakeIdeaStore{}
	llmClient := &fakeLLM{response: goodResponse}
	g := newTestGenerator(store, llmClient, &fakeCorpusSource{err: errors.New("db down")})

	result := g.GenerateWeekly(context.Background(), 1, "")
	assert.True(t, result.Success)
	assert.Equal(t, "ai", result.GenerationMode)
	assert.NotEmpty(t, result.Warnings)
}

func TestGeneratePieceUnknownKind(t *testing.T) {
	g := newTestGenerator(&fakeIdeaStore{}, &fakeLLM{}, nil)
	_, err := g.GeneratePiece(context.Background(), 1, 1, "poster")
	require.Error(t, err)
}

func TestGeneratePieceHook(t *testing.T) {
	idea := &Idea{ID: 1, Title: "Why leads ghost"}
	store := &fakeIdeaStore{getIdea: idea}
	llmClient := &fakeLLM{response: "Stop losing leads at hello."}
	g := newTestGenerator(store, llmClient, nil)

	got, err := g.GeneratePiece(context.Background(), 1, 1, PieceHook)
	require.NoError(t, err)
	assert.Equal(t, idea, got)
	assert.Equal(t, "Stop losing leads at hello.", store.updated[PieceHook])
}

func TestGeneratePieceOutlineRepairsJSON(t *testing.T) {
	store := &fakeIdeaStore{getIdea: &Idea{ID: 1, Title: "Why leads ghost"}}
	llmClient := &fakeLLM{response: "```json\n{\"beats\": [{\"label\": \"hook\", \"seconds\": 0,},]}\n```"}
	g := newTestGenerator(store, llmClient, nil)

	_, err := g.GeneratePiece(context.Background(), 1, 1, PieceOutline)
	require.NoError(t, err)
	assert.JSONEq(t, `{"beats": [{"label": "hook", "seconds": 0}]}`, store.updated[PieceOutline])
}
