package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/inbox"
	"github.com/acqboard/internal/llm"
	"github.com/acqboard/pkg/models"
)

type fakeSnapshots struct {
	calls int
	snap  *inbox.Snapshot
	err   error
}

func (f *fakeSnapshots) Build(ctx context.Context, req inbox.Request) (*inbox.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.snap != nil {
		return f.snap, nil
	}
	return &inbox.Snapshot{RankingMethod: "test"}, nil
}

type fakeGenerator struct {
	calls   int
	prompt  string
	model   string
	reply   string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, cfg llm.ModelConfig, prompt string) (*llm.GenerateResult, error) {
	f.calls++
	f.prompt = prompt
	f.model = cfg.Model
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResult{Response: f.reply, ModelUsed: cfg.Model}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.AI.Model = "default-model"
	cfg.AI.MaxTokens = 1024
	cfg.AI.Profiles = map[string]string{"fast": "fast-model"}
	return cfg
}

func userTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text}
}

func TestIdentityQuestionsShortCircuitProvider(t *testing.T) {
	gen := &fakeGenerator{}
	snaps := &fakeSnapshots{}
	o := NewOrchestrator(snaps, gen, testConfig())

	for _, q := range []string{
		"What AI model is this?",
		"what AI is this?",
		"are you ChatGPT?",
		"who built you?",
	} {
		reply := o.Respond(context.Background(), Request{Messages: []Turn{userTurn(q)}})
		assert.True(t, reply.Success, q)
		assert.False(t, reply.Degraded, q)
		assert.Contains(t, reply.Reply, "ACQ", q)
	}
	assert.Zero(t, gen.calls, "identity questions must never reach the provider")
	assert.Zero(t, snaps.calls)
}

func TestInboxIntentAttachesSnapshot(t *testing.T) {
	gen := &fakeGenerator{reply: "ranked"}
	snaps := &fakeSnapshots{snap: &inbox.Snapshot{RankingMethod: "ranked 3 conversations"}}
	o := NewOrchestrator(snaps, gen, testConfig())

	reply := o.Respond(context.Background(), Request{
		WorkspaceID: 1, ActorID: 2, ActorRole: models.RoleOwner,
		Messages: []Turn{userTurn("who are my best leads today?")},
	})
	require.True(t, reply.Success)
	assert.Equal(t, 1, snaps.calls)
	assert.Contains(t, gen.prompt, "inbox snapshot")
	assert.Contains(t, gen.prompt, "ranked 3 conversations")
}

func TestGeneralQuestionSkipsSnapshot(t *testing.T) {
	gen := &fakeGenerator{reply: "sure"}
	snaps := &fakeSnapshots{}
	o := NewOrchestrator(snaps, gen, testConfig())

	reply := o.Respond(context.Background(), Request{
		Messages: []Turn{userTurn("write me a morning routine for discipline")},
	})
	require.True(t, reply.Success)
	assert.Zero(t, snaps.calls, "no lead/inbox intent means no snapshot build")
}

func TestContextDecisionScansRecentUserTurns(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	snaps := &fakeSnapshots{}
	o := NewOrchestrator(snaps, gen, testConfig())

	o.Respond(context.Background(), Request{
		ActorRole: models.RoleOwner,
		Messages: []Turn{
			userTurn("check my instagram inbox"),
			{Role: RoleAssistant, Content: "done"},
			userTurn("thanks, make it shorter"),
		},
	})
	assert.Equal(t, 1, snaps.calls, "intent in an earlier recent turn still attaches context")
}

func TestProviderFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	o := NewOrchestrator(&fakeSnapshots{}, gen, testConfig())

	reply := o.Respond(context.Background(), Request{
		Messages: []Turn{userTurn("summarize my week")},
	})
	assert.True(t, reply.Success)
	assert.True(t, reply.Degraded)
	assert.Contains(t, reply.Reply, "summarize my week")
}

func TestDegradedEchoIsTruncated(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	o := NewOrchestrator(&fakeSnapshots{}, gen, testConfig())

	long := strings.Repeat("a", 400)
	reply := o.Respond(context.Background(), Request{Messages: []Turn{userTurn(long)}})
	assert.True(t, reply.Degraded)
	assert.Less(t, len(reply.Reply), 300)
}

func TestDegradedEchoKeepsRuneBoundaries(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("boom")}
	o := NewOrchestrator(&fakeSnapshots{}, gen, testConfig())

	// 3-byte runes land the byte cap mid-rune; the cut must back off.
	long := strings.Repeat("日", 60)
	reply := o.Respond(context.Background(), Request{Messages: []Turn{userTurn(long)}})
	assert.True(t, reply.Degraded)
	assert.True(t, utf8.ValidString(reply.Reply), "echoed text must stay valid UTF-8")
	assert.Contains(t, reply.Reply, "…")
}

func TestSnapshotFailureStillAnswers(t *testing.T) {
	gen := &fakeGenerator{reply: "answered anyway"}
	snaps := &fakeSnapshots{err: errors.New("db down")}
	o := NewOrchestrator(snaps, gen, testConfig())

	reply := o.Respond(context.Background(), Request{
		ActorRole: models.RoleOwner,
		Messages:  []Turn{userTurn("rank my leads")},
	})
	assert.True(t, reply.Success)
	assert.False(t, reply.Degraded)
	assert.Equal(t, "answered anyway", reply.Reply)
}

func TestModelResolutionOrder(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	o := NewOrchestrator(&fakeSnapshots{}, gen, testConfig())

	o.Respond(context.Background(), Request{
		ModelID:  "explicit-model",
		Messages: []Turn{userTurn("hello there")},
	})
	assert.Equal(t, "explicit-model", gen.model)

	o.Respond(context.Background(), Request{
		ModelProfile: "fast",
		Messages:     []Turn{userTurn("hello there")},
	})
	assert.Equal(t, "fast-model", gen.model)

	o.Respond(context.Background(), Request{
		Messages: []Turn{userTurn("hello there")},
	})
	assert.Equal(t, "default-model", gen.model)
}

func TestSanitizeAttachments(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString([]byte("tiny png bytes"))

	atts := []Attachment{
		{MediaType: "image/png", Data: valid},
		{MediaType: "image/jpeg", Data: "!!!not base64!!!"},
		{MediaType: "application/pdf", Data: valid},
		{MediaType: "image/png", Data: ""},
	}
	kept := SanitizeAttachments(atts)
	require.Len(t, kept, 1)
	assert.Equal(t, "image/png", kept[0].MediaType)

	var many []Attachment
	for i := 0; i < 15; i++ {
		many = append(many, Attachment{MediaType: "image/png", Data: valid})
	}
	assert.Len(t, SanitizeAttachments(many), maxAttachmentsPerTurn)
}

func TestEmptyTranscriptDegrades(t *testing.T) {
	o := NewOrchestrator(&fakeSnapshots{}, &fakeGenerator{}, testConfig())
	reply := o.Respond(context.Background(), Request{})
	assert.True(t, reply.Degraded)
	assert.NotEmpty(t, reply.Reply)
}
