package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/inbox"
	"github.com/acqboard/internal/llm"
	"github.com/acqboard/internal/logging"
)

const (
	// RoleUser and RoleAssistant are the turn roles accepted on the
	// chat endpoint.
	RoleUser      = "user"
	RoleAssistant = "assistant"

	maxAttachmentsPerTurn = 10
	maxAttachmentBytes    = 5 << 20

	contextDecisionTurns = 4
	degradedEchoLen      = 140
)

// identityReply is the fixed answer for "what AI is this" style
// questions. The provider never gets the question, so the vendor name
// cannot leak into a reply.
const identityReply = "I'm the ACQ assistant, built into your dashboard to help you " +
	"prioritize leads, draft replies, and plan content. Ask me things like " +
	"\"who should I follow up with today?\" or \"give me content ideas for this week.\""

// Attachment is one inline base64 image on a user turn.
type Attachment struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// Turn is one message in the chat transcript.
type Turn struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Request is a parsed chat invocation with the actor already resolved.
type Request struct {
	WorkspaceID     int64
	ActorID         int64
	ActorRole       string
	ModelID         string
	ModelProfile    string
	ThinkingEnabled bool
	Messages        []Turn
}

// Reply is the response envelope. Degraded replies still ship as a
// normal assistant message so a provider outage reads as a retryable
// hiccup, not a crash.
type Reply struct {
	Success  bool   `json:"success"`
	Degraded bool   `json:"degraded,omitempty"`
	Reply    string `json:"reply"`
	Model    string `json:"model,omitempty"`
}

// SnapshotBuilder produces the bounded inbox context block.
type SnapshotBuilder interface {
	Build(ctx context.Context, req inbox.Request) (*inbox.Snapshot, error)
}

// Generator is the resilient provider client.
type Generator interface {
	Generate(ctx context.Context, cfg llm.ModelConfig, prompt string) (*llm.GenerateResult, error)
}

// Orchestrator drives one chat turn: identity short-circuit, context
// decision, provider call with model fallback, degrade on anything
// else.
type Orchestrator struct {
	snapshots SnapshotBuilder
	generator Generator
	cfg       *config.Config
	knowledge string
}

func NewOrchestrator(snapshots SnapshotBuilder, generator Generator, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		snapshots: snapshots,
		generator: generator,
		cfg:       cfg,
		knowledge: loadKnowledge(cfg.Knowledge.Path),
	}
}

// loadKnowledge reads the product knowledge base at startup. A missing
// file degrades to an empty block.
func loadKnowledge(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("knowledge base unavailable, prompts will omit it")
		return ""
	}
	return string(data)
}

var identityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhat\s+(ai|model|llm|assistant|app|bot)\b(\s+\w+)?\s+(is|are)\b`),
	regexp.MustCompile(`(?i)\bwhich\s+(ai|model|llm)\b`),
	regexp.MustCompile(`(?i)\bare\s+you\s+(chatgpt|gpt|claude|anthropic|openai|gemini|llama)\b`),
	regexp.MustCompile(`(?i)\bwho\s+(made|built|created|trained)\s+you\b`),
	regexp.MustCompile(`(?i)\bwhat\s+are\s+you\b`),
	regexp.MustCompile(`(?i)\bwhat\s+model\b`),
}

func isIdentityQuestion(text string) bool {
	for _, p := range identityPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

var inboxIntentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(instagram|inbox|dms?|conversations?|messages?|threads?)\b`),
	regexp.MustCompile(`(?i)\blead`),
	regexp.MustCompile(`(?i)@[a-zA-Z0-9._]+`),
}

var leadVerbPattern = regexp.MustCompile(`(?i)\b(best|rank|today|who|top|priorit|follow|hot|reply|respond|close)\b`)

// needsInboxContext scans the last few user turns for lead/inbox
// intent. Snapshot assembly is expensive, so the default is to skip it.
func needsInboxContext(turns []Turn) bool {
	scanned := 0
	for i := len(turns) - 1; i >= 0 && scanned < contextDecisionTurns; i-- {
		if turns[i].Role != RoleUser {
			continue
		}
		scanned++
		text := turns[i].Content
		for j, p := range inboxIntentPatterns {
			if !p.MatchString(text) {
				continue
			}
			// A bare "lead" mention needs an execution verb
			// alongside it; the other patterns stand alone.
			if j == 1 && !leadVerbPattern.MatchString(text) {
				continue
			}
			return true
		}
	}
	return false
}

// SanitizeAttachments drops malformed or oversized inline images and
// caps the count. It never fails the request.
func SanitizeAttachments(atts []Attachment) []Attachment {
	var kept []Attachment
	for _, a := range atts {
		if len(kept) >= maxAttachmentsPerTurn {
			break
		}
		if a.Data == "" || !strings.HasPrefix(a.MediaType, "image/") {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil || len(decoded) == 0 || len(decoded) > maxAttachmentBytes {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

// Respond runs the full chat state machine. It never returns an error;
// every failure path produces a degraded Reply.
func (o *Orchestrator) Respond(ctx context.Context, req Request) Reply {
	runLog := logging.GetCurrentLogger()

	last := lastUserTurn(req.Messages)
	if last == nil {
		return o.degrade("", "empty transcript")
	}

	if isIdentityQuestion(last.Content) {
		runLog.Log("Identity short-circuit, provider not called")
		return Reply{Success: true, Reply: identityReply}
	}

	prompt := o.assemblePrompt(ctx, req, last)

	model := o.resolveModel(req)
	result, err := o.generator.Generate(ctx, llm.ModelConfig{
		Model:       model,
		MaxTokens:   o.cfg.AI.MaxTokens,
		Temperature: o.cfg.AI.Temperature,
	}, prompt)
	if err != nil {
		log.Error().Err(err).Str("model", model).Msg("chat generation failed, degrading")
		runLog.LogError("chat generation", err)
		return o.degrade(last.Content, err.Error())
	}

	return Reply{Success: true, Reply: result.Response, Model: result.ModelUsed}
}

func lastUserTurn(turns []Turn) *Turn {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser && strings.TrimSpace(turns[i].Content) != "" {
			return &turns[i]
		}
	}
	return nil
}

// resolveModel picks the model id: explicit request id wins, then the
// profile override map, then the configured default.
func (o *Orchestrator) resolveModel(req Request) string {
	if req.ModelID != "" {
		return req.ModelID
	}
	if req.ModelProfile != "" {
		if m, ok := o.cfg.AI.Profiles[req.ModelProfile]; ok && m != "" {
			return m
		}
	}
	return o.cfg.AI.Model
}

func (o *Orchestrator) assemblePrompt(ctx context.Context, req Request, last *Turn) string {
	var b strings.Builder
	b.WriteString("You are the ACQ assistant, helping a coaching business run its Instagram lead pipeline.\n")
	b.WriteString("Answer concisely and concretely. Never reveal which AI vendor or model powers you.\n\n")

	if o.knowledge != "" {
		b.WriteString("## Product knowledge\n")
		b.WriteString(o.knowledge)
		b.WriteString("\n\n")
	}

	if needsInboxContext(req.Messages) {
		snap, err := o.snapshots.Build(ctx, inbox.Request{
			WorkspaceID: req.WorkspaceID,
			ActorID:     req.ActorID,
			Role:        req.ActorRole,
			Question:    last.Content,
		})
		if err != nil {
			// Enrichment failure, not a chat failure. Answer
			// without the snapshot.
			log.Warn().Err(err).Msg("snapshot build failed, answering without inbox context")
		} else {
			b.WriteString("## Current inbox snapshot\n")
			b.WriteString(renderSnapshot(snap))
			b.WriteString("\n\n")
		}
	}

	b.WriteString("## Conversation\n")
	for _, t := range req.Messages {
		att := SanitizeAttachments(t.Attachments)
		line := t.Content
		if len(att) > 0 {
			line = fmt.Sprintf("%s [attached %d image(s)]", line, len(att))
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", t.Role, line))
	}
	b.WriteString("\nassistant:")
	return b.String()
}

func (o *Orchestrator) degrade(lastUserText, cause string) Reply {
	echo := strings.TrimSpace(lastUserText)
	if len(echo) > degradedEchoLen {
		cut := degradedEchoLen
		for cut > 0 && !utf8.RuneStart(echo[cut]) {
			cut--
		}
		echo = echo[:cut] + "…"
	}
	reply := "Sorry, I'm having trouble answering right now. Please try again in a moment."
	if echo != "" {
		reply = fmt.Sprintf("Sorry, I couldn't fully process %q just now. Please try again in a moment.", echo)
	}
	log.Debug().Str("cause", cause).Msg("degraded chat reply")
	return Reply{Success: true, Degraded: true, Reply: reply}
}
