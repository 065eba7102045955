package content

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/leads"
)

// These vocabularies are tuned for content strategy: what the audience
// objects to, struggles with, asks, and what language moves them. They
// deliberately differ from the urgency-oriented lists the lead scorer
// uses.
var (
	objectionKeywords = []string{
		"too expensive", "can't afford", "cant afford", "no money",
		"too busy", "no time", "not sure", "need to think",
		"talk to my", "already tried", "didn't work", "didnt work",
		"scam", "not worth", "later", "next month",
	}
	painPointKeywords = []string{
		"struggling", "stuck", "frustrated", "overwhelmed", "confused",
		"plateau", "no results", "losing", "can't seem", "cant seem",
		"tired of", "giving up", "hard to", "don't know how", "dont know how",
	}
	questionKeywords = []string{
		"how do", "how can", "how long", "what should", "what's the",
		"whats the", "is it possible", "do you think", "should i",
		"can you explain", "why do", "why is",
	}
	convincerKeywords = []string{
		"changed my", "finally", "results", "transformation", "worth it",
		"best decision", "recommend", "amazing", "love this", "exactly what",
	}
)

// FreqEntry is one phrase with its observed frequency across the
// sampled corpus.
type FreqEntry struct {
	Phrase string `json:"phrase"`
	Count  int    `json:"count"`
}

// Corpus is the sampled, bucketed view of historical conversations
// that seeds weekly idea generation.
type Corpus struct {
	TotalThreads   int         `json:"total_threads"`
	SampledThreads int         `json:"sampled_threads"`
	MessageCount   int         `json:"message_count"`
	WindowDays     int         `json:"window_days"`
	Objections     []FreqEntry `json:"objections"`
	PainPoints     []FreqEntry `json:"pain_points"`
	Questions      []FreqEntry `json:"questions"`
	Convincers     []FreqEntry `json:"convincers"`
	SampleLines    []string    `json:"sample_lines,omitempty"`
}

// CorpusStore is the slice of the lead store the corpus builder reads.
type CorpusStore interface {
	ListRecentThreads(ctx context.Context, workspaceID int64, limit int) ([]*leads.Thread, error)
	RecentInboundMessages(ctx context.Context, workspaceID int64, since time.Time, limit int) ([]leads.Message, error)
	AllRecentInboundMessages(ctx context.Context, workspaceID int64, limit int) ([]leads.Message, error)
}

// CorpusLimits caps each stage of corpus assembly.
type CorpusLimits struct {
	ThreadLimit  int
	SampleLimit  int
	MessageLimit int
	WindowDays   int
}

func CorpusLimitsFromConfig(cfg *config.Config) CorpusLimits {
	return CorpusLimits{
		ThreadLimit:  cfg.Corpus.ThreadLimit,
		SampleLimit:  cfg.Corpus.SampleLimit,
		MessageLimit: cfg.Corpus.MessageLimit,
		WindowDays:   cfg.Corpus.WindowDays,
	}
}

type CorpusBuilder struct {
	store  CorpusStore
	limits CorpusLimits
}

func NewCorpusBuilder(store CorpusStore, limits CorpusLimits) *CorpusBuilder {
	return &CorpusBuilder{store: store, limits: limits}
}

const maxSampleLines = 40

// Build assembles the corpus: rank recent threads, sample the top
// slice, pull inbound message text inside the time window, and bucket
// it into frequency tables.
func (b *CorpusBuilder) Build(ctx context.Context, workspaceID int64) (*Corpus, error) {
	threads, err := b.store.ListRecentThreads(ctx, workspaceID, b.limits.ThreadLimit)
	if err != nil {
		return nil, fmt.Errorf("loading corpus threads: %w", err)
	}

	sampled := rankForSampling(threads, b.limits.SampleLimit)
	sampledIDs := make(map[int64]bool, len(sampled))
	for _, t := range sampled {
		sampledIDs[t.ID] = true
	}

	since := time.Now().UTC().AddDate(0, 0, -b.limits.WindowDays)
	messages, err := b.store.RecentInboundMessages(ctx, workspaceID, since, b.limits.MessageLimit)
	if err != nil {
		// Older installs may not have sent_at indexed the way the
		// windowed query expects. Fall back to the unfiltered scan.
		log.Warn().Err(err).Msg("windowed corpus query failed, falling back to unfiltered scan")
		messages, err = b.store.AllRecentInboundMessages(ctx, workspaceID, b.limits.MessageLimit)
		if err != nil {
			return nil, fmt.Errorf("loading corpus messages: %w", err)
		}
	}

	corpus := &Corpus{
		TotalThreads:   len(threads),
		SampledThreads: len(sampled),
		WindowDays:     b.limits.WindowDays,
	}

	objections := map[string]int{}
	painPoints := map[string]int{}
	questions := map[string]int{}
	convincers := map[string]int{}

	for _, m := range messages {
		if !sampledIDs[m.ThreadID] {
			continue
		}
		text := strings.ToLower(m.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		corpus.MessageCount++

		matched := false
		matched = bucket(text, objectionKeywords, objections) || matched
		matched = bucket(text, painPointKeywords, painPoints) || matched
		matched = bucket(text, questionKeywords, questions) || matched
		matched = bucket(text, convincerKeywords, convincers) || matched

		if matched && len(corpus.SampleLines) < maxSampleLines {
			corpus.SampleLines = append(corpus.SampleLines, truncateLine(m.Text, 160))
		}
	}

	corpus.Objections = toFreqTable(objections)
	corpus.PainPoints = toFreqTable(painPoints)
	corpus.Questions = toFreqTable(questions)
	corpus.Convincers = toFreqTable(convincers)
	return corpus, nil
}

// rankForSampling orders threads by a composite of reply-wait, manual
// priority, and recency, then keeps the top slice for deep sampling.
func rankForSampling(threads []*leads.Thread, limit int) []*leads.Thread {
	type rankedThread struct {
		thread *leads.Thread
		score  float64
	}
	now := time.Now().UTC()

	ranked := make([]rankedThread, len(threads))
	for i, t := range threads {
		score := 0.0
		if t.Priority {
			score += 50
		}
		if t.LastMessageDir == leads.DirectionInbound && t.LastMessageAt != nil {
			waitHours := now.Sub(*t.LastMessageAt).Hours()
			if waitHours > 48 {
				waitHours = 48
			}
			score += waitHours
		}
		if t.LastMessageAt != nil {
			ageDays := now.Sub(*t.LastMessageAt).Hours() / 24
			score += 60 / (1 + ageDays)
		}
		ranked[i] = rankedThread{thread: t, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*leads.Thread, len(ranked))
	for i, r := range ranked {
		out[i] = r.thread
	}
	return out
}

func bucket(text string, keywords []string, counts map[string]int) bool {
	matched := false
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			counts[kw]++
			matched = true
		}
	}
	return matched
}

const maxFreqEntries = 12

func toFreqTable(counts map[string]int) []FreqEntry {
	entries := make([]FreqEntry, 0, len(counts))
	for phrase, count := range counts {
		entries = append(entries, FreqEntry{Phrase: phrase, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Phrase < entries[j].Phrase
	})
	if len(entries) > maxFreqEntries {
		entries = entries[:maxFreqEntries]
	}
	return entries
}

func truncateLine(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary so the cut never emits invalid UTF-8.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
