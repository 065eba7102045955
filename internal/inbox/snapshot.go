package inbox

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/leads"
)

// detailConcurrency bounds parallel message fetches so a snapshot build
// never storms the message store.
const detailConcurrency = 4

// ThreadReader is the slice of the lead store the snapshot builder
// needs. *leads.Store satisfies it.
type ThreadReader interface {
	ListRecentThreads(ctx context.Context, workspaceID int64, limit int) ([]*leads.Thread, error)
	TagsForThreads(ctx context.Context, threadIDs []int64) (map[int64][]string, error)
	OpenAlertsForThreads(ctx context.Context, threadIDs []int64) (map[int64]*leads.Alert, error)
	RecentMessages(ctx context.Context, threadID int64, limit int) ([]leads.Message, error)
}

// Limits are the size caps for one snapshot build. Passed in explicitly
// so tests can pin them without touching the environment.
type Limits struct {
	ThreadLimit             int
	TopLeads                int
	LeadIndex               int
	Detail                  int
	DetailExtra             int
	MessagesPerConversation int
	TodayFocus              int
}

func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		ThreadLimit:             cfg.Context.ThreadLimit,
		TopLeads:                cfg.Context.TopLeadsLimit,
		LeadIndex:               cfg.Context.LeadIndexLimit,
		Detail:                  cfg.Context.DetailLimit,
		DetailExtra:             cfg.Context.DetailExtraLimit,
		MessagesPerConversation: cfg.Context.MessagesPerConversation,
		TodayFocus:              cfg.Context.TodayFocusLimit,
	}
}

// Request identifies who is asking and what about. The question is only
// used to rescue literally mentioned @handles into the detailed subset.
type Request struct {
	WorkspaceID int64
	ActorID     int64
	Role        string
	Question    string
	Now         time.Time
}

// MessageView is the compact message shape embedded in the snapshot.
type MessageView struct {
	Direction string    `json:"direction"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

// LeadDetail is the full per-lead view used for today_focus and
// top_leads.
type LeadDetail struct {
	Handle          string            `json:"handle"`
	Name            string            `json:"name"`
	Phase           string            `json:"phase"`
	Temperature     leads.Temperature `json:"temperature"`
	PriorityScore   int               `json:"priority_score"`
	PriorityReasons []string          `json:"priority_reasons"`
	WaitingForReply bool              `json:"waiting_for_reply"`
	LastMessageAt   *time.Time        `json:"last_message_at,omitempty"`
	RecentMessages  []MessageView     `json:"recent_messages,omitempty"`
}

// LeadSummary is the flat lead_index entry: summary fields only, no
// message bodies beyond a short preview of the latest one.
type LeadSummary struct {
	Handle             string            `json:"handle"`
	Name               string            `json:"name"`
	Phase              string            `json:"phase"`
	Temperature        leads.Temperature `json:"temperature"`
	PriorityScore      int               `json:"priority_score"`
	WaitingForReply    bool              `json:"waiting_for_reply"`
	LastMessageAt      *time.Time        `json:"last_message_at,omitempty"`
	LastMessagePreview string            `json:"last_message_preview,omitempty"`
}

// Snapshot is the bounded inbox state handed to the model as context.
type Snapshot struct {
	GeneratedAt               time.Time     `json:"generated_at"`
	TotalVisibleConversations int           `json:"total_visible_conversations"`
	RankingMethod             string        `json:"ranking_method"`
	TodayFocus                []LeadDetail  `json:"today_focus"`
	TopLeads                  []LeadDetail  `json:"top_leads"`
	LeadIndex                 []LeadSummary `json:"lead_index"`
}

type Builder struct {
	store  ThreadReader
	limits Limits
}

func NewBuilder(store ThreadReader, limits Limits) *Builder {
	return &Builder{store: store, limits: limits}
}

// candidate carries one visible thread through both scoring passes.
type candidate struct {
	thread   *leads.Thread
	phase    string
	temp     leads.Temperature
	alert    *leads.Alert
	insight  leads.Insight
	detailed bool
}

// Build runs the two-phase ranking: a cheap thread-only score over
// every visible conversation, then message detail for only the winners
// (plus any @handle the question names), then a final rescore.
func (b *Builder) Build(ctx context.Context, req Request) (*Snapshot, error) {
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	threads, err := b.store.ListRecentThreads(ctx, req.WorkspaceID, b.limits.ThreadLimit)
	if err != nil {
		return nil, fmt.Errorf("loading threads: %w", err)
	}

	visible := leads.FilterVisible(req.Role, req.ActorID, threads)
	if len(visible) == 0 {
		return &Snapshot{
			GeneratedAt:               now,
			TotalVisibleConversations: 0,
			RankingMethod:             "no conversations are visible to this user yet; the inbox is empty or every thread is assigned elsewhere",
			TodayFocus:                []LeadDetail{},
			TopLeads:                  []LeadDetail{},
			LeadIndex:                 []LeadSummary{},
		}, nil
	}

	ids := make([]int64, len(visible))
	for i, t := range visible {
		ids[i] = t.ID
	}

	// Enrichment failures degrade to empty metadata; the snapshot
	// still ships.
	tagsByThread, err := b.store.TagsForThreads(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("tag lookup failed, ranking without temperature")
		tagsByThread = map[int64][]string{}
	}
	alertsByThread, err := b.store.OpenAlertsForThreads(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("alert lookup failed, ranking without alerts")
		alertsByThread = map[int64]*leads.Alert{}
	}

	cands := make([]*candidate, len(visible))
	for i, t := range visible {
		tags := tagsByThread[t.ID]
		c := &candidate{
			thread: t,
			phase:  leads.ResolvePhase(tags, t.LeadStatus),
			temp:   leads.ResolveTemperature(tags),
			alert:  alertsByThread[t.ID],
		}
		c.insight = leads.Score(leads.ScoreInput{
			Now:         now,
			Thread:      t,
			Phase:       c.phase,
			Temperature: c.temp,
			Alert:       c.alert,
		})
		cands[i] = c
	}

	detailSet := b.selectDetailSet(cands, req.Question)
	b.fetchDetail(ctx, detailSet, now)

	sortByScore(cands)

	snap := &Snapshot{
		GeneratedAt:               now,
		TotalVisibleConversations: len(cands),
		RankingMethod: fmt.Sprintf(
			"priority score over %d visible conversations, message detail fetched for the top %d",
			len(cands), len(detailSet)),
		TodayFocus: []LeadDetail{},
		TopLeads:   []LeadDetail{},
		LeadIndex:  []LeadSummary{},
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, c := range cands {
		if len(snap.TodayFocus) >= b.limits.TodayFocus {
			break
		}
		if at := c.thread.LastMessageAt; at != nil && !at.Before(dayStart) {
			snap.TodayFocus = append(snap.TodayFocus, c.detail())
		}
	}
	for i, c := range cands {
		if i >= b.limits.TopLeads {
			break
		}
		snap.TopLeads = append(snap.TopLeads, c.detail())
	}
	for i, c := range cands {
		if i >= b.limits.LeadIndex {
			break
		}
		snap.LeadIndex = append(snap.LeadIndex, c.summary())
	}
	return snap, nil
}

var handleMentionRe = regexp.MustCompile(`@([a-zA-Z0-9._]+)`)

// selectDetailSet picks the top preliminary-ranked candidates plus any
// thread whose handle the question names, so "tell me about @someone"
// always gets message detail even for a low-ranked lead.
func (b *Builder) selectDetailSet(cands []*candidate, question string) []*candidate {
	ranked := make([]*candidate, len(cands))
	copy(ranked, cands)
	sortByScore(ranked)

	var detail []*candidate
	for i, c := range ranked {
		if i >= b.limits.Detail {
			break
		}
		c.detailed = true
		detail = append(detail, c)
	}

	mentions := handleMentionRe.FindAllStringSubmatch(question, -1)
	extra := 0
	for _, m := range mentions {
		if extra >= b.limits.DetailExtra {
			break
		}
		handle := strings.ToLower(m[1])
		for _, c := range ranked {
			if c.detailed {
				continue
			}
			if handleMatches(c.thread.PeerHandle, handle) {
				c.detailed = true
				detail = append(detail, c)
				extra++
				break
			}
		}
	}
	return detail
}

func handleMatches(peerHandle, mention string) bool {
	h := strings.ToLower(strings.TrimPrefix(peerHandle, "@"))
	if h == "" {
		return false
	}
	return h == mention || strings.Contains(h, mention) || strings.Contains(mention, h)
}

// fetchDetail loads recent messages for the detailed subset with
// bounded concurrency, then rescores each with its message-derived
// intent signals. A failed fetch leaves the preliminary score in place.
func (b *Builder) fetchDetail(ctx context.Context, detail []*candidate, now time.Time) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailConcurrency)

	for _, c := range detail {
		c := c
		g.Go(func() error {
			msgs, err := b.store.RecentMessages(gctx, c.thread.ID, b.limits.MessagesPerConversation)
			if err != nil {
				log.Warn().Err(err).Int64("thread_id", c.thread.ID).Msg("message fetch failed, keeping preliminary score")
				return nil
			}
			insight := leads.Score(leads.ScoreInput{
				Now:            now,
				Thread:         c.thread,
				Phase:          c.phase,
				Temperature:    c.temp,
				Alert:          c.alert,
				RecentMessages: msgs,
			})
			mu.Lock()
			c.insight = insight
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
}

// sortByScore orders by final score descending, recency descending on
// ties. Stable so equal threads keep their store order.
func sortByScore(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.insight.PriorityScore != b.insight.PriorityScore {
			return a.insight.PriorityScore > b.insight.PriorityScore
		}
		return touchTime(a.thread).After(touchTime(b.thread))
	})
}

func touchTime(t *leads.Thread) time.Time {
	if t.LastMessageAt != nil {
		return *t.LastMessageAt
	}
	return t.UpdatedAt
}

func (c *candidate) detail() LeadDetail {
	d := LeadDetail{
		Handle:          c.thread.PeerHandle,
		Name:            c.thread.PeerName,
		Phase:           c.insight.Phase,
		Temperature:     c.insight.Temperature,
		PriorityScore:   c.insight.PriorityScore,
		PriorityReasons: c.insight.PriorityReasons,
		WaitingForReply: c.insight.WaitingForReply,
		LastMessageAt:   c.thread.LastMessageAt,
	}
	for _, m := range c.insight.RecentMessages {
		d.RecentMessages = append(d.RecentMessages, MessageView{
			Direction: m.Direction,
			Text:      m.Text,
			SentAt:    m.SentAt,
		})
	}
	return d
}

const previewLen = 120

func (c *candidate) summary() LeadSummary {
	preview := c.thread.LastMessageText
	if len(preview) > previewLen {
		cut := previewLen
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "…"
	}
	return LeadSummary{
		Handle:             c.thread.PeerHandle,
		Name:               c.thread.PeerName,
		Phase:              c.insight.Phase,
		Temperature:        c.insight.Temperature,
		PriorityScore:      c.insight.PriorityScore,
		WaitingForReply:    c.insight.WaitingForReply,
		LastMessageAt:      c.thread.LastMessageAt,
		LastMessagePreview: preview,
	}
}
