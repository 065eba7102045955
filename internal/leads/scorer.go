package leads

import (
	"fmt"
	"strings"
	"time"
)

const (
	scoreMin   = -100
	scoreMax   = 100
	maxReasons = 6

	// Intent scan bounds over lead-authored text.
	intentMessageWindow = 6
	positiveSignalEach  = 4
	positiveSignalCap   = 14
	negativeSignalEach  = -10
	negativeSignalCap   = -26
)

// Positive buying-intent language found in lead-authored messages.
var positiveIntentSignals = []string{
	"price",
	"pricing",
	"how much",
	"cost",
	"available",
	"availability",
	"book",
	"schedule",
	"call",
	"ready",
	"sign up",
	"let's do it",
	"lets do it",
	"i'm in",
	"im in",
	"interested",
	"where do i pay",
	"payment plan",
}

// Opt-out and timing-objection language.
var negativeIntentSignals = []string{
	"not interested",
	"stop messaging",
	"stop texting",
	"leave me alone",
	"unsubscribe",
	"no thanks",
	"too expensive",
	"can't afford",
	"cant afford",
	"maybe later",
	"next month",
	"not right now",
	"need to think",
}

// ScoreInput carries everything the scorer consumes. Recent messages
// are chronologically ordered and may be empty for the cheap
// thread-only pass.
type ScoreInput struct {
	Now            time.Time
	Thread         *Thread
	Phase          string
	Temperature    Temperature
	Alert          *Alert
	RecentMessages []Message
}

// Score computes the composite lead priority score. Additive terms,
// clamped to [-100, 100], each term contributing one human-readable
// reason. Reasons are deduplicated and capped at 6 in contribution
// order so every point swing stays auditable.
func Score(in ScoreInput) Insight {
	t := in.Thread
	insight := Insight{
		Thread:         t,
		Phase:          in.Phase,
		Temperature:    in.Temperature,
		RecentMessages: in.RecentMessages,
	}

	score := 0
	var reasons []string
	add := func(points int, reason string) {
		score += points
		reasons = append(reasons, reason)
	}

	switch in.Phase {
	case PhaseQualified:
		add(18, "qualified lead")
	case PhaseDisqualified:
		add(-40, "marked disqualified")
	default:
		if strings.TrimSpace(t.LeadStatus) != "" {
			add(5, fmt.Sprintf("active status: %s", in.Phase))
		}
	}

	if t.Priority {
		add(14, "manually flagged priority")
	}

	switch in.Temperature {
	case TempHot:
		add(30, "hot lead")
	case TempWarm:
		add(15, "warm lead")
	case TempCold:
		add(-8, "cold lead")
	}

	if in.Alert != nil {
		switch in.Alert.AlertType {
		case AlertHotLeadUnreplied:
			add(28, "open alert: hot lead waiting on a reply")
		case AlertQualifiedInactive:
			add(20, "open alert: qualified lead gone quiet")
		case AlertNoShowFollowup:
			add(24, "open alert: no-show needs follow-up")
		default:
			add(12, fmt.Sprintf("open alert: %s", in.Alert.AlertType))
		}
		if overdue := in.Alert.OverdueMinutes / 60; overdue > 0 {
			if overdue > 12 {
				overdue = 12
			}
			add(overdue, fmt.Sprintf("alert overdue %dh", in.Alert.OverdueMinutes/60))
		}
	}

	lastIn := lastInboundAt(t)
	lastOut := lastOutboundAt(t)

	if !lastIn.IsZero() && lastIn.After(lastOut) {
		insight.WaitingForReply = true
		wait := in.Now.Sub(lastIn)
		switch {
		case wait >= 24*time.Hour:
			add(18, "waiting on your reply for over a day")
		case wait >= 6*time.Hour:
			add(13, "waiting on your reply for hours")
		case wait > 0:
			add(8, "waiting on your reply")
		}
	}

	if lastTouch := lastTouchAt(t); !lastTouch.IsZero() {
		age := in.Now.Sub(lastTouch)
		switch {
		case age <= 4*time.Hour:
			add(8, "active in the last 4 hours")
		case age <= 24*time.Hour:
			add(5, "active in the last day")
		case age <= 72*time.Hour:
			add(2, "active in the last 3 days")
		}
	}

	pos, neg := scanIntent(leadAuthoredText(t, in.RecentMessages))
	if pos > 0 {
		add(pos, "buying-intent language in recent messages")
	}
	if neg < 0 {
		add(neg, "objection or opt-out language in recent messages")
	}

	insight.PriorityScore = clamp(score, scoreMin, scoreMax)
	insight.PriorityReasons = dedupeReasons(reasons, maxReasons)
	return insight
}

// lastInboundAt derives the newest inbound touch from the explicit
// column and the generic last-message fields gated by direction.
func lastInboundAt(t *Thread) time.Time {
	var ts time.Time
	if t.LastInboundAt != nil {
		ts = *t.LastInboundAt
	}
	if t.LastMessageAt != nil && t.LastMessageDir == DirectionInbound && t.LastMessageAt.After(ts) {
		ts = *t.LastMessageAt
	}
	return ts
}

func lastOutboundAt(t *Thread) time.Time {
	var ts time.Time
	if t.LastOutboundAt != nil {
		ts = *t.LastOutboundAt
	}
	if t.LastMessageAt != nil && t.LastMessageDir == DirectionOutbound && t.LastMessageAt.After(ts) {
		ts = *t.LastMessageAt
	}
	return ts
}

func lastTouchAt(t *Thread) time.Time {
	ts := lastInboundAt(t)
	if out := lastOutboundAt(t); out.After(ts) {
		ts = out
	}
	if t.LastMessageAt != nil && t.LastMessageAt.After(ts) {
		ts = *t.LastMessageAt
	}
	return ts
}

// leadAuthoredText gathers the last few inbound messages for intent
// scanning, falling back to the thread's cached last inbound text when
// no detailed messages were fetched.
func leadAuthoredText(t *Thread, messages []Message) string {
	var inbound []string
	for _, m := range messages {
		if m.Direction == DirectionInbound {
			inbound = append(inbound, m.Text)
		}
	}
	if len(inbound) > intentMessageWindow {
		inbound = inbound[len(inbound)-intentMessageWindow:]
	}
	if len(inbound) == 0 && t.LastMessageDir == DirectionInbound {
		return strings.ToLower(t.LastMessageText)
	}
	return strings.ToLower(strings.Join(inbound, "\n"))
}

// scanIntent counts distinct keyword hits, each capped independently.
func scanIntent(text string) (positive, negative int) {
	if text == "" {
		return 0, 0
	}
	for _, kw := range positiveIntentSignals {
		if strings.Contains(text, kw) {
			positive += positiveSignalEach
		}
	}
	if positive > positiveSignalCap {
		positive = positiveSignalCap
	}
	for _, kw := range negativeIntentSignals {
		if strings.Contains(text, kw) {
			negative += negativeSignalEach
		}
	}
	if negative < negativeSignalCap {
		negative = negativeSignalCap
	}
	return positive, negative
}

func dedupeReasons(reasons []string, limit int) []string {
	seen := make(map[string]bool, len(reasons))
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
