package leads

import (
	"strings"
)

// Normalized pipeline phase tokens.
const (
	PhaseOpen         = "open"
	PhaseDownsell     = "downsell"
	PhaseQualified    = "qualified"
	PhaseDisqualified = "disqualified"
	PhaseNoShow       = "no_show"
	PhaseBookedCall   = "booked_call"
	PhaseFollowUp     = "follow_up"
	PhaseNewLead      = "new_lead"
	PhaseClosedWon    = "closed_won"
	PhaseClosedLost   = "closed_lost"
	PhaseRemoved      = "removed"
)

const slugMaxLen = 48

// phaseMatcher pairs a phase token with its recognizer. Order matters:
// the slice index is the phase's priority, and the first match wins.
// "qualified" must reject the disqualified spellings it is a substring of.
type phaseMatcher struct {
	phase string
	match func(s string) bool
}

var phaseMatchers = []phaseMatcher{
	{PhaseDownsell, func(s string) bool {
		return strings.Contains(s, "downsell") || strings.Contains(s, "down sell")
	}},
	{PhaseQualified, func(s string) bool {
		return strings.Contains(s, "qualif") &&
			!strings.Contains(s, "disqualif") &&
			!strings.Contains(s, "unqualif") &&
			!strings.Contains(s, "not qualif")
	}},
	{PhaseDisqualified, func(s string) bool {
		return strings.Contains(s, "disqualif") ||
			strings.Contains(s, "unqualif") ||
			strings.Contains(s, "not qualif")
	}},
	{PhaseNoShow, func(s string) bool {
		return strings.Contains(s, "no show") || strings.Contains(s, "no-show") || strings.Contains(s, "noshow")
	}},
	{PhaseBookedCall, func(s string) bool {
		return strings.Contains(s, "booked") || strings.Contains(s, "book a call") || strings.Contains(s, "call set")
	}},
	{PhaseFollowUp, func(s string) bool {
		return strings.Contains(s, "follow")
	}},
	{PhaseNewLead, func(s string) bool {
		return strings.Contains(s, "new lead") || strings.Contains(s, "new_lead")
	}},
	{PhaseClosedWon, func(s string) bool {
		return strings.Contains(s, "won") || strings.Contains(s, "closed-won")
	}},
	{PhaseClosedLost, func(s string) bool {
		return strings.Contains(s, "lost") || strings.Contains(s, "closed-lost")
	}},
}

// matchPhase resolves free text to a phase token and its priority
// index. Returns ok=false when nothing in the fixed vocabulary matches.
func matchPhase(text string) (phase string, index int, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", 0, false
	}
	for i, m := range phaseMatchers {
		if m.match(lower) {
			return m.phase, i, true
		}
	}
	return "", 0, false
}

// ResolvePhase maps a conversation's applied tags and stored lead
// status to a single normalized phase. When multiple tags resolve, the
// phase with the lowest priority index wins; ties keep first-seen
// order. Unrecognized tags are ignored; an unrecognized non-empty
// status falls back to its slug. Default is "open".
func ResolvePhase(tagNames []string, leadStatus string) string {
	best := ""
	bestIdx := len(phaseMatchers)

	for _, name := range tagNames {
		phase, idx, ok := matchPhase(name)
		if !ok {
			continue
		}
		if idx < bestIdx {
			best = phase
			bestIdx = idx
		}
	}
	if best != "" {
		return best
	}

	status := strings.TrimSpace(leadStatus)
	if status == "" {
		return PhaseOpen
	}
	if phase, _, ok := matchPhase(status); ok {
		return phase
	}
	if strings.EqualFold(status, PhaseOpen) || strings.EqualFold(status, PhaseRemoved) {
		return strings.ToLower(status)
	}
	return Slug(status)
}

// ResolveTemperature derives hot/warm/cold from tag names. The first
// recognized temperature wins, hottest first when one tag carries
// several words.
func ResolveTemperature(tagNames []string) Temperature {
	for _, name := range tagNames {
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "hot"):
			return TempHot
		case strings.Contains(lower, "warm"):
			return TempWarm
		case strings.Contains(lower, "cold"):
			return TempCold
		}
	}
	return TempNone
}

// Slug normalizes arbitrary text into a lowercase underscore token
// capped at 48 characters.
func Slug(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	slug := strings.Trim(b.String(), "_")
	if len(slug) > slugMaxLen {
		slug = slug[:slugMaxLen]
		slug = strings.Trim(slug, "_")
	}
	if slug == "" {
		return PhaseOpen
	}
	return slug
}
