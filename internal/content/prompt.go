package content

import (
	"fmt"
	"strings"

	"github.com/acqboard/internal/youtube"
)

// buildWeeklyPrompt assembles the idea-generation prompt from whatever
// corpus and channel signals survived the pipeline. Both inputs may be
// nil.
func buildWeeklyPrompt(corpus *Corpus, signals *youtube.ChannelSignals, phaseFilter string) string {
	var b strings.Builder
	b.WriteString("You are a content strategist for a coaching business that gets clients through Instagram DMs.\n")
	b.WriteString("Generate 10 short-form content ideas grounded in what the audience actually says and asks.\n\n")

	if corpus != nil && corpus.MessageCount > 0 {
		b.WriteString(fmt.Sprintf("## Audience signals (last %d days, %d messages from %d conversations)\n",
			corpus.WindowDays, corpus.MessageCount, corpus.SampledThreads))
		writeFreqSection(&b, "Common objections", corpus.Objections)
		writeFreqSection(&b, "Pain points", corpus.PainPoints)
		writeFreqSection(&b, "Questions they ask", corpus.Questions)
		writeFreqSection(&b, "Language that converts", corpus.Convincers)
		b.WriteString("\n")
	} else {
		b.WriteString("## Audience signals\nNo conversation data available; lean on general coaching-audience patterns.\n\n")
	}

	if signals != nil && signals.VideoCount > 0 {
		b.WriteString("## What already performs on their channel\n")
		if signals.ChannelTitle != "" {
			b.WriteString(fmt.Sprintf("Channel: %s (%d recent videos, %d total views)\n",
				signals.ChannelTitle, signals.VideoCount, signals.TotalViews))
		}
		if len(signals.TopTopics) > 0 {
			topics := make([]string, 0, len(signals.TopTopics))
			for _, t := range signals.TopTopics {
				topics = append(topics, t.Topic)
			}
			b.WriteString("Recurring topics: " + strings.Join(topics, ", ") + "\n")
		}
		for _, v := range signals.TopVideos {
			b.WriteString(fmt.Sprintf("- %q (%d views)\n", v.Title, v.ViewCount))
		}
		b.WriteString("\n")
	}

	if phaseFilter != "" {
		b.WriteString(fmt.Sprintf("Focus the ideas on moving leads in the %q phase forward.\n\n", phaseFilter))
	}

	b.WriteString("Respond with JSON only, shaped as:\n")
	b.WriteString(`{"ideas": [{"title": "...", "description": "...", "phase": "...", "hook": "..."}]}`)
	b.WriteString("\nTitles must be distinct from each other. Keep descriptions to two sentences.")
	return b.String()
}

func writeFreqSection(b *strings.Builder, heading string, entries []FreqEntry) {
	if len(entries) == 0 {
		return
	}
	b.WriteString(heading + ":\n")
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("- %q (%dx)\n", e.Phrase, e.Count))
	}
}

// buildPiecePrompt asks for one follow-on artifact for an existing
// idea.
func buildPiecePrompt(idea *Idea, kind string) string {
	var b strings.Builder
	b.WriteString("You are a content strategist for a coaching business.\n")
	b.WriteString(fmt.Sprintf("Content idea: %q\n", idea.Title))
	if idea.Description != "" {
		b.WriteString(fmt.Sprintf("Description: %s\n", idea.Description))
	}
	if idea.Hook != nil && *idea.Hook != "" {
		b.WriteString(fmt.Sprintf("Existing hook: %s\n", *idea.Hook))
	}
	b.WriteString("\n")

	switch kind {
	case PieceHook:
		b.WriteString("Write one scroll-stopping opening line for this idea. Respond with the line only, no quotes.")
	case PieceOutline:
		b.WriteString("Write a beat-by-beat outline for a 60-second video on this idea.\n")
		b.WriteString(`Respond with JSON only: {"beats": [{"label": "...", "seconds": 0, "note": "..."}]}`)
	case PieceCTA:
		b.WriteString("Write one call to action that invites viewers to DM a keyword. Respond with the CTA only.")
	case PieceScript:
		b.WriteString("Write a full 60-second talking-head script for this idea, conversational tone, no camera directions.")
	}
	return b.String()
}
