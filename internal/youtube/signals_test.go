package youtube

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeFiltersStopwordsAndFragments(t *testing.T) {
	toks := Tokenize("How I Signed 5 Clients in a Week")
	if diff := cmp.Diff([]string{"signed", "clients", "week"}, toks); diff != "" {
		t.Errorf("token mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeLowercases(t *testing.T) {
	assert.Equal(t, []string{"cold", "outreach"}, Tokenize("COLD Outreach"))
}

func TestBuildSignalsEmptyChannel(t *testing.T) {
	sig := BuildSignals(nil, nil)
	assert.Zero(t, sig.VideoCount)
	assert.Empty(t, sig.TopTopics)
}

func TestBuildSignalsWeightsOverperformers(t *testing.T) {
	now := time.Now()
	videos := []Video{
		{Title: "pricing objections explained", ViewCount: 10000, PublishedAt: now},
		{Title: "morning routine", ViewCount: 100, PublishedAt: now},
		{Title: "morning routine part two", ViewCount: 100, PublishedAt: now},
	}
	sig := BuildSignals(&Channel{Title: "Coach TV"}, videos)

	require.NotEmpty(t, sig.TopTopics)
	counts := map[string]int{}
	for _, tc := range sig.TopTopics {
		counts[tc.Topic] = tc.Count
	}
	assert.Equal(t, 2, counts["pricing"], "above-average videos count double")
	assert.Equal(t, 2, counts["objections"])
	assert.Equal(t, 2, counts["morning"], "two average videos still accumulate")

	require.NotEmpty(t, sig.TopVideos)
	assert.Equal(t, "pricing objections explained", sig.TopVideos[0].Title)
	assert.Equal(t, "Coach TV", sig.ChannelTitle)
}

func TestBuildSignalsIncludesTags(t *testing.T) {
	videos := []Video{
		{Title: "untitled", Tags: []string{"fitness coaching", "client acquisition"}, ViewCount: 1},
	}
	sig := BuildSignals(nil, videos)

	topics := map[string]bool{}
	for _, tc := range sig.TopTopics {
		topics[tc.Topic] = true
	}
	assert.True(t, topics["fitness"])
	assert.True(t, topics["acquisition"])
}
