package youtube

import (
	"regexp"
	"sort"
	"strings"
)

// stopwords are filtered out of title/tag tokenization so generic
// filler never registers as a "topic".
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "up": true, "about": true,
	"into": true, "over": true, "after": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"i": true, "you": true, "your": true, "my": true, "me": true, "we": true,
	"our": true, "it": true, "its": true, "this": true, "that": true,
	"these": true, "those": true, "what": true, "when": true, "where": true,
	"why": true, "how": true, "all": true, "any": true, "can": true,
	"not": true, "no": true, "so": true, "if": true, "then": true,
	"than": true, "too": true, "very": true, "just": true, "more": true,
	"most": true, "get": true, "got": true, "new": true, "vs": true,
	"video": true, "youtube": true, "shorts": true, "ep": true, "episode": true,
}

var tokenRe = regexp.MustCompile(`[a-z0-9']+`)

// TopicCount is one token with its weighted frequency.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// VideoStat is the compact per-video entry carried into the idea
// prompt.
type VideoStat struct {
	Title     string `json:"title"`
	ViewCount int64  `json:"view_count"`
}

// ChannelSignals summarizes what already performs on the workspace's
// channel. The idea generator biases toward adjacent topics.
type ChannelSignals struct {
	ChannelTitle string       `json:"channel_title"`
	VideoCount   int          `json:"video_count"`
	TotalViews   int64        `json:"total_views"`
	TopTopics    []TopicCount `json:"top_topics"`
	TopVideos    []VideoStat  `json:"top_videos"`
}

const (
	maxTopics    = 15
	maxTopVideos = 8
)

// BuildSignals tokenizes titles and tags across the channel's videos,
// filters stopwords, and weights each token by how the carrying video
// performed relative to the channel average.
func BuildSignals(channel *Channel, videos []Video) *ChannelSignals {
	sig := &ChannelSignals{VideoCount: len(videos)}
	if channel != nil {
		sig.ChannelTitle = channel.Title
	}
	if len(videos) == 0 {
		return sig
	}

	var totalViews int64
	for _, v := range videos {
		totalViews += v.ViewCount
	}
	sig.TotalViews = totalViews
	avgViews := totalViews / int64(len(videos))

	counts := map[string]int{}
	for _, v := range videos {
		weight := 1
		if avgViews > 0 && v.ViewCount > avgViews {
			weight = 2
		}
		for _, tok := range Tokenize(v.Title) {
			counts[tok] += weight
		}
		for _, tag := range v.Tags {
			for _, tok := range Tokenize(tag) {
				counts[tok] += weight
			}
		}
	}

	for topic, count := range counts {
		sig.TopTopics = append(sig.TopTopics, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(sig.TopTopics, func(i, j int) bool {
		if sig.TopTopics[i].Count != sig.TopTopics[j].Count {
			return sig.TopTopics[i].Count > sig.TopTopics[j].Count
		}
		return sig.TopTopics[i].Topic < sig.TopTopics[j].Topic
	})
	if len(sig.TopTopics) > maxTopics {
		sig.TopTopics = sig.TopTopics[:maxTopics]
	}

	ranked := make([]Video, len(videos))
	copy(ranked, videos)
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].ViewCount > ranked[j].ViewCount })
	for i, v := range ranked {
		if i >= maxTopVideos {
			break
		}
		sig.TopVideos = append(sig.TopVideos, VideoStat{Title: v.Title, ViewCount: v.ViewCount})
	}
	return sig
}

// Tokenize lowercases, splits on non-alphanumerics, and drops
// stopwords and one-character fragments.
func Tokenize(text string) []string {
	var out []string
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		tok = strings.Trim(tok, "'")
		if len(tok) < 2 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}
