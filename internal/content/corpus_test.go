package content

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acqboard/internal/leads"
)

type fakeCorpusStore struct {
	threads         []*leads.Thread
	messages        []leads.Message
	windowedErr     error
	unfilteredCalls int
}

func (f *fakeCorpusStore) ListRecentThreads(ctx context.Context, workspaceID int64, limit int) ([]*leads.Thread, error) {
	return f.threads, nil
}

func (f *fakeCorpusStore) RecentInboundMessages(ctx context.Context, workspaceID int64, since time.Time, limit int) ([]leads.Message, error) {
	if f.windowedErr != nil {
		return nil, f.windowedErr
	}
	return f.messages, nil
}

func (f *fakeCorpusStore) AllRecentInboundMessages(ctx context.Context, workspaceID int64, limit int) ([]leads.Message, error) {
	f.unfilteredCalls++
	return f.messages, nil
}

func testCorpusLimits() CorpusLimits {
	return CorpusLimits{ThreadLimit: 1200, SampleLimit: 180, MessageLimit: 12000, WindowDays: 180}
}

func corpusThread(id int64, priority bool, lastAt time.Time) *leads.Thread {
	at := lastAt
	return &leads.Thread{
		ID:             id,
		LastMessageAt:  &at,
		LastMessageDir: leads.DirectionInbound,
		Priority:       priority,
	}
}

func TestCorpusBucketsMessages(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeCorpusStore{
		threads: []*leads.Thread{corpusThread(1, false, now)},
		messages: []leads.Message{
			{ThreadID: 1, Text: "honestly it's too expensive for me right now"},
			{ThreadID: 1, Text: "I'm struggling to stay consistent"},
			{ThreadID: 1, Text: "how do I know this will work for me?"},
			{ThreadID: 1, Text: "your program changed my whole routine"},
			{ThreadID: 1, Text: "ok"},
		},
	}
	b := NewCorpusBuilder(store, testCorpusLimits())

	corpus, err := b.Build(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.TotalThreads)
	assert.Equal(t, 5, corpus.MessageCount)

	require.NotEmpty(t, corpus.Objections)
	assert.Equal(t, "too expensive", corpus.Objections[0].Phrase)
	require.NotEmpty(t, corpus.PainPoints)
	assert.Equal(t, "struggling", corpus.PainPoints[0].Phrase)
	require.NotEmpty(t, corpus.Questions)
	require.NotEmpty(t, corpus.Convincers)
}

func TestCorpusSkipsUnsampledThreads(t *testing.T) {
	now := time.Now().UTC()
	limits := testCorpusLimits()
	limits.SampleLimit = 1

	store := &fakeCorpusStore{
		threads: []*leads.Thread{
			corpusThread(1, true, now),
			corpusThread(2, false, now.AddDate(0, 0, -100)),
		},
		messages: []leads.Message{
			{ThreadID: 1, Text: "too expensive"},
			{ThreadID: 2, Text: "too expensive"},
		},
	}
	b := NewCorpusBuilder(store, limits)

	corpus, err := b.Build(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.SampledThreads)
	assert.Equal(t, 1, corpus.MessageCount, "messages outside the sampled slice are ignored")
	require.NotEmpty(t, corpus.Objections)
	assert.Equal(t, 1, corpus.Objections[0].Count)
}

func TestCorpusFallsBackWhenWindowedQueryFails(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeCorpusStore{
		threads:     []*leads.Thread{corpusThread(1, false, now)},
		messages:    []leads.Message{{ThreadID: 1, Text: "am I stuck forever?"}},
		windowedErr: errors.New(`column "sent_at" does not exist`),
	}
	b := NewCorpusBuilder(store, testCorpusLimits())

	corpus, err := b.Build(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.unfilteredCalls)
	assert.Equal(t, 1, corpus.MessageCount)
}

func TestTruncateLineKeepsRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", truncateLine("short", 10))

	// 40 bytes of 4-byte emoji; a 10-byte cap falls mid-rune and must
	// back off to the previous boundary.
	line := strings.Repeat("\U0001F525", 10)
	out := truncateLine(line, 10)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("\U0001F525", 2)+"…", out)
}

func TestRankForSamplingPrefersPriorityAndWaiting(t *testing.T) {
	now := time.Now().UTC()
	recent := corpusThread(1, false, now.Add(-1*time.Hour))
	priority := corpusThread(2, true, now.AddDate(0, 0, -30))
	stale := corpusThread(3, false, now.AddDate(0, 0, -170))

	top := rankForSampling([]*leads.Thread{stale, recent, priority}, 2)
	require.Len(t, top, 2)
	ids := []int64{top[0].ID, top[1].ID}
	assert.Contains(t, ids, int64(1))
	assert.Contains(t, ids, int64(2))
}
