package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acqboard/internal/leads"
	"github.com/acqboard/pkg/models"
)

type fakeStore struct {
	mu           sync.Mutex
	threads      []*leads.Thread
	tags         map[int64][]string
	alerts       map[int64]*leads.Alert
	messages     map[int64][]leads.Message
	messageCalls []int64
	listErr      error
	tagsErr      error
	msgErr       map[int64]error
}

func (f *fakeStore) ListRecentThreads(ctx context.Context, workspaceID int64, limit int) ([]*leads.Thread, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if len(f.threads) > limit {
		return f.threads[:limit], nil
	}
	return f.threads, nil
}

func (f *fakeStore) TagsForThreads(ctx context.Context, ids []int64) (map[int64][]string, error) {
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return f.tags, nil
}

func (f *fakeStore) OpenAlertsForThreads(ctx context.Context, ids []int64) (map[int64]*leads.Alert, error) {
	return f.alerts, nil
}

func (f *fakeStore) RecentMessages(ctx context.Context, threadID int64, limit int) ([]leads.Message, error) {
	f.mu.Lock()
	f.messageCalls = append(f.messageCalls, threadID)
	f.mu.Unlock()
	if err := f.msgErr[threadID]; err != nil {
		return nil, err
	}
	return f.messages[threadID], nil
}

func testLimits() Limits {
	return Limits{
		ThreadLimit:             220,
		TopLeads:                18,
		LeadIndex:               60,
		Detail:                  18,
		DetailExtra:             6,
		MessagesPerConversation: 14,
		TodayFocus:              10,
	}
}

func thread(id int64, handle string, lastAt time.Time) *leads.Thread {
	at := lastAt
	return &leads.Thread{
		ID:             id,
		WorkspaceID:    1,
		AccountID:      "acct",
		PeerID:         fmt.Sprintf("peer-%d", id),
		PeerHandle:     handle,
		PeerName:       handle,
		LastMessageAt:  &at,
		LastMessageDir: leads.DirectionInbound,
		UpdatedAt:      at,
	}
}

func TestBuildEmptySnapshotForInvisibleSetter(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := &fakeStore{
		threads: []*leads.Thread{thread(1, "alice", now), thread(2, "bob", now)},
	}
	b := NewBuilder(store, testLimits())

	snap, err := b.Build(context.Background(), Request{
		WorkspaceID: 1, ActorID: 99, Role: models.RoleSetter, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, snap.TotalVisibleConversations)
	assert.NotEmpty(t, snap.RankingMethod)
	assert.Empty(t, snap.TopLeads)
	assert.Empty(t, snap.LeadIndex)
	assert.Empty(t, store.messageCalls, "empty snapshot must not fetch messages")
}

func TestBuildDetailOnlyForTopRanked(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	limits := testLimits()
	limits.Detail = 2

	store := &fakeStore{
		tags:   map[int64][]string{1: {"Hot Lead"}},
		alerts: map[int64]*leads.Alert{},
		messages: map[int64][]leads.Message{
			1: {{ThreadID: 1, Direction: leads.DirectionInbound, Text: "what's the price?", SentAt: now}},
		},
		threads: []*leads.Thread{
			thread(1, "alice", now.Add(-1*time.Hour)),
			thread(2, "bob", now.Add(-50*time.Hour)),
			thread(3, "carol", now.Add(-80*time.Hour)),
			thread(4, "dave", now.Add(-100*time.Hour)),
		},
	}
	b := NewBuilder(store, limits)

	snap, err := b.Build(context.Background(), Request{
		WorkspaceID: 1, ActorID: 1, Role: models.RoleOwner, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, snap.TotalVisibleConversations)
	assert.Len(t, store.messageCalls, 2, "only the detailed subset gets message fetches")

	require.NotEmpty(t, snap.TopLeads)
	assert.Equal(t, "alice", snap.TopLeads[0].Handle)
	assert.NotEmpty(t, snap.TopLeads[0].RecentMessages)
}

func TestBuildMentionedHandleRescuedIntoDetail(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	limits := testLimits()
	limits.Detail = 1

	// bob answered long ago and is waiting on nobody, so he ranks out of
	// the single detail slot on score alone.
	bob := thread(2, "bob_fitness", now.Add(-200*time.Hour))
	bob.LastMessageDir = leads.DirectionOutbound

	store := &fakeStore{
		threads: []*leads.Thread{
			thread(1, "alice", now.Add(-1*time.Hour)),
			bob,
		},
	}
	b := NewBuilder(store, limits)

	_, err := b.Build(context.Background(), Request{
		WorkspaceID: 1, ActorID: 1, Role: models.RoleCoach,
		Question: "what should I say to @bob_fitness next?",
		Now:      now,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, store.messageCalls,
		"the literally mentioned handle joins the detail set even when ranked out")
}

func TestBuildTodayFocusOnlyIncludesTodaysTouches(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := &fakeStore{
		threads: []*leads.Thread{
			thread(1, "today", now.Add(-2*time.Hour)),
			thread(2, "yesterday", now.Add(-20*time.Hour)),
		},
	}
	b := NewBuilder(store, testLimits())

	snap, err := b.Build(context.Background(), Request{
		WorkspaceID: 1, ActorID: 1, Role: models.RoleOwner, Now: now,
	})
	require.NoError(t, err)
	require.Len(t, snap.TodayFocus, 1)
	assert.Equal(t, "today", snap.TodayFocus[0].Handle)
	assert.Len(t, snap.LeadIndex, 2)
}

func TestBuildPreviewTruncatesOnRuneBoundary(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	long := thread(1, "alice", now)
	// The ASCII prefix shifts the 3-byte runes so the preview byte cap
	// lands mid-rune.
	long.LastMessageText = "x" + strings.Repeat("値", 50)

	store := &fakeStore{threads: []*leads.Thread{long}}
	b := NewBuilder(store, testLimits())

	snap, err := b.Build(context.Background(), Request{
		WorkspaceID: 1, ActorID: 1, Role: models.RoleOwner, Now: now,
	})
	require.NoError(t, err)
	require.Len(t, snap.LeadIndex, 1)
	preview := snap.LeadIndex[0].LastMessagePreview
	assert.True(t, utf8.ValidString(preview), "preview must stay valid UTF-8")
	assert.True(t, strings.HasSuffix(preview, "…"))
}

func TestBuildSurvivesTagLookupFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := &fakeStore{
		threads: []*leads.Thread{thread(1, "alice", now)},
		tagsErr: errors.New("relation does not exist"),
	}
	b := NewBuilder(store, testLimits())

	snap, err := b.Build(context.Background(), Request{
		WorkspaceID: 1, ActorID: 1, Role: models.RoleOwner, Now: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalVisibleConversations)
	assert.Equal(t, leads.TempNone, snap.TopLeads[0].Temperature)
}

func TestBuildMessageFetchFailureKeepsPreliminaryScore(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	store := &fakeStore{
		threads: []*leads.Thread{thread(1, "alice", now)},
		msgErr:  map[int64]error{1: errors.New("timeout")},
	}
	b := NewBuilder(store, testLimits())

	snap, err := b.Build(context.Background(), Request{
		WorkspaceID: 1, ActorID: 1, Role: models.RoleOwner, Now: now,
	})
	require.NoError(t, err)
	require.Len(t, snap.TopLeads, 1)
	assert.Empty(t, snap.TopLeads[0].RecentMessages)
}

func TestBuildListFailurePropagates(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}
	b := NewBuilder(store, testLimits())

	_, err := b.Build(context.Background(), Request{WorkspaceID: 1, ActorID: 1, Role: models.RoleOwner})
	require.Error(t, err)
}
