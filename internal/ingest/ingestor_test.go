package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acqboard/internal/leads"
)

type memStore struct {
	threads  map[string]*leads.Thread
	messages map[string]*leads.Message
	payloads map[string][]byte
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		threads:  map[string]*leads.Thread{},
		messages: map[string]*leads.Message{},
		payloads: map[string][]byte{},
	}
}

func threadKey(up leads.ThreadUpsert) string {
	return fmt.Sprintf("%d/%s/%s", up.WorkspaceID, up.AccountID, up.PeerID)
}

func (m *memStore) UpsertThread(ctx context.Context, up leads.ThreadUpsert) (*leads.Thread, error) {
	key := threadKey(up)
	t, ok := m.threads[key]
	if !ok {
		m.nextID++
		t = &leads.Thread{ID: m.nextID, WorkspaceID: up.WorkspaceID, AccountID: up.AccountID, PeerID: up.PeerID, LeadStatus: "open"}
		m.threads[key] = t
	}
	at := up.SentAt
	t.LastMessageText = up.Text
	t.LastMessageDir = up.Direction
	t.LastMessageAt = &at
	t.IsSpam = t.IsSpam || up.IsSpam
	if up.PeerName != "" {
		t.PeerName = up.PeerName
	}
	if up.PeerHandle != "" {
		t.PeerHandle = up.PeerHandle
	}
	return t, nil
}

func (m *memStore) UpsertMessage(ctx context.Context, msg *leads.Message) (bool, error) {
	if _, exists := m.messages[msg.ProviderID]; exists {
		return false, nil
	}
	m.nextID++
	msg.ID = m.nextID
	stored := *msg
	m.messages[msg.ProviderID] = &stored
	return true, nil
}

func (m *memStore) UpdateMessagePayload(ctx context.Context, providerMessageID string, rawPayload []byte) error {
	m.payloads[providerMessageID] = rawPayload
	return nil
}

type mapResolver map[string]int64

func (r mapResolver) WorkspaceForAccount(ctx context.Context, accountID string) (int64, bool, error) {
	ws, ok := r[accountID]
	return ws, ok, nil
}

type fakeMirror struct {
	calls []string
}

func (f *fakeMirror) MirrorURL(ctx context.Context, workspaceID int64, sourceURL string) (string, error) {
	f.calls = append(f.calls, sourceURL)
	return "https://cdn.example.com/mirrored", nil
}

func webhookBodyFor(mid, senderID, recipientID, text string) []byte {
	body := map[string]interface{}{
		"object": "instagram",
		"entry": []map[string]interface{}{{
			"id":   "acct-1",
			"time": 1700000000,
			"messaging": []map[string]interface{}{{
				"sender":    map[string]string{"id": senderID, "username": "lead_handle"},
				"recipient": map[string]string{"id": recipientID},
				"timestamp": 1700000000000,
				"message":   map[string]interface{}{"mid": mid, "text": text},
			}},
		}},
	}
	data, _ := json.Marshal(body)
	return data
}

func TestProcessInboundMessage(t *testing.T) {
	store := newMemStore()
	ing := NewIngestor(store, mapResolver{"acct-1": 7}, nil)

	stats := ing.Process(context.Background(), webhookBodyFor("mid-1", "peer-9", "acct-1", "hey, what's your pricing?"))
	assert.Equal(t, 1, stats.Inserted)

	msg := store.messages["mid-1"]
	require.NotNil(t, msg)
	assert.Equal(t, leads.DirectionInbound, msg.Direction)
	assert.Equal(t, int64(7), msg.WorkspaceID)

	thread := store.threads["7/acct-1/peer-9"]
	require.NotNil(t, thread)
	assert.Equal(t, "lead_handle", thread.PeerHandle)
	assert.False(t, thread.IsSpam)
}

func TestProcessOutboundEchoNormalizesDirection(t *testing.T) {
	store := newMemStore()
	ing := NewIngestor(store, mapResolver{"acct-1": 7}, nil)

	ing.Process(context.Background(), webhookBodyFor("mid-2", "acct-1", "peer-9", "thanks for reaching out!"))

	msg := store.messages["mid-2"]
	require.NotNil(t, msg)
	assert.Equal(t, leads.DirectionOutbound, msg.Direction)

	thread := store.threads["7/acct-1/peer-9"]
	require.NotNil(t, thread, "the thread is keyed by the peer, not the sender")
}

func TestProcessIdempotentRedelivery(t *testing.T) {
	store := newMemStore()
	ing := NewIngestor(store, mapResolver{"acct-1": 7}, nil)

	body := webhookBodyFor("mid-3", "peer-9", "acct-1", "hello")
	first := ing.Process(context.Background(), body)
	second := ing.Process(context.Background(), body)

	assert.Equal(t, 1, first.Inserted)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, store.messages, 1, "redelivery must not duplicate the message row")
}

func TestProcessFlagsSpamInbound(t *testing.T) {
	store := newMemStore()
	ing := NewIngestor(store, mapResolver{"acct-1": 7}, nil)

	ing.Process(context.Background(), webhookBodyFor("mid-4", "peer-9", "acct-1",
		"DM me now!!! guaranteed return on crypto, link: bit.ly/x"))

	thread := store.threads["7/acct-1/peer-9"]
	require.NotNil(t, thread)
	assert.True(t, thread.IsSpam)
}

func TestProcessUnknownAccountDropped(t *testing.T) {
	store := newMemStore()
	ing := NewIngestor(store, mapResolver{}, nil)

	stats := ing.Process(context.Background(), webhookBodyFor("mid-5", "peer-9", "acct-1", "hi"))
	assert.Equal(t, 0, stats.Inserted)
	assert.Empty(t, store.messages)
}

func TestProcessMirrorsAttachments(t *testing.T) {
	store := newMemStore()
	mirror := &fakeMirror{}
	ing := NewIngestor(store, mapResolver{"acct-1": 7}, mirror)

	body := map[string]interface{}{
		"object": "instagram",
		"entry": []map[string]interface{}{{
			"id": "acct-1",
			"messaging": []map[string]interface{}{{
				"sender":    map[string]string{"id": "peer-9"},
				"recipient": map[string]string{"id": "acct-1"},
				"timestamp": 1700000000000,
				"message": map[string]interface{}{
					"mid": "mid-6",
					"attachments": []map[string]interface{}{
						{"type": "image", "payload": map[string]string{"url": "https://provider.example/img.jpg"}},
					},
				},
			}},
		}},
	}
	data, _ := json.Marshal(body)

	ing.Process(context.Background(), data)
	require.Len(t, mirror.calls, 1)

	patched := store.payloads["mid-6"]
	require.NotEmpty(t, patched)
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(patched, &parsed))
	assert.Contains(t, parsed, "stored_media_urls")
}

func TestProcessGarbageBodyAcknowledged(t *testing.T) {
	ing := NewIngestor(newMemStore(), mapResolver{}, nil)
	stats := ing.Process(context.Background(), []byte("not json at all"))
	assert.Zero(t, stats.Events)
}
