package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acqboard/internal/config"
	"github.com/acqboard/internal/ingest"
	"github.com/acqboard/internal/leads"
)

type recordingStore struct {
	threads  []leads.ThreadUpsert
	messages []*leads.Message
}

func (r *recordingStore) UpsertThread(_ context.Context, up leads.ThreadUpsert) (*leads.Thread, error) {
	r.threads = append(r.threads, up)
	return &leads.Thread{ID: int64(len(r.threads)), WorkspaceID: up.WorkspaceID}, nil
}

func (r *recordingStore) UpsertMessage(_ context.Context, m *leads.Message) (bool, error) {
	r.messages = append(r.messages, m)
	return true, nil
}

func (r *recordingStore) UpdateMessagePayload(context.Context, string, []byte) error {
	return nil
}

type staticResolver struct{ accounts map[string]int64 }

func (s staticResolver) WorkspaceForAccount(_ context.Context, accountID string) (int64, bool, error) {
	ws, ok := s.accounts[accountID]
	return ws, ok, nil
}

func newWebhookTestServer(store *recordingStore) *Server {
	cfg := &config.Config{}
	cfg.Webhook.VerifyToken = "shared-secret"

	ingestor := ingest.NewIngestor(store, staticResolver{accounts: map[string]int64{"acct-1": 7}}, nil)
	return NewServer(0, Deps{Config: cfg, Ingestor: ingestor})
}

func TestVerifyWebhookEchoesChallenge(t *testing.T) {
	srv := newWebhookTestServer(&recordingStore{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/webhooks/instagram?hub.mode=subscribe&hub.verify_token=shared-secret&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestVerifyWebhookRejectsBadToken(t *testing.T) {
	srv := newWebhookTestServer(&recordingStore{})

	for _, url := range []string{
		"/api/v1/webhooks/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345",
		"/api/v1/webhooks/instagram?hub.mode=unsubscribe&hub.verify_token=shared-secret&hub.challenge=12345",
		"/api/v1/webhooks/instagram",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code, url)
	}
}

func TestReceiveWebhookAcknowledgesGarbage(t *testing.T) {
	store := &recordingStore{}
	srv := newWebhookTestServer(store)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/instagram",
		strings.NewReader("not even json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())
	assert.Empty(t, store.messages)
}

func TestReceiveWebhookIngestsMessages(t *testing.T) {
	store := &recordingStore{}
	srv := newWebhookTestServer(store)

	body := `{
		"object": "instagram",
		"entry": [{
			"id": "acct-1",
			"time": 1700000000,
			"messaging": [{
				"sender": {"id": "peer-9", "username": "jane"},
				"recipient": {"id": "acct-1"},
				"timestamp": 1700000000000,
				"message": {"mid": "mid.001", "text": "hey, loved your last post"}
			}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/instagram", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "EVENT_RECEIVED", rec.Body.String())
	require.Len(t, store.messages, 1)
	assert.Equal(t, "mid.001", store.messages[0].ProviderID)
	assert.Equal(t, "inbound", store.messages[0].Direction)
	assert.Equal(t, int64(7), store.messages[0].WorkspaceID)
}
