package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/acqboard/internal/leads"
	"github.com/acqboard/internal/spam"
)

// MessageStore is the slice of the lead store ingestion writes to.
type MessageStore interface {
	UpsertThread(ctx context.Context, up leads.ThreadUpsert) (*leads.Thread, error)
	UpsertMessage(ctx context.Context, m *leads.Message) (bool, error)
	UpdateMessagePayload(ctx context.Context, providerMessageID string, rawPayload []byte) error
}

// AccountResolver maps a provider account id to its owning workspace.
type AccountResolver interface {
	WorkspaceForAccount(ctx context.Context, accountID string) (int64, bool, error)
}

// MediaMirror copies a provider-hosted asset into our own storage.
type MediaMirror interface {
	MirrorURL(ctx context.Context, workspaceID int64, sourceURL string) (string, error)
}

// Ingestor normalizes webhook message events into thread and message
// rows. Media mirroring is best effort and never blocks ingestion.
type Ingestor struct {
	store    MessageStore
	accounts AccountResolver
	media    MediaMirror
}

func NewIngestor(store MessageStore, accounts AccountResolver, media MediaMirror) *Ingestor {
	return &Ingestor{store: store, accounts: accounts, media: media}
}

// Stats summarizes one webhook delivery for logging.
type Stats struct {
	Events   int
	Inserted int
	Skipped  int
}

// Process handles one raw webhook body end to end. It only returns an
// error for total failures the caller may want to log; per-event
// failures are logged and skipped so one bad event never blocks the
// rest of a batch.
func (ing *Ingestor) Process(ctx context.Context, body []byte) Stats {
	events := ParseEvents(body)
	stats := Stats{Events: len(events)}

	for _, ev := range events {
		inserted, err := ing.processEvent(ctx, ev)
		if err != nil {
			log.Error().Err(err).Str("provider_message_id", ev.ProviderID).Msg("webhook event processing failed")
			stats.Skipped++
			continue
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Skipped++
		}
	}
	return stats
}

func (ing *Ingestor) processEvent(ctx context.Context, ev MessageEvent) (bool, error) {
	workspaceID, ok, err := ing.accounts.WorkspaceForAccount(ctx, ev.AccountID)
	if err != nil {
		return false, fmt.Errorf("resolving account %s: %w", ev.AccountID, err)
	}
	if !ok {
		// Deliveries for disconnected accounts are acknowledged and
		// dropped.
		log.Debug().Str("account_id", ev.AccountID).Msg("webhook for unknown account, dropping")
		return false, nil
	}

	// Direction is relative to the workspace's own account: a message
	// sent by the connected account is outbound, everything else is a
	// lead writing in.
	direction := leads.DirectionInbound
	peerID := ev.SenderID
	peerName := ev.SenderName
	peerHandle := ev.SenderUser
	if ev.SenderID == ev.AccountID {
		direction = leads.DirectionOutbound
		peerID = ev.RecipientID
		peerName = ""
		peerHandle = ""
	}
	if peerID == "" {
		return false, fmt.Errorf("event %s has no peer id", ev.ProviderID)
	}

	isSpam := direction == leads.DirectionInbound && spam.IsSpam(ev.Text)

	thread, err := ing.store.UpsertThread(ctx, leads.ThreadUpsert{
		WorkspaceID: workspaceID,
		AccountID:   ev.AccountID,
		PeerID:      peerID,
		PeerName:    peerName,
		PeerHandle:  peerHandle,
		IsSpam:      isSpam,
		Text:        ev.Text,
		Direction:   direction,
		SentAt:      ev.SentAt,
	})
	if err != nil {
		return false, err
	}

	msg := &leads.Message{
		ProviderID:  ev.ProviderID,
		ThreadID:    thread.ID,
		WorkspaceID: workspaceID,
		SenderID:    ev.SenderID,
		RecipientID: ev.RecipientID,
		Direction:   direction,
		Text:        ev.Text,
		RawPayload:  ev.Raw,
		SentAt:      ev.SentAt,
	}
	inserted, err := ing.store.UpsertMessage(ctx, msg)
	if err != nil {
		return false, err
	}

	if inserted && len(ev.MediaURLs) > 0 && ing.media != nil {
		ing.mirrorMedia(ctx, workspaceID, ev)
	}
	return inserted, nil
}

// mirrorMedia re-hosts attachment assets and patches the stored
// payload with the mirrored URLs. Failures leave the original payload
// in place.
func (ing *Ingestor) mirrorMedia(ctx context.Context, workspaceID int64, ev MessageEvent) {
	var mirrored []string
	for _, src := range ev.MediaURLs {
		url, err := ing.media.MirrorURL(ctx, workspaceID, src)
		if err != nil {
			log.Warn().Err(err).Str("provider_message_id", ev.ProviderID).Msg("media mirror failed")
			continue
		}
		mirrored = append(mirrored, url)
	}
	if len(mirrored) == 0 {
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(ev.Raw, &payload); err != nil {
		payload = map[string]interface{}{}
	}
	payload["stored_media_urls"] = mirrored

	patched, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := ing.store.UpdateMessagePayload(ctx, ev.ProviderID, patched); err != nil {
		log.Warn().Err(err).Str("provider_message_id", ev.ProviderID).Msg("payload enrichment failed")
	}
}

// SQLAccountResolver resolves accounts from the instagram_connections
// table.
type SQLAccountResolver struct {
	db *sql.DB
}

func NewSQLAccountResolver(db *sql.DB) *SQLAccountResolver {
	return &SQLAccountResolver{db: db}
}

func (r *SQLAccountResolver) WorkspaceForAccount(ctx context.Context, accountID string) (int64, bool, error) {
	var workspaceID int64
	err := r.db.QueryRowContext(ctx,
		`SELECT workspace_id FROM instagram_connections WHERE account_id = $1 AND disconnected_at IS NULL`,
		accountID,
	).Scan(&workspaceID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return workspaceID, true, nil
}
