package leads

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Store provides access to threads, messages, tags, and alerts.
type Store struct {
	db *sql.DB
}

// NewStore creates a new store instance
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const threadColumns = `id, workspace_id, account_id, peer_id, peer_name, peer_handle, peer_avatar_url,
	priority, lead_status, assigned_setter_id, shared_with_setters, hidden_from_setters, is_spam,
	summary, last_message_text, last_message_direction, last_message_at, last_inbound_at, last_outbound_at,
	created_at, updated_at`

func scanThread(row interface{ Scan(...interface{}) error }) (*Thread, error) {
	var t Thread
	err := row.Scan(
		&t.ID, &t.WorkspaceID, &t.AccountID, &t.PeerID, &t.PeerName, &t.PeerHandle, &t.PeerAvatarURL,
		&t.Priority, &t.LeadStatus, &t.AssignedSetterID, &t.SharedWithSetters, &t.HiddenFromSetters, &t.IsSpam,
		&t.Summary, &t.LastMessageText, &t.LastMessageDir, &t.LastMessageAt, &t.LastInboundAt, &t.LastOutboundAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListRecentThreads loads up to limit recently active, non-spam,
// non-removed threads for the workspace, manual priority first, then
// recency.
func (s *Store) ListRecentThreads(ctx context.Context, workspaceID int64, limit int) ([]*Thread, error) {
	query := fmt.Sprintf(`
	SELECT %s
	FROM conversation_threads
	WHERE workspace_id = $1 AND is_spam = false AND lead_status <> 'removed'
	ORDER BY priority DESC, last_message_at DESC NULLS LAST
	LIMIT $2
	`, threadColumns)

	rows, err := s.db.QueryContext(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threads: %w", err)
	}
	return threads, nil
}

// GetThreadByKey fetches one thread by its natural composite key.
func (s *Store) GetThreadByKey(ctx context.Context, workspaceID int64, accountID, peerID string) (*Thread, error) {
	query := fmt.Sprintf(`
	SELECT %s
	FROM conversation_threads
	WHERE workspace_id = $1 AND account_id = $2 AND peer_id = $3
	`, threadColumns)

	t, err := scanThread(s.db.QueryRowContext(ctx, query, workspaceID, accountID, peerID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}
	return t, nil
}

// ThreadUpsert carries the fact updates ingestion applies to a thread
// when a new message arrives.
type ThreadUpsert struct {
	WorkspaceID int64
	AccountID   string
	PeerID      string
	PeerName    string
	PeerHandle  string
	IsSpam      bool
	Text        string
	Direction   string
	SentAt      time.Time
}

// UpsertThread inserts or updates the summary row for a conversation.
// The generic last_message_* fields are last-write-wins; the
// per-direction timestamps only move forward, so redelivery and
// reordering cannot roll them back.
func (s *Store) UpsertThread(ctx context.Context, up ThreadUpsert) (*Thread, error) {
	inboundAt := sql.NullTime{}
	outboundAt := sql.NullTime{}
	if up.Direction == DirectionInbound {
		inboundAt = sql.NullTime{Time: up.SentAt, Valid: true}
	} else {
		outboundAt = sql.NullTime{Time: up.SentAt, Valid: true}
	}

	query := fmt.Sprintf(`
	INSERT INTO conversation_threads (
		workspace_id, account_id, peer_id, peer_name, peer_handle, lead_status, is_spam,
		last_message_text, last_message_direction, last_message_at, last_inbound_at, last_outbound_at,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, 'open', $6,
		$7, $8, $9, $10, $11,
		NOW(), NOW()
	)
	ON CONFLICT (workspace_id, account_id, peer_id) DO UPDATE SET
		peer_name = COALESCE(NULLIF(EXCLUDED.peer_name, ''), conversation_threads.peer_name),
		peer_handle = COALESCE(NULLIF(EXCLUDED.peer_handle, ''), conversation_threads.peer_handle),
		is_spam = conversation_threads.is_spam OR EXCLUDED.is_spam,
		last_message_text = EXCLUDED.last_message_text,
		last_message_direction = EXCLUDED.last_message_direction,
		last_message_at = EXCLUDED.last_message_at,
		last_inbound_at = GREATEST(conversation_threads.last_inbound_at, EXCLUDED.last_inbound_at),
		last_outbound_at = GREATEST(conversation_threads.last_outbound_at, EXCLUDED.last_outbound_at),
		updated_at = NOW()
	RETURNING %s
	`, threadColumns)

	t, err := scanThread(s.db.QueryRowContext(ctx, query,
		up.WorkspaceID, up.AccountID, up.PeerID, up.PeerName, up.PeerHandle, up.IsSpam,
		up.Text, up.Direction, up.SentAt, inboundAt, outboundAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert thread: %w", err)
	}
	return t, nil
}

// UpsertMessage inserts a message keyed by provider message id.
// Redelivery is a no-op; returns inserted=false in that case.
func (s *Store) UpsertMessage(ctx context.Context, m *Message) (bool, error) {
	query := `
	INSERT INTO messages (
		provider_message_id, thread_id, workspace_id, sender_id, recipient_id,
		direction, text, raw_payload, sent_at, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	ON CONFLICT (provider_message_id) DO NOTHING
	RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		m.ProviderID, m.ThreadID, m.WorkspaceID, m.SenderID, m.RecipientID,
		m.Direction, m.Text, m.RawPayload, m.SentAt,
	).Scan(&m.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to upsert message: %w", err)
	}
	return true, nil
}

// UpdateMessagePayload patches the raw payload of an existing message,
// used by the same ingestion pass to attach stored-media metadata.
func (s *Store) UpdateMessagePayload(ctx context.Context, providerMessageID string, rawPayload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE messages SET raw_payload = $1 WHERE provider_message_id = $2`,
		rawPayload, providerMessageID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message payload: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages for a thread in
// chronological order.
func (s *Store) RecentMessages(ctx context.Context, threadID int64, limit int) ([]Message, error) {
	query := `
	SELECT id, provider_message_id, thread_id, workspace_id, sender_id, recipient_id,
	       direction, text, raw_payload, sent_at, created_at
	FROM (
		SELECT * FROM messages WHERE thread_id = $1 ORDER BY sent_at DESC LIMIT $2
	) recent
	ORDER BY sent_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ProviderID, &m.ThreadID, &m.WorkspaceID, &m.SenderID, &m.RecipientID,
			&m.Direction, &m.Text, &m.RawPayload, &m.SentAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// RecentInboundMessages pages recent inbound messages workspace-wide
// within a time window, newest first. Used by the corpus sampler.
func (s *Store) RecentInboundMessages(ctx context.Context, workspaceID int64, since time.Time, limit int) ([]Message, error) {
	query := `
	SELECT id, provider_message_id, thread_id, workspace_id, sender_id, recipient_id,
	       direction, text, raw_payload, sent_at, created_at
	FROM messages
	WHERE workspace_id = $1 AND direction = 'inbound' AND sent_at >= $2
	ORDER BY sent_at DESC
	LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load inbound messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

// AllRecentInboundMessages is the schema-compatibility fallback for
// stores whose messages table predates the sent_at index: same query
// without the time filter.
func (s *Store) AllRecentInboundMessages(ctx context.Context, workspaceID int64, limit int) ([]Message, error) {
	query := `
	SELECT id, provider_message_id, thread_id, workspace_id, sender_id, recipient_id,
	       direction, text, raw_payload, sent_at, created_at
	FROM messages
	WHERE workspace_id = $1 AND direction = 'inbound'
	ORDER BY sent_at DESC
	LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load inbound messages: %w", err)
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID, &m.ProviderID, &m.ThreadID, &m.WorkspaceID, &m.SenderID, &m.RecipientID,
			&m.Direction, &m.Text, &m.RawPayload, &m.SentAt, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

// TagsForThreads loads applied tag names per thread, in application
// order.
func (s *Store) TagsForThreads(ctx context.Context, threadIDs []int64) (map[int64][]string, error) {
	if len(threadIDs) == 0 {
		return map[int64][]string{}, nil
	}

	query := `
	SELECT ct.thread_id, t.name
	FROM conversation_tags ct
	JOIN tags t ON t.id = ct.tag_id
	WHERE ct.thread_id = ANY($1)
	ORDER BY ct.thread_id, ct.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(threadIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	defer rows.Close()

	result := make(map[int64][]string)
	for rows.Next() {
		var threadID int64
		var name string
		if err := rows.Scan(&threadID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		result[threadID] = append(result[threadID], name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return result, nil
}

// OpenAlertsForThreads loads at most one open alert per thread (the
// most recent one).
func (s *Store) OpenAlertsForThreads(ctx context.Context, threadIDs []int64) (map[int64]*Alert, error) {
	if len(threadIDs) == 0 {
		return map[int64]*Alert{}, nil
	}

	query := `
	SELECT DISTINCT ON (thread_id)
	       id, thread_id, alert_type, overdue_minutes, recommended_action, created_at
	FROM alerts
	WHERE thread_id = ANY($1) AND resolved_at IS NULL
	ORDER BY thread_id, created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(threadIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]*Alert)
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.ThreadID, &a.AlertType, &a.OverdueMinutes, &a.RecommendedAction, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		result[a.ThreadID] = &a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return result, nil
}

// EnsureTag finds or creates a tag by name. Names are
// case-insensitively unique per workspace; a concurrent insert loses
// the race on the unique index and re-scans instead of failing.
func (s *Store) EnsureTag(ctx context.Context, workspaceID int64, name string) (*Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name is empty")
	}

	lookup := `SELECT id, workspace_id, name, created_at FROM tags WHERE workspace_id = $1 AND LOWER(name) = LOWER($2)`

	var tag Tag
	err := s.db.QueryRowContext(ctx, lookup, workspaceID, name).Scan(&tag.ID, &tag.WorkspaceID, &tag.Name, &tag.CreatedAt)
	if err == nil {
		return &tag, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up tag: %w", err)
	}

	insert := `INSERT INTO tags (workspace_id, name, created_at) VALUES ($1, $2, NOW()) RETURNING id, workspace_id, name, created_at`
	err = s.db.QueryRowContext(ctx, insert, workspaceID, name).Scan(&tag.ID, &tag.WorkspaceID, &tag.Name, &tag.CreatedAt)
	if err == nil {
		return &tag, nil
	}

	if isUniqueViolation(err) {
		log.Debug().Str("tag", name).Int64("workspace_id", workspaceID).Msg("Lost tag insert race, re-scanning")
		if rescanErr := s.db.QueryRowContext(ctx, lookup, workspaceID, name).Scan(&tag.ID, &tag.WorkspaceID, &tag.Name, &tag.CreatedAt); rescanErr == nil {
			return &tag, nil
		}
	}
	return nil, fmt.Errorf("failed to create tag: %w", err)
}

// LinkTag attaches a tag to a thread, idempotently.
func (s *Store) LinkTag(ctx context.Context, threadID, tagID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_tags (thread_id, tag_id, created_at) VALUES ($1, $2, NOW()) ON CONFLICT DO NOTHING`,
		threadID, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to link tag: %w", err)
	}
	return nil
}

// isUniqueViolation inspects the error for a uniqueness-violation
// signature (pq code 23505 or the generic message).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate key")
}
