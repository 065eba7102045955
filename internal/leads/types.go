package leads

import (
	"encoding/json"
	"time"
)

// Message directions as stored on thread and message rows.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Thread is the persisted summary row for one peer conversation within
// one workspace Instagram account. At most one row exists per
// (workspace, owning account, peer); ingestion only ever upserts it.
type Thread struct {
	ID                int64      `json:"id" db:"id"`
	WorkspaceID       int64      `json:"workspace_id" db:"workspace_id"`
	AccountID         string     `json:"account_id" db:"account_id"`
	PeerID            string     `json:"peer_id" db:"peer_id"`
	PeerName          string     `json:"peer_name" db:"peer_name"`
	PeerHandle        string     `json:"peer_handle" db:"peer_handle"`
	PeerAvatarURL     *string    `json:"peer_avatar_url,omitempty" db:"peer_avatar_url"`
	Priority          bool       `json:"priority" db:"priority"`
	LeadStatus        string     `json:"lead_status" db:"lead_status"`
	AssignedSetterID  *int64     `json:"assigned_setter_id,omitempty" db:"assigned_setter_id"`
	SharedWithSetters bool       `json:"shared_with_setters" db:"shared_with_setters"`
	HiddenFromSetters bool       `json:"hidden_from_setters" db:"hidden_from_setters"`
	IsSpam            bool       `json:"is_spam" db:"is_spam"`
	Summary           *string    `json:"summary,omitempty" db:"summary"`
	LastMessageText   string     `json:"last_message_text" db:"last_message_text"`
	LastMessageDir    string     `json:"last_message_direction" db:"last_message_direction"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty" db:"last_message_at"`
	LastInboundAt     *time.Time `json:"last_inbound_at,omitempty" db:"last_inbound_at"`
	LastOutboundAt    *time.Time `json:"last_outbound_at,omitempty" db:"last_outbound_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Message is one DM, keyed globally by the provider-issued message id
// so redelivery upserts instead of duplicating.
type Message struct {
	ID          int64           `json:"id" db:"id"`
	ProviderID  string          `json:"provider_message_id" db:"provider_message_id"`
	ThreadID    int64           `json:"thread_id" db:"thread_id"`
	WorkspaceID int64           `json:"workspace_id" db:"workspace_id"`
	SenderID    string          `json:"sender_id" db:"sender_id"`
	RecipientID string          `json:"recipient_id" db:"recipient_id"`
	Direction   string          `json:"direction" db:"direction"`
	Text        string          `json:"text" db:"text"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty" db:"raw_payload"`
	SentAt      time.Time       `json:"sent_at" db:"sent_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Tag names are case-insensitively unique per workspace.
type Tag struct {
	ID          int64     `json:"id" db:"id"`
	WorkspaceID int64     `json:"workspace_id" db:"workspace_id"`
	Name        string    `json:"name" db:"name"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Alert is an open attention record for a conversation. The scorer
// consults at most one open alert per thread; it never writes them.
type Alert struct {
	ID                int64     `json:"id" db:"id"`
	ThreadID          int64     `json:"thread_id" db:"thread_id"`
	AlertType         string    `json:"alert_type" db:"alert_type"`
	OverdueMinutes    int       `json:"overdue_minutes" db:"overdue_minutes"`
	RecommendedAction string    `json:"recommended_action" db:"recommended_action"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// Known alert types.
const (
	AlertHotLeadUnreplied  = "hot_lead_unreplied"
	AlertQualifiedInactive = "qualified_inactive"
	AlertNoShowFollowup    = "no_show_followup"
)

// Temperature classification derived from tag names.
type Temperature string

const (
	TempHot  Temperature = "hot"
	TempWarm Temperature = "warm"
	TempCold Temperature = "cold"
	TempNone Temperature = "none"
)

// Insight is the derived, per-request view of one lead. It is computed
// fresh on every snapshot build and never cached.
type Insight struct {
	Thread          *Thread     `json:"-"`
	Phase           string      `json:"phase"`
	Temperature     Temperature `json:"temperature"`
	PriorityScore   int         `json:"priority_score"`
	PriorityReasons []string    `json:"priority_reasons"`
	WaitingForReply bool        `json:"waiting_for_reply"`
	RecentMessages  []Message   `json:"recent_messages,omitempty"`
}
