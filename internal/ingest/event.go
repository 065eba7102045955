package ingest

import (
	"encoding/json"
	"time"
)

// The provider pushes Meta Graph style payloads. Only the fields the
// ingestor consumes are modeled; everything else rides along in the
// raw payload stored on the message row.

type webhookBody struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Messaging []messagingEvent `json:"messaging"`
}

type messagingEvent struct {
	Sender    party           `json:"sender"`
	Recipient party           `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *messagePayload `json:"message"`
}

type party struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type messagePayload struct {
	MID         string       `json:"mid"`
	Text        string       `json:"text"`
	IsEcho      bool         `json:"is_echo"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// MessageEvent is one normalized message delivery.
type MessageEvent struct {
	AccountID   string
	ProviderID  string
	SenderID    string
	SenderName  string
	SenderUser  string
	RecipientID string
	Text        string
	MediaURLs   []string
	SentAt      time.Time
	Raw         json.RawMessage
}

// ParseEvents extracts message events from a raw webhook body. The
// boundary fails closed: an unparseable body or unexpected shape yields
// zero events, never an error, because the endpoint must acknowledge
// regardless.
func ParseEvents(body []byte) []MessageEvent {
	var parsed webhookBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	if parsed.Object != "instagram" && parsed.Object != "page" {
		return nil
	}

	var events []MessageEvent
	for _, entry := range parsed.Entry {
		for _, m := range entry.Messaging {
			if m.Message == nil || m.Message.MID == "" {
				continue
			}
			ev := MessageEvent{
				AccountID:   entry.ID,
				ProviderID:  m.Message.MID,
				SenderID:    m.Sender.ID,
				SenderName:  m.Sender.Name,
				SenderUser:  m.Sender.Username,
				RecipientID: m.Recipient.ID,
				Text:        m.Message.Text,
				SentAt:      time.UnixMilli(m.Timestamp).UTC(),
			}
			if m.Timestamp == 0 {
				ev.SentAt = time.Unix(entry.Time, 0).UTC()
			}
			for _, att := range m.Message.Attachments {
				if att.Payload.URL != "" {
					ev.MediaURLs = append(ev.MediaURLs, att.Payload.URL)
				}
			}
			if raw, err := json.Marshal(m); err == nil {
				ev.Raw = raw
			}
			events = append(events, ev)
		}
	}
	return events
}
