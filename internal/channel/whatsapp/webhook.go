package whatsapp

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/chatdesk/chatdesk/internal/domain"
)

// webhookPayload mirrors the Graph API webhook notification shape.
// Only text messages are extracted; other change types are skipped.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook decodes a webhook notification body into inbound
// messages. A payload with no text messages (status updates, media)
// yields an empty slice, not an error.
func ParseWebhook(body []byte) ([]domain.InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, domain.ValidationError("parse webhook", err)
	}

	var out []domain.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			names := make(map[string]string, len(value.Contacts))
			for _, contact := range value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, msg := range value.Messages {
				if msg.Type != "" && msg.Type != "text" {
					continue
				}
				if msg.Text.Body == "" {
					continue
				}
				out = append(out, domain.InboundMessage{
					Channel:    domain.ChannelWhatsApp,
					ProviderID: msg.ID,
					From:       msg.From,
					FromName:   names[msg.From],
					Body:       msg.Text.Body,
					Timestamp:  parseTimestamp(msg.Timestamp),
				})
			}
		}
	}
	return out, nil
}

// parseTimestamp decodes the Graph API's unix-seconds string, falling
// back to now for missing or malformed values.
func parseTimestamp(s string) time.Time {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC()
	}
	return time.Now().UTC()
}
