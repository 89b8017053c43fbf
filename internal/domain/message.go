package domain

import "time"

// MessageStatus is the direction of a message relative to the console.
type MessageStatus string

const (
	StatusReceived MessageStatus = "received"
	StatusSent     MessageStatus = "sent"
)

// Reserved sender identities for messages not authored by a contact.
const (
	// SenderSystem marks messages originating from the console itself
	// (operator sends and automated replies).
	SenderSystem = "system"

	// AISenderName is the display name recorded on automated replies.
	AISenderName = "AI Assistant"

	// OperatorSenderName is the display name recorded on operator sends.
	OperatorSenderName = "Agent"
)

// Message is a single immutable entry in a conversation.
// Messages are strictly ordered by (CreatedAt, Seq) within a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	SenderName     string        `json:"senderName"`
	SenderID       string        `json:"senderId"`
	CreatedAt      time.Time     `json:"createdAt"`
	Seq            int64         `json:"-"`
}

// FromAI reports whether the message is an automated reply.
func (m Message) FromAI() bool {
	return m.Status == StatusSent && m.SenderName == AISenderName
}

// InboundMessage is a message received from a channel webhook, before
// it is persisted.
type InboundMessage struct {
	Channel     ChannelID `json:"channel"`
	ProviderID  string    `json:"providerId,omitempty"` // channel-assigned message id, used for dedup
	From        string    `json:"from"`
	FromName    string    `json:"fromName,omitempty"`
	Body        string    `json:"body"`
	Timestamp   time.Time `json:"timestamp"`
}

// DeliveryResult is the acknowledgment returned by a channel after a
// successful send.
type DeliveryResult struct {
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	Recipient         string `json:"recipient"`
}
