package domain

import "time"

// ChannelID identifies an external messaging platform.
type ChannelID string

const (
	ChannelWhatsApp  ChannelID = "whatsapp"
	ChannelFacebook  ChannelID = "facebook"
	ChannelInstagram ChannelID = "instagram"
)

// Valid reports whether the channel is one of the supported platforms.
func (c ChannelID) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelFacebook, ChannelInstagram:
		return true
	}
	return false
}

// ConversationKey uniquely identifies a conversation: one per
// (channel, external contact id) pair.
type ConversationKey struct {
	Channel   ChannelID `json:"channel"`
	ContactID string    `json:"contactId"`
}

// String returns a canonical string form of the key.
func (k ConversationKey) String() string {
	return string(k.Channel) + ":" + k.ContactID
}

// Conversation is the durable record of an exchange with one contact.
type Conversation struct {
	ID          string    `json:"id"`
	Channel     ChannelID `json:"channel"`
	ContactID   string    `json:"contactId"`
	ContactName string    `json:"contactName"`
	AIEnabled   bool      `json:"aiEnabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Key returns the conversation's lookup key.
func (c Conversation) Key() ConversationKey {
	return ConversationKey{Channel: c.Channel, ContactID: c.ContactID}
}
