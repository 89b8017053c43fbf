// Package notify publishes conversation events to interested consumers
// (websocket hubs, message brokers). Publishing is best-effort: the
// pipeline never fails because an event could not be delivered.
package notify

import (
	"context"
	"time"

	"github.com/chatdesk/chatdesk/internal/domain"
)

// Event types published by the pipeline.
const (
	EventMessageCreated      = "message.created"
	EventConversationUpdated = "conversation.updated"
)

// Event is a conversation change notification.
type Event struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Message        *domain.Message `json:"message,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Publisher delivers events to one consumer class.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// Fanout broadcasts each event to every registered publisher.
type Fanout struct {
	publishers []Publisher
}

// NewFanout creates a fanout over the given publishers. Nil entries
// are skipped so optional publishers can be wired unconditionally.
func NewFanout(publishers ...Publisher) *Fanout {
	out := &Fanout{}
	for _, p := range publishers {
		if p != nil {
			out.publishers = append(out.publishers, p)
		}
	}
	return out
}

// Publish delivers the event to all publishers.
func (f *Fanout) Publish(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	for _, p := range f.publishers {
		p.Publish(ctx, event)
	}
}

// Close closes all publishers, returning the first error.
func (f *Fanout) Close() error {
	var first error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
