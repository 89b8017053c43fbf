// Package channel defines the outbound delivery interface for messaging
// integrations and a registry to look them up by channel id.
package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
)

// Channel delivers outbound text to an external contact address.
type Channel interface {
	// ID returns the channel identifier (e.g. domain.ChannelWhatsApp).
	ID() domain.ChannelID

	// Send delivers text to the given external contact address.
	Send(ctx context.Context, to, text string) (*domain.DeliveryResult, error)
}

// Registry manages the set of configured messaging channels.
type Registry struct {
	mu       sync.RWMutex
	channels map[domain.ChannelID]Channel
	log      *logging.Logger
}

// NewRegistry creates an empty channel registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		channels: make(map[domain.ChannelID]Channel),
		log:      log.Sub("channels"),
	}
}

// Register adds a channel to the registry.
func (r *Registry) Register(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID()] = ch
	r.log.Info().Str("channel", string(ch.ID())).Msg("channel registered")
}

// Get returns a channel by id.
func (r *Registry) Get(id domain.ChannelID) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Send delivers text via the named channel, failing if it is not
// configured.
func (r *Registry) Send(ctx context.Context, id domain.ChannelID, to, text string) (*domain.DeliveryResult, error) {
	ch, ok := r.Get(id)
	if !ok {
		return nil, domain.DeliveryError("send", fmt.Errorf("channel %q not configured", id))
	}
	return ch.Send(ctx, to, text)
}

// List returns all registered channel ids.
func (r *Registry) List() []domain.ChannelID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]domain.ChannelID, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered channels.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
