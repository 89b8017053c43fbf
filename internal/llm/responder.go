package llm

import (
	"context"
	"strings"

	"github.com/chatdesk/chatdesk/internal/logging"
)

// Fallback is the reply sent when generation fails or produces nothing.
const Fallback = "I apologize, but I'm having trouble processing your request right now."

// Responder turns composed prompts into customer-facing replies,
// absorbing generation failures into a fallback message.
type Responder struct {
	client Client
	log    *logging.Logger
}

// NewResponder wraps a generation client.
func NewResponder(client Client, log *logging.Logger) *Responder {
	return &Responder{client: client, log: log.Sub("responder")}
}

// Respond generates a reply for the prompt. The second return reports
// whether the reply came from the model; when false the reply is the
// fallback and the first return is still always usable.
func (r *Responder) Respond(ctx context.Context, prompt string) (string, bool) {
	resp, err := r.client.Complete(ctx, CompletionRequest{Prompt: prompt})
	if err != nil {
		r.log.Warn().Err(err).Str("provider", r.client.Name()).Msg("generation failed, using fallback")
		return Fallback, false
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		r.log.Warn().Str("provider", r.client.Name()).Msg("empty generation, using fallback")
		return Fallback, false
	}
	return reply, true
}
