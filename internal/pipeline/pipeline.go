// Package pipeline orchestrates the inbound-message response flow:
// persist the message, retrieve knowledge, compose a grounded prompt,
// generate a reply, deliver it, and record the exchange. External
// dependency failures degrade the reply rather than losing the
// customer's message.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/chatdesk/chatdesk/internal/compose"
	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
	"github.com/chatdesk/chatdesk/internal/notify"
	"github.com/chatdesk/chatdesk/internal/store"
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher ranks knowledge snippets against a query.
type Searcher interface {
	Search(ctx context.Context, query string, queryVec []float32) ([]domain.KnowledgeSnippet, error)
}

// Generator turns a composed prompt into reply text. The bool reports
// whether the text came from the model rather than a fallback.
type Generator interface {
	Respond(ctx context.Context, prompt string) (string, bool)
}

// Sender delivers outbound text via a named channel.
type Sender interface {
	Send(ctx context.Context, id domain.ChannelID, to, text string) (*domain.DeliveryResult, error)
}

// Result is the outcome of one pipeline invocation.
type Result struct {
	Conversation *domain.Conversation
	Inbound      *domain.Message // persisted customer message, nil on operator sends
	Reply        *domain.Message // persisted outbound message, nil if no reply was made
	FollowUp     *domain.Message // persisted AI follow-up, operator sends with UseAI only
	Generated    bool            // reply text came from the model
	Duplicate    bool            // inbound was a webhook redelivery, nothing done
	Trace        Trace
}

// Options tunes pipeline behavior.
type Options struct {
	// StageTimeout bounds each external call (embed, generate, deliver).
	StageTimeout time.Duration
	// DedupTTL is how long provider message ids are remembered.
	DedupTTL time.Duration
}

// Pipeline wires the stores, AI clients, and channels together.
type Pipeline struct {
	conversations *store.ConversationStore
	settings      *store.SettingsStore
	embedder      Embedder
	searcher      Searcher
	generator     Generator
	sender        Sender
	events        *notify.Fanout
	dedup         *gocache.Cache
	stageTimeout  time.Duration
	log           *logging.Logger
}

// New creates a pipeline.
func New(
	conversations *store.ConversationStore,
	settings *store.SettingsStore,
	embedder Embedder,
	searcher Searcher,
	generator Generator,
	sender Sender,
	events *notify.Fanout,
	opts Options,
	log *logging.Logger,
) *Pipeline {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = 60 * time.Second
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 10 * time.Minute
	}
	return &Pipeline{
		conversations: conversations,
		settings:      settings,
		embedder:      embedder,
		searcher:      searcher,
		generator:     generator,
		sender:        sender,
		events:        events,
		dedup:         gocache.New(opts.DedupTTL, opts.DedupTTL),
		stageTimeout:  opts.StageTimeout,
		log:           log.Sub("pipeline"),
	}
}

// HandleInbound processes one customer message end to end. The returned
// error is non-nil only when the message itself could not be accepted
// (validation or persistence); reply-side failures are reported through
// the result's trace so the webhook can still acknowledge receipt.
func (p *Pipeline) HandleInbound(ctx context.Context, in domain.InboundMessage) (*Result, error) {
	if err := validateInbound(in); err != nil {
		return nil, err
	}

	result := &Result{}
	log := p.log.Sub(string(in.Channel))

	if in.ProviderID != "" {
		if _, seen := p.dedup.Get(in.ProviderID); seen {
			log.Debug().Str("provider_id", in.ProviderID).Msg("duplicate webhook delivery, ignoring")
			result.Duplicate = true
			return result, nil
		}
		p.dedup.SetDefault(in.ProviderID, true)
	}

	conv, err := p.conversations.Upsert(ctx, in.Channel, in.From, in.FromName)
	if err != nil {
		return nil, err
	}
	result.Conversation = conv

	inbound := &domain.Message{
		ConversationID: conv.ID,
		Content:        strings.TrimSpace(in.Body),
		Status:         domain.StatusReceived,
		SenderName:     in.FromName,
		SenderID:       in.From,
		CreatedAt:      in.Timestamp,
	}
	if err := p.conversations.Append(ctx, inbound); err != nil {
		return nil, err
	}
	result.Inbound = inbound
	result.Trace = append(result.Trace, ok(StagePersist))
	p.publishMessage(ctx, conv.ID, inbound)

	if !conv.AIEnabled {
		log.Debug().Str("conversation", conv.ID).Msg("ai disabled, message recorded without reply")
		result.Trace = append(result.Trace, skipped(StageGeneration, "ai disabled"))
		return result, nil
	}

	reply, generated, trace := p.generateReply(ctx, conv.ID, inbound.Content, "", log)
	result.Trace = append(result.Trace, trace...)

	delivery, err := p.deliver(ctx, in.Channel, in.From, reply)
	if err != nil {
		log.Error().Err(err).Str("conversation", conv.ID).Msg("reply delivery failed")
		result.Trace = append(result.Trace, fatal(StageDelivery, err))
		return result, nil
	}
	result.Trace = append(result.Trace, ok(StageDelivery))

	replyMsg := domain.Message{
		ConversationID: conv.ID,
		Content:        reply,
		Status:         domain.StatusSent,
		SenderName:     domain.AISenderName,
		SenderID:       domain.SenderSystem,
	}
	if err := p.conversations.Append(ctx, &replyMsg); err != nil {
		// The customer already has the reply; the record is what's lost.
		log.Error().Err(err).Str("conversation", conv.ID).Msg("persisting delivered reply failed")
		result.Trace = append(result.Trace, fatal(StagePersistReply, err))
		return result, nil
	}
	result.Reply = &replyMsg
	result.Generated = generated
	result.Trace = append(result.Trace, ok(StagePersistReply))
	p.publishMessage(ctx, conv.ID, &replyMsg)

	log.Info().
		Str("conversation", conv.ID).
		Str("provider_id", delivery.ProviderMessageID).
		Bool("generated", generated).
		Bool("degraded", result.Trace.Degraded()).
		Msg("inbound message answered")
	return result, nil
}

// SendRequest is an operator-initiated outbound message.
type SendRequest struct {
	Channel domain.ChannelID `json:"channel"`
	To      string           `json:"to"`
	Text    string           `json:"message"`
	// UseAI sends a generated answer to the operator text as a second
	// message, using the same retrieval and history policy as inbound
	// replies.
	UseAI bool `json:"useAI"`
	// Context, when set, replaces the composed grounding block for the
	// AI follow-up; retrieval and history are skipped.
	Context string `json:"context,omitempty"`
}

// HandleSend delivers an operator message and records it in the
// conversation, optionally following it with a generated answer as a
// second message. Unlike inbound handling, outbound messages are
// persisted before delivery is attempted, so a failed send still
// appears in the console.
func (p *Pipeline) HandleSend(ctx context.Context, req SendRequest) (*Result, error) {
	if err := validateSend(req); err != nil {
		return nil, err
	}

	result := &Result{}
	log := p.log.Sub(string(req.Channel))

	conv, err := p.conversations.Upsert(ctx, req.Channel, req.To, "")
	if err != nil {
		return nil, err
	}
	result.Conversation = conv

	text := strings.TrimSpace(req.Text)
	msg := domain.Message{
		ConversationID: conv.ID,
		Content:        text,
		Status:         domain.StatusSent,
		SenderName:     domain.OperatorSenderName,
		SenderID:       domain.SenderSystem,
	}
	if err := p.conversations.Append(ctx, &msg); err != nil {
		return nil, err
	}
	result.Reply = &msg
	result.Trace = append(result.Trace, ok(StagePersist))
	p.publishMessage(ctx, conv.ID, &msg)

	if _, err := p.deliver(ctx, req.Channel, req.To, msg.Content); err != nil {
		log.Error().Err(err).Str("conversation", conv.ID).Msg("operator send failed")
		result.Trace = append(result.Trace, fatal(StageDelivery, err))
		return result, err
	}
	result.Trace = append(result.Trace, ok(StageDelivery))

	if !req.UseAI {
		log.Info().Str("conversation", conv.ID).Msg("operator message delivered")
		return result, nil
	}

	reply, generated, trace := p.generateReply(ctx, conv.ID, text, req.Context, log)
	result.Trace = append(result.Trace, trace...)
	result.Generated = generated

	followUp := domain.Message{
		ConversationID: conv.ID,
		Content:        reply,
		Status:         domain.StatusSent,
		SenderName:     domain.AISenderName,
		SenderID:       domain.SenderSystem,
	}
	if err := p.conversations.Append(ctx, &followUp); err != nil {
		log.Error().Err(err).Str("conversation", conv.ID).Msg("persisting ai follow-up failed")
		result.Trace = append(result.Trace, fatal(StagePersistReply, err))
		return result, err
	}
	result.FollowUp = &followUp
	result.Trace = append(result.Trace, ok(StagePersistReply))
	p.publishMessage(ctx, conv.ID, &followUp)

	if _, err := p.deliver(ctx, req.Channel, req.To, followUp.Content); err != nil {
		// The operator message already went out; only the follow-up is lost.
		log.Error().Err(err).Str("conversation", conv.ID).Msg("ai follow-up delivery failed")
		result.Trace = append(result.Trace, fatal(StageDelivery, err))
		return result, nil
	}
	result.Trace = append(result.Trace, ok(StageDelivery))

	log.Info().Str("conversation", conv.ID).Bool("generated", generated).Msg("operator message and ai follow-up delivered")
	return result, nil
}

// generateReply runs the degradable middle of the pipeline: embed,
// retrieve, window history, compose, generate. A non-empty precomposed
// context replaces the composed grounding block and skips retrieval.
// It always returns usable reply text; failures shrink the grounding
// instead.
func (p *Pipeline) generateReply(ctx context.Context, conversationID, question, precomposed string, log *logging.Logger) (string, bool, Trace) {
	var trace Trace

	var promptContext string
	if precomposed != "" {
		promptContext = precomposed
		trace = append(trace, skipped(StageRetrieval, "context supplied"))
	} else {
		settings := p.loadSettings(ctx)

		var snippets []domain.KnowledgeSnippet
		vec, err := p.withTimeout(ctx, func(ctx context.Context) ([]float32, error) {
			return p.embedder.Embed(ctx, question)
		})
		if err != nil {
			log.Warn().Err(err).Msg("embedding failed, retrieval skipped")
			trace = append(trace, skipped(StageRetrieval, "embedding unavailable"))
		} else {
			snippets, err = p.searcher.Search(ctx, question, vec)
			if err != nil {
				log.Warn().Err(err).Msg("knowledge search failed, continuing without grounding")
				trace = append(trace, skipped(StageRetrieval, "search unavailable"))
				snippets = nil
			} else {
				trace = append(trace, ok(StageRetrieval))
			}
		}

		history := p.loadHistory(ctx, conversationID, settings, log)
		promptContext = compose.Context(snippets, history, settings)
	}

	prompt := compose.Prompt(question, promptContext)
	reply, generated := p.respondWithTimeout(ctx, prompt)
	if generated {
		trace = append(trace, ok(StageGeneration))
	} else {
		trace = append(trace, skipped(StageGeneration, "fallback reply"))
	}
	return reply, generated, trace
}

// loadSettings returns the AI settings; store failures fall back to
// the seeded defaults. Caching lives in the settings store, which
// invalidates on save.
func (p *Pipeline) loadSettings(ctx context.Context) domain.AISettings {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		return domain.DefaultAISettings()
	}
	return settings
}

// loadHistory returns the prior turns allowed by settings, oldest
// first. History failures degrade to no history.
func (p *Pipeline) loadHistory(ctx context.Context, conversationID string, settings domain.AISettings, log *logging.Logger) []domain.Message {
	turns, enabled := settings.MemoryTurns()
	if !enabled {
		return nil
	}
	since := time.Now().UTC().Add(-time.Duration(settings.TimeoutHours) * time.Hour)
	history, err := p.conversations.History(ctx, conversationID, turns, since)
	if err != nil {
		log.Warn().Err(err).Msg("loading history failed, composing without it")
		return nil
	}
	return history
}

func (p *Pipeline) deliver(ctx context.Context, channel domain.ChannelID, to, text string) (*domain.DeliveryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	return p.sender.Send(ctx, channel, to, text)
}

func (p *Pipeline) respondWithTimeout(ctx context.Context, prompt string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	return p.generator.Respond(ctx, prompt)
}

func (p *Pipeline) withTimeout(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	return fn(ctx)
}

func (p *Pipeline) publishMessage(ctx context.Context, conversationID string, msg *domain.Message) {
	if p.events == nil {
		return
	}
	p.events.Publish(ctx, notify.Event{
		Type:           notify.EventMessageCreated,
		ConversationID: conversationID,
		Message:        msg,
	})
}

func validateInbound(in domain.InboundMessage) error {
	if !in.Channel.Valid() {
		return domain.ValidationError("inbound", fmt.Errorf("unknown channel %q", in.Channel))
	}
	if in.From == "" {
		return domain.ValidationError("inbound", fmt.Errorf("missing sender address"))
	}
	if strings.TrimSpace(in.Body) == "" {
		return domain.ValidationError("inbound", fmt.Errorf("empty message body"))
	}
	return nil
}

func validateSend(req SendRequest) error {
	if !req.Channel.Valid() {
		return domain.ValidationError("send", fmt.Errorf("unknown channel %q", req.Channel))
	}
	if req.To == "" {
		return domain.ValidationError("send", fmt.Errorf("missing recipient"))
	}
	if strings.TrimSpace(req.Text) == "" {
		return domain.ValidationError("send", fmt.Errorf("empty message"))
	}
	return nil
}
