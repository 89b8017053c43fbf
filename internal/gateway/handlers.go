package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/chatdesk/chatdesk/internal/channel/whatsapp"
	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/knowledge"
	"github.com/chatdesk/chatdesk/internal/pipeline"
	"github.com/chatdesk/chatdesk/internal/store"
	"github.com/chatdesk/chatdesk/internal/version"
)

// maxBodyBytes caps request bodies; webhook payloads and knowledge
// uploads are small.
const maxBodyBytes = 1 << 20

// --- webhook endpoints ---

func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := s.whatsapp.VerifyWebhook(
		q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !ok {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook verification rejected")
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	s.log.Info().Msg("webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, challenge)
}

func (s *Server) handleWebhookEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	msgs, err := whatsapp.ParseWebhook(body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if len(msgs) == 0 {
		s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "processed": 0})
		return
	}

	var processed int
	for _, msg := range msgs {
		result, err := s.handler.HandleInbound(r.Context(), msg)
		if err != nil {
			// The message itself was rejected; reply-side failures are
			// inside the result and already acknowledged.
			s.respondError(w, err)
			return
		}
		if !result.Duplicate {
			processed++
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"success": true, "processed": processed})
}

// --- messaging endpoints ---

type sendPayload struct {
	Channel string `json:"channel,omitempty"`
	To      string `json:"to"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	UseAI   bool   `json:"useAI,omitempty"`
	Context string `json:"context,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload sendPayload
	if err := decodeJSON(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	if payload.Type != "" && payload.Type != "text" {
		s.respondError(w, domain.ValidationError("send",
			errors.New("only text messages are supported")))
		return
	}
	channelID := domain.ChannelID(payload.Channel)
	if payload.Channel == "" {
		channelID = domain.ChannelWhatsApp
	}

	result, err := s.handler.HandleSend(r.Context(), pipeline.SendRequest{
		Channel: channelID,
		To:      payload.To,
		Text:    payload.Message,
		UseAI:   payload.UseAI,
		Context: payload.Context,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"conversationId": result.Conversation.ID,
		"message":        result.Reply,
		"followUp":       result.FollowUp,
		"generated":      result.Generated,
	})
}

// --- AI endpoints ---

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	vec, err := s.embedder.Embed(r.Context(), payload.Text)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"embedding": vec, "dimensions": len(vec)})
}

// --- knowledge endpoints ---

func (s *Server) handleKnowledgeList(w http.ResponseWriter, r *http.Request) {
	snippets, err := s.knowledge.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if snippets == nil {
		snippets = []domain.KnowledgeSnippet{}
	}
	s.respondJSON(w, http.StatusOK, snippets)
}

func (s *Server) handleKnowledgeAdd(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content    string `json:"content"`
		SourceName string `json:"sourceName,omitempty"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	if strings.TrimSpace(payload.Content) == "" {
		s.respondError(w, domain.ValidationError("add knowledge", errors.New("empty content")))
		return
	}

	vec, err := s.embedder.Embed(r.Context(), payload.Content)
	if err != nil {
		s.respondError(w, err)
		return
	}

	snip := domain.KnowledgeSnippet{
		Content:    strings.TrimSpace(payload.Content),
		SourceName: payload.SourceName,
		Embedding:  vec,
	}
	if err := s.knowledge.Add(r.Context(), &snip); err != nil {
		s.respondError(w, err)
		return
	}
	snip.Embedding = nil
	s.respondJSON(w, http.StatusCreated, snip)
}

func (s *Server) handleKnowledgeDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.knowledge.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// paramSearcher is implemented by searchers that accept per-call
// overrides for match count and threshold.
type paramSearcher interface {
	SearchParams(ctx context.Context, query string, queryVec []float32, params knowledge.Params) ([]domain.KnowledgeSnippet, error)
}

func (s *Server) handleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Query         string    `json:"query"`
		Embedding     []float32 `json:"embedding,omitempty"`
		MatchCount    int       `json:"matchCount,omitempty"`
		Threshold     *float64  `json:"threshold,omitempty"`
		LexicalWeight float64   `json:"lexicalWeight,omitempty"`
		VectorWeight  float64   `json:"vectorWeight,omitempty"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	if strings.TrimSpace(payload.Query) == "" {
		s.respondError(w, domain.ValidationError("search", errors.New("empty query")))
		return
	}

	vec := payload.Embedding
	if len(vec) == 0 {
		var err error
		vec, err = s.embedder.Embed(r.Context(), payload.Query)
		if err != nil {
			s.respondError(w, err)
			return
		}
	}

	var matches []domain.KnowledgeSnippet
	var err error
	overridden := payload.MatchCount > 0 || payload.Threshold != nil ||
		payload.LexicalWeight != 0 || payload.VectorWeight != 0
	ps, hasParams := s.searcher.(paramSearcher)
	if hasParams && overridden {
		params := knowledge.Params{
			MatchCount:    payload.MatchCount,
			Threshold:     -1,
			LexicalWeight: payload.LexicalWeight,
			VectorWeight:  payload.VectorWeight,
		}
		if payload.Threshold != nil {
			params.Threshold = *payload.Threshold
		}
		matches, err = ps.SearchParams(r.Context(), payload.Query, vec, params)
	} else {
		matches, err = s.searcher.Search(r.Context(), payload.Query, vec)
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	if matches == nil {
		matches = []domain.KnowledgeSnippet{}
	}
	s.respondJSON(w, http.StatusOK, matches)
}

// --- settings endpoints ---

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.Get(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var settings domain.AISettings
	if err := decodeJSON(r, &settings); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.settings.Save(r.Context(), settings); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, settings)
}

// --- conversation endpoints ---

func (s *Server) handleConversationList(w http.ResponseWriter, r *http.Request) {
	conversations, err := s.conversations.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	s.respondJSON(w, http.StatusOK, conversations)
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.conversations.Get(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	msgs, err := s.conversations.Messages(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	s.respondJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleConversationAI(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.conversations.SetAIEnabled(r.Context(), id, payload.Enabled); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"id": id, "aiEnabled": payload.Enabled})
}

// --- health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// --- helpers ---

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.ValidationError("decode request", err)
	}
	return nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response")
	}
}

// respondError maps error kinds to HTTP status codes.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case domain.IsKind(err, domain.KindValidation):
		status = http.StatusBadRequest
	case domain.IsKind(err, domain.KindDependency), domain.IsKind(err, domain.KindDelivery):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.respondJSON(w, status, map[string]any{"error": err.Error()})
}
