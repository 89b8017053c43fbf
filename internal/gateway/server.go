// Package gateway exposes the HTTP and WebSocket surface: channel
// webhooks, the operator console API, and live conversation updates.
package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/chatdesk/chatdesk/internal/channel/whatsapp"
	"github.com/chatdesk/chatdesk/internal/config"
	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
	"github.com/chatdesk/chatdesk/internal/pipeline"
	"github.com/chatdesk/chatdesk/internal/store"
	"github.com/chatdesk/chatdesk/internal/version"
)

// Searcher ranks knowledge snippets for the search endpoint.
type Searcher interface {
	Search(ctx context.Context, query string, queryVec []float32) ([]domain.KnowledgeSnippet, error)
}

// Embedder produces vectors for the embeddings and knowledge endpoints.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// InboundHandler processes inbound and operator messages. Implemented
// by pipeline.Pipeline.
type InboundHandler interface {
	HandleInbound(ctx context.Context, in domain.InboundMessage) (*pipeline.Result, error)
	HandleSend(ctx context.Context, req pipeline.SendRequest) (*pipeline.Result, error)
}

// Server is the console HTTP + WebSocket server.
type Server struct {
	cfg           config.Config
	log           *logging.Logger
	handler       InboundHandler
	conversations *store.ConversationStore
	knowledge     *store.KnowledgeStore
	settings      *store.SettingsStore
	embedder      Embedder
	searcher      Searcher
	whatsapp      *whatsapp.Client // nil when the channel is not configured
	hub           *Hub

	startedAt  time.Time
	httpServer *http.Server
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithWhatsApp enables the WhatsApp webhook endpoints.
func WithWhatsApp(client *whatsapp.Client) ServerOption {
	return func(s *Server) { s.whatsapp = client }
}

// New creates a gateway server.
func New(
	cfg config.Config,
	handler InboundHandler,
	conversations *store.ConversationStore,
	knowledge *store.KnowledgeStore,
	settings *store.SettingsStore,
	embedder Embedder,
	searcher Searcher,
	hub *Hub,
	log *logging.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		cfg:           cfg,
		log:           log.Sub("gateway"),
		handler:       handler,
		conversations: conversations,
		knowledge:     knowledge,
		settings:      settings,
		embedder:      embedder,
		searcher:      searcher,
		hub:           hub,
		startedAt:     time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the route table with middleware applied.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	// Channel webhooks are called by the provider and carry their own
	// verification, so they sit outside API auth.
	if s.whatsapp != nil {
		r.HandleFunc("/webhook/whatsapp", s.handleWebhookVerify).Methods(http.MethodGet)
		r.HandleFunc("/webhook/whatsapp", s.handleWebhookEvent).Methods(http.MethodPost)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return authMiddleware(next, s.cfg.Server.AuthToken)
	})
	api.HandleFunc("/messages/send", s.handleSend).Methods(http.MethodPost)
	api.HandleFunc("/embeddings", s.handleEmbeddings).Methods(http.MethodPost)
	api.HandleFunc("/knowledge", s.handleKnowledgeList).Methods(http.MethodGet)
	api.HandleFunc("/knowledge", s.handleKnowledgeAdd).Methods(http.MethodPost)
	api.HandleFunc("/knowledge/search", s.handleKnowledgeSearch).Methods(http.MethodPost)
	api.HandleFunc("/knowledge/{id}", s.handleKnowledgeDelete).Methods(http.MethodDelete)
	api.HandleFunc("/settings", s.handleSettingsGet).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleSettingsPut).Methods(http.MethodPut)
	api.HandleFunc("/conversations", s.handleConversationList).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/messages", s.handleConversationMessages).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/ai", s.handleConversationAI).Methods(http.MethodPut)

	r.HandleFunc("/ws", s.hub.HandleWS).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return baseChain(s.log, s.cfg.Server.AllowedOrigins).Then(r)
}

// Start listens for connections and blocks until the context is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := s.bindAddr()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // generation can be slow
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("version", version.Version).
		Bool("whatsapp", s.whatsapp != nil).
		Msg("gateway listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info().Msg("gateway shutting down")
	s.hub.CloseAll()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) bindAddr() string {
	host := s.cfg.Server.Bind
	switch host {
	case "", "loopback":
		host = "127.0.0.1"
	case "all", "lan":
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", host, s.cfg.Server.Port)
}
