package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatdesk/chatdesk/internal/channel"
	"github.com/chatdesk/chatdesk/internal/channel/whatsapp"
	"github.com/chatdesk/chatdesk/internal/config"
	"github.com/chatdesk/chatdesk/internal/embedding"
	"github.com/chatdesk/chatdesk/internal/gateway"
	"github.com/chatdesk/chatdesk/internal/knowledge"
	"github.com/chatdesk/chatdesk/internal/llm"
	"github.com/chatdesk/chatdesk/internal/notify"
	"github.com/chatdesk/chatdesk/internal/pipeline"
	"github.com/chatdesk/chatdesk/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatdesk server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath())
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if cfg.Logging.Level != "" && logLevel == "" {
				log = newLogger(cfg.Logging)
			}

			db, err := store.Open(cfg.Database.Path, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			conversations := store.NewConversationStore(db)
			snippets := store.NewKnowledgeStore(db)
			settings := store.NewSettingsStore(db)

			callTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second

			embedder := embedding.NewClient(embedding.Options{
				BaseURL: cfg.AI.OllamaBaseURL,
				Model:   cfg.AI.EmbedModel,
				Timeout: callTimeout,
			}, log)

			generator := llm.NewOllamaClient(llm.OllamaOptions{
				BaseURL: cfg.AI.OllamaBaseURL,
				Model:   cfg.AI.GenerateModel,
				Timeout: callTimeout,
			}, log)
			responder := llm.NewResponder(generator, log)

			retriever := knowledge.NewRetriever(snippets, knowledge.Params{
				MatchCount:    cfg.Retrieval.MatchCount,
				Threshold:     cfg.Retrieval.Threshold,
				LexicalWeight: cfg.Retrieval.LexicalWeight,
				VectorWeight:  cfg.Retrieval.VectorWeight,
			}, log)

			channels := channel.NewRegistry(log)
			var serverOpts []gateway.ServerOption
			if cfg.Channels.WhatsApp != nil {
				wa := whatsapp.NewClient(whatsapp.Options{
					AccessToken: cfg.Channels.WhatsApp.AccessToken,
					PhoneID:     cfg.Channels.WhatsApp.PhoneID,
					VerifyToken: cfg.Channels.WhatsApp.VerifyToken,
					BaseURL:     cfg.Channels.WhatsApp.BaseURL,
					Timeout:     callTimeout,
				}, log)
				channels.Register(wa)
				serverOpts = append(serverOpts, gateway.WithWhatsApp(wa))
			}
			if channels.Count() == 0 {
				log.Warn().Msg("no channels configured, webhooks and sends are unavailable")
			}

			hub := gateway.NewHub(cfg.Server.AllowedOrigins, log)
			publishers := []notify.Publisher{hub}
			if cfg.Notify.AMQPURL != "" {
				amqpPub, err := notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.AMQPQueue, log)
				if err != nil {
					// The console works without the broker mirror.
					log.Warn().Err(err).Msg("amqp broker unavailable, events stay local")
				} else {
					publishers = append(publishers, amqpPub)
				}
			}
			events := notify.NewFanout(publishers...)
			defer events.Close()

			pipe := pipeline.New(
				conversations, settings,
				embedder, retriever, responder, channels,
				events,
				pipeline.Options{StageTimeout: callTimeout},
				log,
			)

			server := gateway.New(cfg, pipe, conversations, snippets, settings,
				embedder, retriever, hub, log, serverOpts...)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind address (overrides config)")
	return cmd
}
