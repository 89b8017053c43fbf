// Package config loads and validates the chatdesk configuration.
package config

// Config is the root configuration for chatdesk.
type Config struct {
	Server    ServerConfig    `yaml:"server,omitempty"`
	Database  DatabaseConfig  `yaml:"database,omitempty"`
	AI        AIConfig        `yaml:"ai,omitempty"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Channels  ChannelsConfig  `yaml:"channels,omitempty"`
	Notify    NotifyConfig    `yaml:"notify,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan" | host
	AuthToken      string   `yaml:"authToken,omitempty"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
}

// DatabaseConfig controls the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"` // ":memory:" for tests
}

// AIConfig controls the generation and embedding backends.
type AIConfig struct {
	OllamaBaseURL  string `yaml:"ollamaBaseUrl,omitempty"`
	GenerateModel  string `yaml:"generateModel,omitempty"`
	EmbedModel     string `yaml:"embedModel,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"` // per external call
}

// RetrievalConfig controls hybrid knowledge search defaults.
type RetrievalConfig struct {
	MatchCount    int     `yaml:"matchCount,omitempty"`
	Threshold     float64 `yaml:"threshold,omitempty"`
	LexicalWeight float64 `yaml:"lexicalWeight,omitempty"`
	VectorWeight  float64 `yaml:"vectorWeight,omitempty"`
}

// ChannelsConfig holds per-platform delivery credentials. A channel is
// registered only when its section is present.
type ChannelsConfig struct {
	WhatsApp *WhatsAppConfig `yaml:"whatsapp,omitempty"`
}

// WhatsAppConfig configures the WhatsApp Business (Cloud) API channel.
type WhatsAppConfig struct {
	AccessToken string `yaml:"accessToken"`
	PhoneID     string `yaml:"phoneId"`
	VerifyToken string `yaml:"verifyToken"`
	BaseURL     string `yaml:"baseUrl,omitempty"` // override for tests
}

// NotifyConfig controls the optional AMQP mirror of message events.
// The websocket hub is always on; AMQP publishing is enabled only when
// URL is set.
type NotifyConfig struct {
	AMQPURL   string `yaml:"amqpUrl,omitempty"`
	AMQPQueue string `yaml:"amqpQueue,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent".."trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 8090,
			Bind: "loopback",
		},
		Database: DatabaseConfig{
			Path: "chatdesk.db",
		},
		AI: AIConfig{
			OllamaBaseURL:  "http://localhost:11434",
			GenerateModel:  "llama2",
			EmbedModel:     "snowflake-arctic-embed2",
			TimeoutSeconds: 60,
		},
		Retrieval: RetrievalConfig{
			MatchCount:    5,
			Threshold:     0.5,
			LexicalWeight: 0.5,
			VectorWeight:  0.5,
		},
		Notify: NotifyConfig{
			AMQPQueue: "chatdesk_events",
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}
