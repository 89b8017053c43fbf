package config

import (
	"os"
	"regexp"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so tokens can be stored as ${ENV_VAR} in the file.
func expandSensitiveFields(cfg *Config) {
	cfg.Server.AuthToken = expandEnvVars(cfg.Server.AuthToken)
	cfg.Notify.AMQPURL = expandEnvVars(cfg.Notify.AMQPURL)
	if wa := cfg.Channels.WhatsApp; wa != nil {
		wa.AccessToken = expandEnvVars(wa.AccessToken)
		wa.VerifyToken = expandEnvVars(wa.VerifyToken)
	}
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. A missing file produces defaults only. A .env file in
// the working directory is loaded first so referenced variables resolve.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // absent .env is fine

	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandSensitiveFields(&cfg)
	return cfg, nil
}

// applyDefaults fills zero values left by partial config files.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = def.Server.Bind
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.AI.OllamaBaseURL == "" {
		cfg.AI.OllamaBaseURL = def.AI.OllamaBaseURL
	}
	if cfg.AI.GenerateModel == "" {
		cfg.AI.GenerateModel = def.AI.GenerateModel
	}
	if cfg.AI.EmbedModel == "" {
		cfg.AI.EmbedModel = def.AI.EmbedModel
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = def.AI.TimeoutSeconds
	}
	if cfg.Retrieval.MatchCount == 0 {
		cfg.Retrieval.MatchCount = def.Retrieval.MatchCount
	}
	if cfg.Retrieval.Threshold == 0 {
		cfg.Retrieval.Threshold = def.Retrieval.Threshold
	}
	if cfg.Retrieval.LexicalWeight == 0 && cfg.Retrieval.VectorWeight == 0 {
		cfg.Retrieval.LexicalWeight = def.Retrieval.LexicalWeight
		cfg.Retrieval.VectorWeight = def.Retrieval.VectorWeight
	}
	if cfg.Notify.AMQPQueue == "" {
		cfg.Notify.AMQPQueue = def.Notify.AMQPQueue
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Style == "" {
		cfg.Logging.Style = def.Logging.Style
	}
}

// applyEnvOverrides maps well-known environment variables onto the config.
// File values lose to environment values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHATDESK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CHATDESK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CHATDESK_AUTH_TOKEN"); v != "" {
		cfg.Server.AuthToken = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.AI.OllamaBaseURL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.Notify.AMQPURL = v
	}

	// WhatsApp credentials can come entirely from the environment.
	token := os.Getenv("WHATSAPP_ACCESS_TOKEN")
	phoneID := os.Getenv("WHATSAPP_PHONE_ID")
	verify := os.Getenv("WHATSAPP_VERIFY_TOKEN")
	if token != "" || phoneID != "" || verify != "" {
		if cfg.Channels.WhatsApp == nil {
			cfg.Channels.WhatsApp = &WhatsAppConfig{}
		}
		if token != "" {
			cfg.Channels.WhatsApp.AccessToken = token
		}
		if phoneID != "" {
			cfg.Channels.WhatsApp.PhoneID = phoneID
		}
		if verify != "" {
			cfg.Channels.WhatsApp.VerifyToken = verify
		}
	}
}

// ConfigError is returned when the config file cannot be parsed.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }
