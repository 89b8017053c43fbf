package config

import "fmt"

// Issue describes a single validation problem with its config path.
type Issue struct {
	Path    string
	Message string
}

// Validate checks the configuration for inconsistent or out-of-range
// values. It returns an empty slice when the config is usable.
func Validate(cfg *Config) []Issue {
	var issues []Issue

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		issues = append(issues, Issue{
			Path:    "server.port",
			Message: fmt.Sprintf("port %d out of range 1-65535", cfg.Server.Port),
		})
	}

	if cfg.Database.Path == "" {
		issues = append(issues, Issue{Path: "database.path", Message: "database path is required"})
	}

	if cfg.AI.TimeoutSeconds < 1 {
		issues = append(issues, Issue{Path: "ai.timeoutSeconds", Message: "timeout must be at least 1 second"})
	}

	if cfg.Retrieval.Threshold < 0 || cfg.Retrieval.Threshold > 1 {
		issues = append(issues, Issue{
			Path:    "retrieval.threshold",
			Message: fmt.Sprintf("threshold %.2f out of range 0-1", cfg.Retrieval.Threshold),
		})
	}
	if cfg.Retrieval.LexicalWeight < 0 || cfg.Retrieval.VectorWeight < 0 {
		issues = append(issues, Issue{Path: "retrieval", Message: "weights must be non-negative"})
	}
	if cfg.Retrieval.LexicalWeight+cfg.Retrieval.VectorWeight == 0 {
		issues = append(issues, Issue{Path: "retrieval", Message: "at least one weight must be positive"})
	}
	if cfg.Retrieval.MatchCount < 1 {
		issues = append(issues, Issue{Path: "retrieval.matchCount", Message: "matchCount must be at least 1"})
	}

	if wa := cfg.Channels.WhatsApp; wa != nil {
		if wa.AccessToken == "" {
			issues = append(issues, Issue{Path: "channels.whatsapp.accessToken", Message: "access token is required"})
		}
		if wa.PhoneID == "" {
			issues = append(issues, Issue{Path: "channels.whatsapp.phoneId", Message: "phone id is required"})
		}
		if wa.VerifyToken == "" {
			issues = append(issues, Issue{Path: "channels.whatsapp.verifyToken", Message: "verify token is required"})
		}
	}

	return issues
}
