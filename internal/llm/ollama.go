package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
)

// OllamaClient is an HTTP client for Ollama's /api/generate endpoint.
type OllamaClient struct {
	http  *resty.Client
	model string
	log   *logging.Logger
}

// OllamaOptions configures an OllamaClient.
type OllamaOptions struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOllamaClient creates a generation client for the given Ollama
// instance. baseURL should be like "http://localhost:11434".
func NewOllamaClient(opts OllamaOptions, log *logging.Logger) *OllamaClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "http://localhost:11434"
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout)

	return &OllamaClient{
		http:  http,
		model: opts.Model,
		log:   log.Sub("ollama"),
	}
}

type generateRequest struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt"`
	Stream      bool     `json:"stream"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Complete sends a non-streaming completion request.
func (o *OllamaClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	var out generateResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Model:       o.model,
			Prompt:      req.Prompt,
			Stream:      false,
			Temperature: req.Temperature,
		}).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return nil, domain.DependencyError("generate", err)
	}
	if resp.IsError() {
		return nil, domain.DependencyError("generate",
			fmt.Errorf("ollama returned %s: %s", resp.Status(), trimBody(resp.String())))
	}

	o.log.Debug().
		Dur("duration", time.Since(start)).
		Int("response_len", len(out.Response)).
		Msg("completion finished")

	return &CompletionResponse{
		Content:  out.Response,
		Model:    o.model,
		Duration: time.Since(start),
	}, nil
}

// Name returns the provider name.
func (o *OllamaClient) Name() string {
	return "ollama"
}

func trimBody(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
