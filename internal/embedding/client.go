// Package embedding turns free text into dense vectors via the Ollama
// embeddings API.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
)

// MaxInputLength caps embedding input after sanitization.
const MaxInputLength = 1000

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client calls Ollama's /api/embeddings endpoint.
type Client struct {
	http  *resty.Client
	model string
	log   *logging.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates an embeddings client for the given Ollama instance.
func NewClient(opts Options, log *logging.Logger) *Client {
	http := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{
		http:  http,
		model: opts.Model,
		log:   log.Sub("embedding"),
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed sanitizes the text and returns its embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	input := Sanitize(text)
	if input == "" {
		return nil, domain.ValidationError("embed", fmt.Errorf("empty input"))
	}

	var out embedResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(embedRequest{Model: c.model, Prompt: input}).
		SetResult(&out).
		Post("/api/embeddings")
	if err != nil {
		return nil, domain.DependencyError("embed", err)
	}
	if resp.IsError() {
		return nil, domain.DependencyError("embed",
			fmt.Errorf("ollama returned %s: %s", resp.Status(), truncate(resp.String(), 200)))
	}
	if len(out.Embedding) == 0 {
		return nil, domain.DependencyError("embed", fmt.Errorf("ollama returned no embedding"))
	}

	c.log.Debug().Int("dims", len(out.Embedding)).Int("input_len", len(input)).Msg("embedded text")
	return out.Embedding, nil
}

// Sanitize strips control characters, collapses surrounding whitespace,
// and caps the input length.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == 0 || (unicode.IsControl(r) && r != '\n' && r != '\t') {
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if len(out) > MaxInputLength {
		// Back up to a rune boundary so the cap never splits a
		// multi-byte character.
		cut := MaxInputLength
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = strings.TrimSpace(out[:cut])
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
