// Package whatsapp implements the WhatsApp Business Cloud API channel:
// outbound sends through the Graph API and inbound webhook decoding.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
)

// DefaultBaseURL is the Graph API endpoint used unless overridden
// (tests point this at a local server).
const DefaultBaseURL = "https://graph.facebook.com/v17.0"

// Client sends text messages through the WhatsApp Business Cloud API.
type Client struct {
	http        *resty.Client
	phoneID     string
	verifyToken string
	log         *logging.Logger
}

// Options configures a Client.
type Options struct {
	AccessToken string
	PhoneID     string
	VerifyToken string
	BaseURL     string
	Timeout     time.Duration
}

// NewClient creates a WhatsApp channel client.
func NewClient(opts Options, log *logging.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(opts.Timeout).
		SetAuthToken(opts.AccessToken).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:        http,
		phoneID:     opts.PhoneID,
		verifyToken: opts.VerifyToken,
		log:         log.Sub("whatsapp"),
	}
}

// ID returns the channel identifier.
func (c *Client) ID() domain.ChannelID {
	return domain.ChannelWhatsApp
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// Send delivers a text message to the given phone number.
func (c *Client) Send(ctx context.Context, to, text string) (*domain.DeliveryResult, error) {
	var out sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			MessagingProduct: "whatsapp",
			RecipientType:    "individual",
			To:               to,
			Type:             "text",
			Text:             sendText{PreviewURL: false, Body: text},
		}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/%s/messages", c.phoneID))
	if err != nil {
		return nil, domain.DeliveryError("whatsapp send", err)
	}
	if resp.IsError() {
		if out.Error != nil {
			return nil, domain.DeliveryError("whatsapp send",
				fmt.Errorf("graph api %d (%s): %s", out.Error.Code, out.Error.Type, out.Error.Message))
		}
		return nil, domain.DeliveryError("whatsapp send",
			fmt.Errorf("graph api returned %s", resp.Status()))
	}

	result := &domain.DeliveryResult{Recipient: to}
	if len(out.Messages) > 0 {
		result.ProviderMessageID = out.Messages[0].ID
	}
	c.log.Debug().Str("to", to).Str("provider_id", result.ProviderMessageID).Msg("message delivered")
	return result, nil
}

// VerifyWebhook checks a webhook subscription handshake. It returns the
// challenge to echo back, or false when the mode or token do not match.
func (c *Client) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode == "subscribe" && token != "" && token == c.verifyToken {
		return challenge, true
	}
	return "", false
}
