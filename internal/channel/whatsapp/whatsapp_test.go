package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdesk/chatdesk/internal/domain"
	"github.com/chatdesk/chatdesk/internal/logging"
)

func testClient(baseURL string) *Client {
	return NewClient(Options{
		AccessToken: "token-123",
		PhoneID:     "555000",
		VerifyToken: "verify-secret",
		BaseURL:     baseURL,
		Timeout:     5 * time.Second,
	}, logging.New(nil, "silent", "json"))
}

func TestSend(t *testing.T) {
	var gotAuth string
	var gotBody sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/555000/messages", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.ABC"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	res, err := c.Send(context.Background(), "15551234", "Your order shipped.")
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", res.ProviderMessageID)
	assert.Equal(t, "15551234", res.Recipient)

	assert.Equal(t, "Bearer token-123", gotAuth)
	assert.Equal(t, "whatsapp", gotBody.MessagingProduct)
	assert.Equal(t, "individual", gotBody.RecipientType)
	assert.Equal(t, "text", gotBody.Type)
	assert.Equal(t, "Your order shipped.", gotBody.Text.Body)
	assert.False(t, gotBody.Text.PreviewURL)
}

func TestSend_GraphAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid OAuth access token","type":"OAuthException","code":190}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Send(context.Background(), "15551234", "hi")
	require.Error(t, err)
	assert.Equal(t, domain.KindDelivery, domain.KindOf(err))
	assert.Contains(t, err.Error(), "OAuthException")
}

func TestSend_Unreachable(t *testing.T) {
	c := testClient("http://127.0.0.1:1")
	_, err := c.Send(context.Background(), "15551234", "hi")
	require.Error(t, err)
	assert.Equal(t, domain.KindDelivery, domain.KindOf(err))
}

func TestVerifyWebhook(t *testing.T) {
	c := testClient("http://unused")

	challenge, ok := c.VerifyWebhook("subscribe", "verify-secret", "challenge-42")
	assert.True(t, ok)
	assert.Equal(t, "challenge-42", challenge)

	_, ok = c.VerifyWebhook("subscribe", "wrong", "challenge-42")
	assert.False(t, ok)
	_, ok = c.VerifyWebhook("unsubscribe", "verify-secret", "challenge-42")
	assert.False(t, ok)
	_, ok = c.VerifyWebhook("subscribe", "", "challenge-42")
	assert.False(t, ok)
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"contacts": [{"wa_id": "15551234", "profile": {"name": "Alice"}}],
					"messages": [{
						"id": "wamid.IN1",
						"from": "15551234",
						"timestamp": "1756380000",
						"type": "text",
						"text": {"body": "What are your business hours?"}
					}]
				}
			}]
		}]
	}`)

	msgs, err := ParseWebhook(body)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	msg := msgs[0]
	assert.Equal(t, domain.ChannelWhatsApp, msg.Channel)
	assert.Equal(t, "wamid.IN1", msg.ProviderID)
	assert.Equal(t, "15551234", msg.From)
	assert.Equal(t, "Alice", msg.FromName)
	assert.Equal(t, "What are your business hours?", msg.Body)
	assert.Equal(t, time.Unix(1756380000, 0).UTC(), msg.Timestamp)
}

func TestParseWebhook_StatusOnlyPayload(t *testing.T) {
	// Delivery receipts have no messages array; must yield nothing.
	body := []byte(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X","status":"delivered"}]}}]}]}`)
	msgs, err := ParseWebhook(body)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParseWebhook_SkipsNonText(t *testing.T) {
	body := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"messages": [
						{"id": "wamid.IMG", "from": "1", "type": "image"},
						{"id": "wamid.TXT", "from": "1", "type": "text", "text": {"body": "hello"}}
					]
				}
			}]
		}]
	}`)
	msgs, err := ParseWebhook(body)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "wamid.TXT", msgs[0].ProviderID)
}

func TestParseWebhook_Malformed(t *testing.T) {
	_, err := ParseWebhook([]byte(`{not json`))
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}
