package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"

	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"github.com/stillpoint/sona/internal/config"
)

const testSecret = "whsec_test"

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(config.Config{Stripe: config.StripeConfig{WebhookSecret: testSecret}})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func signedHeaders(payload []byte, secret, timestamp string) http.Header {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	signature := hex.EncodeToString(mac.Sum(nil))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", timestamp, signature))
	return headers
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_1"}`)

	if err := adapter.Verify(context.Background(), payload, signedHeaders(payload, testSecret, "1700000000")); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id":"evt_1"}`)

	cases := map[string]http.Header{
		"missing header": {},
		"wrong secret":   signedHeaders(payload, "whsec_other", "1700000000"),
		"tampered body":  signedHeaders([]byte(`{"id":"evt_2"}`), testSecret, "1700000000"),
	}
	for name, headers := range cases {
		if err := adapter.Verify(context.Background(), payload, headers); !errors.Is(err, billingdomain.ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestParseSubscriptionEvent(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{
		"id": "evt_sub_1",
		"type": "customer.subscription.updated",
		"created": 1700000000,
		"data": {
			"object": {
				"id": "sub_123",
				"customer": "cus_456",
				"status": "active",
				"metadata": {"userId": "user-1"}
			}
		}
	}`)

	event, err := adapter.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Type != billingdomain.EventTypeSubscriptionUpdated {
		t.Fatalf("unexpected type: %s", event.Type)
	}
	if event.UserID != "user-1" || event.CustomerID != "cus_456" || event.SubscriptionID != "sub_123" {
		t.Fatalf("unexpected references: %+v", event)
	}
	if event.Status != billingdomain.StatusActive {
		t.Fatalf("unexpected status: %s", event.Status)
	}
}

func TestParseRejectsMissingUser(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{
		"id": "evt_sub_2",
		"type": "customer.subscription.created",
		"data": {"object": {"id": "sub_1", "customer": "cus_1", "status": "active", "metadata": {}}}
	}`)

	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, billingdomain.ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestParseIgnoresUnknownEventTypes(t *testing.T) {
	adapter := newTestAdapter(t)
	payload := []byte(`{"id": "evt_x", "type": "invoice.finalized", "data": {"object": {}}}`)

	if _, err := adapter.Parse(context.Background(), payload); !errors.Is(err, billingdomain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
}
