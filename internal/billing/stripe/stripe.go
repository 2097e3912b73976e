package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"github.com/stillpoint/sona/internal/config"
)

// Adapter verifies Stripe webhook signatures and maps subscription lifecycle
// events onto the provider-neutral billing event shape.
type Adapter struct {
	webhookSecret string
}

func NewAdapter(cfg config.Config) (*Adapter, error) {
	secret := strings.TrimSpace(cfg.Stripe.WebhookSecret)
	if secret == "" {
		return nil, billingdomain.ErrInvalidSignature
	}
	return &Adapter{webhookSecret: secret}, nil
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) Verify(_ context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return billingdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return billingdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return billingdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(_ context.Context, payload []byte) (*billingdomain.Event, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "customer.subscription.created":
		return a.parseSubscription(event, payload, billingdomain.EventTypeSubscriptionCreated)
	case "customer.subscription.updated":
		return a.parseSubscription(event, payload, billingdomain.EventTypeSubscriptionUpdated)
	case "customer.subscription.deleted":
		return a.parseSubscription(event, payload, billingdomain.EventTypeSubscriptionDeleted)
	case "setup_intent.succeeded":
		return a.parseSetupIntent(event, payload)
	default:
		return nil, billingdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeSubscription struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

type stripeSetupIntent struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Created  int64             `json:"created"`
	Metadata map[string]string `json:"metadata"`
}

func (a *Adapter) parseSubscription(event stripeEvent, payload []byte, eventType string) (*billingdomain.Event, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	userID := strings.TrimSpace(sub.Metadata["userId"])
	if userID == "" {
		return nil, billingdomain.ErrMissingUser
	}

	return &billingdomain.Event{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            eventType,
		UserID:          userID,
		CustomerID:      strings.TrimSpace(sub.Customer),
		SubscriptionID:  sub.ID,
		Status:          strings.TrimSpace(sub.Status),
		OccurredAt:      timestamp(sub.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func (a *Adapter) parseSetupIntent(event stripeEvent, payload []byte) (*billingdomain.Event, error) {
	var intent stripeSetupIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}

	userID := strings.TrimSpace(intent.Metadata["userId"])
	if userID == "" {
		return nil, billingdomain.ErrMissingUser
	}

	return &billingdomain.Event{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            billingdomain.EventTypeSetupCompleted,
		UserID:          userID,
		CustomerID:      strings.TrimSpace(intent.Customer),
		OccurredAt:      timestamp(intent.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" && value != "" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, billingdomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

func timestamp(primary, fallback int64) time.Time {
	if primary > 0 {
		return time.Unix(primary, 0).UTC()
	}
	if fallback > 0 {
		return time.Unix(fallback, 0).UTC()
	}
	return time.Now().UTC()
}
