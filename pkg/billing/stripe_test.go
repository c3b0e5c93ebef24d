package billing

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/platinummonkey/creditmeter/pkg/observability"
)

const testWebhookSecret = "whsec_test_secret"

func newTestStripeProvider() *StripeProvider {
	return NewStripeProvider("sk_test_unused", testWebhookSecret, "http://localhost:5173", observability.NewNopMetrics())
}

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func checkoutCompletedPayload(eventID, customerID, subscriptionID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"type": "checkout.session.completed",
		"api_version": "2025-05-28.basil",
		"data": {
			"object": {
				"id": "cs_test_1",
				"object": "checkout.session",
				"customer": %q,
				"subscription": %q,
				"payment_status": "paid",
				"mode": "subscription"
			}
		}
	}`, eventID, customerID, subscriptionID))
}

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in   stripe.SubscriptionStatus
		want Status
	}{
		{stripe.SubscriptionStatusActive, StatusActive},
		{stripe.SubscriptionStatusTrialing, StatusActive},
		{stripe.SubscriptionStatusIncomplete, StatusIncomplete},
		{stripe.SubscriptionStatusPastDue, StatusPastDue},
		{stripe.SubscriptionStatusUnpaid, StatusPastDue},
		{stripe.SubscriptionStatusPaused, StatusPastDue},
		{stripe.SubscriptionStatusCanceled, StatusCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, StatusCanceled},
		{stripe.SubscriptionStatus("something_new"), StatusIncomplete},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, MapStatus(tt.in))
		})
	}
}

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	p := newTestStripeProvider()
	payload := checkoutCompletedPayload("evt_1", "cus_1", "sub_1")

	event, err := p.ParseEvent(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventCheckoutSessionCompleted, event.Type)
	require.NotNil(t, event.Session)
	assert.Equal(t, "cus_1", event.Session.CustomerID)
	assert.True(t, event.Session.Paid())
	require.NotNil(t, event.Session.Subscription)
	assert.Equal(t, "sub_1", event.Session.Subscription.SubscriptionID)
}

func TestParseEvent_OtherType(t *testing.T) {
	p := newTestStripeProvider()
	payload := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`)

	event, err := p.ParseEvent(payload, signPayload(t, payload, testWebhookSecret))
	require.NoError(t, err)
	assert.Equal(t, "invoice.paid", event.Type)
	assert.Nil(t, event.Session)
}

func TestParseEvent_InvalidSignature(t *testing.T) {
	p := newTestStripeProvider()
	payload := checkoutCompletedPayload("evt_1", "cus_1", "sub_1")

	tests := []struct {
		name      string
		signature string
		payload   []byte
	}{
		{name: "wrong secret", signature: signPayload(t, payload, "whsec_other"), payload: payload},
		{name: "missing header", signature: "", payload: payload},
		{name: "tampered body", signature: signPayload(t, payload, testWebhookSecret), payload: append([]byte(nil), checkoutCompletedPayload("evt_1", "cus_evil", "sub_1")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseEvent(tt.payload, tt.signature)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestMapStripeError(t *testing.T) {
	missing := &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: 404}
	assert.ErrorIs(t, mapStripeError("get_subscription", missing), ErrNotFound)

	declined := &stripe.Error{Code: stripe.ErrorCodeCardDeclined, HTTPStatusCode: 402}
	err := mapStripeError("create_checkout_session", declined)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.False(t, errors.Is(err, ErrNotFound))

	err = mapStripeError("cancel_subscription", errors.New("connection reset"))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSnapshotFromStripe(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	sub := &stripe.Subscription{
		ID:       "sub_1",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{Price: &stripe.Price{ID: "price_pro"}, CurrentPeriodStart: start.Unix()},
			},
		},
	}

	snap := snapshotFromStripe(sub)
	assert.Equal(t, Snapshot{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		Status:         StatusActive,
		PriceID:        "price_pro",
		PeriodStart:    start,
	}, *snap)
}

func TestSessionFromStripe(t *testing.T) {
	s := sessionFromStripe(&stripe.CheckoutSession{
		ID:            "cs_1",
		URL:           "https://checkout.stripe.com/c/pay/cs_1",
		Customer:      &stripe.Customer{ID: "cus_1"},
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
	})

	assert.Equal(t, "cs_1", s.ID)
	assert.Equal(t, "cus_1", s.CustomerID)
	assert.False(t, s.Paid())
	assert.Nil(t, s.Subscription)
}
