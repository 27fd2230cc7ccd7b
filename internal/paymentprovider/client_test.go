package paymentprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

const webhookSecret = "whsec_test_secret"

func succeededPayload(eventID string, meta string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"api_version": "2020-08-27",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "object": "payment_intent", "metadata": %s}}
	}`, eventID, meta))
}

const fullMeta = `{"userId":"u1","planId":"plan-1","discountCode":"EMPLOYEE20-JD",
	"originalPrice":"299.00","discountAmount":"59.80","finalPrice":"239.20"}`

func TestParseEvent_Signed(t *testing.T) {
	c := NewClient("sk_test", webhookSecret, nil)
	payload := succeededPayload("evt_1", fullMeta)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})

	ev, err := c.ParseEvent(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	require.NotNil(t, ev.Payment)
	assert.Equal(t, models.PaymentEvent{
		EventID:        "evt_1",
		PaymentRef:     "pi_123",
		UserID:         "u1",
		PlanID:         "plan-1",
		DiscountCode:   "EMPLOYEE20-JD",
		OriginalPrice:  decimal.RequireFromString("299.00"),
		DiscountAmount: decimal.RequireFromString("59.80"),
		FinalPrice:     decimal.RequireFromString("239.20"),
	}, *ev.Payment)

	_, err = c.ParseEvent(payload, "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func sign(payload []byte) (body []byte, header string) {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    webhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func TestParseEvent_Payloads(t *testing.T) {
	c := NewClient("sk_test", webhookSecret, nil)

	tests := []struct {
		name       string
		payload    []byte
		wantErr    error
		wantPaymnt bool
	}{
		{name: "succeeded", payload: succeededPayload("evt_2", fullMeta), wantPaymnt: true},
		{name: "other type is ignored", payload: []byte(`{"id":"evt_3","object":"event","type":"charge.refunded","data":{"object":{}}}`)},
		{name: "garbage", payload: []byte("not json"), wantErr: ErrMalformedEvent},
		{name: "missing user", payload: succeededPayload("evt_4", `{"planId":"p"}`), wantErr: ErrMalformedEvent},
		{name: "bad price", payload: succeededPayload("evt_5", `{"userId":"u","planId":"p","finalPrice":"abc"}`), wantErr: ErrMalformedEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, header := sign(tt.payload)
			ev, err := c.ParseEvent(body, header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPaymnt, ev.Payment != nil)
		})
	}
}

func TestParseEvent_RejectsWithoutWebhookSecret(t *testing.T) {
	c := NewClient("sk_test", "", nil)
	forged := succeededPayload("evt_forged", `{"userId":"attacker","planId":"premium"}`)

	tests := []struct {
		name    string
		payload []byte
		header  string
	}{
		{name: "no signature", payload: forged},
		{name: "signature with another secret", payload: forged, header: "t=1,v1=deadbeef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := c.ParseEvent(tt.payload, tt.header)
			assert.Nil(t, ev)
			assert.ErrorIs(t, err, ErrNoWebhookSecret)
		})
	}
}

func TestParseEvent_MissingPricesDefaultToZero(t *testing.T) {
	c := NewClient("sk_test", webhookSecret, nil)
	body, header := sign(succeededPayload("evt_6", `{"userId":"u","planId":"p"}`))
	ev, err := c.ParseEvent(body, header)
	require.NoError(t, err)
	assert.True(t, ev.Payment.FinalPrice.IsZero())
	assert.Empty(t, ev.Payment.DiscountCode)
}

func TestCreatePaymentIntent(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_1","object":"payment_intent","client_secret":"pi_1_secret_abc"}`))
	}))
	defer srv.Close()

	backends := &stripe.Backends{
		API: stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(srv.URL),
			MaxNetworkRetries: stripe.Int64(0),
		}),
	}
	c := NewClient("sk_test", "", backends)

	secret, err := c.CreatePaymentIntent(context.Background(), "u1", models.Quote{
		PlanID:         "plan-1",
		DiscountCode:   "EMPLOYEE20-JD",
		OriginalPrice:  decimal.RequireFromString("299"),
		DiscountAmount: decimal.RequireFromString("59.8"),
		FinalPrice:     decimal.RequireFromString("239.2"),
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret_abc", secret)
	assert.Equal(t, "23920", form["amount"])
	assert.Equal(t, "usd", form["currency"])
	assert.Equal(t, "u1", form["metadata[userId]"])
	assert.Equal(t, "239.20", form["metadata[finalPrice]"])
	assert.Equal(t, "EMPLOYEE20-JD", form["metadata[discountCode]"])
}
