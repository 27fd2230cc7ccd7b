// Package paymentprovider создаёт платёжные намерения в Stripe и разбирает
// подписанные события вебхука в события оплаты сервиса.
package paymentprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

// EventPaymentSucceeded — тип события успешной оплаты.
const EventPaymentSucceeded = "payment_intent.succeeded"

// Ключи метаданных платёжного намерения.
const (
	MetaUserID         = "userId"
	MetaPlanID         = "planId"
	MetaDiscountCode   = "discountCode"
	MetaOriginalPrice  = "originalPrice"
	MetaDiscountAmount = "discountAmount"
	MetaFinalPrice     = "finalPrice"
)

var (
	// ErrInvalidSignature — подпись вебхука не прошла проверку.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent — тело события не разбирается.
	ErrMalformedEvent = errors.New("malformed webhook event")
	// ErrNoWebhookSecret — секрет вебхука не задан, события не принимаются.
	ErrNoWebhookSecret = errors.New("webhook secret is not configured")
)

// Event — разобранное событие вебхука. Payment заполнен только для EventPaymentSucceeded.
type Event struct {
	ID      string
	Type    string
	Payment *models.PaymentEvent
}

// Client обёртка над stripe-go.
type Client struct {
	api           *client.API
	webhookSecret string
	currency      stripe.Currency
}

// NewClient создаёт клиента. backends позволяет подменить адрес API в тестах, nil — боевой.
func NewClient(secretKey, webhookSecret string, backends *stripe.Backends) *Client {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &Client{api: api, webhookSecret: webhookSecret, currency: stripe.CurrencyUSD}
}

// CreatePaymentIntent создаёт платёжное намерение на сумму quote и возвращает client secret.
func (c *Client) CreatePaymentIntent(ctx context.Context, userID string, q models.Quote) (string, error) {
	const op = "paymentprovider.CreatePaymentIntent"
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(q.AmountCents()),
		Currency: stripe.String(string(c.currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata(MetaUserID, userID)
	params.AddMetadata(MetaPlanID, q.PlanID)
	params.AddMetadata(MetaDiscountCode, q.DiscountCode)
	params.AddMetadata(MetaOriginalPrice, q.OriginalPrice.StringFixed(2))
	params.AddMetadata(MetaDiscountAmount, q.DiscountAmount.StringFixed(2))
	params.AddMetadata(MetaFinalPrice, q.FinalPrice.StringFixed(2))

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return pi.ClientSecret, nil
}

// ParseEvent проверяет подпись и разбирает событие.
// Без секрета вебхука любое событие отклоняется.
func (c *Client) ParseEvent(payload []byte, signature string) (*Event, error) {
	const op = "paymentprovider.ParseEvent"
	if c.webhookSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoWebhookSecret)
	}
	if err := webhook.ValidatePayload(payload, signature, c.webhookSecret); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}
	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedEvent, err)
	}

	out := &Event{ID: ev.ID, Type: string(ev.Type)}
	if out.Type != EventPaymentSucceeded {
		return out, nil
	}
	if ev.Data == nil {
		return nil, fmt.Errorf("%s: %w: no data", op, ErrMalformedEvent)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedEvent, err)
	}
	payment, err := paymentFromMetadata(ev.ID, pi.ID, pi.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out.Payment = payment
	return out, nil
}

func paymentFromMetadata(eventID, paymentRef string, meta map[string]string) (*models.PaymentEvent, error) {
	if meta[MetaUserID] == "" || meta[MetaPlanID] == "" {
		return nil, fmt.Errorf("%w: userId and planId metadata are required", ErrMalformedEvent)
	}
	p := &models.PaymentEvent{
		EventID:      eventID,
		PaymentRef:   paymentRef,
		UserID:       meta[MetaUserID],
		PlanID:       meta[MetaPlanID],
		DiscountCode: meta[MetaDiscountCode],
	}
	for key, dst := range map[string]*decimal.Decimal{
		MetaOriginalPrice:  &p.OriginalPrice,
		MetaDiscountAmount: &p.DiscountAmount,
		MetaFinalPrice:     &p.FinalPrice,
	} {
		v := meta[key]
		if v == "" {
			*dst = decimal.Zero
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedEvent, key, err)
		}
		*dst = d
	}
	return p, nil
}
