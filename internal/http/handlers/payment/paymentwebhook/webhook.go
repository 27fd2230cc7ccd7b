// Package paymentwebhook принимает события Stripe и оформляет оплаченные покупки.
package paymentwebhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/metrics"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/paymentprovider"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
	"github.com/magabrotheeeer/legal-letters/internal/telemetry"
)

const maxPayloadBytes = 64 << 10

// Parser проверяет подпись и разбирает событие.
type Parser interface {
	ParseEvent(payload []byte, signature string) (*paymentprovider.Event, error)
}

// Service оформляет оплаченную покупку.
type Service interface {
	ProcessPayment(ctx context.Context, ev models.PaymentEvent) (*models.UserSubscription, error)
}

type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	parser  Parser
	service Service
	metrics *metrics.Metrics
}

// New создаёт обработчик. parser может быть nil, если платежи не настроены.
func New(log *slog.Logger, parser Parser, service Service, m *metrics.Metrics) *Handler {
	return &Handler{
		log:     log,
		parser:  parser,
		service: service,
		metrics: m,
	}
}

// ServeHTTP godoc
// @Summary Вебхук Stripe
// @Description Принимает payment_intent.succeeded и создаёт подписку. Повторная доставка подтверждается без повторного начисления.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]bool "received"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или тело"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки, Stripe повторит доставку"
// @Failure 503 {object} response.ErrorResponse "Платежи не настроены"
// @Router /webhooks/stripe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.parser == nil {
		log.Warn("payments are not configured")
		response.Fail(w, r, http.StatusServiceUnavailable, "payments are not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := h.parser.ParseEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Error("failed to parse webhook event", sl.Err(err))
		h.metrics.WebhookEvent("unknown", "rejected")
		response.Fail(w, r, http.StatusBadRequest, "invalid webhook event")
		return
	}
	log = log.With(slog.String("event_id", event.ID), slog.String("event", event.Type))

	if event.Payment == nil {
		log.Info("ignored webhook event")
		h.metrics.WebhookEvent(event.Type, "ignored")
		render.JSON(w, r, map[string]bool{"received": true})
		return
	}

	sub, err := h.service.ProcessPayment(r.Context(), *event.Payment)
	switch {
	case errors.Is(err, commission.ErrAlreadyProcessed):
		log.Info("duplicate webhook event acknowledged")
		h.metrics.WebhookEvent(event.Type, "duplicate")
	case errors.Is(err, commission.ErrInvalidEvent), errors.Is(err, commission.ErrPlanNotFound):
		log.Error("webhook event cannot be applied", sl.Err(err))
		telemetry.CaptureError(r.Context(), err, map[string]string{"event_id": event.ID})
		h.metrics.WebhookEvent(event.Type, "rejected")
		response.Fail(w, r, http.StatusBadRequest, "event cannot be applied")
		return
	case err != nil:
		log.Error("failed to process payment", sl.Err(err))
		telemetry.CaptureError(r.Context(), err, map[string]string{"event_id": event.ID})
		h.metrics.WebhookEvent(event.Type, "error")
		response.Fail(w, r, http.StatusInternalServerError, "failed to process event")
		return
	default:
		log.Info("payment processed",
			slog.String("subscription_id", sub.ID),
			slog.String("user_id", sub.UserID),
			slog.Int("letters", sub.LettersRemaining),
		)
		h.metrics.WebhookEvent(event.Type, "processed")
	}

	render.JSON(w, r, map[string]bool{"received": true})
}
