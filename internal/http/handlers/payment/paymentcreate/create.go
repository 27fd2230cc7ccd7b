// Package paymentcreate создаёт платёжное намерение на покупку тарифа.
package paymentcreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
)

// Request представляет запрос на создание платежа.
type Request struct {
	PlanID       string `json:"planId" validate:"required"`
	DiscountCode string `json:"discountCode,omitempty" validate:"max=64"`
}

// ProviderClient определяет интерфейс для работы с платежным провайдером.
type ProviderClient interface {
	CreatePaymentIntent(ctx context.Context, userID string, q models.Quote) (string, error)
}

// Quoter рассчитывает цену тарифа со скидкой по реферальному коду.
type Quoter interface {
	Quote(ctx context.Context, planID, referralCode string) (models.Quote, error)
}

// Handler обрабатывает запросы на создание платежа.
type Handler struct {
	log            *slog.Logger   // Логгер для записи информации и ошибок
	providerClient ProviderClient // Клиент провайдера, nil если платежи не настроены
	quoter         Quoter
	validate       *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый экземпляр Handler. providerClient может быть nil.
func New(log *slog.Logger, providerClient ProviderClient, quoter Quoter) *Handler {
	return &Handler{
		log:            log,
		providerClient: providerClient,
		quoter:         quoter,
		validate:       validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать платеж
// @Description Рассчитывает цену тарифа с учётом реферального кода и создаёт платёжное намерение Stripe
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф и код скидки"
// @Success 200 {object} response.Response "clientSecret и расчёт цены"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Тариф не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Платежи не настроены"
// @Router /create-payment-intent [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if h.providerClient == nil {
		log.Warn("payments are not configured")
		response.Fail(w, r, http.StatusServiceUnavailable, "payments are not configured")
		return
	}

	principal, ok := middlewarectx.PrincipalFrom(r.Context())
	if !ok {
		log.Error("principal not found in context")
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	quote, err := h.quoter.Quote(r.Context(), req.PlanID, req.DiscountCode)
	if errors.Is(err, commission.ErrPlanNotFound) {
		log.Warn("plan not found", slog.String("plan_id", req.PlanID))
		response.Fail(w, r, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		log.Error("failed to quote plan", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	secret, err := h.providerClient.CreatePaymentIntent(r.Context(), principal.UserID, quote)
	if err != nil {
		log.Error("failed to create payment intent", sl.Err(err))
		response.Fail(w, r, http.StatusBadGateway, "payment provider error")
		return
	}

	log.Info("payment intent created",
		slog.String("user_id", principal.UserID),
		slog.String("plan_id", quote.PlanID),
		slog.String("final_price", quote.FinalPrice.StringFixed(2)),
	)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"clientSecret": secret,
		"quote":        quote,
	}))
}
