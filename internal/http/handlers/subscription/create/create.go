// Package create добавляет тариф в каталог.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/subscription"
)

// Request — новый тариф. Цена передаётся строкой, чтобы не терять копейки.
type Request struct {
	ID           string   `json:"id,omitempty" validate:"omitempty,uuid"`
	Name         string   `json:"name" validate:"required,max=100"`
	Description  string   `json:"description" validate:"max=1000"`
	LetterCount  int      `json:"letterCount" validate:"required,min=1"`
	Price        string   `json:"price" validate:"required,numeric"`
	BillingCycle string   `json:"billingCycle" validate:"required,oneof=one-time yearly"`
	Features     []string `json:"features"`
}

// Service описывает создание тарифа.
type Service interface {
	CreatePlan(ctx context.Context, p models.SubscriptionPlan) (*models.SubscriptionPlan, error)
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать тариф
// @Description Существующие тарифы не меняются, новая цена оформляется новым тарифом.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body Request true "Тариф"
// @Success 201 {object} response.Response "Созданный тариф"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или цена"
// @Failure 409 {object} response.ErrorResponse "Тариф с таким ID уже есть"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/plans [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		log.Warn("invalid price", slog.String("price", req.Price))
		response.Fail(w, r, http.StatusBadRequest, "price must be a positive amount")
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), models.SubscriptionPlan{
		ID:           req.ID,
		Name:         req.Name,
		Description:  req.Description,
		LetterCount:  req.LetterCount,
		Price:        price.Round(2),
		BillingCycle: models.BillingCycle(req.BillingCycle),
		Features:     req.Features,
		IsActive:     true,
	})
	if errors.Is(err, subscription.ErrPlanExists) {
		log.Warn("plan already exists", slog.String("plan_id", req.ID))
		response.Fail(w, r, http.StatusConflict, "plan already exists")
		return
	}
	if err != nil {
		log.Error("failed to create plan", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "failed to create plan")
		return
	}

	log.Info("plan created", slog.String("plan_id", plan.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(plan))
}
