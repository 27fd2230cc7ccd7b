// Package list отдаёт каталог активных тарифов.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

// Service описывает чтение каталога тарифов.
type Service interface {
	ListPlans(ctx context.Context) ([]*models.SubscriptionPlan, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Тарифы
// @Description Активные тарифы, дешёвые первыми.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Список тарифов"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscription-plans [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "failed to list plans")
		return
	}

	log.Debug("list plans", "count", len(plans))
	render.JSON(w, r, response.OKWithData(plans))
}
