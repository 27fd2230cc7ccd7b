// Package update применяет ручную корректировку счётчиков писем.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/subscription"
)

// Service описывает корректировку счётчиков.
type Service interface {
	CorrectCredits(ctx context.Context, adminID, subID string, c models.CreditCorrection) (*models.UserSubscription, error)
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
// @Summary Скорректировать остаток писем
// @Description Относительные приращения счётчиков подписки. Счётчики не могут стать отрицательными.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID подписки"
// @Param request body models.CreditCorrection true "Корректировка"
// @Success 200 {object} response.Response "Подписка после корректировки"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 409 {object} response.ErrorResponse "Счётчик стал бы отрицательным"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /admin/subscriptions/{id}/credits [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.update"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFrom(r.Context())
	if !ok {
		log.Error("principal not found in context")
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	var req models.CreditCorrection
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
	if req.RemainingDelta == 0 && req.UsedDelta == 0 {
		response.Fail(w, r, http.StatusBadRequest, "correction is empty")
		return
	}

	sub, err := h.service.CorrectCredits(r.Context(), principal.UserID, id, req)
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		response.Fail(w, r, http.StatusNotFound, "subscription not found")
		return
	case errors.Is(err, subscription.ErrInvalidCorrection):
		response.Fail(w, r, http.StatusConflict, "correction would make a counter negative")
		return
	case err != nil:
		log.Error("failed to correct credits", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	render.JSON(w, r, response.OKWithData(sub))
}
