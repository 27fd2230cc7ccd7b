// Package commissionpaid отмечает комиссию выплаченной.
package commissionpaid

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
)

type Service interface {
	MarkPaid(ctx context.Context, commissionID string) (*models.CommissionRecord, error)
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
// @Summary Отметить комиссию выплаченной
// @Tags Admin
// @Produce  json
// @Param id path string true "ID комиссии"
// @Success 200 {object} response.Response "Комиссия"
// @Failure 404 {object} response.ErrorResponse "Комиссия не найдена"
// @Failure 409 {object} response.ErrorResponse "Уже выплачена"
// @Router /admin/commissions/{id}/paid [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.commissionpaid"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if id == "" {
		response.Fail(w, r, http.StatusBadRequest, "missing commission id")
		return
	}

	rec, err := h.service.MarkPaid(r.Context(), id)
	switch {
	case errors.Is(err, commission.ErrCommissionNotFound):
		response.Fail(w, r, http.StatusNotFound, "commission not found")
		return
	case errors.Is(err, commission.ErrAlreadyPaid):
		response.Fail(w, r, http.StatusConflict, "commission already paid")
		return
	case err != nil:
		log.Error("failed to mark commission paid", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	log.Info("commission paid", slog.String("commission_id", id), slog.String("employee_id", rec.EmployeeID))
	render.JSON(w, r, response.OKWithData(rec))
}
