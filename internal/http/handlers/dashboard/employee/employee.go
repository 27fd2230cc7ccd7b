// Package employee отдаёт сводку сотрудника: итоги и начисленные комиссии.
package employee

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
)

// Service описывает сводку сотрудника.
type Service interface {
	EmployeeDashboard(ctx context.Context, userID string) (*models.EmployeeDashboard, error)
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
// @Summary Кабинет сотрудника
// @Tags Employee
// @Produce  json
// @Success 200 {object} response.Response "Сотрудник и комиссии"
// @Failure 404 {object} response.ErrorResponse "Профиль сотрудника не найден"
// @Router /employee/dashboard [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.employee"

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

	dash, err := h.service.EmployeeDashboard(r.Context(), principal.UserID)
	if errors.Is(err, commission.ErrEmployeeNotFound) {
		log.Warn("employee profile not found", slog.String("user_id", principal.UserID))
		response.Fail(w, r, http.StatusNotFound, "employee profile not found")
		return
	}
	if err != nil {
		log.Error("failed to build employee dashboard", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(dash))
}
