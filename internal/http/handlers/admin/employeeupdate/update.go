// Package employeeupdate включает и отключает сотрудника. Отключённый
// сотрудник перестаёт давать скидку и получать комиссию.
package employeeupdate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/commission"
)

type Service interface {
	SetEmployeeActive(ctx context.Context, employeeID string, active bool) (*models.Employee, error)
}

// Request — тело запроса. Указатель отличает отсутствующее поле от false.
type Request struct {
	IsActive *bool `json:"isActive" validate:"required"`
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
// @Summary Включить или отключить сотрудника
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param id path string true "ID сотрудника"
// @Param request body Request true "Новое состояние"
// @Success 200 {object} response.Response "Сотрудник"
// @Failure 404 {object} response.ErrorResponse "Сотрудник не найден"
// @Router /admin/employees/{id} [patch]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.employeeupdate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if id == "" {
		response.Fail(w, r, http.StatusBadRequest, "missing employee id")
		return
	}

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validateErr validator.ValidationErrors
		if errors.As(err, &validateErr) {
			log.Warn("invalid request", sl.Err(err))
			response.Invalid(w, r, validateErr)
			return
		}
		log.Error("validation failed", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request")
		return
	}

	emp, err := h.service.SetEmployeeActive(r.Context(), id, *req.IsActive)
	if errors.Is(err, commission.ErrEmployeeNotFound) {
		response.Fail(w, r, http.StatusNotFound, "employee not found")
		return
	}
	if err != nil {
		log.Error("failed to update employee", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	log.Info("employee updated", slog.String("employee_id", id), slog.Bool("is_active", emp.IsActive))
	render.JSON(w, r, response.OKWithData(emp))
}
