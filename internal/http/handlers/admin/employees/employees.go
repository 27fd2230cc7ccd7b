// Package employees отдаёт администратору список сотрудников.
package employees

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

type Service interface {
	Employees(ctx context.Context) ([]*models.Employee, error)
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
// @Summary Список сотрудников
// @Description Включая отключённых.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Сотрудники"
// @Router /admin/employees [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.employees"

	employees, err := h.service.Employees(r.Context())
	if err != nil {
		h.log.Error("failed to list employees",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(map[string]any{
		"list_count": len(employees),
		"employees":  employees,
	}))
}
