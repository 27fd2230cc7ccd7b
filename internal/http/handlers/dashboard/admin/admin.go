// Package admin отдаёт сводку администратора.
package admin

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

// Service описывает сводку администратора.
type Service interface {
	Dashboard(ctx context.Context) (*models.AdminDashboard, error)
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
// @Summary Кабинет администратора
// @Description Счётчики, последние письма и лучшие сотрудники по сумме комиссий.
// @Tags Admin
// @Produce  json
// @Success 200 {object} response.Response "Сводка"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Router /admin/dashboard [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.admin"

	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		h.log.Error("failed to build admin dashboard",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err),
		)
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(dash))
}
