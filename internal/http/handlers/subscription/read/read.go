// Package read отдаёт текущую подписку пользователя.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

// Service описывает чтение активной подписки.
type Service interface {
	Current(ctx context.Context, userID string) (*models.UserSubscription, error)
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
// @Summary Текущая подписка
// @Description Активная подписка пользователя или null, если её нет.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Подписка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /user/subscription [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"

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

	sub, err := h.service.Current(r.Context(), principal.UserID)
	if err != nil {
		log.Error("could not read subscription", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "could not read subscription")
		return
	}

	render.JSON(w, r, response.Response{Status: response.StatusOK, Data: map[string]any{"subscription": sub}})
}
