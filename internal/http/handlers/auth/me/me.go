// Package me отдаёт профиль текущего пользователя.
package me

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
	"github.com/magabrotheeeer/legal-letters/internal/storage"
)

// Service описывает чтение профиля.
type Service interface {
	Me(ctx context.Context, userID string) (*models.User, error)
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
// @Summary Текущий пользователь
// @Tags Auth
// @Produce  json
// @Success 200 {object} response.Response "Профиль"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /auth/me [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.me"

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

	user, err := h.service.Me(r.Context(), principal.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Warn("user not found", slog.String("user_id", principal.UserID))
		response.Fail(w, r, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	render.JSON(w, r, response.OKWithData(user))
}
