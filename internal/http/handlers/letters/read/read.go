// Package read отдаёт одно письмо владельцу или администратору.
package read

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/lettererr"
	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

// Service описывает чтение письма.
type Service interface {
	Get(ctx context.Context, actor models.Principal, id string) (*models.Letter, error)
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
// @Summary Получить письмо
// @Tags Letters
// @Produce  json
// @Param id path string true "ID письма"
// @Success 200 {object} response.Response "Письмо"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Чужое письмо"
// @Failure 404 {object} response.ErrorResponse "Письмо не найдено"
// @Router /letters/{id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.letters.read"

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

	letter, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		log.Warn("failed to read letter", slog.String("letter_id", id), sl.Err(err))
		status, msg := lettererr.Status(err)
		response.Fail(w, r, status, msg)
		return
	}

	render.JSON(w, r, response.OKWithData(letter))
}
