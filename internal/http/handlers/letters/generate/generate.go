// Package generate повторно ставит в очередь генерацию письма в статусе requested.
package generate

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

// Service описывает повторный запуск генерации.
type Service interface {
	Retry(ctx context.Context, actor models.Principal, id string) (*models.Letter, error)
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
// @Summary Повторить генерацию
// @Tags Letters
// @Produce  json
// @Param id path string true "ID письма"
// @Success 202 {object} response.Response "Генерация поставлена в очередь"
// @Failure 400 {object} response.ErrorResponse "Нет доступных писем"
// @Failure 404 {object} response.ErrorResponse "Письмо не найдено"
// @Failure 409 {object} response.ErrorResponse "Письмо уже сгенерировано"
// @Failure 503 {object} response.ErrorResponse "Генерация недоступна"
// @Router /letters/{id}/generate [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.letters.generate"

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

	letter, err := h.service.Retry(r.Context(), principal, id)
	if err != nil {
		status, msg := lettererr.Status(err)
		log.Warn("failed to retry generation", slog.String("letter_id", id), sl.Err(err))
		response.Fail(w, r, status, msg)
		return
	}

	log.Info("generation requeued", slog.String("letter_id", id))
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.OKWithData(letter))
}
