// Package render формирует PDF завершённого письма заново.
package render

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	chirender "github.com/go-chi/render"

	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/lettererr"
	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

// Service описывает повторную отрисовку.
type Service interface {
	RenderAgain(ctx context.Context, actor models.Principal, id string) (*models.Letter, error)
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
// @Summary Пересоздать PDF
// @Tags Admin
// @Produce  json
// @Param id path string true "ID письма"
// @Success 200 {object} response.Response "Письмо с новым документом"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 404 {object} response.ErrorResponse "Письмо не найдено"
// @Failure 409 {object} response.ErrorResponse "Письмо не завершено"
// @Failure 500 {object} response.ErrorResponse "Ошибка формирования PDF"
// @Router /admin/letters/{id}/render [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.letters.render"

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

	letter, err := h.service.RenderAgain(r.Context(), principal, id)
	if err != nil {
		status, msg := lettererr.Status(err)
		log.Error("failed to render letter", slog.String("letter_id", id), sl.Err(err))
		response.Fail(w, r, status, msg)
		return
	}

	log.Info("letter rendered", slog.String("letter_id", id), slog.String("pdf", letter.PDFPath))
	chirender.JSON(w, r, response.OKWithData(letter))
}
