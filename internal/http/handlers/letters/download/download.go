// Package download отдаёт PDF письма: владельцу с отметкой о скачивании,
// администратору без изменения статуса.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/legal-letters/internal/docrender"
	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/lettererr"
	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

type fetchFunc func(ctx context.Context, actor models.Principal, id string) (*models.Letter, *docrender.Document, error)

// Service описывает выдачу документа.
type Service interface {
	Download(ctx context.Context, actor models.Principal, id string) (*models.Letter, *docrender.Document, error)
	AdminDownload(ctx context.Context, actor models.Principal, id string) (*models.Letter, *docrender.Document, error)
}

type Handler struct {
	log   *slog.Logger
	fetch fetchFunc
	op    string
}

// New создаёт обработчик скачивания для владельца письма.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, fetch: service.Download, op: "handlers.letters.download"}
}

// NewAdmin создаёт обработчик скачивания для администратора.
func NewAdmin(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, fetch: service.AdminDownload, op: "handlers.letters.admin_download"}
}

// ServeHTTP godoc
// @Summary Скачать PDF письма
// @Description Владелец скачивает завершённое письмо, статус становится downloaded. Повторное скачивание отдаёт тот же файл.
// @Tags Letters
// @Produce  application/pdf
// @Param id path string true "ID письма"
// @Success 200 {file} file "PDF документ"
// @Failure 403 {object} response.ErrorResponse "Чужое письмо"
// @Failure 404 {object} response.ErrorResponse "Письмо не найдено"
// @Failure 409 {object} response.ErrorResponse "Документ ещё не готов"
// @Router /letters/{id}/download [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		slog.String("op", h.op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	principal, ok := middlewarectx.PrincipalFrom(r.Context())
	if !ok {
		log.Error("principal not found in context")
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	id := chi.URLParam(r, "id")

	letter, doc, err := h.fetch(r.Context(), principal, id)
	if err != nil {
		status, msg := lettererr.Status(err)
		log.Warn("download refused", slog.String("letter_id", id), sl.Err(err))
		response.Fail(w, r, status, msg)
		return
	}
	defer doc.Content.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="legal-letter-%s.pdf"`, letter.ID))
	http.ServeContent(w, r, doc.Name, doc.ModTime, doc.Content)

	log.Info("letter downloaded", slog.String("letter_id", letter.ID), slog.String("user_id", principal.UserID))
}
