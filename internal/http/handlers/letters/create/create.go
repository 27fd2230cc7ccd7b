// Package create принимает заявку на письмо и ставит её в очередь генерации.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/legal-letters/internal/http/handlers/letters/lettererr"
	"github.com/magabrotheeeer/legal-letters/internal/http/middlewarectx"
	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
)

// Service описывает создание письма.
type Service interface {
	Create(ctx context.Context, actor models.Principal, req models.LetterRequest) (*models.Letter, error)
}

// Handler обрабатывает POST /letters.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать письмо
// @Description Принимает заявку, проверяет остаток писем по подписке и ставит генерацию в очередь.
// @Tags Letters
// @Accept  json
// @Produce  json
// @Param request body models.LetterRequest true "Данные письма"
// @Success 201 {object} response.Response "Письмо принято"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или нет доступных писем"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 503 {object} response.ErrorResponse "Генерация не настроена"
// @Router /letters [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.letters.create"

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

	var req models.LetterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}

	letter, err := h.service.Create(r.Context(), principal, req)
	if err != nil {
		status, msg := lettererr.Status(err)
		if status >= http.StatusInternalServerError {
			log.Error("failed to create letter", sl.Err(err))
		} else {
			log.Warn("letter rejected", sl.Err(err))
		}
		response.Fail(w, r, status, msg)
		return
	}

	log.Info("letter created", slog.String("letter_id", letter.ID), slog.String("user_id", principal.UserID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(letter))
}
