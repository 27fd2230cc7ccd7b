// Package signup регистрирует пользователя или сотрудника и сразу выдаёт токен.
package signup

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/legal-letters/internal/http/response"
	"github.com/magabrotheeeer/legal-letters/internal/lib/sl"
	"github.com/magabrotheeeer/legal-letters/internal/models"
	"github.com/magabrotheeeer/legal-letters/internal/services/auth"
)

// Service описывает регистрацию.
type Service interface {
	Signup(ctx context.Context, req models.SignupRequest) (string, *models.User, error)
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
// @Summary Регистрация
// @Description Создаёт пользователя с ролью user или employee. Для сотрудника создаётся реферальный код.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.SignupRequest true "Данные регистрации"
// @Success 201 {object} response.Response "Токен и пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или роль"
// @Failure 409 {object} response.ErrorResponse "Email уже занят"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /auth/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signup"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.SignupRequest
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

	token, user, err := h.service.Signup(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		log.Warn("email already registered")
		response.Fail(w, r, http.StatusConflict, "user already exists")
		return
	case errors.Is(err, auth.ErrInvalidRole):
		log.Warn("invalid role requested", slog.String("role", string(req.Role)))
		response.Fail(w, r, http.StatusBadRequest, "invalid role")
		return
	case err != nil:
		log.Error("failed to register user", sl.Err(err))
		response.Fail(w, r, http.StatusInternalServerError, "failed to register user")
		return
	}

	log.Info("user registered", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token": token,
		"user":  user,
	}))
}
