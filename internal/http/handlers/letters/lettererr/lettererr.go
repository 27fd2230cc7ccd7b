// Package lettererr переводит ошибки жизненного цикла письма в HTTP-ответы.
package lettererr

import (
	"errors"
	"net/http"

	"github.com/magabrotheeeer/legal-letters/internal/dispatch"
	"github.com/magabrotheeeer/legal-letters/internal/services/letters"
)

// Status возвращает HTTP-статус и текст ответа для ошибки сервиса писем.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, letters.ErrForbidden):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, letters.ErrNotFound):
		return http.StatusNotFound, "letter not found"
	case errors.Is(err, letters.ErrNoCredit):
		return http.StatusBadRequest, "no letters remaining, please purchase a plan"
	case errors.Is(err, letters.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable, "letter generation is not configured"
	case errors.Is(err, dispatch.ErrQueueFull), errors.Is(err, dispatch.ErrClosed):
		return http.StatusServiceUnavailable, "generation queue is busy, try again later"
	case errors.Is(err, letters.ErrNotReady):
		return http.StatusConflict, "letter is not ready for download"
	case errors.Is(err, letters.ErrInvalidStatus):
		return http.StatusConflict, "letter status does not allow this operation"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
