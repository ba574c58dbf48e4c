package http

import (
	"errors"
	"net/http"

	"chat-presence/internal/service"
)

// Codigos estables que viajan en los frames de error.
const (
	codeUnauthenticated = "unauthenticated"
	codeForbidden       = "forbidden"
	codeNotFound        = "not_found"
	codeBadRequest      = "bad_request"
	codeRateLimited     = "rate_limited"
	codeInternal        = "internal_error"
	codeUnavailable     = "unavailable"
)

// classify traduce errores de servicio a status HTTP y codigo de frame.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrAuthentication):
		return http.StatusUnauthorized, codeUnauthenticated
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden, codeForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests, codeRateLimited
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// publicMessage oculta el detalle de errores internos.
func publicMessage(err error, code string) string {
	if code == codeInternal {
		return "internal error"
	}
	return err.Error()
}
