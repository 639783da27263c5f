package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docassist/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrStateMismatch):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrSessionClosed):
		return http.StatusGone
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
