package response

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/datafirst-hq/aidly-backend/internal/domain/apperr"
)

// StatusFor maps service error codes onto HTTP statuses.
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	case apperr.CodeUnauthenticated, apperr.CodeInvalidToken:
		return http.StatusUnauthorized
	case apperr.CodeForbidden:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperr.CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondAppError translates a service error into the error envelope.
// Internal failures are never echoed to the client.
func RespondAppError(c *gin.Context, err error) {
	code := apperr.CodeOf(err)
	if code == "" {
		code = apperr.CodeInternal
	}
	status := StatusFor(code)
	if status == http.StatusInternalServerError {
		RespondError(c, status, string(code), stderrors.New("internal error"))
		return
	}
	RespondError(c, status, string(code), stderrors.New(publicMessage(err, code)))
}

func publicMessage(err error, code apperr.Code) string {
	var appErr *apperr.Error
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return string(code)
}
