package httpx

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/croutons-ai/precog/internal/errors"
)

// statusForCode maps application error codes to HTTP status codes.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeAuth:
		return http.StatusUnauthorized
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeQAGate:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeUpstreamFetch:
		return http.StatusBadGateway
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RenderError translates an application error into its boundary shape: the
// status from the error code, a Retry-After header for rate limits, and the
// structured refusal body for quality-gate errors. Unknown errors surface as
// an opaque 500 with no internal detail.
func RenderError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   string(apperrors.ErrCodeInternal),
			"message": "internal error",
		})
		return
	}

	status := statusForCode(appErr.Code)

	switch appErr.Code {
	case apperrors.ErrCodeRateLimited:
		if appErr.RetryAfterSeconds > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfterSeconds))
		}
		body := map[string]any{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if appErr.RetryAfterSeconds > 0 {
			body["retry_after_seconds"] = appErr.RetryAfterSeconds
		}
		WriteJSON(w, status, body)

	case apperrors.ErrCodeQAGate:
		body := map[string]any{"ok": false}
		for k, v := range appErr.Details {
			body[k] = v
		}
		WriteJSON(w, status, body)

	default:
		body := map[string]any{
			"error":   string(appErr.Code),
			"message": appErr.Message,
		}
		if appErr.Field != "" {
			body["field"] = appErr.Field
		}
		if status == http.StatusInternalServerError {
			// Never leak wrapped causes to clients.
			body["message"] = "internal error"
		}
		WriteJSON(w, status, body)
	}
}
