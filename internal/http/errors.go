package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/prospector/internal/errors"
)

// statusClientClosedRequest is the de facto status for requests the client abandoned.
const statusClientClosedRequest = 499

// statusFor maps an application error code to its HTTP status.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict, apperrors.ErrCodeForeignKey:
		return http.StatusConflict
	case apperrors.ErrCodeDispatch, apperrors.ErrCodeTimeout:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err as a JSON error. Internal details of
// unclassified errors are logged and replaced with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Err:     errors.New("internal server error"),
		})
		return
	}

	status := statusFor(appErr.Code)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", appErr.Code,
			"error", err,
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	WriteError(w, ErrorParams{
		Code:    status,
		ErrCode: string(appErr.Code),
		Err:     errors.New(appErr.Message),
		Field:   appErr.Field,
	})
}
