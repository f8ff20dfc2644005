package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/yt-sync-go/internal/domain"
	apperrors "github.com/yourusername/yt-sync-go/pkg/errors"
)

// StatusFor maps an error to an HTTP status code
func StatusFor(err error) int {
	var acqErr *domain.AcquireError
	if errors.As(err, &acqErr) {
		if acqErr.Kind == domain.FailureToolNotFound {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}

	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage prefers the AppError message over the typed Error() form
func errorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil && appErr.Type != apperrors.ErrorTypeIO && appErr.Type != apperrors.ErrorTypeInternal {
			return appErr.Message + ": " + appErr.Err.Error()
		}
		return appErr.Message
	}
	return err.Error()
}

func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(StatusFor(err), gin.H{"error": errorMessage(err)})
}
