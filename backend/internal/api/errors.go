package api

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "sonar/backend/pkg/errors"
)

// statusFor maps a typed error to an HTTP status
func statusFor(err error) int {
	var (
		baseMissing    *apperrors.ErrCatalogBaseNotFound
		extMissing     *apperrors.ErrCatalogExtensionNotFound
		articleMissing *apperrors.ErrArticleNotFound
		baseExists     *apperrors.ErrCatalogBaseExists
	)
	switch {
	case apperrors.IsErrorType(err, apperrors.ErrorTypeValidation):
		return http.StatusBadRequest
	case stderrors.As(err, &baseMissing), stderrors.As(err, &extMissing), stderrors.As(err, &articleMissing):
		return http.StatusNotFound
	case stderrors.As(err, &baseExists):
		return http.StatusConflict
	case apperrors.IsErrorType(err, apperrors.ErrorTypeContext):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the error response. Internal failures get a generic
// message; the detail goes to the log via c.Error.
func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	msg := apperrors.PublicMessage(err)
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
