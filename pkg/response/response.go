package response

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"anoa.com/forumboard/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GetUserID retrieves the authenticated user ID from the context
func GetUserID(c *gin.Context) (uuid.UUID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	s, ok := userIDStr.(string)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// GetRole retrieves the authenticated role, empty when anonymous.
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}

type retryAfter interface {
	RetryAfter() time.Duration
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	status := apperror.MapErrorToStatus(err)

	if status >= http.StatusInternalServerError {
		slog.Error("internal error", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}

	var ra retryAfter
	if errors.As(err, &ra) {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(ra.RetryAfter().Seconds()))))
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) || appErr.Message == "" {
			message = apperror.ErrInternal.Error()
		}
	}

	c.JSON(status, gin.H{"error": message, "code": apperror.MapErrorToCode(err)})
}
