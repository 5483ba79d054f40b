package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luxora/storefront-api/internal/apperror"
	"github.com/luxora/storefront-api/internal/dto"
)

// ErrorHandler renders the last error attached to the context. Messages of
// non-operational errors are only exposed outside production.
func ErrorHandler(log *slog.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		appErr := apperror.As(err)

		body := dto.Envelope{Success: false, Message: appErr.Message}
		if !appErr.Operational {
			log.Error("request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(requestIDKey),
				"error", err,
			)
			if !production {
				body.Error = err.Error()
			}
		}
		c.JSON(appErr.Status, body)
	}
}

// NotFound answers routes that match nothing.
func NotFound() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = c.Error(apperror.NotFound("Can't find %s on this server!", c.Request.URL.Path))
	}
}

// Recovery turns a panic into a 500 rendered by ErrorHandler.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Envelope{
			Success: false,
			Message: "Something went wrong!",
		})
	})
}
