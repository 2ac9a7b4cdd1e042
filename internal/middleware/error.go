package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kenko/clinic-api/pkg/errors"
)

// ErrorHandler logs the errors handlers attached with c.Error. The response
// itself has already been written by httputil.RespondWithError.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		logger := zerolog.Ctx(c.Request.Context())
		for _, e := range c.Errors {
			appErr := errors.As(e.Err)
			event := logger.Debug()
			if appErr.HTTPStatus() >= 500 {
				event = logger.Error()
			}
			event.
				Err(e.Err).
				Int("code", int(appErr.Code)).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if !c.Writer.Written() {
			last := errors.As(c.Errors.Last().Err)
			c.JSON(last.HTTPStatus(), gin.H{"status": "error", "message": last.Message})
		}
	}
}
